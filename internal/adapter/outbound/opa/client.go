// Package opa provides the decision engine adapter for the OPA REST API.
package opa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/openpap/openpap/internal/port/outbound"
)

// maxErrorBodySize caps how much of an OPA error response is read.
const maxErrorBodySize = 64 * 1024

// Client pushes rego rule text to an OPA server over its REST API.
// It implements the outbound.DecisionEngine interface.
//
// Calls carry no timeout and no retry: an unreachable or hung engine stalls
// the enclosing request. Pass a custom *http.Client to change that.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a client for the OPA server at baseURL (e.g. "http://localhost:8181").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upsert creates or replaces the rule stored under policyID.
// The rule text is sent unmodified; callers embed their own package declaration.
func (c *Client) Upsert(ctx context.Context, policyID, rule string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.policyURL(policyID), strings.NewReader(rule))
	if err != nil {
		return fmt.Errorf("build upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upsert policy %s: %w", policyID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upsert policy %s: %s", policyID, readEngineError(resp))
	}
	return nil
}

// Delete removes the rule stored under policyID.
func (c *Client) Delete(ctx context.Context, policyID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.policyURL(policyID), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete policy %s: %w", policyID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete policy %s: %s", policyID, readEngineError(resp))
	}
	return nil
}

// policyURL returns the OPA policy endpoint for the given id.
func (c *Client) policyURL(policyID string) string {
	return c.baseURL + "/v1/policies/" + url.PathEscape(policyID)
}

// engineError is the JSON error body OPA returns on failed requests.
type engineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// readEngineError extracts the engine's error message from a non-2xx
// response, falling back to the HTTP status when the body is not the
// expected JSON shape.
func readEngineError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	var e engineError
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		return resp.Status
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Compile-time interface verification.
var _ outbound.DecisionEngine = (*Client)(nil)
