package openpap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client is the openpap SDK client. It communicates with the openpap Policy
// Administration API to manage versioned authorization policies.
type Client struct {
	serverAddr string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new openpap SDK client.
// It reads the server address from the OPENPAP_SERVER_ADDR environment
// variable by default. Options can be used to override the defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serverAddr: os.Getenv("OPENPAP_SERVER_ADDR"),
		timeout:    10 * time.Second,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
		}
	}

	return c
}

// List returns the identifiers of all current policies.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var result listResult
	if err := c.doRequest(ctx, http.MethodGet, "/policies", nil, &result); err != nil {
		return nil, err
	}
	return result.Policies, nil
}

// Get returns the current state of one policy.
// Returns an error matching ErrNotFound if the policy does not exist.
func (c *Client) Get(ctx context.Context, id string) (*Policy, error) {
	var result policyResult
	if err := c.doRequest(ctx, http.MethodGet, "/policies/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return result.toPolicy(), nil
}

// History returns all recorded versions of a policy, oldest first.
// History remains readable after the policy is deleted.
func (c *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var result historyResult
	path := "/policies/" + url.PathEscape(id) + "/versions"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, len(result.Versions))
	for i, v := range result.Versions {
		entries[i] = HistoryEntry{
			Data: PolicyData{
				Description: v.Description,
				Language:    v.Language,
				Rule:        v.Rule,
				Owner:       v.Owner,
			},
			Version:      v.Version,
			LastModified: v.LastModified,
			RuleDigest:   v.RuleDigest,
		}
	}
	return entries, nil
}

// Create registers a new policy and returns its server-assigned state.
// Rego rules are pushed to the decision engine; a rejected rule returns
// an error matching ErrSyncRejected.
func (c *Client) Create(ctx context.Context, data PolicyData) (*Policy, error) {
	var result policyResult
	if err := c.doRequest(ctx, http.MethodPost, "/policies", envelope(data), &result); err != nil {
		return nil, err
	}
	return result.toPolicy(), nil
}

// Update replaces a policy's content under a new version token.
// If the decision engine rejects the new rule, the stored policy is
// left unchanged and the error matches ErrSyncRejected.
func (c *Client) Update(ctx context.Context, id string, data PolicyData) (*Policy, error) {
	var result policyResult
	path := "/policies/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodPut, path, envelope(data), &result); err != nil {
		return nil, err
	}
	return result.toPolicy(), nil
}

// Rollback restores a historical version as the policy's current state.
// The restored state reuses the target entry's version token.
func (c *Client) Rollback(ctx context.Context, id, version string) (*Policy, error) {
	var result policyResult
	path := "/policies/" + url.PathEscape(id) + "/rollback/" + url.PathEscape(version)
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return result.toPolicy(), nil
}

// Delete removes a policy's current state. Version history is retained.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/policies/"+url.PathEscape(id), nil, nil)
}

// envelope nests policy data under the API's envelope key.
func envelope(data PolicyData) any {
	return policyEnvelope{Policy: policyPayload{
		Description: data.Description,
		Language:    data.Language,
		Rule:        data.Rule,
		Owner:       data.Owner,
	}}
}

// doRequest performs an HTTP request against the openpap server and decodes
// the JSON response into result. Non-2xx responses become typed errors.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	reqURL := strings.TrimRight(c.serverAddr, "/") + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &ServerUnreachableError{Cause: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return apiError(httpResp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// apiError converts a non-2xx response into a typed error. A 400 whose
// detail mentions the decision engine is surfaced as SyncRejectedError so
// callers can distinguish bad rules from bad requests.
func apiError(status int, body []byte) error {
	var er errorResult
	_ = json.Unmarshal(body, &er)
	detail := er.Detail
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}

	if status == http.StatusBadRequest && strings.Contains(detail, "decision engine") {
		return &SyncRejectedError{Detail: detail}
	}
	return &APIError{StatusCode: status, Detail: detail}
}
