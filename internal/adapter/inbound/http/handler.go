// Package http provides the HTTP transport adapter for the policy API.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/openpap/openpap/internal/domain/policy"
	"github.com/openpap/openpap/internal/service"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// policyEnvelopeKey is the wire name the policy payload is nested under,
// kept from the service's YANG-modelled REST contract.
const policyEnvelopeKey = "auth-policy:policy"

// policyData is the JSON payload for creating or updating a policy.
type policyData struct {
	Description string `json:"description"`
	Language    string `json:"language" validate:"required,oneof=rego cedar alfa"`
	Rule        string `json:"rule" validate:"required"`
	Owner       string `json:"owner"`
}

// policyRequest nests the payload under the envelope key.
type policyRequest struct {
	Policy *policyData `json:"auth-policy:policy" validate:"required"`
}

// policyView is the JSON representation of a policy's current state.
type policyView struct {
	Description  string `json:"description"`
	Language     string `json:"language"`
	Rule         string `json:"rule"`
	Owner        string `json:"owner"`
	Version      string `json:"version"`
	LastModified string `json:"last_modified"`
}

// policyResponse is the JSON response carrying a single policy.
type policyResponse struct {
	PolicyID string     `json:"policy_id"`
	Policy   policyView `json:"auth-policy:policy"`
}

// versionView is the JSON representation of one history entry.
type versionView struct {
	Description  string `json:"description"`
	Language     string `json:"language"`
	Rule         string `json:"rule"`
	Owner        string `json:"owner"`
	Version      string `json:"version"`
	LastModified string `json:"last_modified"`
	RuleDigest   string `json:"rule_digest"`
}

// historyResponse is the JSON response for a policy's version history.
type historyResponse struct {
	PolicyID string        `json:"policy_id"`
	Versions []versionView `json:"versions"`
}

// listResponse is the JSON response for the policy listing.
type listResponse struct {
	Policies []string `json:"policies"`
}

// PolicyAPIHandler serves the policy administration endpoints.
type PolicyAPIHandler struct {
	policies *service.PolicyService
	metrics  *Metrics
	validate *validator.Validate
	logger   *slog.Logger
}

// NewPolicyAPIHandler creates a PolicyAPIHandler.
func NewPolicyAPIHandler(policies *service.PolicyService, metrics *Metrics, logger *slog.Logger) *PolicyAPIHandler {
	return &PolicyAPIHandler{
		policies: policies,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes returns the handler for all policy API endpoints.
func (h *PolicyAPIHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /policies", h.instrument("list", h.handleListPolicies))
	mux.HandleFunc("POST /policies", h.instrument("create", h.handleCreatePolicy))
	mux.HandleFunc("GET /policies/{id}", h.instrument("get", h.handleGetPolicy))
	mux.HandleFunc("GET /policies/{id}/versions", h.instrument("history", h.handleGetHistory))
	mux.HandleFunc("PUT /policies/{id}", h.instrument("update", h.handleUpdatePolicy))
	mux.HandleFunc("POST /policies/{id}/rollback/{version}", h.instrument("rollback", h.handleRollbackPolicy))
	mux.HandleFunc("DELETE /policies/{id}", h.instrument("delete", h.handleDeletePolicy))

	return mux
}

// handleListPolicies returns the identifiers of all current policies.
// GET /policies
func (h *PolicyAPIHandler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	ids, err := h.policies.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list policies", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list policies")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.respondJSON(w, http.StatusOK, listResponse{Policies: ids})
}

// handleGetPolicy returns the current state of one policy.
// GET /policies/{id}
func (h *PolicyAPIHandler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.policies.Get(r.Context(), id)
	if err != nil {
		h.respondOperationError(w, err, "get", id)
		return
	}
	h.respondJSON(w, http.StatusOK, toPolicyResponse(p))
}

// handleGetHistory returns all recorded versions of a policy.
// GET /policies/{id}/versions
func (h *PolicyAPIHandler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	versions, err := h.policies.GetHistory(r.Context(), id)
	if err != nil {
		h.respondOperationError(w, err, "history", id)
		return
	}

	views := make([]versionView, len(versions))
	for i, v := range versions {
		views[i] = versionView{
			Description:  v.Description,
			Language:     string(v.Language),
			Rule:         v.Rule,
			Owner:        v.Owner,
			Version:      v.Token,
			LastModified: v.LastModified,
			RuleDigest:   policy.Fingerprint(v.Rule),
		}
	}
	h.respondJSON(w, http.StatusOK, historyResponse{PolicyID: id, Versions: views})
}

// handleCreatePolicy registers a new policy.
// POST /policies
func (h *PolicyAPIHandler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readPolicyData(w, r)
	if !ok {
		return
	}

	created, err := h.policies.Create(r.Context(), policy.Data{
		Description: data.Description,
		Language:    policy.Language(data.Language),
		Rule:        data.Rule,
		Owner:       data.Owner,
	})
	if err != nil {
		h.respondOperationError(w, err, "create", "")
		return
	}
	h.respondJSON(w, http.StatusCreated, toPolicyResponse(created))
}

// handleUpdatePolicy replaces a policy's content under a new version.
// PUT /policies/{id}
func (h *PolicyAPIHandler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	data, ok := h.readPolicyData(w, r)
	if !ok {
		return
	}

	updated, err := h.policies.Update(r.Context(), id, policy.Data{
		Description: data.Description,
		Language:    policy.Language(data.Language),
		Rule:        data.Rule,
		Owner:       data.Owner,
	})
	if err != nil {
		h.respondOperationError(w, err, "update", id)
		return
	}
	h.respondJSON(w, http.StatusOK, toPolicyResponse(updated))
}

// handleRollbackPolicy restores a historical version as the current state.
// POST /policies/{id}/rollback/{version}
func (h *PolicyAPIHandler) handleRollbackPolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	version := r.PathValue("version")

	rolled, err := h.policies.Rollback(r.Context(), id, version)
	if err != nil {
		h.respondOperationError(w, err, "rollback", id)
		return
	}
	h.respondJSON(w, http.StatusOK, toPolicyResponse(rolled))
}

// handleDeletePolicy removes a policy's current state.
// DELETE /policies/{id}
func (h *PolicyAPIHandler) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.policies.Delete(r.Context(), id); err != nil {
		h.respondOperationError(w, err, "delete", id)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "policy '" + id + "' deleted successfully",
	})
}

// readPolicyData decodes and validates the enveloped policy payload.
// Writes the error response itself and returns ok=false on failure.
func (h *PolicyAPIHandler) readPolicyData(w http.ResponseWriter, r *http.Request) (*policyData, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON request body")
		return nil, false
	}
	if req.Policy == nil {
		h.respondError(w, http.StatusBadRequest, "missing '"+policyEnvelopeKey+"' object")
		return nil, false
	}
	if err := h.validate.Struct(req.Policy); err != nil {
		h.respondError(w, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}
	return req.Policy, true
}

// respondOperationError maps service errors to HTTP status codes:
// NotFound -> 404, Conflict -> 409, engine sync failure -> 400 with the
// engine's message, anything else -> 500.
func (h *PolicyAPIHandler) respondOperationError(w http.ResponseWriter, err error, op, id string) {
	switch {
	case errors.Is(err, policy.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Policy not found")
	case errors.Is(err, policy.ErrConflict):
		h.respondError(w, http.StatusConflict, "Policy identifier collision")
	default:
		var syncErr *service.SyncError
		if errors.As(err, &syncErr) {
			h.metrics.SyncFailuresTotal.Inc()
			h.respondError(w, http.StatusBadRequest, syncErr.Error())
			return
		}
		h.logger.Error("policy operation failed", "op", op, "policy_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// validationMessage flattens a validator error into a caller-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		if f.Tag() == "oneof" {
			return "language must be one of: rego, cedar, alfa"
		}
		return "field '" + f.Field() + "' failed validation '" + f.Tag() + "'"
	}
	return "invalid request body"
}

// toPolicyResponse converts a domain policy to its API response shape.
func toPolicyResponse(p *policy.Policy) policyResponse {
	return policyResponse{
		PolicyID: p.ID,
		Policy: policyView{
			Description:  p.Description,
			Language:     string(p.Language),
			Rule:         p.Rule,
			Owner:        p.Owner,
			Version:      p.Version,
			LastModified: p.LastModified,
		},
	}
}

// --- JSON helper methods ---

// respondJSON writes a JSON response with the given status code and data.
func (h *PolicyAPIHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response with the given status and message.
func (h *PolicyAPIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"detail": message})
}
