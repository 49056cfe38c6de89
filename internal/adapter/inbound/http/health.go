package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/openpap/openpap/internal/domain/policy"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies the durable store is reachable.
type HealthChecker struct {
	store   policy.Store
	version string
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(store policy.Store, version string) *HealthChecker {
	return &HealthChecker{store: store, version: version}
}

// Check probes the store with a bounded listing query.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := h.store.ListIDs(probeCtx); err != nil {
		checks["store"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["store"] = "ok"
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	return HealthResponse{Status: status, Checks: checks, Version: h.version}
}

// Handler returns the /health HTTP handler.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
