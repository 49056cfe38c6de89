package memory

import (
	"context"

	"github.com/openpap/openpap/internal/port/outbound"
)

// NopEngine implements outbound.DecisionEngine without any external calls.
// Used in dev mode when no decision engine is reachable.
type NopEngine struct{}

// NewNopEngine creates a NopEngine.
func NewNopEngine() *NopEngine {
	return &NopEngine{}
}

// Upsert does nothing and always succeeds.
func (NopEngine) Upsert(ctx context.Context, policyID, rule string) error { return nil }

// Delete does nothing and always succeeds.
func (NopEngine) Delete(ctx context.Context, policyID string) error { return nil }

// Compile-time interface verification.
var _ outbound.DecisionEngine = (*NopEngine)(nil)
