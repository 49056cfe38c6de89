// Package service orchestrates policy persistence and decision engine sync.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openpap/openpap/internal/domain/policy"
	"github.com/openpap/openpap/internal/port/outbound"
)

// SyncError is returned when pushing rule text to the decision engine fails
// during create, update, or rollback. The local mutation that triggered the
// push is never rolled back, so local and engine state may diverge until the
// next successful sync.
type SyncError struct {
	PolicyID string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync policy %s to decision engine: %v", e.PolicyID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Synchronizer mirrors rule text for engine-backed languages to the external
// decision engine, keyed by policy ID. Only rego rules are mirrored; cedar
// and alfa policies never touch the engine.
type Synchronizer struct {
	engine outbound.DecisionEngine
	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(engine outbound.DecisionEngine, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{engine: engine, logger: logger}
}

// Sync pushes the rule to the engine when the language requires compiled
// evaluation. Rule text passes through unmodified; callers embed their own
// package declaration.
func (s *Synchronizer) Sync(ctx context.Context, policyID string, lang policy.Language, rule string) error {
	if lang != policy.LanguageRego {
		return nil
	}
	if err := s.engine.Upsert(ctx, policyID, rule); err != nil {
		return &SyncError{PolicyID: policyID, Err: err}
	}
	s.logger.Debug("pushed rule to decision engine",
		"policy_id", policyID, "rule_digest", policy.Fingerprint(rule))
	return nil
}

// Unsync deletes the policy's rule from the engine. The engine's error is
// deliberately discarded after logging: removal of the local record must
// succeed whether or not the engine is reachable.
func (s *Synchronizer) Unsync(ctx context.Context, policyID string) {
	if err := s.engine.Delete(ctx, policyID); err != nil {
		s.logger.Warn("decision engine delete failed, local delete proceeds",
			"policy_id", policyID, "error", err)
	}
}
