package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/openpap/openpap/internal/domain/policy"
)

// PolicyService exposes the seven policy administration operations. It owns
// the ordering between durable store writes and decision engine sync for
// each operation.
//
// The orderings differ between operations (sync-before-commit for update,
// commit-before-sync for create/rollback/delete). Each is preserved exactly
// as the service evolved; do not unify them without a contract change, and
// see DESIGN.md for the known inconsistencies each ordering can leave behind.
type PolicyService struct {
	store  policy.Store
	sync   *Synchronizer
	clock  *policy.TokenClock
	logger *slog.Logger
}

// NewPolicyService creates a PolicyService.
func NewPolicyService(store policy.Store, sync *Synchronizer, clock *policy.TokenClock, logger *slog.Logger) *PolicyService {
	return &PolicyService{
		store:  store,
		sync:   sync,
		clock:  clock,
		logger: logger,
	}
}

// List returns the identifiers of all current policies.
func (s *PolicyService) List(ctx context.Context) ([]string, error) {
	return s.store.ListIDs(ctx)
}

// Get returns the current state of a policy.
// Returns policy.ErrNotFound if the policy does not exist.
func (s *PolicyService) Get(ctx context.Context, id string) (*policy.Policy, error) {
	return s.store.Get(ctx, id)
}

// GetHistory returns all recorded snapshots ascending by last modified.
// Returns policy.ErrNotFound when no history exists for the identifier.
func (s *PolicyService) GetHistory(ctx context.Context, id string) ([]policy.Version, error) {
	return s.store.History(ctx, id)
}

// Create stores a new policy under a fresh identifier, records its initial
// snapshot, and pushes the rule to the decision engine for rego policies.
// On sync failure the local rows stay committed and a *SyncError is
// returned: the policy exists locally with no corresponding engine rule.
func (s *PolicyService) Create(ctx context.Context, data policy.Data) (*policy.Policy, error) {
	token := s.clock.Next()
	p := &policy.Policy{
		ID:           uuid.New().String(),
		Data:         data,
		Version:      token,
		LastModified: token,
	}

	if err := s.store.InsertCurrent(ctx, p); err != nil {
		return nil, fmt.Errorf("insert policy: %w", err)
	}
	if err := s.store.AppendVersion(ctx, snapshot(p)); err != nil {
		return nil, fmt.Errorf("record initial version: %w", err)
	}

	if err := s.sync.Sync(ctx, p.ID, p.Language, p.Rule); err != nil {
		s.logger.Error("engine sync failed after create", "policy_id", p.ID, "error", err)
		return nil, err
	}

	s.logger.Info("policy created", "policy_id", p.ID, "language", p.Language, "version", p.Version)
	return p, nil
}

// Update replaces the policy's content under a freshly minted version token.
// Returns policy.ErrNotFound if the policy does not exist.
//
// Ordering: the snapshot of the incoming data is recorded first, then the
// engine sync runs, and only then is the current row overwritten. A sync
// failure therefore aborts with the current row still at its pre-update
// state while history already holds a row for data that never became
// current. The snapshot also captures the NEW data, not the prior state, so
// history reflects what became current at each step rather than what was
// replaced. Both behaviors are contractual; see DESIGN.md before changing.
func (s *PolicyService) Update(ctx context.Context, id string, data policy.Data) (*policy.Policy, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}

	token := s.clock.Next()
	p := &policy.Policy{
		ID:           id,
		Data:         data,
		Version:      token,
		LastModified: token,
	}

	if err := s.store.AppendVersion(ctx, snapshot(p)); err != nil {
		return nil, fmt.Errorf("record version: %w", err)
	}

	if err := s.sync.Sync(ctx, p.ID, p.Language, p.Rule); err != nil {
		s.logger.Error("engine sync failed, update aborted", "policy_id", id, "error", err)
		return nil, err
	}

	if err := s.store.UpdateCurrent(ctx, p); err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}

	s.logger.Info("policy updated", "policy_id", id, "version", p.Version)
	return p, nil
}

// Rollback restores the content of a historical snapshot as the new current
// state. The restored state keeps the TARGET's version token paired with a
// new last-modified timestamp, and a new history row is recorded under that
// same token — history may then hold two rows sharing a token.
// Returns policy.ErrNotFound if no snapshot matches (id, targetVersion).
// A sync failure is reported after both local writes have committed.
func (s *PolicyService) Rollback(ctx context.Context, id, targetVersion string) (*policy.Policy, error) {
	target, err := s.store.GetVersion(ctx, id, targetVersion)
	if err != nil {
		return nil, err
	}

	p := &policy.Policy{
		ID:           id,
		Data:         target.Data,
		Version:      target.Token,
		LastModified: s.clock.Next(),
	}

	if err := s.store.UpdateCurrent(ctx, p); err != nil {
		return nil, fmt.Errorf("restore policy: %w", err)
	}
	if err := s.store.AppendVersion(ctx, snapshot(p)); err != nil {
		return nil, fmt.Errorf("record rollback version: %w", err)
	}

	if err := s.sync.Sync(ctx, p.ID, p.Language, p.Rule); err != nil {
		s.logger.Error("engine sync failed after rollback", "policy_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("policy rolled back", "policy_id", id, "version", p.Version, "last_modified", p.LastModified)
	return p, nil
}

// Delete removes the current row, leaving history intact. The engine delete
// is attempted unconditionally and its outcome never changes the result.
// Returns policy.ErrNotFound if the policy does not exist.
func (s *PolicyService) Delete(ctx context.Context, id string) error {
	delErr := s.store.DeleteCurrent(ctx, id)

	// Attempted even when the local row was absent, matching the engine's
	// idempotent delete semantics. Failures are swallowed by Unsync.
	s.sync.Unsync(ctx, id)

	if delErr != nil {
		return delErr
	}
	s.logger.Info("policy deleted", "policy_id", id)
	return nil
}

// snapshot converts a current row into its history representation.
func snapshot(p *policy.Policy) *policy.Version {
	return &policy.Version{
		PolicyID:     p.ID,
		Data:         p.Data,
		Token:        p.Version,
		LastModified: p.LastModified,
	}
}
