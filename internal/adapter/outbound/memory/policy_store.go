// Package memory provides in-memory outbound adapters for dev mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/openpap/openpap/internal/domain/policy"
)

// PolicyStore implements policy.Store with in-memory maps.
// Thread-safe for concurrent access. For development/testing only.
type PolicyStore struct {
	mu       sync.RWMutex
	current  map[string]*policy.Policy // policy ID -> current row
	order    []string                  // insertion order of current rows
	versions map[string][]policy.Version
}

// NewPolicyStore creates a new in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{
		current:  make(map[string]*policy.Policy),
		versions: make(map[string][]policy.Version),
	}
}

// ListIDs returns all current policy identifiers in insertion order.
func (s *PolicyStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if _, ok := s.current[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get returns the current state of a policy.
func (s *PolicyStore) Get(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.current[id]
	if !ok {
		return nil, policy.ErrNotFound
	}
	// Return a copy to prevent mutation
	cp := *p
	return &cp, nil
}

// History returns all snapshots ascending by LastModified.
func (s *PolicyStore) History(ctx context.Context, id string) ([]policy.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs, ok := s.versions[id]
	if !ok || len(vs) == 0 {
		return nil, policy.ErrNotFound
	}

	out := make([]policy.Version, len(vs))
	copy(out, vs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastModified < out[j].LastModified
	})
	return out, nil
}

// GetVersion returns the earliest recorded snapshot with the given token.
func (s *PolicyStore) GetVersion(ctx context.Context, id, token string) (*policy.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.versions[id] {
		if s.versions[id][i].Token == token {
			cp := s.versions[id][i]
			return &cp, nil
		}
	}
	return nil, policy.ErrNotFound
}

// InsertCurrent inserts a new current row.
func (s *PolicyStore) InsertCurrent(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.current[p.ID]; ok {
		return policy.ErrConflict
	}
	cp := *p
	s.current[p.ID] = &cp
	s.order = append(s.order, p.ID)
	return nil
}

// UpdateCurrent overwrites the current row in place.
func (s *PolicyStore) UpdateCurrent(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.current[p.ID]; !ok {
		return policy.ErrNotFound
	}
	cp := *p
	s.current[p.ID] = &cp
	return nil
}

// AppendVersion records a snapshot. Duplicate tokens are accepted.
func (s *PolicyStore) AppendVersion(ctx context.Context, v *policy.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.versions[v.PolicyID] = append(s.versions[v.PolicyID], *v)
	return nil
}

// DeleteCurrent removes the current row, leaving history intact.
func (s *PolicyStore) DeleteCurrent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.current[id]; !ok {
		return policy.ErrNotFound
	}
	delete(s.current, id)
	return nil
}

// Compile-time interface verification.
var _ policy.Store = (*PolicyStore)(nil)
