package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/openpap/openpap/internal/adapter/outbound/memory"
	"github.com/openpap/openpap/internal/domain/policy"
)

// mockEngine records decision engine calls and injects failures.
type mockEngine struct {
	mu         sync.Mutex
	upserts    []string // policy IDs, in call order
	deletes    []string
	lastRule   string
	upsertErr  error
	deleteErr  error
}

func (m *mockEngine) Upsert(ctx context.Context, policyID, rule string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, policyID)
	m.lastRule = rule
	return nil
}

func (m *mockEngine) Delete(ctx context.Context, policyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, policyID)
	return m.deleteErr
}

func (m *mockEngine) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(engine *mockEngine) (*PolicyService, *memory.PolicyStore) {
	store := memory.NewPolicyStore()
	logger := testLogger()
	svc := NewPolicyService(store, NewSynchronizer(engine, logger), policy.NewTokenClock(), logger)
	return svc, store
}

func regoData(rule string) policy.Data {
	return policy.Data{
		Description: "allow policy",
		Language:    policy.LanguageRego,
		Rule:        rule,
		Owner:       "platform-team",
	}
}

func TestCreate_GetRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{}
	svc, _ := newTestService(engine)

	data := regoData("package p\nallow { true }")
	created, err := svc.Create(ctx, data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create returned empty policy ID")
	}
	if created.Version == "" || created.Version != created.LastModified {
		t.Errorf("Version %q and LastModified %q must be equal and non-empty", created.Version, created.LastModified)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Data != data {
		t.Errorf("Get returned %+v, want submitted fields %+v", got.Data, data)
	}

	hist, err := svc.GetHistory(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(hist) != 1 || hist[0].Token != created.Version {
		t.Errorf("history after create = %+v, want 1 entry with token %q", hist, created.Version)
	}

	if engine.upsertCount() != 1 || engine.lastRule != data.Rule {
		t.Errorf("engine received %d upserts, last rule %q", engine.upsertCount(), engine.lastRule)
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&mockEngine{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p, err := svc.Create(ctx, regoData("package p\nallow { true }"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[p.ID] {
			t.Fatalf("duplicate policy ID %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestUpdate_HistoryRecordsNewState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&mockEngine{})

	created, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newData := regoData("package p\nallow { false }")
	updated, err := svc.Update(ctx, created.ID, newData)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version <= created.Version {
		t.Errorf("updated version %q not greater than %q", updated.Version, created.Version)
	}

	hist, err := svc.GetHistory(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
	// The update's history entry carries the NEW rule text under the new
	// token; the prior state is not re-snapshotted.
	if hist[1].Rule != newData.Rule || hist[1].Token != updated.Version {
		t.Errorf("update snapshot = {rule %q, token %q}, want new rule under new token", hist[1].Rule, hist[1].Token)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(&mockEngine{})
	if _, err := svc.Update(context.Background(), "missing", regoData("package p")); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}
}

func TestRollback_RestoresContentAndToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&mockEngine{})

	originalRule := "package p\nallow { true }"
	created, err := svc.Create(ctx, regoData(originalRule))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	v1 := created.Version

	if _, err := svc.Update(ctx, created.ID, regoData("package p\nallow { false }")); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rolled, err := svc.Rollback(ctx, created.ID, v1)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rolled.Rule != originalRule {
		t.Errorf("rollback rule = %q, want original", rolled.Rule)
	}
	if rolled.Version != v1 {
		t.Errorf("rollback version = %q, want reused target token %q", rolled.Version, v1)
	}
	if rolled.LastModified == v1 {
		t.Error("rollback must mint a fresh last_modified, not reuse the target's")
	}

	got, _ := svc.Get(ctx, created.ID)
	if got.Rule != originalRule || got.Version != v1 {
		t.Errorf("Get after rollback = {rule %q, version %q}", got.Rule, got.Version)
	}

	// History gains a third entry sharing the v1 token with a different
	// last_modified — must not be rejected as a uniqueness violation.
	hist, err := svc.GetHistory(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("history len = %d, want 3", len(hist))
	}
	last := hist[len(hist)-1]
	if last.Token != v1 || last.LastModified == v1 {
		t.Errorf("rollback snapshot = {token %q, last_modified %q}, want token %q with fresh last_modified", last.Token, last.LastModified, v1)
	}
}

func TestRollback_UnknownVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&mockEngine{})

	created, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Rollback(ctx, created.ID, "no-such-version"); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Rollback unknown version = %v, want ErrNotFound", err)
	}
}

func TestDelete_HistorySurvives(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{}
	svc, _ := newTestService(engine)

	created, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(engine.deletes) != 1 || engine.deletes[0] != created.ID {
		t.Errorf("engine deletes = %v, want [%s]", engine.deletes, created.ID)
	}

	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, err := svc.Update(ctx, created.ID, regoData("package p")); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("Update after delete = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}

	hist, err := svc.GetHistory(ctx, created.ID)
	if err != nil || len(hist) != 1 {
		t.Errorf("history after delete = %d entries, err %v; want 1, nil", len(hist), err)
	}
}

func TestDelete_EngineFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{deleteErr: errors.New("engine unreachable")}
	svc, _ := newTestService(engine)

	created, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The engine failure must never surface: local cleanup wins.
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Errorf("Delete with failing engine = %v, want nil", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, policy.ErrNotFound) {
		t.Errorf("local row survived delete: %v", err)
	}
}

func TestNonRegoNeverTouchesEngine(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{}
	svc, _ := newTestService(engine)

	cedar := policy.Data{
		Description: "cedar policy",
		Language:    policy.LanguageCedar,
		Rule:        `permit(principal, action, resource);`,
		Owner:       "qa",
	}
	created, err := svc.Create(ctx, cedar)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cedar.Description = "updated"
	updated, err := svc.Update(ctx, created.ID, cedar)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Rollback(ctx, created.ID, updated.Version); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if n := engine.upsertCount(); n != 0 {
		t.Errorf("engine received %d upserts for a cedar policy, want 0", n)
	}
}

func TestCreate_SyncFailureLeavesLocalRows(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{upsertErr: errors.New("compile failed")}
	svc, store := newTestService(engine)

	_, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("Create with failing engine = %v, want *SyncError", err)
	}

	// The local insert is not retracted: the policy exists with no engine rule.
	ids, _ := store.ListIDs(ctx)
	if len(ids) != 1 {
		t.Fatalf("ListIDs after failed sync = %v, want the created policy", ids)
	}
	if _, err := store.History(ctx, ids[0]); err != nil {
		t.Errorf("initial snapshot missing after failed sync: %v", err)
	}
}

func TestUpdate_SyncFailureLeavesCurrentRowUntouched(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{}
	svc, _ := newTestService(engine)

	created, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	engine.upsertErr = errors.New("engine down")
	_, err = svc.Update(ctx, created.ID, regoData("package p\nallow { false }"))
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("Update with failing engine = %v, want *SyncError", err)
	}
	if syncErr.PolicyID != created.ID {
		t.Errorf("SyncError.PolicyID = %q, want %q", syncErr.PolicyID, created.ID)
	}

	// Current row is still the pre-update state...
	got, _ := svc.Get(ctx, created.ID)
	if got.Rule != "package p\nallow { true }" || got.Version != created.Version {
		t.Errorf("current row changed despite aborted update: %+v", got)
	}
	// ...but history already holds a row for data that never became current.
	hist, _ := svc.GetHistory(ctx, created.ID)
	if len(hist) != 2 {
		t.Errorf("history len = %d, want 2 (orphaned update snapshot included)", len(hist))
	}
}

func TestRollback_SyncFailureAfterLocalCommit(t *testing.T) {
	ctx := context.Background()
	engine := &mockEngine{}
	svc, _ := newTestService(engine)

	created, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Update(ctx, created.ID, regoData("package p\nallow { false }")); err != nil {
		t.Fatalf("Update: %v", err)
	}

	engine.upsertErr = errors.New("engine down")
	_, err = svc.Rollback(ctx, created.ID, created.Version)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("Rollback with failing engine = %v, want *SyncError", err)
	}

	// Both local writes committed before the sync attempt.
	got, _ := svc.Get(ctx, created.ID)
	if got.Version != created.Version {
		t.Errorf("current row not restored before sync failure: version %q", got.Version)
	}
	hist, _ := svc.GetHistory(ctx, created.ID)
	if len(hist) != 3 {
		t.Errorf("history len = %d, want 3", len(hist))
	}
}

func TestVersionsStrictlyIncreasePerPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&mockEngine{})

	created, err := svc.Create(ctx, regoData("package p\nallow { true }"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	prev := created.Version
	for i := 0; i < 20; i++ {
		updated, err := svc.Update(ctx, created.ID, regoData("package p\nallow { true }"))
		if err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
		if updated.Version <= prev {
			t.Fatalf("version %q not greater than %q", updated.Version, prev)
		}
		prev = updated.Version
	}
}
