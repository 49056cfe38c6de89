// Package policy contains domain types for versioned authorization policies.
package policy

import (
	"context"
	"errors"
)

// Language identifies the policy language a rule body is written in.
type Language string

const (
	// LanguageRego is evaluated by the external decision engine.
	// Rule text for rego policies is mirrored to the engine on every mutation.
	LanguageRego Language = "rego"
	// LanguageCedar is stored and versioned locally only.
	LanguageCedar Language = "cedar"
	// LanguageAlfa is stored and versioned locally only.
	LanguageAlfa Language = "alfa"
)

// Valid reports whether l is one of the supported policy languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageRego, LanguageCedar, LanguageAlfa:
		return true
	}
	return false
}

// Error values returned by policy stores.
var (
	// ErrNotFound is returned when a policy or version does not exist.
	ErrNotFound = errors.New("policy not found")
	// ErrConflict is returned when a generated policy ID collides with an
	// existing one. Practically unreachable with UUID identifiers.
	ErrConflict = errors.New("policy already exists")
)

// Data holds the caller-supplied fields of a policy.
type Data struct {
	// Description is free-text documentation for the policy.
	Description string
	// Language is the policy language of Rule.
	Language Language
	// Rule is the policy body. For rego it must embed its own package
	// declaration; the text is pushed to the engine unmodified.
	Rule string
	// Owner is free-text attribution.
	Owner string
}

// Policy is the current state of a stored policy.
type Policy struct {
	// ID is the unique identifier, assigned at creation, immutable.
	ID string
	Data
	// Version is the opaque token identifying this revision. Regenerated on
	// every mutation; rollback reuses the restored snapshot's token.
	Version string
	// LastModified is the timestamp of the last mutation. Equals Version at
	// each mutation except after a rollback.
	LastModified string
}

// Version is an immutable historical snapshot of a policy.
// Snapshots are appended on create, update, and rollback, and are never
// mutated or deleted — deleting a policy leaves its history intact.
type Version struct {
	PolicyID string
	Data
	// Token is the version identifier of this snapshot. Rollback records a
	// new snapshot under the restored token, so two snapshots of the same
	// policy may share a token with different LastModified values.
	Token        string
	LastModified string
}

// Store is the durable keyed table of current policies plus the append-only
// table of version snapshots. Implementations provide no cross-operation
// locking; callers order the granular operations per use case.
type Store interface {
	// ListIDs returns all current policy identifiers in storage order.
	ListIDs(ctx context.Context) ([]string, error)

	// Get returns the current state of a policy.
	// Returns ErrNotFound if no current row exists.
	Get(ctx context.Context, id string) (*Policy, error)

	// History returns all snapshots of a policy ascending by LastModified.
	// Returns ErrNotFound when the policy has no recorded history. A current
	// policy with zero history rows is indistinguishable from a missing one.
	History(ctx context.Context, id string) ([]Version, error)

	// GetVersion returns the snapshot with the given token. When rollback
	// has produced duplicate tokens, the earliest recorded row is returned.
	// Returns ErrNotFound if no such snapshot exists.
	GetVersion(ctx context.Context, id, token string) (*Version, error)

	// InsertCurrent inserts a new current row.
	// Returns ErrConflict if the identifier is already present.
	InsertCurrent(ctx context.Context, p *Policy) error

	// UpdateCurrent overwrites the current row in place.
	// Returns ErrNotFound if no current row exists.
	UpdateCurrent(ctx context.Context, p *Policy) error

	// AppendVersion records a snapshot. Append-only: duplicate
	// (policy ID, token) pairs are accepted because rollback reuses tokens.
	AppendVersion(ctx context.Context, v *Version) error

	// DeleteCurrent removes only the current row, leaving history intact.
	// Returns ErrNotFound if no current row exists.
	DeleteCurrent(ctx context.Context, id string) error
}
