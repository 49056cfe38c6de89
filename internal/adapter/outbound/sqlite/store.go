// Package sqlite provides the durable policy store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/openpap/openpap/internal/domain/policy"
)

// schema creates the two tables on first open. The versions table carries no
// uniqueness constraint on (policy_id, version): rollback records a new row
// under the restored token, so duplicates are legal.
const schema = `
CREATE TABLE IF NOT EXISTS policies (
	policy_id     TEXT PRIMARY KEY,
	description   TEXT NOT NULL,
	language      TEXT NOT NULL,
	rule          TEXT NOT NULL,
	owner         TEXT NOT NULL,
	version       TEXT NOT NULL,
	last_modified TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS policy_versions (
	policy_id     TEXT NOT NULL,
	description   TEXT NOT NULL,
	language      TEXT NOT NULL,
	rule          TEXT NOT NULL,
	owner         TEXT NOT NULL,
	version       TEXT NOT NULL,
	last_modified TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_policy_versions_policy
	ON policy_versions (policy_id, last_modified);
`

// Store implements policy.Store on a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and ensures the schema exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer: SQLite serializes writes anyway, and a single connection
	// avoids SQLITE_BUSY under concurrent mutations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListIDs returns all current policy identifiers in storage order.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT policy_id FROM policies`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan policy id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get returns the current state of a policy.
func (s *Store) Get(ctx context.Context, id string) (*policy.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT policy_id, description, language, rule, owner, version, last_modified
		FROM policies WHERE policy_id = ?`, id)

	var p policy.Policy
	err := row.Scan(&p.ID, &p.Description, &p.Language, &p.Rule, &p.Owner, &p.Version, &p.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &p, nil
}

// History returns all snapshots ascending by last_modified.
func (s *Store) History(ctx context.Context, id string) ([]policy.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id, description, language, rule, owner, version, last_modified
		FROM policy_versions WHERE policy_id = ?
		ORDER BY last_modified ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []policy.Version
	for rows.Next() {
		var v policy.Version
		if err := rows.Scan(&v.PolicyID, &v.Description, &v.Language, &v.Rule, &v.Owner, &v.Token, &v.LastModified); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, policy.ErrNotFound
	}
	return versions, nil
}

// GetVersion returns the earliest recorded snapshot with the given token.
func (s *Store) GetVersion(ctx context.Context, id, token string) (*policy.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT policy_id, description, language, rule, owner, version, last_modified
		FROM policy_versions WHERE policy_id = ? AND version = ?
		ORDER BY last_modified ASC LIMIT 1`, id, token)

	var v policy.Version
	err := row.Scan(&v.PolicyID, &v.Description, &v.Language, &v.Rule, &v.Owner, &v.Token, &v.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

// InsertCurrent inserts a new current row.
func (s *Store) InsertCurrent(ctx context.Context, p *policy.Policy) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM policies WHERE policy_id = ?`, p.ID).Scan(&exists)
	if err == nil {
		return policy.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check policy id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policies (policy_id, description, language, rule, owner, version, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Description, p.Language, p.Rule, p.Owner, p.Version, p.LastModified)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// UpdateCurrent overwrites the current row in place.
func (s *Store) UpdateCurrent(ctx context.Context, p *policy.Policy) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE policies
		SET description = ?, language = ?, rule = ?, owner = ?, version = ?, last_modified = ?
		WHERE policy_id = ?`,
		p.Description, p.Language, p.Rule, p.Owner, p.Version, p.LastModified, p.ID)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return policy.ErrNotFound
	}
	return nil
}

// AppendVersion records a snapshot. Duplicate tokens are accepted.
func (s *Store) AppendVersion(ctx context.Context, v *policy.Version) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_versions (policy_id, description, language, rule, owner, version, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.PolicyID, v.Description, v.Language, v.Rule, v.Owner, v.Token, v.LastModified)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// DeleteCurrent removes the current row, leaving history intact.
func (s *Store) DeleteCurrent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE policy_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return policy.ErrNotFound
	}
	return nil
}

// Compile-time interface verification.
var _ policy.Store = (*Store)(nil)
