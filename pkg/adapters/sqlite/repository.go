// Package sqlite stores snapshots in a SQLite database through the pure-Go
// modernc driver.
package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	_ "modernc.org/sqlite"

	"github.com/aretw0/stm/pkg/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	attributes TEXT NOT NULL,
	position   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_position ON entries(position);
`

// Repository keeps one row per entry. Rows are ordered by position, which
// follows zIndex and then key.
type Repository struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Open opens (creating if needed) the database at path. MemoryPath is
// accepted for tests.
func Open(path string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	return &Repository{db: db, path: path, logger: logger}, nil
}

var _ core.Repository = (*Repository)(nil)

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Initialize creates the schema.
func (r *Repository) Initialize(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load reads every row.
func (r *Repository) Load(ctx context.Context) (core.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value, attributes FROM entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	snap := core.Snapshot{}
	for rows.Next() {
		var key, value, attrs string
		if err := rows.Scan(&key, &value, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		a := core.DefaultAttributes()
		if err := json.Unmarshal([]byte(attrs), &a); err != nil {
			return nil, fmt.Errorf("%w: attributes of %q: %v", core.ErrInvalidValue, key, err)
		}
		snap[key] = core.Entry{Value: value, Attributes: a.Clone()}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	r.logger.Debug("snapshot loaded", "path", r.path, "count", len(snap))
	return snap, nil
}

// Save replaces every row in one transaction.
func (r *Repository) Save(ctx context.Context, snap core.Snapshot) error {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(snap[a].Attributes.ZIndex, snap[b].Attributes.ZIndex); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (key, value, attributes, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, k := range keys {
		attrs, err := json.Marshal(snap[k].Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes of %s: %w", k, err)
		}
		if _, err := stmt.ExecContext(ctx, k, snap[k].Value, string(attrs), i); err != nil {
			return fmt.Errorf("failed to insert %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	r.logger.Debug("snapshot saved", "path", r.path, "count", len(snap))
	return nil
}
