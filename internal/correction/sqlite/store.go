// Package sqlite implements the correction.Store interface on a single-file
// SQLite database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/hzn-labs/horizonsum/internal/correction"
)

// schema creates the corrections table. The observed form is the primary key
// and is stored lowercased, so a pair can never be duplicated.
const schema = `
CREATE TABLE IF NOT EXISTS term_corrections (
	observed    TEXT PRIMARY KEY,
	canonical   TEXT NOT NULL,
	usage_count INTEGER NOT NULL DEFAULT 1,
	last_used   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store provides access to the corrections SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the corrections database at path with
// WAL journaling and initialises the schema. The parent directory is created
// when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: initialise schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close implements correction.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert implements correction.Store.
func (s *Store) Upsert(ctx context.Context, observed, canonical string) error {
	observed = strings.ToLower(strings.TrimSpace(observed))
	canonical = strings.TrimSpace(canonical)
	if observed == "" || canonical == "" {
		return fmt.Errorf("sqlite: observed and canonical must not be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO term_corrections (observed, canonical, usage_count, last_used)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(observed) DO UPDATE SET
			canonical   = excluded.canonical,
			usage_count = usage_count + 1,
			last_used   = CURRENT_TIMESTAMP
	`, observed, canonical)
	if err != nil {
		return fmt.Errorf("sqlite: upsert correction %q: %w", observed, err)
	}
	return nil
}

// Lookup implements correction.Store.
func (s *Store) Lookup(ctx context.Context, observed string) (*correction.Correction, error) {
	observed = strings.ToLower(strings.TrimSpace(observed))

	row := s.db.QueryRowContext(ctx, `
		SELECT observed, canonical, usage_count, last_used
		FROM term_corrections
		WHERE observed = ?
	`, observed)

	var c correction.Correction
	if err := row.Scan(&c.Observed, &c.Canonical, &c.UsageCount, &c.LastUsed); err != nil {
		if err == sql.ErrNoRows {
			return nil, correction.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: scan correction: %w", err)
	}
	return &c, nil
}

// All implements correction.Store.
// Longer observed forms sort first so "jupiter perp" is applied before "perp".
func (s *Store) All(ctx context.Context) ([]correction.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT observed, canonical, usage_count, last_used
		FROM term_corrections
		ORDER BY length(observed) DESC, observed ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query corrections: %w", err)
	}
	defer rows.Close()

	var corrections []correction.Correction
	for rows.Next() {
		var c correction.Correction
		if err := rows.Scan(&c.Observed, &c.Canonical, &c.UsageCount, &c.LastUsed); err != nil {
			return nil, fmt.Errorf("sqlite: scan correction: %w", err)
		}
		corrections = append(corrections, c)
	}
	return corrections, rows.Err()
}

// Ensure Store implements correction.Store at compile time.
var _ correction.Store = (*Store)(nil)
