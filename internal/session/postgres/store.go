// Package postgres provides a PostgreSQL-backed implementation of
// [session.Store] for deployments where run history must survive restarts.
//
// Runs are stored in a single table with the results document as JSONB. A GIN
// full-text index over the corrected transcript backs
// [Store.SearchTranscript]. All operations share one [pgxpool.Pool].
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hzn-labs/horizonsum/internal/session"
)

const ddlRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT         PRIMARY KEY,
    url         TEXT         NOT NULL,
    template    TEXT         NOT NULL DEFAULT 'default',
    generations INTEGER      NOT NULL DEFAULT 1,
    stage       TEXT         NOT NULL DEFAULT 'queued',
    error       TEXT         NOT NULL DEFAULT '',
    results     JSONB,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_stage
    ON runs (stage);

CREATE INDEX IF NOT EXISTS idx_runs_created_at
    ON runs (created_at DESC);

CREATE INDEX IF NOT EXISTS idx_runs_transcript_fts
    ON runs USING GIN (to_tsvector('english', coalesce(results->>'transcript', '')));
`

// Migrate creates or ensures the runs table and its indexes exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlRuns); err != nil {
		return fmt.Errorf("session postgres: migrate: %w", err)
	}
	return nil
}

// Store is the PostgreSQL-backed run store. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

var _ session.Store = (*Store)(nil)

// NewStore connects to the database at dsn, verifies the connection, and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Create implements [session.Store].
func (s *Store) Create(ctx context.Context, run *session.Run) error {
	if run.ID == "" {
		return fmt.Errorf("session postgres: run ID must not be empty")
	}
	if run.Stage != session.StageQueued {
		return fmt.Errorf("session postgres: new runs must start queued, got %q", run.Stage)
	}

	const q = `
		INSERT INTO runs (id, url, template, generations, stage)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, q,
		run.ID, run.URL, run.Template, run.Generations, string(run.Stage),
	).Scan(&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("session postgres: create run: %w", err)
	}
	return nil
}

// Get implements [session.Store].
func (s *Store) Get(ctx context.Context, id string) (*session.Run, error) {
	const q = `
		SELECT id, url, template, generations, stage, error, results, created_at, updated_at
		FROM   runs
		WHERE  id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("session postgres: get run: %w", err)
	}
	return run, nil
}

// List implements [session.Store].
func (s *Store) List(ctx context.Context) ([]*session.Run, error) {
	const q = `
		SELECT id, url, template, generations, stage, error, results, created_at, updated_at
		FROM   runs
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("session postgres: list runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*session.Run, error) {
		return scanRun(row)
	})
	if err != nil {
		return nil, fmt.Errorf("session postgres: scan runs: %w", err)
	}
	return runs, nil
}

// SetStage implements [session.Store]. The transition check runs inside a
// transaction so concurrent updates cannot race past it.
func (s *Store) SetStage(ctx context.Context, id string, stage session.Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("session postgres: unknown stage %q", stage)
	}
	return s.transition(ctx, id, stage, "")
}

// SetError implements [session.Store].
func (s *Store) SetError(ctx context.Context, id string, msg string) error {
	return s.transition(ctx, id, session.StageError, msg)
}

func (s *Store) transition(ctx context.Context, id string, stage session.Stage, errMsg string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("session postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var current string
	err = tx.QueryRow(ctx, `SELECT stage FROM runs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ErrNotFound
		}
		return fmt.Errorf("session postgres: read stage: %w", err)
	}
	if !session.Stage(current).CanTransitionTo(stage) {
		return fmt.Errorf("%w: %s → %s", session.ErrInvalidTransition, current, stage)
	}

	_, err = tx.Exec(ctx,
		`UPDATE runs SET stage = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, string(stage), errMsg,
	)
	if err != nil {
		return fmt.Errorf("session postgres: update stage: %w", err)
	}
	return tx.Commit(ctx)
}

// SetResults implements [session.Store].
func (s *Store) SetResults(ctx context.Context, id string, results *session.Results) error {
	doc, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("session postgres: marshal results: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET results = $2, updated_at = now() WHERE id = $1`,
		id, doc,
	)
	if err != nil {
		return fmt.Errorf("session postgres: set results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// AppendSummary implements [session.Store].
func (s *Store) AppendSummary(ctx context.Context, id string, summary string) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("session postgres: marshal summary: %w", err)
	}

	const q = `
		UPDATE runs
		SET    results = jsonb_set(results, '{summaries}',
		           coalesce(results->'summaries', '[]'::jsonb) || $2::jsonb),
		       updated_at = now()
		WHERE  id = $1 AND results IS NOT NULL`

	tag, err := s.pool.Exec(ctx, q, id, encoded)
	if err != nil {
		return fmt.Errorf("session postgres: append summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("session postgres: run %s has no results to append to", id)
	}
	return nil
}

// SetFinalSummary implements [session.Store].
func (s *Store) SetFinalSummary(ctx context.Context, id string, summary string) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("session postgres: marshal final summary: %w", err)
	}

	const q = `
		UPDATE runs
		SET    results = jsonb_set(results, '{final_summary}', $2::jsonb),
		       updated_at = now()
		WHERE  id = $1 AND results IS NOT NULL`

	tag, err := s.pool.Exec(ctx, q, id, encoded)
	if err != nil {
		return fmt.Errorf("session postgres: set final summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("session postgres: run %s has no results to attach a final summary to", id)
	}
	return nil
}

// SearchTranscript performs a full-text search over the corrected transcript
// of the given run and returns the transcript lines that match query. The
// query is passed to plainto_tsquery so no operator syntax is required.
func (s *Store) SearchTranscript(ctx context.Context, id, query string) ([]string, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT results IS NOT NULL FROM runs WHERE id = $1`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("session postgres: search transcript: %w", err)
	}
	if !exists {
		return []string{}, nil
	}

	const q = `
		SELECT line
		FROM   runs,
		       unnest(string_to_array(coalesce(results->>'transcript', ''), E'\n')) AS line
		WHERE  id = $1
		  AND  to_tsvector('english', line) @@ plainto_tsquery('english', $2)`

	rows, err := s.pool.Query(ctx, q, id, query)
	if err != nil {
		return nil, fmt.Errorf("session postgres: search transcript: %w", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("session postgres: scan matching lines: %w", err)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// Close implements [session.Store].
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanRun scans one row in the canonical column order.
func scanRun(row pgx.Row) (*session.Run, error) {
	var (
		run     session.Run
		stage   string
		results []byte
	)
	if err := row.Scan(
		&run.ID, &run.URL, &run.Template, &run.Generations,
		&stage, &run.Error, &results, &run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	run.Stage = session.Stage(stage)
	if len(results) > 0 {
		run.Results = &session.Results{}
		if err := json.Unmarshal(results, run.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return &run, nil
}
