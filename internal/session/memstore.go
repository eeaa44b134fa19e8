package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store implementation. It backs unit tests and
// deployments without PostgreSQL; runs are lost on restart.
type MemStore struct {
	mu   sync.RWMutex
	runs map[string]*Run

	// now is replaceable for tests.
	now func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory run store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs: make(map[string]*Run),
		now:  time.Now,
	}
}

// Create implements Store.
func (s *MemStore) Create(_ context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("session: run ID must not be empty")
	}
	if run.Stage != StageQueued {
		return fmt.Errorf("session: new runs must start queued, got %q", run.Stage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("session: run %s already exists", run.ID)
	}

	stored := run.Clone()
	now := s.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.runs[run.ID] = stored

	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run.Clone(), nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SetStage implements Store.
func (s *MemStore) SetStage(_ context.Context, id string, stage Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("session: unknown stage %q", stage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	if !run.Stage.CanTransitionTo(stage) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, run.Stage, stage)
	}
	run.Stage = stage
	run.UpdatedAt = s.now()
	return nil
}

// SetError implements Store.
func (s *MemStore) SetError(_ context.Context, id string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	if !run.Stage.CanTransitionTo(StageError) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, run.Stage, StageError)
	}
	run.Stage = StageError
	run.Error = msg
	run.UpdatedAt = s.now()
	return nil
}

// SetResults implements Store.
func (s *MemStore) SetResults(_ context.Context, id string, results *Results) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	res := *results
	run.Results = &res
	run.UpdatedAt = s.now()
	return nil
}

// AppendSummary implements Store.
func (s *MemStore) AppendSummary(_ context.Context, id string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	if run.Results == nil {
		return fmt.Errorf("session: run %s has no results to append to", id)
	}
	run.Results.Summaries = append(run.Results.Summaries, summary)
	run.UpdatedAt = s.now()
	return nil
}

// SetFinalSummary implements Store.
func (s *MemStore) SetFinalSummary(_ context.Context, id string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	if run.Results == nil {
		return fmt.Errorf("session: run %s has no results to attach a final summary to", id)
	}
	run.Results.FinalSummary = summary
	run.UpdatedAt = s.now()
	return nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
