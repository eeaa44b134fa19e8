package correction

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store implementation. It backs unit tests and
// runs where no corrections database is configured; learned pairs are lost
// on restart.
type MemStore struct {
	mu    sync.RWMutex
	pairs map[string]Correction

	// now is replaceable for tests.
	now func() time.Time
}

// NewMemStore creates an empty in-memory correction store.
func NewMemStore() *MemStore {
	return &MemStore{
		pairs: make(map[string]Correction),
		now:   time.Now,
	}
}

// Upsert implements Store.
func (s *MemStore) Upsert(_ context.Context, observed, canonical string) error {
	observed = strings.ToLower(strings.TrimSpace(observed))
	canonical = strings.TrimSpace(canonical)
	if observed == "" || canonical == "" {
		return fmt.Errorf("correction: observed and canonical must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.pairs[observed]
	if !ok {
		c = Correction{Observed: observed}
	}
	c.Canonical = canonical
	c.UsageCount++
	c.LastUsed = s.now()
	s.pairs[observed] = c
	return nil
}

// Lookup implements Store.
func (s *MemStore) Lookup(_ context.Context, observed string) (*Correction, error) {
	observed = strings.ToLower(strings.TrimSpace(observed))

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.pairs[observed]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// All implements Store. Longer observed forms sort first.
func (s *MemStore) All(_ context.Context) ([]Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	corrections := make([]Correction, 0, len(s.pairs))
	for _, c := range s.pairs {
		corrections = append(corrections, c)
	}
	sort.Slice(corrections, func(i, j int) bool {
		if len(corrections[i].Observed) != len(corrections[j].Observed) {
			return len(corrections[i].Observed) > len(corrections[j].Observed)
		}
		return corrections[i].Observed < corrections[j].Observed
	})
	return corrections, nil
}

// Close implements Store.
func (s *MemStore) Close() error {
	return nil
}

// Ensure MemStore implements Store at compile time.
var _ Store = (*MemStore)(nil)
