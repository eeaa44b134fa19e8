// Package correction defines the persistent store of learned term
// corrections.
//
// A correction is one observed→canonical spelling pair accepted by the term
// analyzer (or entered manually). Pairs are keyed case-insensitively by the
// observed form so the store never holds two rows for the same misspelling;
// re-learning an existing pair increments its usage count and the most recent
// canonical form wins.
//
// Store implementations must be safe for concurrent use.
package correction

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Lookup when no correction exists for the
// observed form.
var ErrNotFound = errors.New("correction: not found")

// Correction is one learned observed→canonical pair.
type Correction struct {
	// Observed is the misspelled form as it appears in transcripts,
	// normalised to lower case.
	Observed string

	// Canonical is the dictionary spelling to emit instead.
	Canonical string

	// UsageCount is how many times this pair has been learned or re-learned.
	UsageCount int

	// LastUsed is when the pair was last learned or re-learned.
	LastUsed time.Time
}

// Store persists learned corrections.
type Store interface {
	// Upsert records an observed→canonical pair. If the observed form is
	// already known (ignoring case), its canonical form is replaced and its
	// usage count incremented; otherwise a new pair is created with usage
	// count 1. Empty observed or canonical forms are rejected.
	Upsert(ctx context.Context, observed, canonical string) error

	// Lookup returns the correction for the observed form, matching
	// case-insensitively. Returns ErrNotFound when the form is unknown.
	Lookup(ctx context.Context, observed string) (*Correction, error)

	// All returns every stored correction ordered by observed-form length,
	// longest first, so callers can apply longer phrases before their
	// substrings.
	All(ctx context.Context) ([]Correction, error)

	// Close releases the underlying storage.
	Close() error
}
