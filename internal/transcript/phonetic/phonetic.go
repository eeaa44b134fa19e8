// Package phonetic validates proposed transcription corrections by sound.
//
// When the language model proposes that an observed phrase ("jupyter") is a
// mishearing of a canonical term ("Jupiter"), the pair is only accepted if the
// two actually sound alike. The check runs in two stages:
//
//  1. Phonetic overlap: Double Metaphone codes are computed for every word of
//     the observed phrase and of the canonical term. A shared code makes the
//     pair a phonetic candidate, which is accepted at a lenient Jaro-Winkler
//     similarity (default 0.70).
//
//  2. Fuzzy fallback: pairs with no code overlap can still pass on pure
//     Jaro-Winkler similarity, at a stricter threshold (default 0.85). This
//     catches near-identical spellings that metaphone splits apart.
//
// Multi-word phrases ("jup dow" vs "JUP DAO") are compared as full strings,
// space-stripped strings, and pairwise per word, taking the best score.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// pair whose metaphone codes overlap. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Checker) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required for a pair
// with no metaphone overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Checker) {
		c.fuzzyThreshold = threshold
	}
}

// Checker decides whether an observed phrase is a plausible mishearing of a
// canonical term. It is read-only after construction and safe for concurrent
// use.
type Checker struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Checker] configured with the supplied options.
func New(opts ...Option) *Checker {
	c := &Checker{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Plausible reports whether observed could be a mishearing of canonical,
// together with the Jaro-Winkler similarity that backed the decision. Blank
// input on either side is never plausible.
func (c *Checker) Plausible(observed, canonical string) (score float64, ok bool) {
	observedLower := strings.ToLower(strings.TrimSpace(observed))
	canonicalLower := strings.ToLower(strings.TrimSpace(canonical))
	if observedLower == "" || canonicalLower == "" {
		return 0, false
	}

	observedTokens := strings.Fields(observedLower)
	canonicalTokens := strings.Fields(canonicalLower)

	score = bestJWScore(observedTokens, canonicalTokens, observedLower, canonicalLower)

	if codesOverlap(codesForTokens(observedTokens), codesForTokens(canonicalTokens)) {
		return score, score >= c.phoneticThreshold
	}
	return score, score >= c.fuzzyThreshold
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when a word is too short or has no
// consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the
// observed phrase and the canonical term using three strategies:
//
//  1. Full-string comparison ("jup dow" vs "jup dao").
//  2. Space-stripped comparison ("jupdow" vs "jupdao").
//  3. Best pairwise word comparison, for when one spoken word corresponds to
//     one word of the term.
func bestJWScore(observedTokens, canonicalTokens []string, observedFull, canonicalFull string) float64 {
	score := matchr.JaroWinkler(observedFull, canonicalFull, false)

	if len(observedTokens) > 1 || len(canonicalTokens) > 1 {
		concat1 := strings.Join(observedTokens, "")
		concat2 := strings.Join(canonicalTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, ot := range observedTokens {
		for _, ct := range canonicalTokens {
			if s := matchr.JaroWinkler(ot, ct, false); s > score {
				score = s
			}
		}
	}

	return score
}
