// Package transcript cleans raw speech-to-text output and applies
// deterministic terminology corrections.
//
// Raw transcripts of live streams are noisy: filler words, repeated words,
// hesitation markers, and systematically misheard domain vocabulary
// ("jupyter" for "Jupiter", "the dow" for "the DAO"). Two passes fix this:
//
//  1. [Clean] — a pure regex pass that strips disfluencies and normalises
//     punctuation and whitespace.
//
//  2. [Corrector] — a single whole-word, case-insensitive substitution pass
//     built from the term dictionary's aliases plus the learned correction
//     store. Longer observed forms win over their substrings, and the
//     replacement casing follows the matched text.
//
// Both passes are pure functions of their inputs; a [Corrector] is read-only
// after construction and safe for concurrent use.
package transcript

// Pair is one observed→canonical substitution the corrector applies.
type Pair struct {
	// Observed is the spelling expected in raw transcripts.
	Observed string

	// Canonical is the spelling to emit instead.
	Canonical string
}

// Correction records a single substitution made by [Corrector.Apply].
type Correction struct {
	// Original is the text as matched in the transcript.
	Original string

	// Corrected is the replacement that was emitted.
	Corrected string
}
