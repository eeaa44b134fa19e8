// Package analyze implements the language-model term analysis stage that
// discovers transcription errors the deterministic corrector cannot.
//
// The [Analyzer] sends the cleaned transcript to an [llm.Provider] along with
// the canonical term dictionary. The model is instructed (via a conservative
// system prompt) to report phrases that look like mishearings of known terms
// as a JSON object of observed→canonical pairs. Every proposed pair is then
// validated locally before it is trusted:
//
//   - the canonical side must resolve to a dictionary term;
//   - the observed side must not already be a known spelling;
//   - the pair must be phonetically plausible per [phonetic.Checker].
//
// Accepted pairs are persisted to the [correction.Store] so future runs apply
// them without consulting the model again. When the LLM response cannot be
// parsed, the analyzer reports no pairs rather than surfacing an error.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hzn-labs/horizonsum/internal/correction"
	"github.com/hzn-labs/horizonsum/internal/term"
	"github.com/hzn-labs/horizonsum/internal/transcript"
	"github.com/hzn-labs/horizonsum/internal/transcript/phonetic"
	llm "github.com/hzn-labs/horizonsum/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1

	// Long transcripts are truncated before analysis; mishearings repeat, so
	// a prefix is representative enough.
	defaultMaxInputChars = 24_000
)

// systemPromptTemplate is the base system prompt. The term reference is
// appended at call time so each request carries the current dictionary.
const systemPromptTemplate = `You are a transcription analysis assistant for a crypto community's live streams.

Your task: find phrases in the transcript that are mishearings of the known terms listed below.

Rules:
- ONLY report phrases that sound like one of the known terms but are spelled differently.
- Do NOT report ordinary English words, grammar issues, or phrases that are already spelled correctly.
- Be conservative. If you are not confident a phrase is a misheard term, do not report it.
- The corrected spelling must be the canonical spelling from the term list, exactly as written there.

Known terms:
%s

Respond with ONLY a JSON object mapping each misheard phrase to its canonical spelling (no markdown, no prose):
{"misheard phrase": "Canonical Term"}

If you find no mishearings, return an empty object: {}`

// Option is a functional option for configuring an [Analyzer].
type Option func(*Analyzer)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic analysis. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(a *Analyzer) {
		a.temperature = temp
	}
}

// WithMaxInputChars caps how much of the transcript is sent to the model.
// Default: 24000.
func WithMaxInputChars(n int) Option {
	return func(a *Analyzer) {
		a.maxInputChars = n
	}
}

// Analyzer discovers observed→canonical correction pairs in a transcript
// using an [llm.Provider] and persists the validated ones. It is safe for
// concurrent use.
type Analyzer struct {
	llm           llm.Provider
	checker       *phonetic.Checker
	store         correction.Store
	temperature   float64
	maxInputChars int
}

// New returns an [Analyzer] backed by the given provider, plausibility
// checker, and correction store.
func New(provider llm.Provider, checker *phonetic.Checker, store correction.Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		llm:           provider,
		checker:       checker,
		store:         store,
		temperature:   defaultTemperature,
		maxInputChars: defaultMaxInputChars,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze asks the model for misheard-term pairs in text, validates each one,
// persists the survivors, and returns them.
//
// An unparseable model response yields no pairs and a nil error (graceful
// degradation — the pipeline must continue without new corrections). Context
// cancellation, transport errors, and store failures are returned as non-nil
// errors.
func (a *Analyzer) Analyze(ctx context.Context, text string, dict *term.Dictionary) ([]transcript.Pair, error) {
	if strings.TrimSpace(text) == "" || len(dict.SurfaceForms()) == 0 {
		return nil, nil
	}

	if len(text) > a.maxInputChars {
		text = text[:a.maxInputChars]
	}

	req := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, dict.FormatForPrompt()),
		Temperature:  a.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
	}

	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("analyze: complete: %w", err)
	}

	proposed, parseErr := parseResponse(resp.Content)
	if parseErr != nil {
		// Unparseable response: no new pairs, no error.
		return nil, nil //nolint:nilerr // intentional graceful fallback
	}

	pairs := a.validate(proposed, dict)
	for _, p := range pairs {
		if err := a.store.Upsert(ctx, p.Observed, p.Canonical); err != nil {
			return nil, fmt.Errorf("analyze: persist correction %q: %w", p.Observed, err)
		}
	}
	return pairs, nil
}

// validate filters the model's proposed pairs down to the ones worth
// trusting: the canonical side must resolve through the dictionary, the
// observed side must be genuinely unknown, and the two must sound alike.
func (a *Analyzer) validate(proposed map[string]string, dict *term.Dictionary) []transcript.Pair {
	var pairs []transcript.Pair
	for observed, canonical := range proposed {
		observed = strings.TrimSpace(observed)
		canonical = strings.TrimSpace(canonical)
		if observed == "" || canonical == "" {
			continue
		}
		if strings.EqualFold(observed, canonical) {
			continue
		}
		// Known spellings are already handled by the dictionary aliases.
		if dict.IsKnownForm(observed) {
			continue
		}
		resolved, ok := dict.CanonicalFor(canonical)
		if !ok {
			continue
		}
		if strings.EqualFold(observed, resolved) {
			continue
		}
		if _, plausible := a.checker.Plausible(observed, resolved); !plausible {
			continue
		}
		pairs = append(pairs, transcript.Pair{Observed: observed, Canonical: resolved})
	}
	return pairs
}

// parseResponse unmarshals the LLM output into an observed→canonical map,
// stripping markdown code fences first.
func parseResponse(content string) (map[string]string, error) {
	cleaned := stripMarkdown(content)

	var m map[string]string
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil, fmt.Errorf("analyze: parse response: %w", err)
	}
	return m, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
