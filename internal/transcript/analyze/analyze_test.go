package analyze_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/hzn-labs/horizonsum/internal/correction"
	"github.com/hzn-labs/horizonsum/internal/term"
	"github.com/hzn-labs/horizonsum/internal/transcript/analyze"
	"github.com/hzn-labs/horizonsum/internal/transcript/phonetic"
	llm "github.com/hzn-labs/horizonsum/pkg/provider/llm"
	llmmock "github.com/hzn-labs/horizonsum/pkg/provider/llm/mock"
)

func testDictionary() *term.Dictionary {
	return &term.Dictionary{
		Terms: []term.Term{
			{Term: "JUP DAO", Acronyms: []string{"Jup", "the DAO"}},
			{Term: "Jupiter Perps", Acronyms: []string{"perps"}},
		},
		People: []term.Person{
			{Name: "Kash", Nicknames: []string{"kashdhanda"}},
		},
	}
}

func newAnalyzer(p llm.Provider, store correction.Store) *analyze.Analyzer {
	return analyze.New(p, phonetic.New(), store)
}

func TestAnalyze_AcceptsPlausiblePair(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"jup dow": "JUP DAO"}`},
	}
	store := correction.NewMemStore()

	pairs, err := newAnalyzer(p, store).Analyze(t.Context(), "the jup dow voted today", testDictionary())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d: %v", len(pairs), pairs)
	}
	if pairs[0].Observed != "jup dow" || pairs[0].Canonical != "JUP DAO" {
		t.Errorf("unexpected pair: %+v", pairs[0])
	}

	c, err := store.Lookup(t.Context(), "jup dow")
	if err != nil {
		t.Fatalf("pair was not persisted: %v", err)
	}
	if c.Canonical != "JUP DAO" {
		t.Errorf("persisted canonical %q, want JUP DAO", c.Canonical)
	}
}

func TestAnalyze_ResolvesCanonicalThroughAlias(t *testing.T) {
	t.Parallel()

	// The model names the acronym; the pair must store the full term.
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"joop": "Jup"}`},
	}
	store := correction.NewMemStore()

	pairs, err := newAnalyzer(p, store).Analyze(t.Context(), "joop rallied", testDictionary())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d: %v", len(pairs), pairs)
	}
	if pairs[0].Canonical != "JUP DAO" {
		t.Errorf("canonical %q, want JUP DAO", pairs[0].Canonical)
	}
}

func TestAnalyze_RejectsBadPairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"case-only pair", `{"jupiter perps": "Jupiter Perps"}`},
		{"unknown canonical", `{"foo bar": "Unknown Thing"}`},
		{"observed is a known spelling", `{"Jup": "JUP DAO"}`},
		{"phonetically implausible", `{"banana": "JUP DAO"}`},
		{"empty observed", `{"": "JUP DAO"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: tt.content},
			}
			store := correction.NewMemStore()

			pairs, err := newAnalyzer(p, store).Analyze(t.Context(), "some transcript text", testDictionary())
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if len(pairs) != 0 {
				t.Errorf("expected no pairs, got %v", pairs)
			}
			if all, _ := store.All(t.Context()); len(all) != 0 {
				t.Errorf("rejected pair was persisted: %v", all)
			}
		})
	}
}

func TestAnalyze_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"jup dow\": \"JUP DAO\"}\n```",
		},
	}

	pairs, err := newAnalyzer(p, correction.NewMemStore()).Analyze(t.Context(), "jup dow", testDictionary())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("expected 1 pair, got %v", pairs)
	}
}

func TestAnalyze_UnparseableResponseDegrades(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "I found no mishearings, great transcript!"},
	}

	pairs, err := newAnalyzer(p, correction.NewMemStore()).Analyze(t.Context(), "text", testDictionary())
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}
	if pairs != nil {
		t.Errorf("expected no pairs, got %v", pairs)
	}
}

func TestAnalyze_ProviderErrorSurfaces(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("rate limited")
	p := &llmmock.Provider{CompleteErr: wantErr}

	_, err := newAnalyzer(p, correction.NewMemStore()).Analyze(t.Context(), "text", testDictionary())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestAnalyze_EmptyInputSkipsModel(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{}
	pairs, err := newAnalyzer(p, correction.NewMemStore()).Analyze(t.Context(), "   ", testDictionary())
	if err != nil || pairs != nil {
		t.Fatalf("expected nil, nil for blank input, got %v, %v", pairs, err)
	}
	if len(p.CompleteCalls) != 0 {
		t.Errorf("model must not be called for blank input")
	}
}

func TestAnalyze_PromptCarriesDictionary(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "{}"},
	}

	if _, err := newAnalyzer(p, correction.NewMemStore()).Analyze(t.Context(), "text", testDictionary()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(p.CompleteCalls))
	}
	sys := p.CompleteCalls[0].Req.SystemPrompt
	for _, want := range []string{"JUP DAO", "Jupiter Perps", "Kash"} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestAnalyze_TruncatesLongInput(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "{}"},
	}
	a := analyze.New(p, phonetic.New(), correction.NewMemStore(), analyze.WithMaxInputChars(100))

	long := strings.Repeat("word ", 100)
	if _, err := a.Analyze(t.Context(), long, testDictionary()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got := p.CompleteCalls[0].Req.Messages[0].Content
	if len(got) != 100 {
		t.Errorf("expected input truncated to 100 chars, got %d", len(got))
	}
}
