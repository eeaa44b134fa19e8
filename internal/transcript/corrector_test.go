package transcript

import (
	"testing"
)

func mustCorrector(t *testing.T, pairs []Pair) *Corrector {
	t.Helper()
	c, err := NewCorrector(pairs)
	if err != nil {
		t.Fatalf("NewCorrector: %v", err)
	}
	return c
}

func TestApply_WholeWordCaseInsensitive(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, []Pair{{Observed: "jup dao", Canonical: "JUP DAO"}})

	got, corrections := c.Apply("we discussed jup dao voting and jupiter perps")
	want := "we discussed JUP DAO voting and jupiter perps"
	if got != want {
		t.Errorf("Apply:\n got %q\nwant %q", got, want)
	}
	if len(corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(corrections))
	}
	if corrections[0].Original != "jup dao" || corrections[0].Corrected != "JUP DAO" {
		t.Errorf("unexpected correction: %+v", corrections[0])
	}
}

func TestApply_NoPartialWordMatch(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, []Pair{{Observed: "dow", Canonical: "DAO"}})

	got, corrections := c.Apply("the window was down")
	if got != "the window was down" {
		t.Errorf("expected no substitution inside words, got %q", got)
	}
	if len(corrections) != 0 {
		t.Errorf("expected no corrections, got %v", corrections)
	}
}

func TestApply_LongerMatchWins(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, []Pair{
		{Observed: "joop", Canonical: "JUP"},
		{Observed: "joop dow", Canonical: "JUP DAO"},
	})

	got, _ := c.Apply("the joop dow voted and joop rallied")
	want := "the JUP DAO voted and JUP rallied"
	if got != want {
		t.Errorf("Apply:\n got %q\nwant %q", got, want)
	}
}

func TestApply_CasingFollowsMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pairs []Pair
		in    string
		want  string
	}{
		{
			name:  "uppercase match uppercases canonical",
			pairs: []Pair{{Observed: "dow", Canonical: "Dao"}},
			in:    "vote in the DOW",
			want:  "vote in the DAO",
		},
		{
			name:  "title match titles single-word canonical",
			pairs: []Pair{{Observed: "jupitor", Canonical: "jupiter"}},
			in:    "Jupitor is live",
			want:  "Jupiter is live",
		},
		{
			name:  "title match keeps multi-word canonical as stored",
			pairs: []Pair{{Observed: "jup dow", Canonical: "JUP DAO"}},
			in:    "Jup Dow voted",
			want:  "JUP DAO voted",
		},
		{
			name:  "lowercase match emits canonical as stored",
			pairs: []Pair{{Observed: "web tree", Canonical: "Web3"}},
			in:    "building in web tree",
			want:  "building in Web3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := mustCorrector(t, tt.pairs)
			got, _ := c.Apply(tt.in)
			if got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestApply_CaseOnlyPairsDropped(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, []Pair{{Observed: "jupiter perps", Canonical: "Jupiter Perps"}})

	got, corrections := c.Apply("we discussed jupiter perps today")
	if got != "we discussed jupiter perps today" {
		t.Errorf("case-only pair must not rewrite text, got %q", got)
	}
	if len(corrections) != 0 {
		t.Errorf("expected no corrections, got %v", corrections)
	}
}

func TestApply_Idempotent(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, []Pair{
		{Observed: "jup dow", Canonical: "JUP DAO"},
		{Observed: "jup", Canonical: "JUP DAO"},
		{Observed: "jupitor", Canonical: "Jupiter"},
	})

	in := "jupitor and the jup dow and jup again"
	once, _ := c.Apply(in)
	twice, corrections := c.Apply(once)
	if once != twice {
		t.Errorf("Apply is not idempotent:\n once %q\ntwice %q", once, twice)
	}
	if len(corrections) != 0 {
		t.Errorf("second pass must make no corrections, got %v", corrections)
	}
}

func TestApply_CanonicalTextUntouched(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, []Pair{{Observed: "jup", Canonical: "JUP DAO"}})

	// "jup" must not fire inside an already-canonical "JUP DAO".
	got, corrections := c.Apply("the JUP DAO voted")
	if got != "the JUP DAO voted" {
		t.Errorf("canonical phrase was rewritten: %q", got)
	}
	if len(corrections) != 0 {
		t.Errorf("expected no corrections, got %v", corrections)
	}
}

func TestNewCorrector_NoPairs(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, nil)

	got, corrections := c.Apply("unchanged text")
	if got != "unchanged text" || corrections != nil {
		t.Errorf("empty corrector must be a no-op, got %q %v", got, corrections)
	}
}

func TestNewCorrector_DuplicateObservedLastWins(t *testing.T) {
	t.Parallel()
	c := mustCorrector(t, []Pair{
		{Observed: "dow", Canonical: "Dow Jones"},
		{Observed: "dow", Canonical: "DAO"},
	})

	got, _ := c.Apply("the dow voted")
	if got != "the DAO voted" {
		t.Errorf("expected last pair to win, got %q", got)
	}
}
