package phonetic_test

import (
	"testing"

	"github.com/hzn-labs/horizonsum/internal/transcript/phonetic"
)

func TestChecker_Mishearing(t *testing.T) {
	t.Parallel()

	c := phonetic.New()

	// "jupyter" and "jupiter" share metaphone codes and score well on
	// Jaro-Winkler, so the pair passes at the lenient phonetic threshold.
	score, ok := c.Plausible("jupyter", "Jupiter")
	if !ok {
		t.Fatalf("Plausible(jupyter, Jupiter): ok=false, want true (score %f)", score)
	}
	if score < 0.7 {
		t.Errorf("score=%f, want >= 0.7", score)
	}
}

func TestChecker_MultiWordPhrase(t *testing.T) {
	t.Parallel()

	c := phonetic.New()

	score, ok := c.Plausible("jup dow", "JUP DAO")
	if !ok {
		t.Fatalf("Plausible(jup dow, JUP DAO): ok=false, want true (score %f)", score)
	}
	if score < 0.7 {
		t.Errorf("score=%f, want >= 0.7", score)
	}
}

func TestChecker_UnrelatedWords(t *testing.T) {
	t.Parallel()

	c := phonetic.New()

	if score, ok := c.Plausible("hello", "Jupiter"); ok {
		t.Fatalf("Plausible(hello, Jupiter): ok=true (score %f), want false", score)
	}
}

func TestChecker_ExactSpelling(t *testing.T) {
	t.Parallel()

	c := phonetic.New()

	score, ok := c.Plausible("keeper dow", "Keeper DAO")
	if !ok {
		t.Fatal("near-identical spelling must be plausible")
	}
	if score < 0.9 {
		t.Errorf("score=%f, want >= 0.9 for near-exact spelling", score)
	}
}

func TestChecker_ThresholdRejection(t *testing.T) {
	t.Parallel()

	c := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)

	if _, ok := c.Plausible("jupyter", "Jupiter"); ok {
		t.Fatal("threshold 0.99 should reject a near-match")
	}
}

func TestChecker_BlankInput(t *testing.T) {
	t.Parallel()

	c := phonetic.New()

	if _, ok := c.Plausible("", "Jupiter"); ok {
		t.Error("blank observed form must not be plausible")
	}
	if _, ok := c.Plausible("jupyter", "  "); ok {
		t.Error("blank canonical form must not be plausible")
	}
}
