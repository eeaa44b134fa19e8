package transcript

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Corrector applies observed→canonical substitutions in one whole-word,
// case-insensitive pass over a transcript. It is read-only after
// construction and safe for concurrent use.
type Corrector struct {
	re        *regexp.Regexp
	canonical map[string]string // lowercased observed → canonical
}

// NewCorrector builds a Corrector from the given substitution pairs.
//
// Pairs whose observed form equals the canonical form ignoring case are
// dropped: text that is already canonical (in any casing) must never be
// rewritten, which also makes Apply idempotent. When the same observed form
// appears twice, the later pair wins. A Corrector built from zero effective
// pairs applies no substitutions.
func NewCorrector(pairs []Pair) (*Corrector, error) {
	canonical := make(map[string]string, len(pairs))
	for _, p := range pairs {
		observed := strings.ToLower(strings.TrimSpace(p.Observed))
		if observed == "" || strings.TrimSpace(p.Canonical) == "" {
			continue
		}
		if strings.EqualFold(observed, p.Canonical) {
			continue
		}
		canonical[observed] = p.Canonical
	}

	c := &Corrector{canonical: canonical}
	if len(canonical) == 0 {
		return c, nil
	}

	// The pattern alternates observed forms plus every canonical form. The
	// canonical alternatives map to nothing and act as shields: a canonical
	// phrase already present in the text ("JUP DAO") absorbs the match so an
	// observed substring of it ("jup") cannot fire inside it and grow the
	// text on a second pass.
	seen := make(map[string]struct{}, len(canonical)*2)
	var alternatives []string
	add := func(s string) {
		s = strings.ToLower(s)
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		alternatives = append(alternatives, regexp.QuoteMeta(s))
	}
	for o, canon := range canonical {
		add(canon)
		add(o)
	}

	// Longest form first so "jup dao" matches before "jup".
	sort.Slice(alternatives, func(i, j int) bool {
		if len(alternatives[i]) != len(alternatives[j]) {
			return len(alternatives[i]) > len(alternatives[j])
		}
		return alternatives[i] < alternatives[j]
	})

	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("transcript: compile correction pattern: %w", err)
	}
	c.re = re
	return c, nil
}

// Apply substitutes every known observed form in text with its canonical
// spelling and returns the corrected text plus an itemised record of the
// substitutions made. Replacement casing follows the matched text:
//
//   - all-uppercase match → canonical uppercased;
//   - title-case match with a single-word canonical → canonical title-cased;
//   - anything else → canonical exactly as stored.
func (c *Corrector) Apply(text string) (string, []Correction) {
	if c.re == nil {
		return text, nil
	}

	var corrections []Correction
	corrected := c.re.ReplaceAllStringFunc(text, func(matched string) string {
		canon, ok := c.canonical[strings.ToLower(matched)]
		if !ok {
			return matched
		}
		replacement := matchCasing(matched, canon)
		if replacement == matched {
			return matched
		}
		corrections = append(corrections, Correction{Original: matched, Corrected: replacement})
		return replacement
	})
	return corrected, corrections
}

// matchCasing adapts the canonical spelling to the casing of the matched text.
func matchCasing(matched, canonical string) string {
	switch {
	case isUpper(matched):
		return strings.ToUpper(canonical)
	case isTitle(matched) && !strings.Contains(canonical, " "):
		return titleCase(canonical)
	default:
		return canonical
	}
}

// isUpper reports whether s contains at least one letter and no lowercase
// letters.
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// isTitle reports whether every word in s starts with an uppercase letter
// followed only by lowercase letters.
func isTitle(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		runes := []rune(w)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes[1:] {
			if unicode.IsLetter(r) && !unicode.IsLower(r) {
				return false
			}
		}
	}
	return true
}

// titleCase uppercases the first letter of each word and lowercases the rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
