package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

// Filler words removed outright wherever they appear.
var fillerRe = regexp.MustCompile(`(?i)\b(?:um|uh|er|you know|kind of|sort of|i mean|basically|literally|actually|really|just)\b`)

// "like" and "so" are fillers only when not followed by a continuation word;
// RE2 has no lookahead, so the following word is captured and checked in code.
var conditionalFillerRe = regexp.MustCompile(`(?i)\b(like|so)\b([ \t]+\w+)?`)

// continuationWords keep a conditional filler in place ("so that", "like to").
var continuationWords = map[string]bool{
	"to": true, "that": true, "i": true, "we": true, "they": true, "you": true,
}

var (
	hesitationRe      = regexp.MustCompile(`\.{2,}|-{2,}|…`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([,.;:!?])`)
	multiPeriodRe     = regexp.MustCompile(`\.+`)
	multiSpaceRe      = regexp.MustCompile(`\s+`)
	punctNoSpaceRe    = regexp.MustCompile(`(\w)([,.;:!?])(\w)`)
	sentenceStartRe   = regexp.MustCompile(`([.!?]\s+)([a-z])`)
	leadingLowerRe    = regexp.MustCompile(`^([a-z])`)
)

// Clean strips filler words, collapses repeated words, normalises hesitation
// markers, and fixes punctuation spacing in a raw transcript. The pass is
// deterministic and language-agnostic; domain vocabulary fixes belong to the
// [Corrector].
func Clean(text string) string {
	// Conditional fillers first, so "so that" and "like to" survive.
	text = conditionalFillerRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := strings.Fields(m)
		if len(parts) == 2 && continuationWords[strings.ToLower(parts[1])] {
			return m
		}
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	})

	text = fillerRe.ReplaceAllString(text, "")
	text = collapseRepeats(text)
	text = hesitationRe.ReplaceAllString(text, ". ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = multiPeriodRe.ReplaceAllString(text, ".")
	text = punctNoSpaceRe.ReplaceAllString(text, "$1$2 $3")
	text = multiSpaceRe.ReplaceAllString(text, " ")

	// Sentences start with a capital letter.
	text = sentenceStartRe.ReplaceAllStringFunc(text, strings.ToUpper)
	text = strings.TrimSpace(text)
	text = leadingLowerRe.ReplaceAllStringFunc(text, strings.ToUpper)

	return text
}

// collapseRepeats drops consecutive duplicate words ("the the the" → "the"),
// comparing case-insensitively and ignoring trailing punctuation. RE2 has no
// backreferences, so this is a token walk rather than a regex.
func collapseRepeats(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return text
	}

	out := tokens[:1]
	for _, tok := range tokens[1:] {
		prev := out[len(out)-1]
		if strings.EqualFold(trimTrailingPunct(tok), trimTrailingPunct(prev)) {
			// Keep whichever occurrence carries the punctuation.
			if trimTrailingPunct(tok) != tok {
				out[len(out)-1] = tok
			}
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func trimTrailingPunct(s string) string {
	return strings.TrimRightFunc(s, unicode.IsPunct)
}
