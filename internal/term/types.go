// Package term provides the domain terminology reference for horizonsum.
//
// Operators define the project's canonical vocabulary (protocol names,
// product names, acronyms) and the people who appear on streams in a YAML
// reference file loaded once at startup. The dictionary feeds three
// consumers: the term analyzer (as LLM ground truth), the transcript
// corrector (as a source of deterministic alias substitutions), and the
// summarizer (as prompt context).
//
// A Dictionary is immutable after load and safe for concurrent use.
package term

import "strings"

// Term is one canonical vocabulary entry.
type Term struct {
	// Term is the canonical spelling (e.g., "JUP DAO").
	Term string `yaml:"term" json:"term"`

	// Acronyms lists alternative spellings and abbreviations that should be
	// treated as this term (e.g., "Jup", "the DAO").
	Acronyms []string `yaml:"acronyms,omitempty" json:"acronyms,omitempty"`

	// Description is a free-text explanation included in LLM prompt context.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// RelatedTerms lists associated vocabulary for prompt context.
	RelatedTerms []string `yaml:"related_terms,omitempty" json:"related_terms,omitempty"`
}

// Person is one known speaker or community figure.
type Person struct {
	// Name is the person's canonical name or handle.
	Name string `yaml:"name" json:"name"`

	// Role describes what the person does (e.g., "core contributor").
	Role string `yaml:"role,omitempty" json:"role,omitempty"`

	// Nicknames lists alternative names and handles.
	Nicknames []string `yaml:"nicknames,omitempty" json:"nicknames,omitempty"`

	// Description is free-text background for prompt context.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Dictionary is the loaded terminology reference.
type Dictionary struct {
	Terms  []Term   `yaml:"terms"`
	People []Person `yaml:"people,omitempty"`
}

// Alias is one observed→canonical spelling pair derived from the dictionary.
type Alias struct {
	// Observed is the spelling expected in raw transcripts.
	Observed string

	// Canonical is the dictionary spelling to emit instead.
	Canonical string
}

// SurfaceForms returns the flat list of every known spelling: term names,
// acronyms, people names, and nicknames. Empty entries are dropped. The
// result is a fresh slice on every call.
func (d *Dictionary) SurfaceForms() []string {
	var forms []string
	for _, t := range d.Terms {
		if t.Term != "" {
			forms = append(forms, t.Term)
		}
		for _, a := range t.Acronyms {
			if a != "" {
				forms = append(forms, a)
			}
		}
	}
	for _, p := range d.People {
		if p.Name != "" {
			forms = append(forms, p.Name)
		}
		for _, n := range p.Nicknames {
			if n != "" {
				forms = append(forms, n)
			}
		}
	}
	return forms
}

// IsKnownForm reports whether s matches any surface form, ignoring case.
func (d *Dictionary) IsKnownForm(s string) bool {
	for _, f := range d.SurfaceForms() {
		if strings.EqualFold(f, s) {
			return true
		}
	}
	return false
}

// CanonicalFor returns the canonical spelling for a surface form, matching
// case-insensitively against term names, acronyms, people names, and
// nicknames. The second return value reports whether a match was found.
func (d *Dictionary) CanonicalFor(s string) (string, bool) {
	for _, t := range d.Terms {
		if strings.EqualFold(t.Term, s) {
			return t.Term, true
		}
		for _, a := range t.Acronyms {
			if strings.EqualFold(a, s) {
				return t.Term, true
			}
		}
	}
	for _, p := range d.People {
		if strings.EqualFold(p.Name, s) {
			return p.Name, true
		}
		for _, n := range p.Nicknames {
			if strings.EqualFold(n, s) {
				return p.Name, true
			}
		}
	}
	return "", false
}

// Aliases returns the observed→canonical pairs the corrector can apply
// without consulting the LLM: every acronym and nickname whose spelling
// differs from its canonical form beyond case. Case-only variants are
// excluded so the substitution pass stays idempotent.
func (d *Dictionary) Aliases() []Alias {
	var aliases []Alias
	for _, t := range d.Terms {
		for _, a := range t.Acronyms {
			if a == "" || strings.EqualFold(a, t.Term) {
				continue
			}
			aliases = append(aliases, Alias{Observed: a, Canonical: t.Term})
		}
	}
	for _, p := range d.People {
		for _, n := range p.Nicknames {
			if n == "" || strings.EqualFold(n, p.Name) {
				continue
			}
			aliases = append(aliases, Alias{Observed: n, Canonical: p.Name})
		}
	}
	return aliases
}
