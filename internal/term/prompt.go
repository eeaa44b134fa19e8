package term

import "strings"

// FormatTermsForPrompt renders the term entries as a markdown reference block
// for inclusion in LLM prompts.
func (d *Dictionary) FormatTermsForPrompt() string {
	if len(d.Terms) == 0 {
		return "No term data available."
	}

	var b strings.Builder
	b.WriteString("## Terminology Reference\n\n")
	for _, t := range d.Terms {
		b.WriteString("### " + t.Term + "\n")
		if len(t.Acronyms) > 0 {
			b.WriteString("**Acronyms/Alternatives:** " + strings.Join(t.Acronyms, ", ") + "\n")
		}
		if t.Description != "" {
			b.WriteString("**Description:** " + t.Description + "\n")
		}
		if len(t.RelatedTerms) > 0 {
			b.WriteString("**Related Terms:** " + strings.Join(t.RelatedTerms, ", ") + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatPeopleForPrompt renders the people entries as a markdown reference
// block for inclusion in LLM prompts.
func (d *Dictionary) FormatPeopleForPrompt() string {
	if len(d.People) == 0 {
		return "No name data available."
	}

	var b strings.Builder
	b.WriteString("## People Reference\n\n")
	for _, p := range d.People {
		b.WriteString("### " + p.Name + "\n")
		if p.Role != "" {
			b.WriteString("**Role:** " + p.Role + "\n")
		}
		if len(p.Nicknames) > 0 {
			b.WriteString("**Nicknames/Handles:** " + strings.Join(p.Nicknames, ", ") + "\n")
		}
		if p.Description != "" {
			b.WriteString("**Background:** " + p.Description + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatForPrompt renders both terms and people as one reference block.
func (d *Dictionary) FormatForPrompt() string {
	return d.FormatTermsForPrompt() + "\n\n" + d.FormatPeopleForPrompt()
}
