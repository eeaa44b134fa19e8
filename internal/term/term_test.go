package term

import (
	"slices"
	"strings"
	"testing"
)

const sampleYAML = `
terms:
  - term: "JUP DAO"
    acronyms: ["Jup", "the DAO"]
    description: "The governance body."
    related_terms: ["voting", "proposals"]
  - term: "Jupiter Perps"
    acronyms: ["perps"]
people:
  - name: "Kash"
    role: "host"
    nicknames: ["kashdhanda"]
`

func mustLoad(t *testing.T, y string) *Dictionary {
	t.Helper()
	d, err := LoadFromReader(strings.NewReader(y))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return d
}

func TestLoadFromReader(t *testing.T) {
	t.Parallel()
	d := mustLoad(t, sampleYAML)

	if len(d.Terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(d.Terms))
	}
	if d.Terms[0].Term != "JUP DAO" {
		t.Errorf("expected term JUP DAO, got %q", d.Terms[0].Term)
	}
	if len(d.People) != 1 || d.People[0].Role != "host" {
		t.Errorf("unexpected people: %+v", d.People)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := LoadFromReader(strings.NewReader("glossary: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadFromReader_EmptyFile(t *testing.T) {
	t.Parallel()
	d, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Terms) != 0 || len(d.People) != 0 {
		t.Errorf("expected empty dictionary, got %+v", d)
	}
}

func TestLoadFromReader_MissingTermName(t *testing.T) {
	t.Parallel()
	_, err := LoadFromReader(strings.NewReader("terms:\n  - description: \"no name\"\n"))
	if err == nil {
		t.Fatal("expected error for term without canonical spelling")
	}
}

func TestSurfaceForms(t *testing.T) {
	t.Parallel()
	d := mustLoad(t, sampleYAML)

	forms := d.SurfaceForms()
	want := []string{"JUP DAO", "Jup", "the DAO", "Jupiter Perps", "perps", "Kash", "kashdhanda"}
	if !slices.Equal(forms, want) {
		t.Errorf("surface forms mismatch:\n got %v\nwant %v", forms, want)
	}
}

func TestIsKnownForm_CaseInsensitive(t *testing.T) {
	t.Parallel()
	d := mustLoad(t, sampleYAML)

	if !d.IsKnownForm("jup dao") {
		t.Error("expected jup dao to be a known form")
	}
	if !d.IsKnownForm("PERPS") {
		t.Error("expected PERPS to be a known form")
	}
	if d.IsKnownForm("solana") {
		t.Error("did not expect solana to be a known form")
	}
}

func TestCanonicalFor(t *testing.T) {
	t.Parallel()
	d := mustLoad(t, sampleYAML)

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"jup", "JUP DAO", true},
		{"THE DAO", "JUP DAO", true},
		{"perps", "Jupiter Perps", true},
		{"kashdhanda", "Kash", true},
		{"solana", "", false},
	}
	for _, tt := range tests {
		got, ok := d.CanonicalFor(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CanonicalFor(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAliases_ExcludesCaseOnlyVariants(t *testing.T) {
	t.Parallel()
	d := mustLoad(t, `
terms:
  - term: "JUP DAO"
    acronyms: ["jup dao", "Jup"]
`)

	aliases := d.Aliases()
	if len(aliases) != 1 {
		t.Fatalf("expected 1 alias, got %d: %v", len(aliases), aliases)
	}
	if aliases[0].Observed != "Jup" || aliases[0].Canonical != "JUP DAO" {
		t.Errorf("unexpected alias: %+v", aliases[0])
	}
}

func TestFormatForPrompt(t *testing.T) {
	t.Parallel()
	d := mustLoad(t, sampleYAML)

	out := d.FormatForPrompt()
	for _, want := range []string{
		"## Terminology Reference",
		"### JUP DAO",
		"**Acronyms/Alternatives:** Jup, the DAO",
		"**Description:** The governance body.",
		"## People Reference",
		"**Role:** host",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt output missing %q", want)
		}
	}
}

func TestFormatForPrompt_Empty(t *testing.T) {
	t.Parallel()
	d := &Dictionary{}
	if got := d.FormatTermsForPrompt(); got != "No term data available." {
		t.Errorf("unexpected empty terms output: %q", got)
	}
	if got := d.FormatPeopleForPrompt(); got != "No name data available." {
		t.Errorf("unexpected empty people output: %q", got)
	}
}
