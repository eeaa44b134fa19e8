package summarize

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultTemplateName is the template used when a requested one is missing.
const DefaultTemplateName = "default"

var templateNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// TemplateStore manages the prompt templates directory. Each template is a
// plain .txt file whose body may reference the {TRANSCRIPT}, {TOPICS}, and
// {CONTEXT} placeholders.
type TemplateStore struct {
	dir string
}

// NewTemplateStore returns a store over dir, creating it if needed.
func NewTemplateStore(dir string) (*TemplateStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("summarize: templates directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("summarize: create templates directory: %w", err)
	}
	return &TemplateStore{dir: dir}, nil
}

// List returns the names of all available templates, sorted.
func (s *TemplateStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("summarize: list templates: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names, nil
}

// Get returns the body of the named template. A missing template falls back
// to [DefaultTemplateName]; only when that is missing too does Get fail.
func (s *TemplateStore) Get(name string) (string, error) {
	if !templateNameRe.MatchString(name) {
		return "", fmt.Errorf("summarize: invalid template name %q", name)
	}

	body, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err == nil {
		return string(body), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("summarize: read template %q: %w", name, err)
	}
	if name == DefaultTemplateName {
		return "", fmt.Errorf("summarize: template %q not found and no default template exists", name)
	}
	return s.Get(DefaultTemplateName)
}

// Add writes a new template or replaces an existing one.
func (s *TemplateStore) Add(name, body string) error {
	if !templateNameRe.MatchString(name) {
		return fmt.Errorf("summarize: invalid template name %q", name)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("summarize: template body must not be empty")
	}
	if err := os.WriteFile(filepath.Join(s.dir, name+".txt"), []byte(body), 0o644); err != nil {
		return fmt.Errorf("summarize: write template %q: %w", name, err)
	}
	return nil
}
