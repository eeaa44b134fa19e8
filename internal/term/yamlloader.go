package term

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a terminology reference YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
//
// Example:
//
//	terms:
//	  - term: "JUP DAO"
//	    acronyms: ["Jup", "the DAO"]
//	    description: "The governance body."
//	people:
//	  - name: "Kash"
//	    role: "host"
func LoadFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("term: open dictionary file %q: %w", path, err)
	}
	defer f.Close()

	d, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("term: parse dictionary file %q: %w", path, err)
	}
	return d, nil
}

// LoadFromReader parses terminology reference YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadFromReader(r io.Reader) (*Dictionary, error) {
	var d Dictionary
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown top-level keys to catch typos
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			// An empty reference file is valid: no known vocabulary yet.
			return &Dictionary{}, nil
		}
		return nil, fmt.Errorf("term: decode dictionary yaml: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// validate rejects entries without a canonical spelling.
func (d *Dictionary) validate() error {
	for i, t := range d.Terms {
		if t.Term == "" {
			return fmt.Errorf("term: terms[%d]: term must not be empty", i)
		}
	}
	for i, p := range d.People {
		if p.Name == "" {
			return fmt.Errorf("term: people[%d]: name must not be empty", i)
		}
	}
	return nil
}
