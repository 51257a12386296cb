package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CATALOG STRUCTURE
// =============================================================================

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog holds the fixed enumerations and the import header synonyms.
// It is data-driven so the matching rules can be changed (and tested)
// without touching the parser.
type Catalog struct {
	// Programs is the fixed set of program categories.
	Programs []string `yaml:"programs"`

	// Lots is the fixed set of lot labels. Anything else is a custom lot.
	Lots []string `yaml:"lots"`

	// Units is the fixed set of unit-of-measure labels.
	Units []string `yaml:"units"`

	// Columns lists the logical import columns in resolution order.
	Columns []ColumnSynonyms `yaml:"columns"`
}

// ColumnSynonyms maps one logical import column to the header fragments
// that identify it.
type ColumnSynonyms struct {
	// Field is the logical column name (instructor, program, lot, training,
	// material, unit, description, code).
	Field string `yaml:"field"`

	// Label is the header written in the import template.
	Label string `yaml:"label"`

	// Required marks columns whose absence fails the import.
	Required bool `yaml:"required"`

	// Fragments are tried in order against each header cell.
	Fragments []string `yaml:"fragments"`
}

// =============================================================================
// CATALOG LOADING
// =============================================================================

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file, or returns the embedded
// catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Programs) == 0 {
		return fmt.Errorf("catalog has no programs")
	}
	if len(c.Lots) == 0 {
		return fmt.Errorf("catalog has no lots")
	}

	seen := make(map[string]bool)
	for _, col := range c.Columns {
		if col.Field == "" {
			return fmt.Errorf("catalog column without field name")
		}
		if seen[col.Field] {
			return fmt.Errorf("catalog column %q declared twice", col.Field)
		}
		if len(col.Fragments) == 0 {
			return fmt.Errorf("catalog column %q has no fragments", col.Field)
		}
		seen[col.Field] = true
	}

	for _, required := range []string{"material", "unit", "description"} {
		if !seen[required] {
			return fmt.Errorf("catalog is missing the %q column", required)
		}
	}
	return nil
}

// =============================================================================
// MATCHING HELPERS
// =============================================================================

// MatchProgram returns the catalog program equal to s, ignoring case.
func (c *Catalog) MatchProgram(s string) (string, bool) {
	return matchFold(c.Programs, s)
}

// MatchLot returns the catalog lot equal to s, ignoring case.
func (c *Catalog) MatchLot(s string) (string, bool) {
	return matchFold(c.Lots, s)
}

// IsCatalogLot reports whether s is exactly one of the catalog lots.
func (c *Catalog) IsCatalogLot(s string) bool {
	for _, l := range c.Lots {
		if l == s {
			return true
		}
	}
	return false
}

// MatchUnit returns the first catalog unit containing s (case-insensitive).
// Blank input is contained in every unit and so yields the first one.
// Unmatched text passes through unchanged.
func (c *Catalog) MatchUnit(s string) string {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, u := range c.Units {
		if strings.Contains(strings.ToLower(u), needle) {
			return u
		}
	}
	return s
}

// Column returns the synonyms for a logical field.
func (c *Catalog) Column(field string) (ColumnSynonyms, bool) {
	for _, col := range c.Columns {
		if col.Field == field {
			return col, true
		}
	}
	return ColumnSynonyms{}, false
}

func matchFold(values []string, s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return v, true
		}
	}
	return "", false
}
