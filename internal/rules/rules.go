// Package rules holds the versioned, per-mode extraction rule tables.
//
// Each deployment variant ships one table. A table record describes, for a
// single mode, the anchors that delimit COLOR, the labels of the numeric
// fields with their tolerance half-widths, the default values used when a
// field is absent from the PDF text and, for the literal strategy, the
// template text each field replaces.
package rules

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects an extraction rule set
type Mode string

const (
	ModeCFF Mode = "CFF"
	ModeHP  Mode = "HP"
	ModeHPD Mode = "HPD"
)

// Strategy selects how a template is populated
type Strategy string

const (
	StrategyLiteral Strategy = "literal"
	StrategyTags    Strategy = "tags"
)

// Variant names
const (
	VariantCompanyForm = "company_form"
	VariantSpec        = "spec"
)

// Variants lists every variant with an embedded default table
var Variants = []string{VariantCompanyForm, VariantSpec}

// Field names shared by the resolver and the templates
const (
	FieldProduct = "PRODUCT"
	FieldColor   = "COLOR"
	FieldSG      = "SG"
	FieldRI      = "RI"
	FieldDate    = "DATE"
)

// Fields lists every field in resolution order
var Fields = []string{FieldProduct, FieldColor, FieldSG, FieldRI, FieldDate}

// extractedFields have defaults in the table; PRODUCT and DATE never do
var extractedFields = []string{FieldColor, FieldSG, FieldRI}

//go:embed defaults/*.yaml
var defaultTables embed.FS

// Table is one deployment variant's rule table as stored on disk
type Table struct {
	Version  int        `yaml:"version"`
	Variant  string     `yaml:"variant"`
	Template string     `yaml:"template"`
	Strategy Strategy   `yaml:"strategy"`
	Modes    []ModeRule `yaml:"modes"`
}

// ModeRule is the rule record for a single mode
type ModeRule struct {
	Mode     Mode              `yaml:"mode"`
	Glyph    string            `yaml:"glyph,omitempty"`
	Color    AnchorPair        `yaml:"color"`
	SG       NumericRule       `yaml:"sg"`
	RI       NumericRule       `yaml:"ri"`
	Defaults map[string]string `yaml:"defaults"`
	Literals []Literal         `yaml:"literals,omitempty"`
}

// AnchorPair delimits a free-text field
type AnchorPair struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// NumericRule locates a "<label> : base ± tolerance" field
type NumericRule struct {
	Label string  `yaml:"label"`
	Delta float64 `yaml:"delta"`
}

// Literal maps a field onto the exact template text it replaces
type Literal struct {
	Field string `yaml:"field"`
	Text  string `yaml:"text"`
}

// Default returns the embedded table for a variant
func Default(variant string) (*Table, error) {
	data, err := defaultTables.ReadFile("defaults/" + variant + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
	return Parse(data)
}

// LoadFile reads a rule table from disk
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return Parse(data)
}

// Load returns the table at path, or the embedded one for variant when path is empty
func Load(path, variant string) (*Table, error) {
	if path == "" {
		return Default(variant)
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if variant != "" && t.Variant != variant {
		return nil, fmt.Errorf("rule table %s is for variant %q, configured variant is %q", path, t.Variant, variant)
	}
	return t, nil
}

// Parse decodes and validates a rule table
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	return &t, nil
}

// Validate checks the table for internal consistency
func (t *Table) Validate() error {
	if t.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}
	if t.Template == "" {
		return fmt.Errorf("template path cannot be empty")
	}
	if t.Strategy != StrategyLiteral && t.Strategy != StrategyTags {
		return fmt.Errorf("strategy must be %q or %q, got %q", StrategyLiteral, StrategyTags, t.Strategy)
	}
	if len(t.Modes) == 0 {
		return fmt.Errorf("at least one mode is required")
	}

	seen := make(map[Mode]bool, len(t.Modes))
	for i := range t.Modes {
		m := &t.Modes[i]
		if !IsKnownMode(string(m.Mode)) {
			return fmt.Errorf("modes[%d]: unknown mode %q", i, m.Mode)
		}
		if seen[m.Mode] {
			return fmt.Errorf("modes[%d]: duplicate mode %q", i, m.Mode)
		}
		seen[m.Mode] = true

		if err := m.validate(t.Strategy); err != nil {
			return fmt.Errorf("mode %s: %w", m.Mode, err)
		}
	}
	return nil
}

func (m *ModeRule) validate(strategy Strategy) error {
	if strings.TrimSpace(m.Color.Open) == "" || strings.TrimSpace(m.Color.Close) == "" {
		return fmt.Errorf("color anchors cannot be empty")
	}
	for name, n := range map[string]NumericRule{FieldSG: m.SG, FieldRI: m.RI} {
		if strings.TrimSpace(n.Label) == "" {
			return fmt.Errorf("%s label cannot be empty", name)
		}
		if n.Delta <= 0 {
			return fmt.Errorf("%s delta must be positive", name)
		}
	}
	for _, f := range extractedFields {
		if m.Defaults[f] == "" {
			return fmt.Errorf("missing default for %s", f)
		}
	}

	if strategy != StrategyLiteral {
		return nil
	}

	covered := make(map[string]bool, len(m.Literals))
	texts := make(map[string]bool, len(m.Literals))
	for _, l := range m.Literals {
		if !isField(l.Field) {
			return fmt.Errorf("literal for unknown field %q", l.Field)
		}
		if l.Text == "" {
			return fmt.Errorf("literal for %s cannot be empty", l.Field)
		}
		if texts[l.Text] {
			return fmt.Errorf("literal %q declared twice", l.Text)
		}
		texts[l.Text] = true
		covered[l.Field] = true
	}
	for _, f := range Fields {
		if !covered[f] {
			return fmt.Errorf("no literal anchor for %s", f)
		}
	}
	return nil
}

// IsKnownVariant reports whether s names a variant
func IsKnownVariant(s string) bool {
	for _, v := range Variants {
		if s == v {
			return true
		}
	}
	return false
}

// IsKnownMode reports whether s names a mode
func IsKnownMode(s string) bool {
	switch Mode(s) {
	case ModeCFF, ModeHP, ModeHPD:
		return true
	}
	return false
}

func isField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}
