package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// colorLookahead bounds how far the closing anchor may be from the opening one
	colorLookahead = 200
	// qualifierLookahead bounds the text between a numeric label and its colon,
	// e.g. " (20°C)"
	qualifierLookahead = 40
)

// RuleSet is a compiled ModeRule
type RuleSet struct {
	Mode     Mode
	Color    *regexp.Regexp
	SG       *regexp.Regexp
	RI       *regexp.Regexp
	SGDelta  float64
	RIDelta  float64
	Defaults map[string]string
	Literals []Literal
}

// Catalog is a compiled Table, safe for concurrent use
type Catalog struct {
	Version  int
	Variant  string
	Template string
	Strategy Strategy
	modes    []Mode
	sets     map[Mode]*RuleSet
}

// Compile builds regular expressions for every mode of the table
func Compile(t *Table) (*Catalog, error) {
	c := &Catalog{
		Version:  t.Version,
		Variant:  t.Variant,
		Template: t.Template,
		Strategy: t.Strategy,
		sets:     make(map[Mode]*RuleSet, len(t.Modes)),
	}

	for _, m := range t.Modes {
		rs, err := compileMode(m)
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", m.Mode, err)
		}
		c.modes = append(c.modes, m.Mode)
		c.sets[m.Mode] = rs
	}
	return c, nil
}

func compileMode(m ModeRule) (*RuleSet, error) {
	color, err := regexp.Compile(colorPattern(m.Glyph, m.Color))
	if err != nil {
		return nil, fmt.Errorf("color pattern: %w", err)
	}
	sg, err := regexp.Compile(numericPattern(m.Glyph, m.SG.Label))
	if err != nil {
		return nil, fmt.Errorf("sg pattern: %w", err)
	}
	ri, err := regexp.Compile(numericPattern(m.Glyph, m.RI.Label))
	if err != nil {
		return nil, fmt.Errorf("ri pattern: %w", err)
	}

	defaults := make(map[string]string, len(m.Defaults))
	for k, v := range m.Defaults {
		defaults[k] = v
	}

	return &RuleSet{
		Mode:     m.Mode,
		Color:    color,
		SG:       sg,
		RI:       ri,
		SGDelta:  m.SG.Delta,
		RIDelta:  m.RI.Delta,
		Defaults: defaults,
		Literals: append([]Literal(nil), m.Literals...),
	}, nil
}

// Lookup returns the rule set for a mode
func (c *Catalog) Lookup(mode Mode) (*RuleSet, error) {
	rs, ok := c.sets[mode]
	if !ok {
		return nil, fmt.Errorf("mode %q is not available in variant %s (available: %s)",
			mode, c.Variant, c.modeList())
	}
	return rs, nil
}

// Modes returns the modes of the catalog in table order
func (c *Catalog) Modes() []Mode {
	return append([]Mode(nil), c.modes...)
}

func (c *Catalog) modeList() string {
	names := make([]string, len(c.modes))
	for i, m := range c.modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// colorPattern matches "<open> : value <close> :" case-insensitively across
// newlines. The value is captured non-greedily so the match always stops at
// the first closing anchor.
func colorPattern(glyph string, a AnchorPair) string {
	return fmt.Sprintf(`(?is)%s\s*:(.{0,%d}?)%s\s*:`,
		labelPattern(glyph, a.Open), colorLookahead, labelPattern(glyph, a.Close))
}

// numericPattern matches "<label> [qualifier] : <base> ± <tolerance>". The
// base is captured as a raw token so malformed numbers can be reported.
func numericPattern(glyph, label string) string {
	return fmt.Sprintf(`(?i)%s[^:\n]{0,%d}:\s*(\S+?)\s*(?:±|\+/-|\+-)\s*[\d.]+`,
		labelPattern(glyph, label), qualifierLookahead)
}

// labelPattern tolerates any whitespace between the words of a label
func labelPattern(glyph, label string) string {
	words := strings.Fields(label)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	p := strings.Join(words, `\s+`)
	if glyph != "" {
		return regexp.QuoteMeta(glyph) + `\s*` + p
	}
	return `\b` + p
}
