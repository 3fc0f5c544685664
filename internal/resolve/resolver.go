// Package resolve turns raw specification text into the field mapping a
// template is populated from.
package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	specerrors "github.com/a3tai/mcp-specform/internal/errors"
	"github.com/a3tai/mcp-specform/internal/rules"
)

// months is fixed so the date never depends on the host locale
var months = [12]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// decimalPattern accepts plain decimal notation only; ParseFloat alone would
// also take exponents, hex floats, Inf and NaN.
var decimalPattern = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)$`)

// FieldMapping maps a field name to its resolved value
type FieldMapping map[string]string

// Resolution is the outcome of resolving one document's text
type Resolution struct {
	Mode      rules.Mode      `json:"mode"`
	Fields    FieldMapping    `json:"fields"`
	Extracted map[string]bool `json:"extracted"`
}

// Replacement is one (template literal, new text) pair
type Replacement struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Resolver applies a catalog's rule sets to document text
type Resolver struct {
	catalog *rules.Catalog
	now     func() time.Time
}

// NewResolver creates a resolver; now defaults to time.Now
func NewResolver(catalog *rules.Catalog, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		catalog: catalog,
		now:     now,
	}
}

// Resolve produces a complete FieldMapping for text under mode. Missing
// anchors fall back to the mode's defaults; a numeric label followed by a
// value that is not a decimal number is an extraction failure.
func (r *Resolver) Resolve(text string, mode rules.Mode, product string) (*Resolution, error) {
	rs, err := r.catalog.Lookup(mode)
	if err != nil {
		return nil, specerrors.NewMissingInput(err.Error())
	}

	res := &Resolution{
		Mode:      mode,
		Fields:    make(FieldMapping, len(rules.Fields)),
		Extracted: make(map[string]bool, len(rules.Fields)),
	}

	res.Fields[rules.FieldProduct] = strings.TrimSpace(product)
	res.Fields[rules.FieldDate] = FormatDate(r.now())

	if color, ok := extractColor(rs.Color, text); ok {
		res.Fields[rules.FieldColor] = color
		res.Extracted[rules.FieldColor] = true
	} else {
		res.Fields[rules.FieldColor] = rs.Defaults[rules.FieldColor]
	}

	numeric := []struct {
		field   string
		pattern *regexp.Regexp
		delta   float64
	}{
		{rules.FieldSG, rs.SG, rs.SGDelta},
		{rules.FieldRI, rs.RI, rs.RIDelta},
	}
	for _, n := range numeric {
		band, ok, err := extractBand(n.pattern, text, n.delta)
		if err != nil {
			return nil, err.WithField(n.field)
		}
		if ok {
			res.Fields[n.field] = band
			res.Extracted[n.field] = true
		} else {
			res.Fields[n.field] = rs.Defaults[n.field]
		}
	}

	return res, nil
}

// Replacements builds the ordered literal replacement set for the mode's
// template anchors.
func (r *Resolver) Replacements(res *Resolution) ([]Replacement, error) {
	rs, err := r.catalog.Lookup(res.Mode)
	if err != nil {
		return nil, specerrors.NewMissingInput(err.Error())
	}

	out := make([]Replacement, 0, len(rs.Literals))
	for _, l := range rs.Literals {
		out = append(out, Replacement{Old: l.Text, New: res.Fields[l.Field]})
	}
	return out, nil
}

func extractColor(pattern *regexp.Regexp, text string) (string, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	color := strings.ToUpper(strings.TrimSpace(m[1]))
	if color == "" {
		return "", false
	}
	return color, true
}

func extractBand(pattern *regexp.Regexp, text string, delta float64) (string, bool, *specerrors.ConversionError) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false, nil
	}

	base, err := ParseBase(m[1])
	if err != nil {
		return "", false, specerrors.NewExtractionFailure("malformed numeric value").
			WithContext(fmt.Sprintf("%q in %q", m[1], strings.TrimSpace(m[0])))
	}
	return FormatBand(base, delta), true, nil
}

// ParseBase parses a base value written in plain decimal notation
func ParseBase(s string) (float64, error) {
	if !decimalPattern.MatchString(s) {
		return 0, fmt.Errorf("not a decimal number: %q", s)
	}
	return strconv.ParseFloat(s, 64)
}

// FormatBand renders the symmetric band around base
func FormatBand(base, delta float64) string {
	return fmt.Sprintf("%.3f ~ %.3f", base-delta, base+delta)
}

// FormatDate renders t as "DD. MON. YYYY"
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d. %s. %04d", t.Day(), months[t.Month()-1], t.Year())
}
