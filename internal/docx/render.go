package docx

import (
	"fmt"
	"regexp"
	"sort"
)

// tagPattern matches {{ NAME }} with optional inner whitespace
var tagPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// RenderReport summarizes a tag rendering pass
type RenderReport struct {
	Rendered   int      `json:"rendered"`
	Unresolved []string `json:"unresolved,omitempty"`
	Parts      []string `json:"parts"`
}

// RenderTags substitutes {{ NAME }} tags in the main part, headers and
// footers in a single pass; substituted values are never rescanned. Tags
// with no value are left in place and listed in the report.
func (d *Document) RenderTags(values map[string]string, opts Options) (*RenderReport, error) {
	render := func(s string) string {
		return tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
			name := tagPattern.FindStringSubmatch(tag)[1]
			if v, ok := values[name]; ok {
				return v
			}
			return tag
		})
	}

	report := &RenderReport{}
	unresolved := make(map[string]bool)

	parts := append([]string{d.main}, d.headerFooterParts()...)
	for _, name := range parts {
		data, err := d.part(name)
		if err != nil {
			return nil, err
		}
		paragraphs, err := scan(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		res, err := rewrite(data, paragraphs, opts, render)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if res.changed > 0 {
			d.setPart(name, res.data)
			report.Parts = append(report.Parts, name)
		}

		for _, p := range paragraphs {
			for _, m := range tagPattern.FindAllStringSubmatch(p.text(), -1) {
				if _, ok := values[m[1]]; ok && !res.skipped[p] {
					report.Rendered++
				} else {
					unresolved[m[1]] = true
				}
			}
		}
	}

	for name := range unresolved {
		report.Unresolved = append(report.Unresolved, name)
	}
	sort.Strings(report.Unresolved)
	return report, nil
}
