package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// Pair is one literal substitution
type Pair struct {
	Old string
	New string
}

// LiteralCount reports where a literal was found
type LiteralCount struct {
	Literal      string `json:"literal"`
	Replacement  string `json:"replacement"`
	InParagraphs int    `json:"in_paragraphs"`
	InTables     int    `json:"in_tables"`
}

// Occurrences returns the total number of replaced occurrences
func (c LiteralCount) Occurrences() int {
	return c.InParagraphs + c.InTables
}

// ReplaceReport summarizes a literal replacement pass
type ReplaceReport struct {
	Literals          []LiteralCount `json:"literals"`
	ParagraphsChanged int            `json:"paragraphs_changed"`
	// ParagraphsSkipped counts text box containers whose change crossed run
	// boundaries and was left alone
	ParagraphsSkipped int `json:"paragraphs_skipped,omitempty"`
}

type edit struct {
	start, end int64
	text       string
}

type rewriteResult struct {
	data    []byte
	changed int
	skipped map[*paragraph]bool
}

// ReplaceLiterals replaces every occurrence of each pair's Old text with its
// New text in the main document part. Pairs are applied in order to each
// paragraph's text, so a later pair sees the output of earlier ones.
// Literals that never occur are no-ops.
func (d *Document) ReplaceLiterals(pairs []Pair, opts Options) (*ReplaceReport, error) {
	data, err := d.part(d.main)
	if err != nil {
		return nil, err
	}
	paragraphs, err := scan(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.main, err)
	}

	res, err := rewrite(data, paragraphs, opts, func(s string) string {
		return replacePairs(s, pairs)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.main, err)
	}
	if res.changed > 0 {
		d.setPart(d.main, res.data)
	}

	report := &ReplaceReport{
		Literals:          make([]LiteralCount, len(pairs)),
		ParagraphsChanged: res.changed,
		ParagraphsSkipped: len(res.skipped),
	}
	for i, pr := range pairs {
		report.Literals[i] = LiteralCount{Literal: pr.Old, Replacement: pr.New}
	}

	for _, p := range paragraphs {
		if res.skipped[p] {
			continue
		}
		text := p.text()
		for i, pr := range pairs {
			if pr.Old == "" {
				continue
			}
			n := strings.Count(text, pr.Old)
			if n == 0 {
				continue
			}
			if p.inTable {
				report.Literals[i].InTables += n
			} else {
				report.Literals[i].InParagraphs += n
			}
			text = strings.ReplaceAll(text, pr.Old, pr.New)
		}
	}

	return report, nil
}

func replacePairs(s string, pairs []Pair) string {
	for _, pr := range pairs {
		if pr.Old == "" {
			continue
		}
		s = strings.ReplaceAll(s, pr.Old, pr.New)
	}
	return s
}

// rewrite applies fn to the text of every paragraph and writes the changed
// paragraphs back. fn must be pure; it is also applied to individual w:t
// segments when runs are preserved.
func rewrite(data []byte, paragraphs []*paragraph, opts Options, fn func(string) string) (*rewriteResult, error) {
	res := &rewriteResult{skipped: make(map[*paragraph]bool)}
	var edits []edit

	for _, p := range paragraphs {
		text := p.text()
		if text == "" {
			continue
		}
		out := fn(text)
		if out == text {
			continue
		}

		if opts.PreserveRuns || p.opaque {
			if es, ok := p.segmentEdits(fn, out); ok {
				edits = append(edits, es...)
				res.changed++
				continue
			}
			if p.opaque {
				res.skipped[p] = true
				continue
			}
		}

		edits = append(edits, edit{start: p.start, end: p.end, text: p.collapse(out)})
		res.changed++
	}

	if len(edits) == 0 {
		res.data = data
		return res, nil
	}

	out, err := applyEdits(data, edits)
	if err != nil {
		return nil, err
	}
	res.data = out
	return res, nil
}

// segmentEdits rewrites each w:t independently and succeeds only when the
// result matches the paragraph-level substitution.
func (p *paragraph) segmentEdits(fn func(string) string, want string) ([]edit, bool) {
	var (
		b     strings.Builder
		edits []edit
	)
	for _, pc := range p.pieces {
		if !pc.segment {
			b.WriteString(pc.text)
			continue
		}
		nt := fn(pc.text)
		b.WriteString(nt)
		if nt != pc.text {
			edits = append(edits, edit{start: pc.start, end: pc.end, text: textElement(nt)})
		}
	}
	if b.String() != want {
		return nil, false
	}
	return edits, true
}

// collapse renders the paragraph as a single run holding text, keeping the
// paragraph properties and the first run's properties.
func (p *paragraph) collapse(text string) string {
	var b strings.Builder
	b.WriteString(p.openTag)
	b.WriteString(p.props)
	b.WriteString("<w:r>")
	b.WriteString(p.runProps)

	last := 0
	for i, r := range text {
		var control string
		switch r {
		case '\t':
			control = "<w:tab/>"
		case '\n':
			control = "<w:br/>"
		default:
			continue
		}
		if i > last {
			b.WriteString(textElement(text[last:i]))
		}
		b.WriteString(control)
		last = i + 1
	}
	if last < len(text) {
		b.WriteString(textElement(text[last:]))
	}

	b.WriteString("</w:r></w:p>")
	return b.String()
}

func textElement(s string) string {
	var b strings.Builder
	b.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(&b, []byte(s))
	b.WriteString("</w:t>")
	return b.String()
}

func applyEdits(data []byte, edits []edit) ([]byte, error) {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var buf bytes.Buffer
	buf.Grow(len(data))

	var pos int64
	for _, e := range edits {
		if e.start < pos {
			return nil, fmt.Errorf("overlapping edits at offset %d", e.start)
		}
		buf.Write(data[pos:e.start])
		buf.WriteString(e.text)
		pos = e.end
	}
	buf.Write(data[pos:])
	return buf.Bytes(), nil
}
