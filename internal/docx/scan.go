package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

const wordPrefix = "w"

// paragraph is one w:p element located by byte offsets into its part
type paragraph struct {
	start, end int64
	openTag    string
	props      string
	runProps   string
	pieces     []piece
	inTable    bool
	// opaque paragraphs contain other paragraphs (text boxes) and are never
	// collapsed
	opaque  bool
	runSeen bool
}

// piece is either a w:t segment or a tab/break control character
type piece struct {
	segment bool
	start   int64
	end     int64
	text    string
}

type frame struct {
	name     xml.Name
	start    int64
	firstRun bool
}

func (p *paragraph) text() string {
	var b strings.Builder
	for _, pc := range p.pieces {
		b.WriteString(pc.text)
	}
	return b.String()
}

func isWord(n xml.Name, local string) bool {
	return n.Space == wordPrefix && n.Local == local
}

// scan locates every paragraph of a WordprocessingML part, including
// paragraphs in table cells, nested tables, content controls and text boxes.
// Paragraphs are returned body first, then table paragraphs, each group in
// document order.
func scan(data []byte) ([]*paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		frames     []frame
		open       []*paragraph
		body       []*paragraph
		tables     []*paragraph
		tableDepth int
		inText     bool
		textStart  int64
		textBuf    strings.Builder
	)

	top := func() *paragraph {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}
	parentIs := func(local string) bool {
		return len(frames) > 0 && isWord(frames[len(frames)-1].name, local)
	}

	for {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed xml at offset %d: %w", start, err)
		}
		end := dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			f := frame{name: t.Name, start: start}

			if t.Name.Space == wordPrefix {
				p := top()
				switch t.Name.Local {
				case "p":
					for _, outer := range open {
						outer.opaque = true
					}
					open = append(open, &paragraph{
						start:   start,
						openTag: string(data[start:end]),
						inTable: tableDepth > 0,
					})
				case "tbl":
					tableDepth++
				case "r":
					if p != nil && !p.runSeen {
						p.runSeen = true
						f.firstRun = true
					}
				case "t":
					if p != nil && parentIs("r") {
						inText = true
						textStart = start
						textBuf.Reset()
					}
				case "tab":
					if p != nil && parentIs("r") {
						p.pieces = append(p.pieces, piece{text: "\t"})
					}
				case "br", "cr":
					if p != nil && parentIs("r") {
						p.pieces = append(p.pieces, piece{text: "\n"})
					}
				}
			}
			frames = append(frames, f)

		case xml.CharData:
			if inText {
				textBuf.Write(t)
			}

		case xml.EndElement:
			if len(frames) == 0 {
				return nil, fmt.Errorf("unexpected end element %s:%s at offset %d", t.Name.Space, t.Name.Local, start)
			}
			f := frames[len(frames)-1]
			frames = frames[:len(frames)-1]

			if t.Name.Space != wordPrefix {
				continue
			}
			p := top()
			switch t.Name.Local {
			case "t":
				if inText && p != nil {
					p.pieces = append(p.pieces, piece{
						segment: true,
						start:   textStart,
						end:     end,
						text:    textBuf.String(),
					})
				}
				inText = false
			case "pPr":
				if p != nil && parentIs("p") && p.props == "" {
					p.props = string(data[f.start:end])
				}
			case "rPr":
				if p != nil && len(frames) > 0 && frames[len(frames)-1].firstRun && parentIs("r") {
					p.runProps = string(data[f.start:end])
				}
			case "p":
				if p == nil {
					continue
				}
				p.end = end
				open = open[:len(open)-1]
				if p.inTable {
					tables = append(tables, p)
				} else {
					body = append(body, p)
				}
			case "tbl":
				tableDepth--
			}
		}
	}

	if len(open) > 0 {
		return nil, fmt.Errorf("unterminated paragraph at offset %d", open[0].start)
	}
	// nested paragraphs close before their containers
	byStart := func(ps []*paragraph) {
		sort.Slice(ps, func(i, j int) bool { return ps[i].start < ps[j].start })
	}
	byStart(body)
	byStart(tables)
	return append(body, tables...), nil
}
