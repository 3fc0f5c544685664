// Package docx edits the text of WordprocessingML packages in memory.
//
// A Document keeps the template's zip entries in their original order and
// only re-encodes the parts whose XML was rewritten, so two populations of
// the same template with the same values produce identical bytes.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
)

const (
	relsPart             = "_rels/.rels"
	defaultMainPart      = "word/document.xml"
	officeDocumentSuffix = "/officeDocument"
)

// Options controls how changed paragraphs are written back
type Options struct {
	// PreserveRuns rewrites only the affected w:t elements when every change
	// falls inside a single one; otherwise the paragraph is collapsed.
	PreserveRuns bool
}

// Document is a DOCX package opened for editing
type Document struct {
	comment string
	entries []*entry
	index   map[string]*entry
	main    string
}

type entry struct {
	file     *zip.File
	data     []byte
	modified bool
}

type relationships struct {
	Items []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// Open reads a DOCX package from disk
func Open(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Load parses a DOCX package held in memory. The slice must not be modified
// while the document is in use.
func Load(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a docx package: %w", err)
	}

	d := &Document{
		comment: zr.Comment,
		entries: make([]*entry, 0, len(zr.File)),
		index:   make(map[string]*entry, len(zr.File)),
	}
	for _, f := range zr.File {
		e := &entry{file: f}
		d.entries = append(d.entries, e)
		d.index[f.Name] = e
	}

	d.main, err = d.findMainPart()
	if err != nil {
		return nil, err
	}
	return d, nil
}

// MainPart returns the name of the main document part
func (d *Document) MainPart() string {
	return d.main
}

// findMainPart follows the package relationship to the office document,
// falling back to the conventional location.
func (d *Document) findMainPart() (string, error) {
	if data, err := d.part(relsPart); err == nil {
		var rels relationships
		if xml.Unmarshal(data, &rels) == nil {
			for _, r := range rels.Items {
				if !strings.HasSuffix(r.Type, officeDocumentSuffix) {
					continue
				}
				name := strings.TrimPrefix(r.Target, "/")
				if _, ok := d.index[name]; ok {
					return name, nil
				}
			}
		}
	}

	if _, ok := d.index[defaultMainPart]; ok {
		return defaultMainPart, nil
	}
	return "", fmt.Errorf("not a docx package: %s not found", defaultMainPart)
}

// headerFooterParts returns header and footer part names in package order
func (d *Document) headerFooterParts() []string {
	var names []string
	for _, e := range d.entries {
		name := e.file.Name
		if ok, _ := path.Match("word/header*.xml", name); ok {
			names = append(names, name)
			continue
		}
		if ok, _ := path.Match("word/footer*.xml", name); ok {
			names = append(names, name)
		}
	}
	return names
}

func (d *Document) part(name string) ([]byte, error) {
	e, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	if e.data != nil {
		return e.data, nil
	}

	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	e.data = data
	return data, nil
}

func (d *Document) setPart(name string, data []byte) {
	e := d.index[name]
	e.data = data
	e.modified = true
}

// Bytes serializes the package. Untouched entries are copied without
// recompression; rewritten parts keep their name, method and timestamps.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range d.entries {
		if !e.modified {
			if err := zw.Copy(e.file); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", e.file.Name, err)
			}
			continue
		}

		fh := e.file.FileHeader
		fh.CRC32 = 0
		fh.CompressedSize = 0
		fh.UncompressedSize = 0
		fh.CompressedSize64 = 0
		fh.UncompressedSize64 = 0
		fh.Extra = nil

		w, err := zw.CreateHeader(&fh)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", fh.Name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", fh.Name, err)
		}
	}

	if d.comment != "" {
		if err := zw.SetComment(d.comment); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize package: %w", err)
	}
	return buf.Bytes(), nil
}

// Text returns the main part's paragraph texts in document order, one per line
func (d *Document) Text() (string, error) {
	data, err := d.part(d.main)
	if err != nil {
		return "", err
	}
	paragraphs, err := scan(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.main, err)
	}

	sort.Slice(paragraphs, func(i, j int) bool {
		return paragraphs[i].start < paragraphs[j].start
	})

	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		lines = append(lines, p.text())
	}
	return strings.Join(lines, "\n"), nil
}
