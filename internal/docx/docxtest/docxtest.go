// Package docxtest builds minimal Word packages for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"time"
)

// CompanyFormBody carries every company form anchor literal, one of them in a table
const CompanyFormBody = `<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>ESTHETIC AROMA B</w:t></w:r></w:p>` +
	`<w:tbl><w:tr>` +
	`<w:tc><w:p><w:r><w:t>PALE YELLOW TO YELLOW</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p><w:r><w:t>0.902 ~ 0.922</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p><w:r><w:t>1.466 ~ 1.476</w:t></w:r></w:p></w:tc>` +
	`</w:tr></w:tbl>` +
	`<w:p><w:r><w:t>07. OCT. 2024</w:t></w:r></w:p>`

// SpecBody carries one tag per field
const SpecBody = `<w:p><w:r><w:t>{{ PRODUCT }}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{{ COLOR }} {{ SG }} {{ RI }}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{{ DATE }}</w:t></w:r></w:p>`

var modified = time.Date(2024, time.October, 7, 0, 0, 0, 0, time.UTC)

// Package returns a .docx whose main part holds body inside w:body
func Package(body string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, data string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/></Types>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`},
	}
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WriteTemplate writes Package(body) to root/name, creating directories
func WriteTemplate(root, name, body string) error {
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, Package(body), 0o644)
}
