package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/a3tai/mcp-specform/internal/docx"
	specerrors "github.com/a3tai/mcp-specform/internal/errors"
	"github.com/a3tai/mcp-specform/internal/pdf"
	"github.com/a3tai/mcp-specform/internal/pdf/pdftest"
	"github.com/a3tai/mcp-specform/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyFormBody = `<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>ESTHETIC AROMA B</w:t></w:r></w:p>` +
	`<w:tbl><w:tr>` +
	`<w:tc><w:p><w:r><w:t>Color</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p><w:r><w:t>PALE YELLOW TO YELLOW</w:t></w:r></w:p></w:tc>` +
	`</w:tr><w:tr>` +
	`<w:tc><w:p><w:r><w:t>S.G.</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p><w:r><w:t xml:space="preserve">0.902 ~ </w:t></w:r><w:r><w:t>0.922</w:t></w:r></w:p></w:tc>` +
	`</w:tr><w:tr>` +
	`<w:tc><w:tbl><w:tr><w:tc><w:p><w:r><w:t>R.I. 1.466 ~ 1.476</w:t></w:r></w:p></w:tc></w:tr></w:tbl><w:p/></w:tc>` +
	`</w:tr></w:tbl>` +
	`<w:p><w:r><w:t>Product ESTHETIC AROMA B issued 07. OCT. 2024</w:t></w:r></w:p>`

const specBody = `<w:p><w:r><w:t>{{ PRODUCT }}</w:t></w:r></w:p>` +
	`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>{{COLOR}}</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p><w:r><w:t>{{ SG }} / {{ RI }}</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
	`<w:p><w:r><w:t>{{ DATE }}</w:t></w:r></w:p>`

var fixedClock = func() time.Time {
	return time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC)
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(data []byte) (*pdf.TextResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &pdf.TextResult{Text: s.text, Pages: 1, PagesWithText: 1, Size: int64(len(data))}, nil
}

type panicExtractor struct{}

func (panicExtractor) ExtractText([]byte) (*pdf.TextResult, error) {
	panic("missing endobj after indirect object definition")
}

func writeTemplate(t *testing.T, root, name, body string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: fixedClock()})
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newService(t *testing.T, variant string, extractor TextExtractor) *Service {
	t.Helper()

	table, err := rules.Default(variant)
	require.NoError(t, err)
	catalog, err := rules.Compile(table)
	require.NoError(t, err)

	root := t.TempDir()
	body := companyFormBody
	if variant == rules.VariantSpec {
		body = specBody
	}
	writeTemplate(t, root, table.Template, body)

	svc, err := NewService(catalog, Options{
		ResourceRoot: root,
		MaxFileSize:  1024 * 1024,
		Now:          fixedClock,
		Extractor:    extractor,
	})
	require.NoError(t, err)
	return svc
}

func documentText(t *testing.T, data []byte) string {
	t.Helper()
	d, err := docx.Load(data)
	require.NoError(t, err)
	text, err := d.Text()
	require.NoError(t, err)
	return text
}

const hpText = "■ COLOR : DEEP AMBER ■ APPEARANCE : LIQUID\n■ SPECIFIC GRAVITY : 0.950 ± 0.02\n"

func TestConvert_MissingInput(t *testing.T) {
	svc := newService(t, rules.VariantSpec, stubExtractor{text: hpText})

	tests := []struct {
		name string
		req  Request
	}{
		{"no pdf", Request{Mode: "HP", ProductName: "P"}},
		{"blank product", Request{Mode: "HP", ProductName: "   ", PDF: []byte("%PDF-")}},
		{"unknown mode", Request{Mode: "XYZ", ProductName: "P", PDF: []byte("%PDF-")}},
		{"mode not in variant", Request{Mode: "HPD", ProductName: "P", PDF: []byte("%PDF-")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Convert(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, specerrors.KindMissingInput, specerrors.Classify(err))

			_, err = svc.Preview(context.Background(), tt.req)
			assert.Equal(t, specerrors.KindMissingInput, specerrors.Classify(err))
		})
	}
}

func TestConvert_ExtractorErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want specerrors.ErrorKind
	}{
		{"no text layer", pdf.ErrNoText, specerrors.KindExtractionFailure},
		{"encrypted", pdf.ErrEncrypted, specerrors.KindExtractionFailure},
		{"unreadable", pdf.ErrUnreadable, specerrors.KindExtractionFailure},
		{"too large", pdf.ErrTooLarge, specerrors.KindMissingInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, rules.VariantCompanyForm, stubExtractor{err: tt.err})
			_, err := svc.Convert(context.Background(), Request{Mode: "CFF", ProductName: "P", PDF: []byte("%PDF-")})
			assert.Equal(t, tt.want, specerrors.Classify(err))
		})
	}
}

func TestConvert_ExtractorPanic(t *testing.T) {
	svc := newService(t, rules.VariantCompanyForm, panicExtractor{})
	req := Request{Mode: "CFF", ProductName: "P", PDF: []byte("%PDF-")}

	_, err := svc.Convert(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, specerrors.KindExtractionFailure, specerrors.Classify(err))
	assert.Contains(t, err.Error(), "missing endobj")

	_, err = svc.Preview(context.Background(), req)
	assert.Equal(t, specerrors.KindExtractionFailure, specerrors.Classify(err))
}

func TestConvert_MalformedNumeric(t *testing.T) {
	svc := newService(t, rules.VariantCompanyForm, stubExtractor{text: "SPECIFIC GRAVITY (20°C): ABC ± 0.01"})

	_, err := svc.Convert(context.Background(), Request{Mode: "CFF", ProductName: "P", PDF: []byte("%PDF-")})
	require.Error(t, err)

	ce := specerrors.Normalize(err)
	assert.Equal(t, specerrors.KindExtractionFailure, ce.Kind)
	assert.Equal(t, rules.FieldSG, ce.Field)
}

func TestConvert_TemplateMissing(t *testing.T) {
	svc := newService(t, rules.VariantCompanyForm, stubExtractor{text: hpText})
	require.NoError(t, os.Remove(svc.TemplatePath()))

	_, err := svc.Convert(context.Background(), Request{Mode: "HP", ProductName: "P", PDF: []byte("%PDF-")})
	require.Error(t, err)

	ce := specerrors.Normalize(err)
	assert.Equal(t, specerrors.KindTemplateFailure, ce.Kind)
	assert.Equal(t, svc.TemplatePath(), ce.Context)
	assert.Contains(t, ce.Hint, svc.TemplatePath())
	assert.Error(t, svc.CheckTemplate())

	// preview does not need the template
	_, err = svc.Preview(context.Background(), Request{Mode: "HP", ProductName: "P", PDF: []byte("%PDF-")})
	assert.NoError(t, err)
}

func TestConvert_LiteralHP(t *testing.T) {
	svc := newService(t, rules.VariantCompanyForm, stubExtractor{text: hpText})
	require.NoError(t, svc.CheckTemplate())

	result, err := svc.Convert(context.Background(), Request{Mode: "HP", ProductName: "NEW PRODUCT X", PDF: []byte("%PDF-")})
	require.NoError(t, err)

	assert.Equal(t, "NEW PRODUCT X_converted.docx", result.FileName)
	assert.Equal(t, MIMEType, result.MIMEType)
	assert.Equal(t, "DEEP AMBER", result.Fields[rules.FieldColor])
	assert.Equal(t, "0.940 ~ 0.960", result.Fields[rules.FieldSG])
	assert.Equal(t, "1.466 ~ 1.476", result.Fields[rules.FieldRI])

	text := documentText(t, result.Data)
	assert.Equal(t, strings.Join([]string{
		"NEW PRODUCT X",
		"Color",
		"DEEP AMBER",
		"S.G.",
		"0.940 ~ 0.960",
		"R.I. 1.466 ~ 1.476",
		"",
		"Product NEW PRODUCT X issued 04. MAR. 2025",
	}, "\n"), text)
	assert.NotContains(t, text, "ESTHETIC AROMA B")

	require.NotNil(t, result.Replace)
	assert.Equal(t, 2, result.Replace.Literals[0].InParagraphs)
	assert.Equal(t, 0, result.Replace.Literals[0].InTables)
	assert.Equal(t, 1, result.Replace.Literals[1].InTables)
	assert.Nil(t, result.Render)
}

func TestConvert_Idempotent(t *testing.T) {
	svc := newService(t, rules.VariantCompanyForm, stubExtractor{text: hpText})
	req := Request{Mode: "HP", ProductName: "NEW PRODUCT X", PDF: []byte("%PDF-")}

	first, err := svc.Convert(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

func TestConvert_TagsVariant(t *testing.T) {
	svc := newService(t, rules.VariantSpec, stubExtractor{text: hpText})

	result, err := svc.Convert(context.Background(), Request{Mode: "HP", ProductName: "NEW PRODUCT X", PDF: []byte("%PDF-")})
	require.NoError(t, err)

	text := documentText(t, result.Data)
	assert.Equal(t, "NEW PRODUCT X\nDEEP AMBER\n0.940 ~ 0.960 / 1.466 ~ 1.476\n04. MAR. 2025", text)
	assert.NotContains(t, text, "{{")
	require.NotNil(t, result.Render)
	assert.Empty(t, result.Render.Unresolved)
	assert.Nil(t, result.Replace)
}

func TestConvert_RealPDF(t *testing.T) {
	svc := newService(t, rules.VariantCompanyForm, nil)

	data := pdftest.Text(
		"Color : light amber",
		"Appearance : clear liquid",
		"Specific Gravity (20C) : 0.912 +/- 0.01",
		"Refractive Index (20C) : 1.471 +/- 0.005",
	)

	preview, err := svc.Preview(context.Background(), Request{Mode: "CFF", ProductName: "ROSE", PDF: data})
	require.NoError(t, err)
	assert.Equal(t, "LIGHT AMBER", preview.Fields[rules.FieldColor])
	assert.Equal(t, "0.902 ~ 0.922", preview.Fields[rules.FieldSG])
	assert.Equal(t, "1.461 ~ 1.481", preview.Fields[rules.FieldRI])
	assert.Equal(t, 1, preview.Pages)

	_, err = svc.Convert(context.Background(), Request{Mode: "CFF", ProductName: "ROSE", PDF: []byte("not a pdf")})
	assert.Equal(t, specerrors.KindExtractionFailure, specerrors.Classify(err))
}

func TestConvert_CanceledContext(t *testing.T) {
	svc := newService(t, rules.VariantCompanyForm, stubExtractor{text: hpText})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Convert(ctx, Request{Mode: "HP", ProductName: "P", PDF: []byte("%PDF-")})
	require.Error(t, err)
	assert.Equal(t, specerrors.KindUnclassified, specerrors.Classify(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_Accessors(t *testing.T) {
	svc := newService(t, rules.VariantSpec, stubExtractor{})

	assert.Equal(t, rules.VariantSpec, svc.Variant())
	assert.Equal(t, rules.StrategyTags, svc.Strategy())
	assert.Equal(t, []rules.Mode{rules.ModeCFF, rules.ModeHP}, svc.Modes())
	assert.Equal(t, 2, svc.RulesVersion())
	assert.True(t, strings.HasSuffix(svc.TemplatePath(), filepath.Join("templates", "spec.docx")))
}

func TestNewService_Invalid(t *testing.T) {
	_, err := NewService(nil, Options{ResourceRoot: "."})
	assert.Error(t, err)

	table, err := rules.Default(rules.VariantSpec)
	require.NoError(t, err)
	catalog, err := rules.Compile(table)
	require.NoError(t, err)

	_, err = NewService(catalog, Options{})
	assert.Error(t, err)
}

func TestConvert_ShippedTemplates(t *testing.T) {
	// the repository root holds templates/
	root := filepath.Join("..", "..")

	for _, variant := range []string{rules.VariantCompanyForm, rules.VariantSpec} {
		t.Run(variant, func(t *testing.T) {
			table, err := rules.Default(variant)
			require.NoError(t, err)
			catalog, err := rules.Compile(table)
			require.NoError(t, err)

			svc, err := NewService(catalog, Options{
				ResourceRoot: root,
				Now:          fixedClock,
				Extractor:    stubExtractor{text: hpText},
			})
			require.NoError(t, err)
			require.NoError(t, svc.CheckTemplate())

			result, err := svc.Convert(context.Background(), Request{Mode: "HP", ProductName: "ROSE OIL", PDF: []byte("%PDF-")})
			require.NoError(t, err)

			text := documentText(t, result.Data)
			assert.Contains(t, text, "ROSE OIL")
			assert.Contains(t, text, "DEEP AMBER")
			assert.Contains(t, text, "0.940 ~ 0.960")
			assert.Contains(t, text, "04. MAR. 2025")

			if variant == rules.VariantCompanyForm {
				for _, literal := range []string{"ESTHETIC AROMA B", "PALE YELLOW TO YELLOW", "0.902 ~ 0.922", "07. OCT. 2024"} {
					assert.NotContains(t, text, literal)
				}
				return
			}

			assert.NotContains(t, text, "{{")
			assert.Empty(t, result.Render.Unresolved)
			assert.Equal(t, 8, result.Render.Rendered)
			assert.Equal(t, []string{"word/document.xml", "word/header1.xml", "word/footer1.xml"}, result.Render.Parts)
		})
	}
}
