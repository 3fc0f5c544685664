// Package convert runs the spec sheet to company form pipeline: text
// extraction, field resolution, template population and result handoff.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a3tai/mcp-specform/internal/docx"
	specerrors "github.com/a3tai/mcp-specform/internal/errors"
	"github.com/a3tai/mcp-specform/internal/pdf"
	"github.com/a3tai/mcp-specform/internal/resolve"
	"github.com/a3tai/mcp-specform/internal/rules"
)

// MIMEType is the content type of every produced document
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// TextExtractor returns the raw text layer of a PDF
type TextExtractor interface {
	ExtractText(data []byte) (*pdf.TextResult, error)
}

// Options configures a Service
type Options struct {
	ResourceRoot string
	PreserveRuns bool
	MaxFileSize  int64
	Now          func() time.Time
	Extractor    TextExtractor
}

// Service converts PDFs using one compiled rule catalog. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	catalog      *rules.Catalog
	resolver     *resolve.Resolver
	extractor    TextExtractor
	templatePath string
	preserveRuns bool
}

// Request is a single conversion request
type Request struct {
	ID          string
	Mode        string
	ProductName string
	PDF         []byte
}

// Result is a completed conversion
type Result struct {
	Data       []byte               `json:"-"`
	FileName   string               `json:"file_name"`
	MIMEType   string               `json:"mime_type"`
	Fields     resolve.FieldMapping `json:"fields"`
	Resolution *resolve.Resolution  `json:"resolution"`
	Replace    *docx.ReplaceReport  `json:"replace,omitempty"`
	Render     *docx.RenderReport   `json:"render,omitempty"`
	Pages      int                  `json:"pages"`
}

// PreviewResult is a resolution without a populated template
type PreviewResult struct {
	Mode       rules.Mode           `json:"mode"`
	Variant    string               `json:"variant"`
	Fields     resolve.FieldMapping `json:"fields"`
	Extracted  map[string]bool      `json:"extracted"`
	Pages      int                  `json:"pages"`
	TextPages  int                  `json:"pages_with_text"`
	FileName   string               `json:"file_name"`
	TextLength int                  `json:"text_length"`
}

// NewService creates a conversion service for catalog
func NewService(catalog *rules.Catalog, opts Options) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("rule catalog cannot be nil")
	}
	if opts.ResourceRoot == "" {
		return nil, fmt.Errorf("resource root cannot be empty")
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = pdf.NewReader(opts.MaxFileSize)
	}

	return &Service{
		catalog:      catalog,
		resolver:     resolve.NewResolver(catalog, opts.Now),
		extractor:    extractor,
		templatePath: filepath.Join(opts.ResourceRoot, filepath.FromSlash(catalog.Template)),
		preserveRuns: opts.PreserveRuns,
	}, nil
}

// Variant returns the deployment variant name
func (s *Service) Variant() string {
	return s.catalog.Variant
}

// Strategy returns how templates are populated
func (s *Service) Strategy() rules.Strategy {
	return s.catalog.Strategy
}

// Modes returns the modes the variant supports
func (s *Service) Modes() []rules.Mode {
	return s.catalog.Modes()
}

// RulesVersion returns the rule table version
func (s *Service) RulesVersion() int {
	return s.catalog.Version
}

// TemplatePath returns the absolute location of the template
func (s *Service) TemplatePath() string {
	return s.templatePath
}

// CheckTemplate reports whether the template is present and readable
func (s *Service) CheckTemplate() error {
	if _, err := docx.Open(s.templatePath); err != nil {
		return templateError(s.templatePath, err)
	}
	return nil
}

// Convert produces the populated document for req
func (s *Service) Convert(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, specerrors.Wrap(specerrors.KindUnclassified, err)
	}

	mode, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	text, err := s.extract(req.PDF)
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(text.Text, mode, req.ProductName)
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] resolved %s fields for %q: extracted=%v", req.ID, mode, res.Fields[rules.FieldProduct], res.Extracted)

	doc, err := docx.Open(s.templatePath)
	if err != nil {
		return nil, templateError(s.templatePath, err)
	}

	result := &Result{
		FileName:   FileName(req.ProductName),
		MIMEType:   MIMEType,
		Fields:     res.Fields,
		Resolution: res,
		Pages:      text.Pages,
	}

	opts := docx.Options{PreserveRuns: s.preserveRuns}
	switch s.catalog.Strategy {
	case rules.StrategyLiteral:
		replacements, err := s.resolver.Replacements(res)
		if err != nil {
			return nil, err
		}
		pairs := make([]docx.Pair, len(replacements))
		for i, r := range replacements {
			pairs[i] = docx.Pair{Old: r.Old, New: r.New}
		}
		result.Replace, err = doc.ReplaceLiterals(pairs, opts)
		if err != nil {
			return nil, specerrors.NewTemplateFailure("template could not be populated", s.templatePath, err)
		}
		for _, c := range result.Replace.Literals {
			if c.Occurrences() == 0 {
				log.Printf("[%s] template literal %q not found", req.ID, c.Literal)
			}
		}
	case rules.StrategyTags:
		result.Render, err = doc.RenderTags(res.Fields, opts)
		if err != nil {
			return nil, specerrors.NewTemplateFailure("template could not be rendered", s.templatePath, err)
		}
		if len(result.Render.Unresolved) > 0 {
			log.Printf("[%s] warning: unresolved template tags: %s", req.ID, strings.Join(result.Render.Unresolved, ", "))
		}
	default:
		return nil, specerrors.NewTemplateFailure(fmt.Sprintf("unknown strategy %q", s.catalog.Strategy), s.templatePath, nil)
	}

	result.Data, err = doc.Bytes()
	if err != nil {
		return nil, specerrors.Wrap(specerrors.KindUnclassified, err)
	}
	return result, nil
}

// Preview resolves the fields of req without touching the template
func (s *Service) Preview(ctx context.Context, req Request) (*PreviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, specerrors.Wrap(specerrors.KindUnclassified, err)
	}

	mode, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	text, err := s.extract(req.PDF)
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(text.Text, mode, req.ProductName)
	if err != nil {
		return nil, err
	}

	return &PreviewResult{
		Mode:       mode,
		Variant:    s.catalog.Variant,
		Fields:     res.Fields,
		Extracted:  res.Extracted,
		Pages:      text.Pages,
		TextPages:  text.PagesWithText,
		FileName:   FileName(req.ProductName),
		TextLength: len(text.Text),
	}, nil
}

// validate rejects incomplete requests before any processing
func (s *Service) validate(req Request) (rules.Mode, error) {
	if len(req.PDF) == 0 {
		return "", specerrors.NewMissingInput("no PDF file was provided")
	}
	if strings.TrimSpace(req.ProductName) == "" {
		return "", specerrors.NewMissingInput("product name is empty")
	}
	if !rules.IsKnownMode(req.Mode) {
		return "", specerrors.NewMissingInput("invalid mode").WithContext(req.Mode)
	}

	mode := rules.Mode(req.Mode)
	if _, err := s.catalog.Lookup(mode); err != nil {
		return "", specerrors.NewMissingInput(err.Error())
	}
	return mode, nil
}

// extract runs the extractor and classifies its failures. A panic inside
// the extractor is an ExtractionFailure for this request only.
func (s *Service) extract(data []byte) (text *pdf.TextResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = nil, specerrors.NewExtractionFailure(fmt.Sprintf("pdf could not be parsed: %v", rec))
		}
	}()

	text, err = s.extractor.ExtractText(data)
	if err == nil {
		return text, nil
	}

	switch {
	case errors.Is(err, pdf.ErrEmpty):
		return nil, specerrors.NewMissingInput("no PDF file was provided")
	case errors.Is(err, pdf.ErrTooLarge):
		return nil, specerrors.NewMissingInput(err.Error())
	default:
		return nil, specerrors.NewExtractionFailure(err.Error())
	}
}

func templateError(path string, err error) *specerrors.ConversionError {
	if errors.Is(err, os.ErrNotExist) {
		return specerrors.NewTemplateFailure("template not found", path, err)
	}
	return specerrors.NewTemplateFailure("template could not be read", path, err)
}
