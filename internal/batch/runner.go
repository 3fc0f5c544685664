// Package batch converts every spec sheet in a directory and records the
// outcome of each file in a manifest workbook.
package batch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-specform/internal/convert"
	specerrors "github.com/a3tai/mcp-specform/internal/errors"
	"github.com/a3tai/mcp-specform/internal/pdf"
)

// Item status values
const (
	StatusConverted = "converted"
	StatusFailed    = "failed"
)

// Options selects the files of one batch run
type Options struct {
	Directory       string
	OutputDirectory string
	Mode            string
	// Product overrides the per-file product name, which defaults to the file stem
	Product string
	Limit   int
}

// Item is the outcome for a single PDF
type Item struct {
	File      string            `json:"file"`
	Product   string            `json:"product"`
	Mode      string            `json:"mode"`
	Output    string            `json:"output,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Extracted map[string]bool   `json:"extracted,omitempty"`
	Status    string            `json:"status"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Report summarizes a batch run
type Report struct {
	Directory string `json:"directory"`
	Items     []Item `json:"items"`
	Converted int    `json:"converted"`
	Failed    int    `json:"failed"`
}

// Runner converts files sequentially with one conversion service
type Runner struct {
	service *convert.Service
	search  *pdf.Search
	reader  *pdf.Reader
}

// NewRunner creates a batch runner
func NewRunner(service *convert.Service, maxFileSize int64) *Runner {
	return &Runner{
		service: service,
		search:  pdf.NewSearch(maxFileSize),
		reader:  pdf.NewReader(maxFileSize),
	}
}

// Run converts every PDF under opts.Directory. A failing file is recorded
// in the report and does not stop the run; only a canceled context or an
// unreadable directory ends it early.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.OutputDirectory == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if err := os.MkdirAll(opts.OutputDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files, err := r.search.FindPDFs(opts.Directory, opts.Limit)
	if err != nil {
		return nil, err
	}

	report := &Report{Directory: opts.Directory, Items: make([]Item, 0, len(files))}
	used := make(map[string]bool, len(files))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := r.convertFile(ctx, file, opts, used)
		if item.Status == StatusConverted {
			report.Converted++
		} else {
			report.Failed++
		}
		report.Items = append(report.Items, item)
	}

	return report, nil
}

// convertFile converts one PDF. Any failure, a panic included, is recorded
// on the returned item.
func (r *Runner) convertFile(ctx context.Context, file pdf.FileInfo, opts Options, used map[string]bool) (item Item) {
	stem := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	product := opts.Product
	if strings.TrimSpace(product) == "" {
		product = stem
	}

	item = Item{
		File:    file.Path,
		Product: strings.TrimSpace(product),
		Mode:    opts.Mode,
	}
	id := uuid.NewString()
	defer func() {
		if rec := recover(); rec != nil {
			item.Output = ""
			item = failed(item, id, fmt.Errorf("conversion panicked: %v", rec))
		}
	}()

	data, err := r.reader.ReadFile(file.Path)
	if err != nil {
		return failed(item, id, specerrors.NewMissingInput(err.Error()))
	}

	result, err := r.service.Convert(ctx, convert.Request{
		ID:          id,
		Mode:        opts.Mode,
		ProductName: product,
		PDF:         data,
	})
	if err != nil {
		return failed(item, id, err)
	}
	item.Fields = result.Fields
	item.Extracted = result.Resolution.Extracted

	// a shared --product would give every file the same name
	name := result.FileName
	if used[name] {
		name = stem + "_" + name
	}
	used[name] = true

	item.Output = filepath.Join(opts.OutputDirectory, name)
	if err := os.WriteFile(item.Output, result.Data, 0o644); err != nil {
		item.Output = ""
		return failed(item, id, fmt.Errorf("failed to write document: %w", err))
	}

	item.Status = StatusConverted
	log.Printf("[%s] %s -> %s", id, file.Name, item.Output)
	return item
}

func failed(item Item, id string, err error) Item {
	ce := specerrors.Normalize(err)
	item.Status = StatusFailed
	item.ErrorKind = ce.Kind.String()
	item.Error = ce.Error()
	log.Printf("[%s] %s failed: %v", id, filepath.Base(item.File), ce)
	return item
}
