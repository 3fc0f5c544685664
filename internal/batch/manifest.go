package batch

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-specform/internal/rules"
)

// ManifestSheet is the worksheet holding one row per file
const ManifestSheet = "Manifest"

// ManifestHeaders are the manifest column titles in order
var ManifestHeaders = []string{
	"File",
	"Product",
	"Mode",
	"Status",
	"Output",
	"COLOR",
	"SG",
	"RI",
	"DATE",
	"COLOR Extracted",
	"SG Extracted",
	"RI Extracted",
	"Error Kind",
	"Error",
}

var columnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "A", 48}, // file
	{"B", "B", 28}, // product
	{"E", "E", 48}, // output
	{"F", "I", 22}, // fields
	{"N", "N", 60}, // error
}

// Manifest renders the report as an XLSX workbook
func Manifest(report *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the manifest
	if err := f.SetSheetName(f.GetSheetName(0), ManifestSheet); err != nil {
		return nil, err
	}

	w := &cellWriter{file: f, sheet: ManifestSheet}

	for i, h := range ManifestHeaders {
		w.set(i+1, 1, h)
	}

	for i, item := range report.Items {
		row := i + 2
		w.set(1, row, item.File)
		w.set(2, row, item.Product)
		w.set(3, row, item.Mode)
		w.set(4, row, item.Status)
		w.set(5, row, item.Output)
		w.set(6, row, item.Fields[rules.FieldColor])
		w.set(7, row, item.Fields[rules.FieldSG])
		w.set(8, row, item.Fields[rules.FieldRI])
		w.set(9, row, item.Fields[rules.FieldDate])
		if item.Status == StatusConverted {
			w.set(10, row, yesNo(item.Extracted[rules.FieldColor]))
			w.set(11, row, yesNo(item.Extracted[rules.FieldSG]))
			w.set(12, row, yesNo(item.Extracted[rules.FieldRI]))
		}
		w.set(13, row, item.ErrorKind)
		w.set(14, row, item.Error)
	}
	if w.err != nil {
		return nil, fmt.Errorf("manifest cell: %w", w.err)
	}

	for _, w := range columnWidths {
		if err := f.SetColWidth(ManifestSheet, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("manifest column %s: %w", w.from, err)
		}
	}

	if err := f.AutoFilter(ManifestSheet, fmt.Sprintf("A1:N%d", len(report.Items)+1), nil); err != nil {
		return nil, fmt.Errorf("manifest filter: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// cellWriter writes cells by coordinates and keeps the first error; later
// writes are skipped once one has failed
type cellWriter struct {
	file  *excelize.File
	sheet string
	err   error
}

func (w *cellWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.file.SetCellValue(w.sheet, cell, v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
