package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pdfMagic = []byte("%PDF-")

// Validator handles PDF validation operations
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// Validate checks that data is a readable, unencrypted PDF within the size
// limit and reports its page count.
func (v *Validator) Validate(data []byte) (*DocumentInfo, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, len(data), v.maxFileSize)
	}

	// Some producers emit a short preamble before the header
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return nil, ErrNotPDF
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := readContext(data, conf)
	if err != nil {
		if isEncryptionError(err) {
			return nil, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	info := &DocumentInfo{
		Size:      int64(len(data)),
		Pages:     ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}
	if info.Encrypted {
		return nil, ErrEncrypted
	}
	return info, nil
}

// readContext runs pdfcpu over data, turning a parser panic into an error
func readContext(data []byte, conf *model.Configuration) (ctx *model.Context, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx, err = nil, fmt.Errorf("pdfcpu: %v", rec)
		}
	}()

	ctx, err = api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d bytes)",
			ErrTooLarge, fileInfo.Size(), v.maxFileSize)
	}

	return nil
}

func isEncryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypt") || strings.Contains(msg, "password")
}
