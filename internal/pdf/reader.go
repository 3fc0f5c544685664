package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Reader handles PDF text extraction
type Reader struct {
	validator   *Validator
	maxTextSize int
}

// NewReader creates a new PDF reader with the specified constraints
func NewReader(maxFileSize int64) *Reader {
	return &Reader{
		validator:   NewValidator(maxFileSize),
		maxTextSize: 10 * 1024 * 1024, // 10MB text limit
	}
}

// ReadFile loads a PDF from disk after checking its name and size
func (r *Reader) ReadFile(filePath string) ([]byte, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	if err := r.validator.ValidateFileInfo(filePath, fileInfo); err != nil {
		return nil, err
	}

	return os.ReadFile(filePath)
}

// ExtractText validates data and returns its text layer
func (r *Reader) ExtractText(data []byte) (*TextResult, error) {
	info, err := r.validator.Validate(data)
	if err != nil {
		return nil, err
	}

	result, err := r.readText(data)
	if err != nil {
		return nil, err
	}
	result.Size = info.Size
	if strings.TrimSpace(result.Text) == "" {
		return nil, ErrNoText
	}
	return result, nil
}

// readText parses data with ledongthuc/pdf, which panics on some malformed
// object tables. A panic comes back as ErrUnreadable.
func (r *Reader) readText(data []byte) (result *TextResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return r.extractTextContent(pdfReader), nil
}

// extractTextContent extracts text page by page; a page that fails is skipped
func (r *Reader) extractTextContent(pdfReader *pdf.Reader) *TextResult {
	var builder strings.Builder
	result := &TextResult{Pages: pdfReader.NumPage()}

	for pageNum := 1; pageNum <= result.Pages; pageNum++ {
		content, err := pageText(pdfReader, pageNum)
		if err != nil {
			result.PageErrors = append(result.PageErrors, err.Error())
			continue
		}
		if content == "" {
			continue
		}

		// Check if adding this content would exceed the limit
		if builder.Len()+len(content)+1 > r.maxTextSize {
			builder.WriteString(truncate(content, r.maxTextSize-builder.Len()))
			result.Truncated = true
			break
		}

		builder.WriteString(content)
		builder.WriteString("\n")
		result.PagesWithText++
	}

	result.Text = builder.String()
	return result
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func pageText(pdfReader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", pageNum, rec)
		}
	}()

	page := pdfReader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", pageNum, err)
	}
	return text, nil
}
