package pdf

import "errors"

// Validation and extraction failures. Callers classify them with errors.Is.
var (
	ErrEmpty      = errors.New("pdf is empty")
	ErrTooLarge   = errors.New("pdf exceeds the maximum file size")
	ErrNotPDF     = errors.New("input is not a PDF document")
	ErrEncrypted  = errors.New("pdf is encrypted")
	ErrUnreadable = errors.New("pdf structure is unreadable")
	ErrNoText     = errors.New("no recoverable text layer")
)

// FileInfo describes a PDF found by Search. Rel is the path relative to
// the searched directory, usable as a tool argument.
type FileInfo struct {
	Path         string `json:"path"`
	Rel          string `json:"rel"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// DocumentInfo is what validation learns about a PDF
type DocumentInfo struct {
	Size      int64 `json:"size"`
	Pages     int   `json:"pages"`
	Encrypted bool  `json:"encrypted"`
}

// TextResult is the raw text layer of a PDF. Text holds each page's text
// followed by a newline; pages without text contribute nothing.
type TextResult struct {
	Text          string   `json:"text"`
	Pages         int      `json:"pages"`
	PagesWithText int      `json:"pages_with_text"`
	Size          int64    `json:"size"`
	Truncated     bool     `json:"truncated,omitempty"`
	PageErrors    []string `json:"page_errors,omitempty"`
}
