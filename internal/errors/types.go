package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ConversionError is a classified failure of a single conversion request.
type ConversionError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	Hint      string    `json:"hint,omitempty"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

// ErrorKind represents the categories of conversion failures
type ErrorKind int

const (
	KindUnclassified ErrorKind = iota
	KindMissingInput
	KindExtractionFailure
	KindTemplateFailure
)

const (
	hintMissingInput = "Upload a PDF file and enter a product name before converting."
	hintExtraction   = "The PDF text layer may be missing or its structure differs from the expected specification layout."
	hintTemplate     = "Place the template file at the configured resource location."
	hintUnclassified = "The PDF text structure may differ from what is expected, or the template file could not be found."
)

// Error implements the error interface
func (e *ConversionError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind.String(), e.Message, e.Context)
	}
	return fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *ConversionError) Unwrap() error {
	return e.cause
}

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindMissingInput:
		return "MISSING_INPUT"
	case KindExtractionFailure:
		return "EXTRACTION_FAILURE"
	case KindTemplateFailure:
		return "TEMPLATE_FAILURE"
	default:
		return "UNCLASSIFIED"
	}
}

// DefaultHint returns the user-facing guidance for an error kind
func (k ErrorKind) DefaultHint() string {
	switch k {
	case KindMissingInput:
		return hintMissingInput
	case KindExtractionFailure:
		return hintExtraction
	case KindTemplateFailure:
		return hintTemplate
	default:
		return hintUnclassified
	}
}

// newError creates a ConversionError with the kind's default hint
func newError(kind ErrorKind, message string, cause error) *ConversionError {
	return &ConversionError{
		Kind:      kind,
		Message:   message,
		Hint:      kind.DefaultHint(),
		Timestamp: time.Now(),
		cause:     cause,
	}
}

// NewMissingInput reports input rejected before any processing began
func NewMissingInput(message string) *ConversionError {
	return newError(KindMissingInput, message, nil)
}

// NewExtractionFailure reports an unusable PDF text layer or malformed field
func NewExtractionFailure(message string) *ConversionError {
	return newError(KindExtractionFailure, message, nil)
}

// NewTemplateFailure reports a missing or unreadable template
func NewTemplateFailure(message, path string, cause error) *ConversionError {
	e := newError(KindTemplateFailure, message, cause)
	e.Context = path
	e.Hint = fmt.Sprintf("Place the template file at %s.", path)
	return e
}

// Wrap wraps a standard error as a ConversionError of the given kind
func Wrap(kind ErrorKind, err error) *ConversionError {
	return newError(kind, err.Error(), err)
}

// WithContext adds context to an existing ConversionError
func (e *ConversionError) WithContext(context string) *ConversionError {
	e.Context = context
	return e
}

// WithField records the field whose extraction failed
func (e *ConversionError) WithField(field string) *ConversionError {
	e.Field = field
	return e
}

// Classify returns the kind of any error; errors that carry no
// ConversionError in their chain are unclassified.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnclassified
	}
	var ce *ConversionError
	if stderrors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnclassified
}

// Normalize returns err as a ConversionError, wrapping unknown errors as unclassified
func Normalize(err error) *ConversionError {
	if err == nil {
		return nil
	}
	var ce *ConversionError
	if stderrors.As(err, &ce) {
		return ce
	}
	return Wrap(KindUnclassified, err)
}

// IsKind reports whether err is a ConversionError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var ce *ConversionError
	return stderrors.As(err, &ce) && ce.Kind == kind
}
