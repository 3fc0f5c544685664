package pdf

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a3tai/mcp-specform/internal/pdf/pdftest"
)

func TestReader_ExtractText(t *testing.T) {
	reader := NewReader(1024 * 1024)

	data := pdftest.Build(
		[]string{"Color : light amber", "Appearance : clear liquid"},
		nil,
		[]string{"Specific Gravity (20C) : 0.912 +/- 0.01"},
	)

	result, err := reader.ExtractText(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", result.Pages)
	}
	if result.PagesWithText != 2 {
		t.Errorf("expected 2 pages with text, got %d", result.PagesWithText)
	}
	if result.Size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), result.Size)
	}

	for _, want := range []string{"light amber", "Appearance", "0.912 +/- 0.01"} {
		if !strings.Contains(result.Text, want) {
			t.Errorf("expected text to contain %q, got %q", want, result.Text)
		}
	}
	if !strings.HasSuffix(result.Text, "\n") {
		t.Errorf("expected each page to end with a newline")
	}
	if strings.Index(result.Text, "amber") > strings.Index(result.Text, "Gravity") {
		t.Errorf("expected pages in order, got %q", result.Text)
	}
}

func TestReader_ExtractText_NoTextLayer(t *testing.T) {
	reader := NewReader(1024 * 1024)

	_, err := reader.ExtractText(pdftest.Build(nil, nil))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestReader_ExtractText_Invalid(t *testing.T) {
	reader := NewReader(1024 * 1024)

	_, err := reader.ExtractText([]byte("hello"))
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestReader_ReadFile(t *testing.T) {
	reader := NewReader(1024 * 1024)
	tempDir := t.TempDir()

	path := filepath.Join(tempDir, "spec.pdf")
	data := pdftest.Text("COLOR : AMBER")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write pdf: %v", err)
	}

	got, err := reader.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(data) {
		t.Errorf("expected %d bytes, got %d", len(data), len(got))
	}

	if _, err := reader.ReadFile(""); err == nil {
		t.Errorf("expected error for empty path")
	}
	if _, err := reader.ReadFile(filepath.Join(tempDir, "missing.pdf")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

// Damaged files must come back as classified errors. Some of these inputs
// pass pdfcpu validation and then make ledongthuc/pdf panic.
func TestReader_ExtractText_CorruptedBytes(t *testing.T) {
	reader := NewReader(1024 * 1024)
	valid := pdftest.Text(
		"Color : light amber",
		"Appearance : clear liquid",
		"Specific Gravity (20C) : 0.912 +/- 0.01",
	)
	known := []error{ErrNotPDF, ErrEncrypted, ErrUnreadable, ErrNoText}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 3000; i++ {
		data := append([]byte(nil), valid...)
		for n := 1 + rng.Intn(4); n > 0; n-- {
			data[rng.Intn(len(data))] = byte(rng.Intn(256))
		}

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					t.Fatalf("mutation %d: ExtractText panicked: %v", i, rec)
				}
			}()

			_, err := reader.ExtractText(data)
			if err == nil {
				return
			}
			for _, want := range known {
				if errors.Is(err, want) {
					return
				}
			}
			t.Errorf("mutation %d: unclassified error %v", i, err)
		}()
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"amber", 10, "amber"},
		{"amber", 3, "amb"},
		{"amber", 0, ""},
		{"amber", -1, ""},
		{"aé", 2, "a"},
		{"aé", 3, "aé"},
		{"■ COLOR", 2, ""},
		{"■ COLOR", 4, "■ "},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
