package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-specform/internal/docx/docxtest"
	"github.com/a3tai/mcp-specform/internal/pdf/pdftest"
)

func setup(t *testing.T) (resources, dir string) {
	t.Helper()

	resources = t.TempDir()
	require.NoError(t, docxtest.WriteTemplate(resources, "templates/company_form.docx", docxtest.CompanyFormBody))

	dir = t.TempDir()
	sheet := pdftest.Text("Color : light amber", "Appearance : clear liquid")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "amber.pdf"), sheet, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rose.pdf"), sheet, 0o644))
	return resources, dir
}

func TestRun_ConvertsDirectory(t *testing.T) {
	resources, dir := setup(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"--dir", dir,
		"--mode", "cff",
		"--resources", resources,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := filepath.Join(dir, "converted")
	assert.FileExists(t, filepath.Join(out, "amber_converted.docx"))
	assert.FileExists(t, filepath.Join(out, "rose_converted.docx"))
	assert.FileExists(t, filepath.Join(out, "manifest.xlsx"))
	assert.Contains(t, stdout.String(), "Converted: 2, Failed: 0")
}

func TestRun_FailedFileSetsExitCode(t *testing.T) {
	resources, dir := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o644))
	out := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"--dir", dir,
		"--output", out,
		"--mode", "CFF",
		"--product", "ROSE",
		"--resources", resources,
		"--manifest", "report.xlsx",
	}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "FAILED: [EXTRACTION_FAILURE]")
	assert.Contains(t, stdout.String(), "Converted: 2, Failed: 1")
	assert.FileExists(t, filepath.Join(out, "report.xlsx"))
	assert.FileExists(t, filepath.Join(out, "ROSE_converted.docx"))
}

func TestRun_UsageErrors(t *testing.T) {
	resources, dir := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing mode", []string{"--dir", dir, "--resources", resources}},
		{"unknown flag", []string{"--mode", "CFF", "--colour"}},
		{"unknown variant", []string{"--dir", dir, "--mode", "CFF", "--variant", "brochure"}},
		{"missing template", []string{"--dir", dir, "--mode", "CFF", "--resources", t.TempDir()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 1, run(context.Background(), tt.args, &stdout, &stderr))
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"--version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Specform Batch")
}
