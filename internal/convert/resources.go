package convert

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const fileNameSuffix = "_converted.docx"

// FileName returns the download name for a product
func FileName(product string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(product))
	return name + fileNameSuffix
}

// ResolveResourceRoot picks the directory templates are read from. An
// explicit root wins; otherwise the executable's directory is used when it
// holds the template, else the working directory.
func ResolveResourceRoot(configured, template string) string {
	if configured != "" {
		if abs, err := filepath.Abs(configured); err == nil {
			return abs
		}
		return configured
	}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolved
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(template))); err == nil {
			return dir
		}
	}

	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
