// Package security confines tool-supplied paths to configured directories.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator provides security validation for file paths
type PathValidator struct {
	root string
}

// NewPathValidator creates a new path validator for the given directory
func NewPathValidator(root string) (*PathValidator, error) {
	if root == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute configured directory
func (v *PathValidator) Root() string {
	return v.root
}

// NormalizePath returns an absolute path inside the configured directory.
// Relative paths are resolved against it.
func (v *PathValidator) NormalizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	absPath := filepath.Clean(path)

	within, err := v.IsPathWithinDirectory(absPath)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}
	return absPath, nil
}

// IsPathWithinDirectory checks if a path is within the configured directory,
// following symlinks on both sides where they exist.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	realDir := v.root
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil {
		realDir = resolved
	}

	if !within(cleanPath, v.root) && !within(cleanPath, realDir) {
		return false, nil
	}

	// A symlink inside the directory must not lead out of it
	resolved, err := resolveExisting(cleanPath)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate symlinks: %w", err)
	}
	return within(resolved, realDir) || within(resolved, v.root), nil
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
// and appends the components that do not exist yet.
func resolveExisting(path string) (string, error) {
	rest := ""
	p := path
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(p), rest)
		p = parent
	}
}

// OutputPath resolves where a produced file is written. An empty path puts
// defaultName in the configured directory; an existing directory receives
// defaultName inside it.
func (v *PathValidator) OutputPath(path, defaultName string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultName
	}

	resolved, err := v.NormalizePath(path)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return v.NormalizePath(filepath.Join(resolved, defaultName))
	}
	return resolved, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
