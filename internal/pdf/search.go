package pdf

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Search lists candidate spec sheets in a directory tree
type Search struct {
	validator *Validator
}

// NewSearch creates a search that ignores files over maxFileSize
func NewSearch(maxFileSize int64) *Search {
	return &Search{
		validator: NewValidator(maxFileSize),
	}
}

// FindPDFs returns the PDFs under directory sorted by relative path, then
// cut to limit (zero means all). Hidden directories, symlinks and files
// failing the size check are left out.
func (s *Search) FindPDFs(directory string, limit int) ([]FileInfo, error) {
	if directory == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}

	root, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory path: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", directory)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", directory)
	}

	var found []FileInfo
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return nil
		case d.IsDir():
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		case d.Type()&fs.ModeSymlink != 0, !isPDFFile(d.Name()):
			return nil
		}

		info, err := d.Info()
		if err != nil || s.validator.ValidateFileInfo(path, info) != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		found = append(found, FileInfo{
			Path:         path,
			Rel:          filepath.ToSlash(rel),
			Name:         info.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error walking directory: %w", walkErr)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Rel < found[j].Rel })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// isPDFFile reports whether filename has a .pdf extension, in any case
func isPDFFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
