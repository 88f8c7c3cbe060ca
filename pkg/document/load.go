package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMissingSource is returned when a referenced document file does not exist.
var ErrMissingSource = errors.New("source document not found")

// Load reads a complete text document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, path)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return New(filepath.Base(path), string(data)), nil
}

// LoadPages reads one text file per page, in the given order, and joins
// them with page markers.
func LoadPages(name string, pagePaths []string) (*Document, error) {
	pages := make([]string, 0, len(pagePaths))
	for _, pagePath := range pagePaths {
		data, err := os.ReadFile(pagePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissingSource, pagePath)
			}
			return nil, fmt.Errorf("failed to read page %s: %w", pagePath, err)
		}
		pages = append(pages, string(data))
	}
	return New(name, JoinPages(pages)), nil
}
