package source

import (
	"context"
	"fmt"
	"path/filepath"

	"salesdash/internal/services/storage"
)

// File reads a CSV or XLSX file through Storage, so encrypted data
// directories are handled transparently
type File struct {
	store *storage.Storage
	path  string
}

// NewFile creates a file source; relative paths resolve against the data directory
func NewFile(store *storage.Storage, path string) *File {
	return &File{store: store, path: path}
}

// Name returns the file name
func (f *File) Name() string {
	return filepath.Base(f.path)
}

// Rows reads and decodes the file
func (f *File) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := f.store.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer rc.Close()
	return decode(f.path, rc)
}
