package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/demonlist/internal/domain/model"
)

// File permission constants.
const (
	filePermission      = 0o600
	directoryPermission = 0o750
)

// FileStore keeps the collection as one indented JSON document on disk, the
// format the list has always used (levels.json). Documents written by older
// versions ("youtube", "percent" keys) load transparently.
type FileStore struct {
	path string
}

// NewFileStore creates a store for path. The file is created on first save.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrMissingPath
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

// Load reads the document. A missing or blank file is an empty collection.
func (f *FileStore) Load(_ context.Context) ([]model.Level, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Level{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return []model.Level{}, nil
	}
	var levels []model.Level
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, f.path, err)
	}
	if levels == nil {
		levels = []model.Level{}
	}
	return levels, nil
}

// Save writes the document through a temp file and rename so a crash never
// leaves a half-written list behind.
func (f *FileStore) Save(_ context.Context, levels []model.Level) error {
	if levels == nil {
		levels = []model.Level{}
	}
	data, err := json.MarshalIndent(levels, "", "  ")
	if err != nil {
		return fmt.Errorf("encode levels: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermission); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
