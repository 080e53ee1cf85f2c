// Package storage persists generated audio artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates the requested audio artifact does not exist.
var ErrNotFound = errors.New("audio artifact not found")

// AudioStore abstracts where finished audio artifacts live.
type AudioStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// FileStore keeps audio artifacts on the local filesystem under a base
// directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Save writes one artifact. The name is sanitized to its base component so
// callers cannot escape the output directory.
func (f *FileStore) Save(_ context.Context, name string, r io.Reader, _ int64) error {
	target := filepath.Join(f.basePath, safeFilename(name))
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}
	return nil
}

// Open returns a reader over a stored artifact.
func (f *FileStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(f.basePath, safeFilename(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	return file, nil
}

// Delete removes an artifact. Deleting a missing artifact is not an error.
func (f *FileStore) Delete(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(f.basePath, safeFilename(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete audio file: %w", err)
	}
	return nil
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "audio"
	}
	return name
}
