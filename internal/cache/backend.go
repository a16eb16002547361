// Package cache persists GIOŚ documents so that the last successful fetch of
// every station, sensor list, series and index remains available offline.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache errors.
var (
	// ErrNotFound is returned when no entry exists under a name.
	ErrNotFound = errors.New("cache entry not found")

	// ErrEmptyKey is returned when saving sensor data without a parameter key.
	ErrEmptyKey = errors.New("sensor data has an empty key")

	// ErrInvalidID is returned for station or sensor ids that are not positive.
	ErrInvalidID = errors.New("invalid station or sensor id")

	// ErrStationMismatch is returned when an index belongs to a different station.
	ErrStationMismatch = errors.New("air quality index station mismatch")

	// ErrInvalidName is returned for entry names that are not plain file names.
	ErrInvalidName = errors.New("invalid cache entry name")
)

// Backend stores raw cache documents by name.
type Backend interface {
	// Read returns the document and the time it was last written, or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, time.Time, error)

	// Write replaces the document stored under name.
	Write(ctx context.Context, name string, data []byte) error
}

// FileBackend stores each document as a file in a single directory.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a FileBackend rooted at dir. The directory is
// created on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Dir returns the backend's directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Read implements Backend.
func (b *FileBackend) Read(_ context.Context, name string) ([]byte, time.Time, error) {
	path, err := b.path(name)
	if err != nil {
		return nil, time.Time{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("stat cache file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read cache file: %w", err)
	}
	return data, info.ModTime(), nil
}

// Write implements Backend. The file is replaced atomically.
func (b *FileBackend) Write(_ context.Context, name string, data []byte) error {
	path, err := b.path(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(b.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func (b *FileBackend) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(b.dir, name), nil
}
