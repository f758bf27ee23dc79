// Package storage holds transient copies of uploaded syllabi between the
// upload request and the analysis request.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"syllabusai/internal/config"
)

// Stager stores staged uploads under flat keys.
type Stager interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the stager selected by cfg.Storage.Driver.
func New(cfg *config.Config) (Stager, error) {
	switch cfg.Storage.Driver {
	case "minio":
		return NewMinIOStager(cfg.MinIO)
	case "local", "":
		return NewLocalStager(cfg.Storage.UploadDir)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// LocalStager keeps staged uploads in a directory on local disk.
type LocalStager struct {
	dir string
}

// NewLocalStager creates dir when missing.
func NewLocalStager(dir string) (*LocalStager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStager{dir: dir}, nil
}

// Dir returns the staging directory.
func (s *LocalStager) Dir() string {
	return s.dir
}

// Save writes r to a temporary file and renames it into place, so readers
// never observe a partially written upload.
func (s *LocalStager) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write staged file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close staged file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename staged file: %w", err)
	}
	return nil
}

// Open returns ErrNotFound for a missing key.
func (s *LocalStager) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	return f, nil
}

// Delete is idempotent.
func (s *LocalStager) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// ReadAll loads a staged object fully into memory.
func ReadAll(ctx context.Context, s Stager, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read staged object %q: %w", key, err)
	}
	return data, nil
}
