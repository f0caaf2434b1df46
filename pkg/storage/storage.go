// Package storage provides the durable key/value storage scenarios are
// persisted in. Each key maps to one JSON document on disk.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for keys that were never written.
var ErrNotFound = errors.New("key not found")

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Storage is the persistence contract used by the scenario store.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Remove(key string) error
}

// FileStorage stores every key as <dir>/<key>.json on an afero filesystem.
type FileStorage struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
}

// NewFileStorage creates dir if needed and returns a storage rooted there.
func NewFileStorage(logger *zap.Logger, fs afero.Fs, dir string) (*FileStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "."
	}
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect storage directory %s: %w", dir, err)
	}
	if !exists {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return &FileStorage{fs: fs, dir: dir, logger: logger}, nil
}

// NewMemoryStorage returns a FileStorage on an in-memory filesystem.
func NewMemoryStorage() *FileStorage {
	s, _ := NewFileStorage(nil, afero.NewMemMapFs(), "/")
	return s
}

func (s *FileStorage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get reads the document stored under key.
func (s *FileStorage) Get(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Set replaces the document stored under key. The data is written to a
// temporary file first and renamed into place.
func (s *FileStorage) Set(key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	s.logger.Debug("document stored",
		zap.String("op", "storage.Set"),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Remove deletes the document stored under key. Removing a missing key is
// not an error.
func (s *FileStorage) Remove(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
