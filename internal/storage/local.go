package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes artifacts to a local directory tree.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a local filesystem store rooted at baseDir.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}
	return &LocalStore{baseDir: baseDir, prefix: prefix}, nil
}

func (s *LocalStore) fullPath(key string) string {
	return filepath.Join(s.baseDir, s.prefix, filepath.FromSlash(key))
}

// Exists reports whether an artifact is already present at key.
func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.fullPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// Write stores an artifact atomically via temp file + rename.
func (s *LocalStore) Write(_ context.Context, key string, data []byte) error {
	path := s.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", key, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// ReadAll returns the full content stored at key.
func (s *LocalStore) ReadAll(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.fullPath(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// URI returns a file:// URI for the given key.
func (s *LocalStore) URI(key string) string {
	abs, err := filepath.Abs(s.fullPath(key))
	if err != nil {
		abs = s.fullPath(key)
	}
	return "file://" + filepath.ToSlash(abs)
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error { return nil }
