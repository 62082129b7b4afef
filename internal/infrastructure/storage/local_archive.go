package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	syncapp "github.com/storesync/backend/internal/application/sync"
)

// Ensure LocalArchiveStore implements the retention archive port
var _ syncapp.ArchiveStore = (*LocalArchiveStore)(nil)

// LocalArchiveStore writes archive objects as files under a root
// directory, mirroring the object key as a relative path. It is the
// default backend for single-node deployments without object storage.
type LocalArchiveStore struct {
	root string
}

// NewLocalArchiveStore creates a LocalArchiveStore rooted at dir,
// creating the directory if needed.
func NewLocalArchiveStore(dir string) (*LocalArchiveStore, error) {
	if dir == "" {
		return nil, errors.New("archive directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchiveStore{root: dir}, nil
}

// Put stores one archive object under the given key
func (s *LocalArchiveStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errors.New("archive key is required")
	}
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("archive key %q escapes the archive root", key)
	}

	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive subdirectory: %w", err)
	}

	// Write through a temp file and rename so a crashed pass never
	// leaves a partial archive behind.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize archive file: %w", err)
	}
	return nil
}

// Root returns the archive root directory
func (s *LocalArchiveStore) Root() string {
	return s.root
}
