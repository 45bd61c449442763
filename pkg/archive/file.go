package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps blobs as files under one directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates baseDir if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: archive directory is shared with readers
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("archive: ensure dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	address, object := Address(data)
	path := filepath.Join(s.baseDir, object)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return address, nil
	}
	// Write to temp, then rename, so readers never see a partial blob.
	tmp := path + ".tmp"
	//nolint:gosec // G306: archived reports are readable
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("archive: write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive: commit blob: %w", err)
	}
	return address, nil
}

func (s *FileStore) Get(_ context.Context, address string) ([]byte, error) {
	object, err := objectName(address)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.baseDir, object)) //nolint:gosec // object name is validated hex
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", address, err)
	}
	return data, nil
}

func (s *FileStore) Exists(_ context.Context, address string) (bool, error) {
	object, err := objectName(address)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(filepath.Join(s.baseDir, object))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("archive: stat %s: %w", address, err)
	}
}

func (s *FileStore) Delete(_ context.Context, address string) error {
	object, err := objectName(address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.baseDir, object)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("archive: delete %s: %w", address, err)
	}
	return nil
}
