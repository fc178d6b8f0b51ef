package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage keeps staged uploads on the local filesystem under a base
// directory. Keys are plain file names generated by the caller.
type Storage struct {
	baseDir string
}

// NewStorage creates a Storage rooted at baseDir, creating the directory if
// needed.
func NewStorage(baseDir string) (*Storage, error) {
	if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", baseDir, err)
	}

	return &Storage{baseDir: baseDir}, nil
}

// Save writes the uploaded file under the given key and returns its path.
func (s *Storage) Save(_ context.Context, key string, src io.Reader) (string, error) {
	dstPath := filepath.Join(s.baseDir, key)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	return dstPath, nil
}

// Load opens the staged file and returns a reader.
func (s *Storage) Load(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.baseDir, key))
}

// Delete removes the staged file.
func (s *Storage) Delete(_ context.Context, key string) error {
	return os.Remove(filepath.Join(s.baseDir, key))
}
