// Package blob stores uploaded video files in a single flat directory under
// opaque, collision-resistant names. Stored names are never reused and never
// derived from the client-supplied filename beyond its extension.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is a local-disk blob store rooted at a single directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store
func (s *Store) Dir() string {
	return s.dir
}

// NewFilename generates a storage name independent of the client-supplied
// filename, preserving only its extension: video-<unix millis>-<uuid><ext>.
func NewFilename(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	return fmt.Sprintf("video-%d-%s%s", time.Now().UnixMilli(), uuid.New().String(), ext)
}

// Path returns the on-disk path for a stored filename
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// Save writes src under the given stored filename and returns the final path
// and the number of bytes written. A partially written file is removed on
// copy failure so rejection paths leave the directory unchanged.
func (s *Store) Save(filename string, src io.Reader) (string, int64, error) {
	path := s.Path(filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create blob file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write blob file: %w", err)
	}

	return path, n, nil
}

// Remove deletes a stored blob by filename
func (s *Store) Remove(filename string) error {
	if err := os.Remove(s.Path(filename)); err != nil {
		return fmt.Errorf("failed to remove blob file: %w", err)
	}
	return nil
}
