// Package artifact persists export output files.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store writes, streams, and removes artifact files under a base directory.
// The filesystem is abstracted so tests run against an in-memory fs.
type Store struct {
	fs   afero.Fs
	base string
}

// NewStore creates a filesystem-backed artifact store rooted at base.
func NewStore(fs afero.Fs, base string) *Store {
	return &Store{fs: fs, base: base}
}

// NewOSStore creates a store on the real filesystem.
func NewOSStore(base string) *Store {
	return NewStore(afero.NewOsFs(), base)
}

// Save writes the artifact and returns its stable path and byte size.
// The write goes to a temp file first; a half-written artifact is never
// visible under its final name.
func (s *Store) Save(name string, r io.Reader) (string, int64, error) {
	if err := s.fs.MkdirAll(s.base, 0o755); err != nil {
		return "", 0, fmt.Errorf("mkdir %s: %w", s.base, err)
	}

	final := filepath.Join(s.base, name)
	tmp := final + ".tmp"

	f, err := s.fs.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return "", 0, fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return "", 0, fmt.Errorf("rename %s: %w", final, err)
	}

	return final, size, nil
}

// Open returns a reader over a stored artifact.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Remove deletes an artifact. A missing file is not an error; the record
// pointing at it is what retention deletes second.
func (s *Store) Remove(path string) error {
	err := s.fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
