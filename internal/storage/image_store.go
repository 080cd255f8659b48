// Package storage holds uploaded featured images on disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when a stored file does not exist
var ErrNotFound = errors.New("file not found")

// ImageStore deletes and checks featured image files referenced by articles.
type ImageStore interface {
	Put(name string, r io.Reader) error
	Exists(name string) (bool, error)
	Delete(name string) error
}

// FileStore is an ImageStore on top of an afero filesystem.
type FileStore struct {
	fs afero.Fs
}

// NewLocalStore returns a FileStore rooted at dir on the OS filesystem.
func NewLocalStore(dir string) *FileStore {
	return &FileStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}
}

// NewFileStore wraps an arbitrary afero filesystem.
func NewFileStore(fs afero.Fs) *FileStore {
	return &FileStore{fs: fs}
}

// Put writes the file, creating parent directories as needed.
func (s *FileStore) Put(name string, r io.Reader) error {
	p, err := clean(name)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}
	f, err := s.fs.Create(p)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the file is present.
func (s *FileStore) Exists(name string) (bool, error) {
	p, err := clean(name)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// Delete removes the file. A missing file yields ErrNotFound.
func (s *FileStore) Delete(name string) error {
	p, err := clean(name)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// clean turns an article image reference into a store relative path.
// References may carry a leading "/storage/" public prefix.
func clean(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/storage/")
	p := path.Clean("/" + name)
	if p == "/" {
		return "", fmt.Errorf("empty file name")
	}
	return p, nil
}
