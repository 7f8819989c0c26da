package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ReadFS is the minimal read-only filesystem abstraction configuration
// loading depends on, mirrored from catalyst-forge-libs/fs/core.ReadFS so
// callers can load from a real filesystem, an embedded filesystem, or an
// in-memory fixture in tests without the config package knowing which.
type ReadFS interface {
	Open(name string) (fs.File, error)
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	Exists(name string) (bool, error)
}

// OSFS adapts the local OS filesystem rooted at root to ReadFS.
type OSFS struct {
	root string
}

// NewOSFS constructs an OSFS rooted at root.
func NewOSFS(root string) *OSFS {
	return &OSFS{root: root}
}

func (o *OSFS) resolve(name string) string {
	if o.root == "" {
		return name
	}
	return filepath.Join(o.root, name)
}

// Open implements ReadFS.
func (o *OSFS) Open(name string) (fs.File, error) {
	return os.Open(o.resolve(name))
}

// Stat implements ReadFS.
func (o *OSFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(o.resolve(name))
}

// ReadDir implements ReadFS.
func (o *OSFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(o.resolve(name))
}

// ReadFile implements ReadFS.
func (o *OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(o.resolve(name))
}

// Exists implements ReadFS.
func (o *OSFS) Exists(name string) (bool, error) {
	_, err := o.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
