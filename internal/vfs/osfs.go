package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OSFS reads from the host file system.
type OSFS struct{}

func NewOS() *OSFS { return &OSFS{} }

func (fsys *OSFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }
func (fsys *OSFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (fsys *OSFS) Walk(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}
