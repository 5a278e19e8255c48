// Package vfs abstracts the file system the compiler reads sources from and
// watches for changes.
package vfs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// SourceExt is the extension of source files.
const SourceExt = ".rv"

// FileSystem is the read side of a file system.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
	Walk(root string, fn fs.WalkDirFunc) error
}

// WatchOp indicates a change operation in the filesystem.
type WatchOp uint32

const (
	OpCreate WatchOp = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

func (op WatchOp) String() string {
	var parts []string
	for _, named := range []struct {
		op   WatchOp
		name string
	}{{OpCreate, "create"}, {OpWrite, "write"}, {OpRemove, "remove"}, {OpRename, "rename"}} {
		if op&named.op != 0 {
			parts = append(parts, named.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event describes a change to a source file.
type Event struct {
	Path string
	Op   WatchOp
	Time time.Time
}

// Watcher reports changes to the source files under the added paths.
type Watcher interface {
	Events() <-chan Event
	Errors() <-chan error
	Add(name string) error
	Close() error
}

// IsSource reports whether name is a source file.
func IsSource(name string) bool {
	return strings.HasSuffix(name, SourceExt)
}

// SourceFiles lists the source files named by roots. A root that is a
// directory contributes every source file below it. The result is sorted and
// free of duplicates.
func SourceFiles(fsys FileSystem, roots ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, root := range roots {
		info, err := fsys.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = fsys.Walk(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsSource(p) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}

// Rel returns name relative to root using forward slashes. name is returned
// cleaned when it is not below root.
func Rel(root, name string) string {
	root = strings.TrimPrefix(path.Clean(toSlash(root)), "./")
	name = strings.TrimPrefix(path.Clean(toSlash(name)), "./")
	if root == "." || root == "" {
		return name
	}
	if rest, ok := strings.CutPrefix(name, root+"/"); ok {
		return rest
	}
	return name
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
