package vfs

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type memFile struct {
	data []byte
	mod  time.Time
}

type fileInfo struct {
	name string
	size int64
	mode fs.FileMode
	mod  time.Time
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi fileInfo) ModTime() time.Time { return fi.mod }
func (fi fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fileInfo) Sys() any           { return nil }

// MemFS is an in-memory file system. Directories exist implicitly as the
// parents of files. Every write advances the modification time, so two
// writes never share one.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
	rev   int64
}

func NewMem() *MemFS { return &MemFS{files: make(map[string]*memFile)} }

func norm(p string) string {
	q := path.Clean(toSlash(p))
	q = strings.TrimPrefix(q, "/")
	if q == "." {
		return ""
	}
	return q
}

// WriteFile creates or replaces name.
func (m *MemFS) WriteFile(name string, data []byte) error {
	key := norm(name)
	if key == "" {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isDirLocked(key) {
		return &fs.PathError{Op: "write", Path: name, Err: errors.New("is a directory")}
	}
	m.rev++
	m.files[key] = &memFile{data: append([]byte(nil), data...), mod: time.Unix(0, m.rev)}
	return nil
}

// Remove deletes a file.
func (m *MemFS) Remove(name string) error {
	key := norm(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[key]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, key)
	return nil
}

func (m *MemFS) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[norm(name)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), f.data...), nil
}

func (m *MemFS) isDirLocked(key string) bool {
	if key == "" {
		return true
	}
	for name := range m.files {
		if strings.HasPrefix(name, key+"/") {
			return true
		}
	}
	return false
}

func (m *MemFS) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := norm(name)
	if f, ok := m.files[key]; ok {
		return fileInfo{name: path.Base(key), size: int64(len(f.data)), mod: f.mod}, nil
	}
	if m.isDirLocked(key) {
		return fileInfo{name: path.Base(key), mode: fs.ModeDir | 0o755}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// Walk visits root and every file and directory below it in lexical order,
// like filepath.WalkDir. Paths passed to fn are joined onto root.
func (m *MemFS) Walk(root string, fn fs.WalkDirFunc) error {
	if fn == nil {
		return errors.New("nil walk fn")
	}
	info, err := m.Stat(root)
	if err != nil {
		return fn(root, nil, err)
	}
	if err := fn(root, fs.FileInfoToDirEntry(info), nil); err != nil || !info.IsDir() {
		if err == fs.SkipDir {
			return nil
		}
		return err
	}
	return m.walkDir(root, fn)
}

func (m *MemFS) walkDir(dir string, fn fs.WalkDirFunc) error {
	for _, name := range m.children(norm(dir)) {
		p := path.Join(toSlash(dir), name)
		info, err := m.Stat(p)
		if err != nil {
			// removed while walking
			continue
		}
		err = fn(p, fs.FileInfoToDirEntry(info), nil)
		if err == fs.SkipDir {
			if !info.IsDir() {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := m.walkDir(p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// children returns the sorted names directly below the directory key.
func (m *MemFS) children(key string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := key
	if prefix != "" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var out []string
	for name := range m.files {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		first, _, _ := strings.Cut(rest, "/")
		if !seen[first] {
			seen[first] = true
			out = append(out, first)
		}
	}
	sort.Strings(out)
	return out
}
