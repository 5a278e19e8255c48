package vfs

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher implements Watcher using fsnotify for OS-native notifications.
// Directories are watched recursively; only source files are reported.
type FSNotifyWatcher struct {
	w   *fsnotify.Watcher
	evC chan Event
	erC chan error
}

// NewFSWatcher creates a new FSNotifyWatcher.
func NewFSWatcher() (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &FSNotifyWatcher{w: w, evC: make(chan Event, 128), erC: make(chan error, 1)}
	go fw.loop()
	return fw, nil
}

func (fw *FSNotifyWatcher) loop() {
	defer close(fw.evC)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) && fw.addDir(ev.Name) {
				continue
			}
			if !IsSource(ev.Name) {
				continue
			}
			var op WatchOp
			if ev.Has(fsnotify.Create) {
				op |= OpCreate
			}
			if ev.Has(fsnotify.Write) {
				op |= OpWrite
			}
			if ev.Has(fsnotify.Remove) {
				op |= OpRemove
			}
			if ev.Has(fsnotify.Rename) {
				op |= OpRename
			}
			if op == 0 {
				continue
			}
			fw.evC <- Event{Path: ev.Name, Op: op, Time: time.Now()}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.erC <- err:
			default:
			}
		}
	}
}

// addDir watches name when it is a new directory.
func (fw *FSNotifyWatcher) addDir(name string) bool {
	info, err := NewOS().Stat(name)
	if err != nil || !info.IsDir() {
		return false
	}
	if err := fw.Add(name); err != nil {
		select {
		case fw.erC <- err:
		default:
		}
	}
	return true
}

func (fw *FSNotifyWatcher) Events() <-chan Event { return fw.evC }
func (fw *FSNotifyWatcher) Errors() <-chan error { return fw.erC }

// Add watches name and, when it is a directory, every directory below it.
func (fw *FSNotifyWatcher) Add(name string) error {
	return filepath.WalkDir(name, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == name {
			return fw.w.Add(p)
		}
		return nil
	})
}

func (fw *FSNotifyWatcher) Close() error { return fw.w.Close() }
