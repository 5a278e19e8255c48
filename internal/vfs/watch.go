package vfs

import (
	"context"
	"sync"
	"time"
)

// PollWatcher detects changes by comparing modification times of the source
// files under its roots at a fixed interval. It works with any FileSystem,
// including MemFS.
type PollWatcher struct {
	fs       FileSystem
	interval time.Duration

	mu    sync.Mutex
	roots []string
	seen  map[string]time.Time

	evCh chan Event
	erCh chan error
	stop context.CancelFunc
	done chan struct{}
}

func NewPollWatcher(fs FileSystem, interval time.Duration) *PollWatcher {
	return &PollWatcher{
		fs:       fs,
		interval: interval,
		seen:     make(map[string]time.Time),
		evCh:     make(chan Event, 64),
		erCh:     make(chan error, 1),
	}
}

func (w *PollWatcher) Events() <-chan Event { return w.evCh }
func (w *PollWatcher) Errors() <-chan error { return w.erCh }

// Add starts watching name. Files already present are not reported.
func (w *PollWatcher) Add(name string) error {
	files, err := w.snapshot([]string{name})
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roots = append(w.roots, name)
	for p, mod := range files {
		w.seen[p] = mod
	}
	return nil
}

// Start begins polling. It returns at once; polling stops when ctx is done
// or Close is called.
func (w *PollWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.stop = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
}

func (w *PollWatcher) Close() error {
	if w.stop == nil {
		close(w.evCh)
		return nil
	}
	w.stop()
	<-w.done
	return nil
}

func (w *PollWatcher) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.evCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, ev := range w.poll() {
			select {
			case w.evCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// poll compares the current file set against the last one seen.
func (w *PollWatcher) poll() []Event {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	if len(roots) == 0 {
		return nil
	}

	files, err := w.snapshot(roots)
	if err != nil {
		select {
		case w.erCh <- err:
		default:
		}
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.roots) != len(roots) {
		// a root was added meanwhile; the next poll sees it
		return nil
	}
	now := time.Now()
	var events []Event
	for p, mod := range files {
		prev, ok := w.seen[p]
		switch {
		case !ok:
			events = append(events, Event{Path: p, Op: OpCreate, Time: now})
		case !mod.Equal(prev):
			events = append(events, Event{Path: p, Op: OpWrite, Time: now})
		}
	}
	for p := range w.seen {
		if _, ok := files[p]; !ok {
			events = append(events, Event{Path: p, Op: OpRemove, Time: now})
		}
	}
	w.seen = files
	return events
}

func (w *PollWatcher) snapshot(roots []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	if len(roots) == 0 {
		return out, nil
	}
	names, err := SourceFiles(w.fs, roots...)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		info, err := w.fs.Stat(name)
		if err != nil {
			// removed between listing and stat
			continue
		}
		out[name] = info.ModTime()
	}
	return out, nil
}
