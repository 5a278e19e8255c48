package compiler

import (
	"context"
	"time"

	"github.com/raven-lang/raven/internal/vfs"
)

// settle is how long Watch waits for a burst of changes to end before it
// recompiles.
const settle = 50 * time.Millisecond

// Watch compiles the sources under roots, then recompiles every time watcher
// reports a change, passing each outcome to report. It returns when ctx is
// done or the watcher closes.
func Watch(ctx context.Context, opts Options, fsys vfs.FileSystem, watcher vfs.Watcher, roots []string, report func(*Result, error)) error {
	opts = opts.withDefaults()
	for _, root := range roots {
		if err := watcher.Add(root); err != nil {
			return err
		}
	}

	run := func() {
		files, err := Load(fsys, roots...)
		if err != nil {
			report(nil, err)
			return
		}
		report(Compile(ctx, opts, files))
	}
	run()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watcher.Errors():
			opts.Logger.Warn("watch: %v", err)
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			opts.Logger.Debug("watch: %s %s", ev.Op, ev.Path)
			if !drain(ctx, watcher) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run()
		}
	}
}

// drain swallows the events that follow within settle of each other. It
// returns false when the watcher closed.
func drain(ctx context.Context, watcher vfs.Watcher) bool {
	timer := time.NewTimer(settle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return true
		case <-timer.C:
			return true
		case _, ok := <-watcher.Events():
			if !ok {
				return false
			}
			timer.Reset(settle)
		}
	}
}
