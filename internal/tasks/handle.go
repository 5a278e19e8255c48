// Package tasks provides the handle shared by every task of a compilation:
// it spawns tasks, carries the cancellation signal and collects errors.
package tasks

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/raven-lang/raven/internal/errors"
)

// Handle groups the tasks of one compilation job.
type Handle struct {
	group *errgroup.Group
	ctx   context.Context

	mu   sync.Mutex
	errs errors.List
}

// NewHandle creates a handle whose tasks stop when ctx is cancelled or a
// task hits a defect.
func NewHandle(ctx context.Context) *Handle {
	group, gctx := errgroup.WithContext(ctx)
	return &Handle{group: group, ctx: gctx}
}

// Context is the cancellation signal shared by all tasks.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Spawn runs fn on its own goroutine. Errors returned by fn are reported and
// do not affect other tasks. A defect raised by fn cancels every task.
func (h *Handle) Spawn(fn func(ctx context.Context) error) {
	h.group.Go(func() (err error) {
		defer errors.RecoverDefect(&err)
		if h.ctx.Err() != nil {
			return nil
		}
		if ferr := fn(h.ctx); ferr != nil {
			h.Report(ferr)
		}
		return nil
	})
}

// Report records a user-facing error. A List is flattened.
func (h *Handle) Report(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if list, ok := err.(errors.List); ok {
		h.errs = append(h.errs, list...)
		return
	}
	h.errs = append(h.errs, err)
}

// Errors returns a copy of the errors reported so far.
func (h *Handle) Errors() errors.List {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append(errors.List(nil), h.errs...)
}

// Wait blocks until every spawned task returns. The error is non-nil only
// when a task raised a defect.
func (h *Handle) Wait() error {
	return h.group.Wait()
}
