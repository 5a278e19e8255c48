// Package deferred provides suspended computations for the parser.
//
// A Deferred holds work that cannot finish when its tokens are consumed, for
// example a struct construction that names a struct declared in a file which
// has not been parsed yet. The work runs the first time the value is awaited;
// every later Await returns the same result.
package deferred

import (
	"context"
	"errors"
	"sync"
)

// ErrAborted is the result of a computation that panicked while running.
var ErrAborted = errors.New("deferred computation aborted")

// Deferred is a once-evaluated computation yielding a T or an error.
type Deferred[T any] struct {
	once sync.Once
	fn   func(ctx context.Context) (T, error)
	done chan struct{}

	value T
	err   error
}

// New wraps fn. fn does not run until the first Await.
func New[T any](fn func(ctx context.Context) (T, error)) *Deferred[T] {
	return &Deferred[T]{fn: fn, done: make(chan struct{})}
}

// Ready returns a Deferred that is already resolved to value.
func Ready[T any](value T) *Deferred[T] {
	d := &Deferred[T]{value: value, done: make(chan struct{})}
	d.once.Do(func() { close(d.done) })
	return d
}

// Fail returns a Deferred that is already resolved to err.
func Fail[T any](err error) *Deferred[T] {
	d := &Deferred[T]{err: err, done: make(chan struct{})}
	d.once.Do(func() { close(d.done) })
	return d
}

// Await drives the computation to completion and returns its result.
// Concurrent callers share one evaluation; the context of the caller that
// starts the evaluation is the one the computation observes.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	d.once.Do(func() {
		defer close(d.done)
		fn := d.fn
		d.fn = nil
		// seen by other awaiters if fn panics
		d.err = ErrAborted
		d.value, d.err = fn(ctx)
	})
	return d.value, d.err
}

// Done reports whether the computation has finished.
func (d *Deferred[T]) Done() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Then returns a Deferred that awaits d and maps its value with fn.
func Then[T, U any](d *Deferred[T], fn func(ctx context.Context, value T) (U, error)) *Deferred[U] {
	return New(func(ctx context.Context) (U, error) {
		value, err := d.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(ctx, value)
	})
}

// All awaits every element in order and returns the values in the same order.
// The first failure is returned.
func All[T any](ctx context.Context, items []*Deferred[T]) ([]T, error) {
	values := make([]T, 0, len(items))
	for _, item := range items {
		value, err := item.Await(ctx)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}
