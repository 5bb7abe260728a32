// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package future provides a single-assignment result cell that is
// returned by every asynchronous vault operation. A Future is
// completed exactly once, with either a value or an error; callers
// may block on it with Get, select on Done, or chain continuations
// with OnComplete and Then, which run on the goroutine that completes
// the future.
package future

import (
	"context"
	"sync"

	"github.com/grailbio/vault/errors"
)

// A Future holds the eventual result of an asynchronous operation.
// The zero Future is not usable; construct one with New.
type Future[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	val       T
	err       error
	callbacks []func(T, error)
}

// New returns a new, incomplete future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already completed with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v, nil)
	return f
}

// Failed returns a future already completed with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	var zero T
	f.Complete(zero, err)
	return f
}

// Complete sets the future's result. Only the first call takes
// effect; Complete reports whether it did.
func (f *Future[T]) Complete(v T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.val, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()
	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Done returns a channel that is closed when the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future completes or the context is done.
// A context error is returned as a Canceled error; it does not affect
// the future itself.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, errors.E("waiting for result", ctx.Err())
	}
}

// OnComplete registers fn to be called with the future's result. If
// the future has already completed, fn is called immediately on the
// calling goroutine.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.val, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Then returns a future that is completed with the result of fn
// applied to f's result. Then never blocks: fn runs on whichever
// goroutine completes f.
func Then[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	g := New[U]()
	f.OnComplete(func(v T, err error) {
		defer func() {
			if p := recover(); p != nil {
				var zero U
				g.Complete(zero, errors.Panic(p))
			}
		}()
		g.Complete(fn(v, err))
	})
	return g
}
