// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package workerpool provides the vault's shared asynchronous
// executor. Each submitted task runs on its own goroutine, so
// submission never blocks the caller; the number of tasks executing
// at once is bounded by a weighted semaphore, since the vault's tasks
// are dominated by CPU- and memory-hard key derivation. A simple
// example looks like this:
//
//	wp := workerpool.New(context.Background(), 4)
//	f := workerpool.Run(wp, "reveal", func(ctx context.Context) (string, error) {
//		return acct.RevealPassword(kdf.Latest, master)
//	})
//	password, err := f.Get(ctx)
//	wp.Shutdown()
//
// After Shutdown, the pool rejects new work with an Unavailable error
// and waits for the tasks already accepted to finish.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/future"
	"github.com/grailbio/vault/log"
	"golang.org/x/sync/semaphore"
)

// ErrShutdown is returned (wrapped) for work submitted after Shutdown.
var ErrShutdown = errors.E(errors.Unavailable, "worker pool is shut down")

// WorkerPool executes tasks with bounded concurrency.
type WorkerPool struct {
	// Concurrency is the maximum number of tasks executing at once.
	Concurrency int

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted

	mu       sync.Mutex
	shutdown bool
	active   sync.WaitGroup
}

// DefaultConcurrency bounds pools constructed with a non-positive
// concurrency: a small multiple of the runtime's available processors.
var DefaultConcurrency = 2 * runtime.GOMAXPROCS(0)

// New creates a WorkerPool with the given concurrency. Tasks observe
// ctx; canceling it abandons tasks that have not yet started.
func New(ctx context.Context, concurrency int) *WorkerPool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		Concurrency: concurrency,
		ctx:         ctx,
		cancel:      cancel,
		sem:         semaphore.NewWeighted(int64(concurrency)),
	}
}

// Go submits fn for asynchronous execution. The name is used only for
// logging. Go returns an Unavailable error if the pool has been shut
// down. If the pool's context is canceled before fn acquires a slot,
// fn is still invoked, with the canceled context, so that it can
// report the cancellation to its own waiters. Panics in fn are
// recovered and logged.
func (wp *WorkerPool) Go(name string, fn func(ctx context.Context)) error {
	return wp.GoThen(name, fn, nil)
}

// GoThen is like Go, but also calls then, if it is not nil, after fn
// returns and its execution slot has been released. Completing futures
// from then keeps their continuations off the pool's slots, so a
// continuation that waits on further pool work cannot starve the pool.
func (wp *WorkerPool) GoThen(name string, fn func(ctx context.Context), then func()) error {
	wp.mu.Lock()
	if wp.shutdown {
		wp.mu.Unlock()
		return errors.E(name, ErrShutdown)
	}
	wp.active.Add(1)
	wp.mu.Unlock()

	go func() {
		defer wp.active.Done()
		if err := wp.sem.Acquire(wp.ctx, 1); err != nil {
			log.Debug.Printf("workerpool: task %s abandoned: %v", name, err)
			wp.call(name, fn)
		} else {
			wp.call(name, fn)
			wp.sem.Release(1)
		}
		if then != nil {
			then()
		}
	}()
	return nil
}

func (wp *WorkerPool) call(name string, fn func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			log.Error.Printf("workerpool: task %s panicked: %v", name, p)
		}
	}()
	fn(wp.ctx)
}

// Shutdown stops the pool from accepting new tasks and waits for the
// accepted ones to complete. Shutdown is idempotent.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	first := !wp.shutdown
	wp.shutdown = true
	wp.mu.Unlock()
	wp.active.Wait()
	if first {
		wp.cancel()
		log.Debug.Printf("workerpool: shut down")
	}
}

// IsShutdown tells whether Shutdown has been called.
func (wp *WorkerPool) IsShutdown() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.shutdown
}

// Borrow acquires up to n additional execution slots without waiting,
// for a running task that parallelizes its own work. It returns the
// number of slots acquired and a function that releases them.
func (wp *WorkerPool) Borrow(n int) (int, func()) {
	got := 0
	for got < n && wp.sem.TryAcquire(1) {
		got++
	}
	return got, func() { wp.sem.Release(int64(got)) }
}

// Run executes fn on the pool and returns a future for its result.
// The future is completed with an Unavailable error if the pool is
// shut down, with a Canceled error if the pool's context is done
// before fn starts, and with an Internal error if fn panics. It is
// completed after fn's slot is released.
func Run[T any](wp *WorkerPool, name string, fn func(ctx context.Context) (T, error)) *future.Future[T] {
	f := future.New[T]()
	var (
		val T
		err error
	)
	goErr := wp.GoThen(name, func(ctx context.Context) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.E(name, ctxErr)
			return
		}
		defer func() {
			if p := recover(); p != nil {
				log.Error.Printf("workerpool: task %s panicked: %v", name, p)
				var zero T
				val, err = zero, errors.E(name, errors.Panic(p))
			}
		}()
		val, err = fn(ctx)
	}, func() { f.Complete(val, err) })
	if goErr != nil {
		var zero T
		f.Complete(zero, goErr)
	}
	return f
}
