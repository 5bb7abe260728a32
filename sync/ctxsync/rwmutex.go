// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package ctxsync provides context-aware synchronization primitives.
package ctxsync

import (
	"context"
	"sync"

	"github.com/grailbio/vault/errors"
	"golang.org/x/sync/semaphore"
)

const maxReaders = 1 << 30

// RWMutex is a context-aware reader/writer mutex. It must not be
// copied. The zero value is ready to use.
//
// Waiters are served in order: once a writer is waiting, readers that
// arrive later wait behind it. A lock may be released by a goroutine
// other than the one that acquired it.
type RWMutex struct {
	initOnce sync.Once
	sem      *semaphore.Weighted
}

// Lock attempts to exclusively lock m. If ctx is done before the lock
// can be taken, Lock does not take the lock and returns an error of
// kind errors.Canceled.
func (m *RWMutex) Lock(ctx context.Context) error {
	return m.acquire(ctx, maxReaders)
}

// Unlock unlocks m. It must be called exactly once iff Lock returned
// nil. Unlock panics if m is not locked.
func (m *RWMutex) Unlock() {
	m.init()
	m.sem.Release(maxReaders)
}

// RLock attempts to lock m for reading. If ctx is done before the lock
// can be taken, RLock does not take the lock and returns an error of
// kind errors.Canceled.
func (m *RWMutex) RLock(ctx context.Context) error {
	return m.acquire(ctx, 1)
}

// TryRLock locks m for reading if it can do so without waiting, and
// reports whether it did. It fails while a writer holds or waits for m.
func (m *RWMutex) TryRLock() bool {
	m.init()
	return m.sem.TryAcquire(1)
}

// RUnlock undoes a single RLock call. It panics if m is not locked for
// reading.
func (m *RWMutex) RUnlock() {
	m.init()
	m.sem.Release(1)
}

func (m *RWMutex) acquire(ctx context.Context, n int64) error {
	m.init()
	if err := m.sem.Acquire(ctx, n); err != nil {
		return errors.E(err, "waiting for lock")
	}
	return nil
}

func (m *RWMutex) init() {
	m.initOnce.Do(func() {
		m.sem = semaphore.NewWeighted(maxReaders)
	})
}
