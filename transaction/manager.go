// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transaction

import (
	"context"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/future"
	"github.com/grailbio/vault/log"
	"github.com/grailbio/vault/sync/workerpool"
)

// Manager issues transactions bound to a shared worker pool.
type Manager struct {
	pool *workerpool.WorkerPool
}

// NewManager returns a manager whose transactions commit on pool.
func NewManager(pool *workerpool.WorkerPool) *Manager {
	return &Manager{pool: pool}
}

// Begin returns a new, active transaction.
func (m *Manager) Begin() *Transaction {
	return New(m.pool)
}

// Shutdown shuts down the manager's worker pool. It is idempotent.
func (m *Manager) Shutdown() {
	m.pool.Shutdown()
}

// IsShutdown tells whether the manager's worker pool has been shut
// down.
func (m *Manager) IsShutdown() bool {
	return m.pool.IsShutdown()
}

// Execute begins a transaction, calls builder to populate it, and
// commits it. The returned future is completed with the result of the
// future returned by builder if the transaction committed. Otherwise
// it is completed with the zero R and an error: the builder's error,
// or the reason the transaction was rolled back. A panicking builder
// is logged and treated as a failed builder; the transaction is then
// rolled back without running any action.
func Execute[R any](m *Manager, builder func(tx *Transaction) (*future.Future[R], error)) *future.Future[R] {
	tx := m.Begin()
	result, err := build(tx, builder)
	if err == nil && result == nil {
		err = errors.E(errors.Invalid, "transaction builder returned no result")
	}
	if err != nil {
		tx.Rollback()
		return future.Failed[R](errors.E("transaction: builder", err))
	}
	f := future.New[R]()
	tx.Commit().OnComplete(func(committed bool, err error) {
		var zero R
		switch {
		case err != nil:
			f.Complete(zero, err)
		case !committed:
			f.Complete(zero, errors.E("transaction not committed", tx.Err()))
		default:
			result.OnComplete(func(v R, err error) { f.Complete(v, err) })
		}
	})
	return f
}

func build[R any](tx *Transaction, builder func(*Transaction) (*future.Future[R], error)) (result *future.Future[R], err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error.Printf("transaction: builder panicked: %v", p)
			result, err = nil, errors.Panic(p)
		}
	}()
	return builder(tx)
}

// ExecuteOne runs a single action, with its compensator, as a
// transaction.
func ExecuteOne[T any](m *Manager, action func(ctx context.Context) (T, error), compensate func(ctx context.Context) error) *future.Future[T] {
	return Execute(m, func(tx *Transaction) (*future.Future[T], error) {
		return Add(tx, action, compensate)
	})
}
