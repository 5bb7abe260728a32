// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package transaction implements all-or-nothing sequences of
// asynchronous steps. A Transaction is an ordered list of actions,
// each optionally paired with a compensating action that undoes it.
// Commit runs the actions in order on a worker pool; if one fails,
// the compensators of the actions that succeeded run in reverse order
// and the transaction is rolled back. Every transaction reaches
// exactly one terminal status.
//
// An action fails only by returning an error or panicking; a zero
// value is a successful result.
package transaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/future"
	"github.com/grailbio/vault/log"
	"github.com/grailbio/vault/sync/multierror"
	"github.com/grailbio/vault/sync/workerpool"
)

// Status is the state of a transaction.
type Status int

const (
	// Active transactions accept new steps and have not terminated.
	// A transaction being committed is Active until the commit
	// finishes, but no longer accepts steps.
	Active Status = iota
	// Committed transactions ran every action successfully.
	Committed
	// RolledBack transactions were abandoned or had a failed action.
	RolledBack
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type step struct {
	// run executes the action and completes its future.
	run func(ctx context.Context) error
	// abandon completes the future of an action that never ran.
	abandon func(err error)
	// compensate may be nil.
	compensate func(ctx context.Context) error
}

// Transaction is an ordered list of steps. Transactions are safe for
// concurrent use, but steps must be added before Commit.
type Transaction struct {
	pool *workerpool.WorkerPool

	mu         sync.Mutex
	status     Status
	committing bool
	aborted    bool
	steps      []*step
	cause      error
	compErrs   []error
}

// New returns an empty, active transaction whose commit runs on pool.
func New(pool *workerpool.WorkerPool) *Transaction {
	return &Transaction{pool: pool}
}

// Add appends a step to tx. The returned future is completed with the
// action's result when the step runs, or with a Canceled error if the
// transaction terminates before it does. Compensate, which may be nil,
// is called if a later step fails or the transaction is rolled back
// after the action succeeded.
//
// Add fails with errors.Precondition once tx has terminated or its
// commit has started.
func Add[T any](tx *Transaction, action func(ctx context.Context) (T, error), compensate func(ctx context.Context) error) (*future.Future[T], error) {
	if action == nil {
		return nil, errors.E(errors.Invalid, "transaction: nil action")
	}
	f := future.New[T]()
	s := &step{
		run: func(ctx context.Context) (err error) {
			defer func() {
				if p := recover(); p != nil {
					log.Error.Printf("transaction: action panicked: %v", p)
					err = errors.Panic(p)
					var zero T
					f.Complete(zero, err)
				}
			}()
			v, err := action(ctx)
			f.Complete(v, err)
			return err
		},
		abandon: func(err error) {
			var zero T
			f.Complete(zero, err)
		},
		compensate: compensate,
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != Active || tx.committing {
		return nil, errors.E(errors.Precondition, "transaction: cannot add a step to a", tx.describeLocked(), "transaction")
	}
	tx.steps = append(tx.steps, s)
	return f, nil
}

func (tx *Transaction) describeLocked() string {
	if tx.status == Active && tx.committing {
		return "committing"
	}
	return tx.status.String()
}

// Status returns the transaction's current status.
func (tx *Transaction) Status() Status {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.status
}

// Err returns the reason the transaction was rolled back, followed by
// the errors of any compensators that failed. Err returns nil for
// active and committed transactions.
func (tx *Transaction) Err() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.cause == nil {
		return nil
	}
	errs := multierror.NewMultiError(1 + len(tx.compErrs)).Add(tx.cause)
	for _, err := range tx.compErrs {
		errs.Add(err)
	}
	return errs
}

// Commit runs the transaction's actions, in order, on the worker
// pool. The returned future is true if every action succeeded and
// the transaction is Committed. It is false if an action failed or
// the transaction was rolled back concurrently; Err then reports the
// cause. Commit of a transaction that is already committing or
// terminated resolves false with errors.Precondition and has no
// effect. Commit after the pool has shut down rolls the transaction
// back and resolves false with errors.Unavailable.
func (tx *Transaction) Commit() *future.Future[bool] {
	tx.mu.Lock()
	if tx.status != Active || tx.committing {
		err := errors.E(errors.Precondition, "transaction: cannot commit a", tx.describeLocked(), "transaction")
		tx.mu.Unlock()
		return future.Failed[bool](err)
	}
	tx.committing = true
	steps := tx.steps
	tx.mu.Unlock()

	f := future.New[bool]()
	var committed bool
	err := tx.pool.GoThen("transaction.commit", func(ctx context.Context) {
		committed = tx.run(ctx, steps)
	}, func() { f.Complete(committed, nil) })
	if err != nil {
		err = errors.E("transaction: commit", err)
		tx.finish(err, steps)
		f.Complete(false, err)
	}
	return f
}

// Rollback abandons the transaction. Steps that have not run are
// completed with a Canceled error. If a commit is in progress,
// Rollback asks it to stop before its next action; the commit then
// runs the compensators of the actions that already succeeded, in
// reverse order, and resolves false. Rollback of a terminated
// transaction has no effect.
func (tx *Transaction) Rollback() {
	tx.mu.Lock()
	if tx.status != Active {
		tx.mu.Unlock()
		return
	}
	if tx.committing {
		tx.aborted = true
		tx.mu.Unlock()
		log.Debug.Printf("transaction: rollback requested during commit")
		return
	}
	tx.committing = true
	steps := tx.steps
	tx.mu.Unlock()
	tx.finish(errors.E(errors.Canceled, "transaction: rolled back"), steps)
}

// stopped returns a non-nil error if the commit must not run another
// action.
func (tx *Transaction) stopped(ctx context.Context) error {
	tx.mu.Lock()
	aborted := tx.aborted
	tx.mu.Unlock()
	if aborted {
		return errors.E(errors.Canceled, "transaction: rolled back during commit")
	}
	if err := ctx.Err(); err != nil {
		return errors.E("transaction: commit", err)
	}
	return nil
}

func (tx *Transaction) run(ctx context.Context, steps []*step) bool {
	var cause error
	for i, s := range steps {
		if err := tx.stopped(ctx); err != nil {
			cause = err
			tx.compensate(ctx, steps[:i])
			tx.finish(cause, steps[i:])
			return false
		}
		if err := s.run(ctx); err != nil {
			cause = errors.E(fmt.Sprintf("transaction: step %d of %d failed", i+1, len(steps)), err)
			log.Debug.Printf("%v", cause)
			tx.compensate(ctx, steps[:i])
			tx.finish(cause, steps[i+1:])
			return false
		}
	}
	tx.mu.Lock()
	if tx.aborted {
		tx.mu.Unlock()
		tx.compensate(ctx, steps)
		tx.finish(errors.E(errors.Canceled, "transaction: rolled back during commit"), nil)
		return false
	}
	tx.status = Committed
	tx.mu.Unlock()
	log.Debug.Printf("transaction: committed %d step(s)", len(steps))
	return true
}

// compensate runs the compensators of the executed steps in reverse
// order. A failing or panicking compensator is logged and recorded;
// the remaining compensators still run.
func (tx *Transaction) compensate(ctx context.Context, executed []*step) {
	ctx = context.WithoutCancel(ctx)
	for i := len(executed) - 1; i >= 0; i-- {
		s := executed[i]
		if s.compensate == nil {
			continue
		}
		if err := callCompensator(ctx, s.compensate); err != nil {
			err = errors.E(fmt.Sprintf("transaction: compensating step %d", i+1), err)
			log.Error.Printf("%v", err)
			tx.mu.Lock()
			tx.compErrs = append(tx.compErrs, err)
			tx.mu.Unlock()
		}
	}
}

func callCompensator(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Panic(p)
		}
	}()
	return fn(ctx)
}

// finish marks the transaction rolled back because of cause and
// completes the futures of the steps that never ran.
func (tx *Transaction) finish(cause error, pending []*step) {
	tx.mu.Lock()
	tx.status = RolledBack
	tx.cause = cause
	tx.mu.Unlock()
	abandoned := errors.E(errors.Canceled, "transaction: step not run", cause)
	for _, s := range pending {
		s.abandon(abandoned)
	}
	log.Debug.Printf("transaction: rolled back: %v", cause)
}
