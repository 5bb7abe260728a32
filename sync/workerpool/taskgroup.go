// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package workerpool

import (
	"context"
	"sync"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/log"
	"github.com/grailbio/vault/sync/multierror"
)

// Task provides an interface for an individual task. Tasks are executed by
// workers by calling the Do function.
type Task interface {
	Do(ctx context.Context) error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context) error

// Do implements Task.
func (f TaskFunc) Do(ctx context.Context) error { return f(ctx) }

// TaskGroup groups Tasks together so that a caller can wait for a
// specific subgroup of tasks to complete. Errors returned by the tasks
// are captured in ErrHandler, which may be nil.
type TaskGroup struct {
	Name       string
	ErrHandler *multierror.MultiError
	Wp         *WorkerPool
	activity   sync.WaitGroup
}

// NewTaskGroup creates a TaskGroup for Tasks to be executed in.
func (wp *WorkerPool) NewTaskGroup(name string, errHandler *multierror.MultiError) *TaskGroup {
	return &TaskGroup{
		Name:       name,
		ErrHandler: errHandler,
		Wp:         wp,
	}
}

// Enqueue submits a Task for execution. It returns an Unavailable
// error if the pool has been shut down, in which case the task is
// not counted by Wait.
func (grp *TaskGroup) Enqueue(t Task) error {
	grp.activity.Add(1)
	err := grp.Wp.Go(grp.Name, func(ctx context.Context) {
		defer grp.activity.Done()
		grp.ErrHandler.Add(grp.do(ctx, t))
	})
	if err != nil {
		grp.activity.Done()
	}
	return err
}

func (grp *TaskGroup) do(ctx context.Context, t Task) (err error) {
	if err := ctx.Err(); err != nil {
		return errors.E(grp.Name, err)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error.Printf("workerpool: task group %s: task panicked: %v", grp.Name, p)
			err = errors.E(grp.Name, errors.Panic(p))
		}
	}()
	return t.Do(ctx)
}

// Wait blocks until all Tasks in this TaskGroup have completed and
// returns the captured errors, if any.
func (grp *TaskGroup) Wait() error {
	grp.activity.Wait()
	return grp.ErrHandler.ErrorOrNil()
}
