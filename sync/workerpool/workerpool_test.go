// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package workerpool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/sync/multierror"
	"github.com/grailbio/vault/sync/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoTasks(t *testing.T) {
	wp := workerpool.New(context.Background(), 10)
	assert.False(t, wp.IsShutdown())
	wp.Shutdown()
	assert.True(t, wp.IsShutdown())
	wp.Shutdown()
}

type waitTask struct {
	delay     time.Duration
	completed int64
}

func (wt *waitTask) Do(ctx context.Context) error {
	time.Sleep(wt.delay)
	atomic.AddInt64(&wt.completed, 1)
	return nil
}

func TestTaskGroupManyTasks(t *testing.T) {
	wp := workerpool.New(context.Background(), 10)
	defer wp.Shutdown()
	grp := wp.NewTaskGroup("test", nil)
	wt := waitTask{delay: time.Millisecond}
	for i := 0; i < 1000; i++ {
		require.NoError(t, grp.Enqueue(&wt))
	}
	require.NoError(t, grp.Wait())
	assert.Equal(t, int64(1000), atomic.LoadInt64(&wt.completed))
}

func TestTaskGroupErrors(t *testing.T) {
	wp := workerpool.New(context.Background(), 2)
	defer wp.Shutdown()
	grp := wp.NewTaskGroup("errors", multierror.NewMultiError(10))
	for i := 0; i < 3; i++ {
		require.NoError(t, grp.Enqueue(workerpool.TaskFunc(func(context.Context) error {
			return errors.E("failed")
		})))
	}
	require.NoError(t, grp.Enqueue(workerpool.TaskFunc(func(context.Context) error {
		panic("broken task")
	})))
	err := grp.Wait()
	require.Error(t, err)
	assert.Equal(t, 4, err.(*multierror.MultiError).Len())
}

func TestConcurrencyBound(t *testing.T) {
	const limit = 3
	wp := workerpool.New(context.Background(), limit)
	var running, peak int64
	grp := wp.NewTaskGroup("bound", nil)
	for i := 0; i < 30; i++ {
		require.NoError(t, grp.Enqueue(workerpool.TaskFunc(func(context.Context) error {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&running, -1)
			return nil
		})))
	}
	require.NoError(t, grp.Wait())
	wp.Shutdown()
	assert.True(t, peak <= limit, "peak concurrency %d exceeds %d", peak, limit)
	assert.True(t, peak > 0)
}

func TestRun(t *testing.T) {
	wp := workerpool.New(context.Background(), 2)
	f := workerpool.Run(wp, "answer", func(context.Context) (int, error) { return 42, nil })
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	f = workerpool.Run(wp, "panic", func(context.Context) (int, error) { panic("oops") })
	_, err = f.Get(context.Background())
	assert.True(t, errors.Is(errors.Internal, err), "got %v", err)

	wp.Shutdown()
	f = workerpool.Run(wp, "late", func(context.Context) (int, error) { return 1, nil })
	_, err = f.Get(context.Background())
	assert.True(t, errors.Is(errors.Unavailable, err), "got %v", err)
	assert.Error(t, wp.NewTaskGroup("late", nil).Enqueue(&waitTask{}))
}

func TestShutdownDrains(t *testing.T) {
	wp := workerpool.New(context.Background(), 1)
	var done int64
	for i := 0; i < 5; i++ {
		require.NoError(t, wp.Go("drain", func(context.Context) {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&done, 1)
		}))
	}
	wp.Shutdown()
	assert.Equal(t, int64(5), atomic.LoadInt64(&done))
}

func TestContinuationWaitsOnPool(t *testing.T) {
	ctx := context.Background()
	wp := workerpool.New(ctx, 1)
	defer wp.Shutdown()
	release := make(chan struct{})
	first := workerpool.Run(wp, "first", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	inner := make(chan int, 1)
	first.OnComplete(func(v int, _ error) {
		// Runs on the goroutine that completed first; the pool's only
		// slot must already be free for the second task to run.
		w, err := workerpool.Run(wp, "second", func(context.Context) (int, error) {
			return v + 1, nil
		}).Get(ctx)
		assert.NoError(t, err)
		inner <- w
	})
	close(release)
	select {
	case v := <-inner:
		assert.Equal(t, 2, v)
	case <-time.After(5 * time.Second):
		t.Fatal("continuation starved the pool")
	}
}

func TestBorrow(t *testing.T) {
	wp := workerpool.New(context.Background(), 3)
	defer wp.Shutdown()
	n, release := wp.Borrow(5)
	assert.Equal(t, 3, n)
	extra, none := wp.Borrow(1)
	assert.Equal(t, 0, extra)
	none()
	release()

	got, err := workerpool.Run(wp, "borrow", func(context.Context) (int, error) {
		n, release := wp.Borrow(5)
		defer release()
		return n, nil
	}).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wp := workerpool.New(ctx, 1)
	defer wp.Shutdown()
	release := make(chan struct{})
	blocker := workerpool.Run(wp, "blocker", func(context.Context) (bool, error) {
		<-release
		return true, nil
	})
	// Give the blocker time to take the only slot.
	time.Sleep(10 * time.Millisecond)
	waiting := workerpool.Run(wp, "waiting", func(context.Context) (bool, error) { return true, nil })
	cancel()
	_, err := waiting.Get(context.Background())
	assert.True(t, errors.Is(errors.Canceled, err), "got %v", err)
	close(release)
	ok, err := blocker.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
