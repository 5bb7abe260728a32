// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package future_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isDone[T any](f *future.Future[T]) bool {
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}

func TestCompleteOnce(t *testing.T) {
	f := future.New[int]()
	assert.False(t, isDone(f))
	assert.True(t, f.Complete(1, nil))
	assert.False(t, f.Complete(2, errors.E("late")))
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	select {
	case <-f.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestGetContext(t *testing.T) {
	f := future.New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	assert.True(t, errors.Is(errors.Canceled, err), "got %v", err)
	assert.False(t, isDone(f), "waiting must not complete the future")
}

func TestThen(t *testing.T) {
	f := future.New[int]()
	g := future.Then(f, func(v int, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return strconv.Itoa(v * 2), nil
	})
	go f.Complete(21, nil)
	v, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	failed := future.Then(future.Failed[int](errors.E(errors.Integrity, "bad tag")),
		func(v int, err error) (int, error) { return v, err })
	_, err = failed.Get(context.Background())
	assert.True(t, errors.Is(errors.Integrity, err))
}

func TestThenPanic(t *testing.T) {
	g := future.Then(future.Resolved(1), func(int, error) (int, error) {
		panic("broken continuation")
	})
	_, err := g.Get(context.Background())
	assert.True(t, errors.Is(errors.Internal, err), "got %v", err)
}

func TestOnCompleteAfterCompletion(t *testing.T) {
	var got []int
	f := future.New[int]()
	f.OnComplete(func(v int, _ error) { got = append(got, v) })
	f.Complete(7, nil)
	f.OnComplete(func(v int, _ error) { got = append(got, v+1) })
	assert.Equal(t, []int{7, 8}, got)
}
