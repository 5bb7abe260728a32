// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package traverse_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/grailbio/vault/traverse"
)

func recovered(f func()) (v interface{}) {
	defer func() { v = recover() }()
	f()
	return v
}

func TestTraverse(t *testing.T) {
	ctx := context.Background()
	list := make([]int, 5)
	err := traverse.Each(ctx, 5, func(_ context.Context, i int) error {
		list[i] += i
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := list, []int{0, 1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	expectedErr := errors.New("test error")
	err = traverse.Each(ctx, 5, func(_ context.Context, i int) error {
		if i == 3 {
			return expectedErr
		}
		return nil
	})
	if got, want := err, expectedErr; got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestTraverseLimit(t *testing.T) {
	for _, test := range []struct{ N, Limit int }{
		{1, 1},
		{10, 2},
		{1000, 5},
		{7, 100},
	} {
		var running, peak int32
		data := make([]int32, test.N)
		err := traverse.Limit(test.Limit).Each(context.Background(), test.N, func(_ context.Context, i int) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			atomic.AddInt32(&data[i], 1)
			atomic.AddInt32(&running, -1)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		for i, d := range data {
			if d != 1 {
				t.Errorf("N=%d limit=%d: element %d visited %d times", test.N, test.Limit, i, d)
			}
		}
		if int(peak) > test.Limit {
			t.Errorf("N=%d limit=%d: peak concurrency %d", test.N, test.Limit, peak)
		}
	}
}

func TestTraverseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	err := traverse.Limit(2).Each(ctx, 100, func(context.Context, int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 0 {
		t.Errorf("got %d calls after cancellation", calls)
	}
}

func TestTraversePanic(t *testing.T) {
	v := recovered(func() {
		traverse.Limit(3).Each(context.Background(), 10, func(_ context.Context, i int) error {
			if i == 4 {
				panic("bad index")
			}
			return nil
		})
	})
	s, ok := v.(string)
	if !ok || !strings.Contains(s, "traverse child: bad index") {
		t.Errorf("unexpected panic value %v", v)
	}
}

func TestTraverseEmpty(t *testing.T) {
	if err := traverse.Each(context.Background(), 0, nil); err != nil {
		t.Fatal(err)
	}
}
