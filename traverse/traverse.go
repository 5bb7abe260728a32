// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package traverse provides bounded parallel traversal of indexed
// collections. The vault uses it to decrypt many accounts at once,
// e.g., when producing a plaintext snapshot for export.
package traverse

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/log"
)

// A T is a traverser: it provides facilities for concurrently
// invoking functions that traverse collections of data.
type T struct {
	// Limit is the traverser's concurrency limit: there will be no more
	// than Limit concurrent invocations per traversal. A limit value of
	// zero (the default value) denotes no limit.
	Limit int
}

// Limit returns a traverser with limit n.
func Limit(n int) T {
	if n <= 0 {
		log.Panicf("traverse.Limit: invalid limit: %d", n)
	}
	return T{Limit: n}
}

// Parallel is the default traverser for CPU-intensive work: it limits
// the number of concurrent invocations to the runtime's available
// processors.
var Parallel = T{Limit: runtime.GOMAXPROCS(0)}

// Each invokes fn(ctx, i) for 0 <= i < n, managing concurrency and
// error propagation. Each returns when all invocations have
// completed, or after the first invocation fails, in which case the
// first error is returned; invocations not yet started are skipped
// once an error has been recorded or ctx is done. Each propagates
// panics from underlying invocations to the caller.
func (t T) Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	workers := n
	if t.Limit > 0 && t.Limit < n {
		workers = t.Limit
	}
	var (
		errs errors.Once
		wg   sync.WaitGroup
		next int64
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for errs.Err() == nil {
				if err := ctx.Err(); err != nil {
					errs.Set(errors.E("traversal", err))
					return
				}
				i := int(atomic.AddInt64(&next, 1) - 1)
				if i >= n {
					return
				}
				errs.Set(apply(ctx, fn, i))
			}
		}()
	}
	wg.Wait()
	err := errs.Err()
	if perr, ok := err.(panicErr); ok {
		panic(fmt.Sprintf("traverse child: %v\n%s", perr.v, string(perr.stack)))
	}
	return err
}

// Each performs unbounded concurrent traversal over n elements. It is
// a shorthand for (T{}).Each.
func Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	return T{}.Each(ctx, n, fn)
}

func apply(ctx context.Context, fn func(ctx context.Context, i int) error, i int) (err error) {
	defer func() {
		if perr := recover(); perr != nil {
			err = panicErr{perr, debug.Stack()}
		}
	}()
	return fn(ctx, i)
}

type panicErr struct {
	v     interface{}
	stack []byte
}

func (p panicErr) Error() string { return fmt.Sprint(p.v) }
