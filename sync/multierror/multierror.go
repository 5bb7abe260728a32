// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package multierror

import (
	"fmt"
	"strings"
	"sync"
)

// MultiError is a mechanism for capturing errors from parallel
// goroutines, or from a sequence of best-effort steps that must all
// run regardless of earlier failures (e.g., the compensating actions
// of a rolled back transaction). Usage:
//
//	errs := multierror.NewMultiError(3)
//	for _, step := range steps {
//		errs.Add(step())
//	}
//	return errs.ErrorOrNil()
//
// At most max errors are retained; the rest are counted.
type MultiError struct {
	mu    sync.Mutex
	errs  []error
	count int64
}

// NewMultiError creates a new MultiError that retains up to max errors.
func NewMultiError(max int) *MultiError {
	return &MultiError{errs: make([]error, 0, max)}
}

func (me *MultiError) add(err error) {
	if len(me.errs) == cap(me.errs) {
		me.count++
		return
	}
	me.errs = append(me.errs, err)
}

// Add captures an error and adds it to the MultiError. Nil errors and
// nil receivers are ignored. Add returns its receiver so that calls
// may be chained.
func (me *MultiError) Add(err error) *MultiError {
	if err == nil || me == nil {
		return me
	}
	if multi, ok := err.(*MultiError); ok {
		errs, count := multi.snapshot()
		me.mu.Lock()
		for _, e := range errs {
			me.add(e)
		}
		me.count += count
		me.mu.Unlock()
		return me
	}
	me.mu.Lock()
	me.add(err)
	me.mu.Unlock()
	return me
}

func (me *MultiError) snapshot() ([]error, int64) {
	me.mu.Lock()
	defer me.mu.Unlock()
	return append([]error(nil), me.errs...), me.count
}

// Errors returns the retained errors.
func (me *MultiError) Errors() []error {
	if me == nil {
		return nil
	}
	errs, _ := me.snapshot()
	return errs
}

// Len returns the total number of errors added, retained or not.
func (me *MultiError) Len() int {
	if me == nil {
		return 0
	}
	errs, count := me.snapshot()
	return len(errs) + int(count)
}

// Error returns a string version of the MultiError. This implements the error
// interface.
func (me *MultiError) Error() string {
	if me == nil {
		return ""
	}
	errs, count := me.snapshot()
	switch len(errs) {
	case 0:
		return ""
	case 1:
		if count == 0 {
			return errs[0].Error()
		}
	}
	s := make([]string, len(errs))
	for i, e := range errs {
		s[i] = e.Error()
	}
	joined := strings.Join(s, "\n")
	if count == 0 {
		return fmt.Sprintf("[%s]", joined)
	}
	return fmt.Sprintf("[%s] [plus %d other error(s)]", joined, count)
}

// ErrorOrNil returns nil if no errors were captured, itself otherwise.
func (me *MultiError) ErrorOrNil() error {
	if me == nil {
		return nil
	}
	if me.Len() == 0 {
		return nil
	}
	return me
}

// Unwrap returns the retained errors, so that errors.Is and errors.As
// from package "errors" inspect each of them.
func (me *MultiError) Unwrap() []error {
	return me.Errors()
}
