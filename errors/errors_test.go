// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/grailbio/vault/errors"
)

func TestError(t *testing.T) {
	cause := goerrors.New("cipher: message authentication failed")
	e1 := errors.E(errors.Integrity, "revealing password", cause)
	if got, want := e1.Error(), "revealing password: authentication failed: cipher: message authentication failed"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !errors.Is(errors.Integrity, e1) {
		t.Errorf("error %v should be Integrity", e1)
	}
	if !goerrors.Is(e1, cause) {
		t.Errorf("error %v should unwrap to its cause", e1)
	}
}

func TestErrorChaining(t *testing.T) {
	err := errors.E(errors.Precondition, "transaction committed")
	err = errors.E("adding operation", err)
	if got, want := err.Error(), "adding operation: invalid state:\n\ttransaction committed"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !errors.Is(errors.Precondition, err) {
		t.Errorf("error %v should inherit Precondition", err)
	}
	if errors.Is(errors.Invalid, err) {
		t.Errorf("error %v should not be Invalid", err)
	}
}

func TestContextClassification(t *testing.T) {
	for _, err := range []error{
		errors.E(context.Canceled),
		errors.E("waiting", context.DeadlineExceeded),
		errors.E("wrapped", fmt.Errorf("x: %w", context.Canceled)),
	} {
		if !errors.Is(errors.Canceled, err) {
			t.Errorf("error %v should be Canceled", err)
		}
	}
}

func TestStdInterop(t *testing.T) {
	inner := errors.E(errors.Unavailable, "executor shut down")
	outer := fmt.Errorf("submitting: %w", errors.E("add account", inner))
	var e *errors.Error
	if !goerrors.As(outer, &e) {
		t.Fatalf("expected *errors.Error in %v", outer)
	}
	if !errors.Is(errors.Unavailable, outer) {
		t.Errorf("error %v should be Unavailable", outer)
	}
}

func TestMessage(t *testing.T) {
	for _, c := range []struct {
		err     error
		message string
	}{
		{errors.E("hello"), "hello"},
		{errors.E("hello", "world"), "hello world"},
		{errors.E(errors.Canceled), "operation was canceled"},
	} {
		if got, want := c.err.Error(), c.message; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestPanic(t *testing.T) {
	err := errors.Panic("boom")
	if !errors.Is(errors.Internal, err) {
		t.Errorf("error %v should be Internal", err)
	}
	if got, want := err.Error(), "panic: boom: internal error"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	cause := goerrors.New("nil map")
	if err := errors.Panic(cause); !goerrors.Is(err, cause) {
		t.Errorf("error %v should wrap %v", err, cause)
	}
}
