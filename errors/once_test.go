// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/grailbio/vault/errors"
	"github.com/stretchr/testify/require"
)

func TestOnce(t *testing.T) {
	e := errors.Once{}
	require.NoError(t, e.Err())

	e.Set(nil)
	require.NoError(t, e.Err())
	e.Set(fmt.Errorf("testerror"))
	require.EqualError(t, e.Err(), "testerror")
	e.Set(fmt.Errorf("testerror2")) // ignored
	require.EqualError(t, e.Err(), "testerror")
}

func TestOnceConcurrent(t *testing.T) {
	var (
		e  errors.Once
		wg sync.WaitGroup
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.Set(fmt.Errorf("error %d", i))
		}(i)
	}
	wg.Wait()
	require.Error(t, e.Err())
	first := e.Err()
	e.Set(fmt.Errorf("late"))
	require.Equal(t, first, e.Err())
}
