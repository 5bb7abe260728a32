// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package passwd

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	kdf.Legacy = kdf.PBKDF2{Iterations: 1000}
	kdf.Latest = kdf.Argon2id{Time: 1, Memory: 1024, Threads: 1}
	os.Exit(m.Run())
}

func TestHash(t *testing.T) {
	pw := "any old pw"
	v, err := New(kdf.Latest, pw)
	require.NoError(t, err)
	assert.Len(t, v.hash, kdf.KeyLen)
	assert.Len(t, v.salt, 16)
	require.NoError(t, v.Verify(pw))

	err = v.Verify("oops")
	assert.True(t, errors.Is(errors.NotAllowed, err))
	expect.HasSubstr(t, err, "mismatched")

	v2, err := New(kdf.Latest, pw)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(v.salt, v2.salt), "salts must be fresh")
	assert.False(t, bytes.Equal(v.hash, v2.hash))
}

func TestEmptyPassword(t *testing.T) {
	_, err := New(kdf.Latest, "")
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestUpgrade(t *testing.T) {
	v, err := New(kdf.Legacy, "pw")
	require.NoError(t, err)
	assert.True(t, v.NeedsUpgrade(kdf.Latest))
	assert.False(t, v.NeedsUpgrade(kdf.Legacy))
	require.NoError(t, v.Verify("pw"))

	up, err := v.Rehash(kdf.Latest, "pw")
	require.NoError(t, err)
	assert.False(t, up.NeedsUpgrade(kdf.Latest))
	assert.Equal(t, "argon2id", up.Version().Tag())
	require.NoError(t, up.Verify("pw"))
	assert.Error(t, up.Verify("PW"))
}

func TestState(t *testing.T) {
	v, err := New(kdf.Latest, "pw")
	require.NoError(t, err)
	b, err := json.Marshal(v.State())
	require.NoError(t, err)

	var s State
	require.NoError(t, json.Unmarshal(b, &s))
	v2, err := FromState(s)
	require.NoError(t, err)
	require.NoError(t, v2.Verify("pw"))
	assert.Error(t, v2.Verify("nope"))

	for _, bad := range []State{
		{Hash: s.Hash, Salt: s.Salt, Version: "sha1"},
		{Hash: s.Hash[:4], Salt: s.Salt, Version: s.Version},
		{Hash: s.Hash, Version: s.Version},
	} {
		_, err := FromState(bad)
		assert.True(t, errors.Is(errors.Invalid, err), "state %+v: %v", bad, err)
	}
}
