// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package kdf_test

import (
	"bytes"
	"testing"

	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fastLegacy = kdf.PBKDF2{Iterations: 1000}
	fastLatest = kdf.Argon2id{Time: 1, Memory: 1024, Threads: 1}
)

func TestDeriveDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, 16)
	for _, v := range []kdf.Version{fastLegacy, fastLatest} {
		k1 := v.Derive("correct horse", salt)
		k2 := v.Derive("correct horse", salt)
		assert.Len(t, k1, kdf.KeyLen, v.Tag())
		assert.Equal(t, k1, k2, v.Tag())
		assert.NotEqual(t, k1, v.Derive("correct horse!", salt), v.Tag())
		assert.NotEqual(t, k1, v.Derive("correct horse", bytes.Repeat([]byte{8}, 16)), v.Tag())
	}
	assert.NotEqual(t, fastLegacy.Derive("pw", salt), fastLatest.Derive("pw", salt))
}

func TestOrdering(t *testing.T) {
	assert.True(t, kdf.Older(kdf.Legacy, kdf.Latest))
	assert.False(t, kdf.Older(kdf.Latest, kdf.Legacy))
	assert.False(t, kdf.Older(kdf.Latest, fastLatest))
	assert.True(t, kdf.IsLatest(fastLatest))
	assert.False(t, kdf.IsLatest(fastLegacy))
	assert.Equal(t, kdf.Legacy.Tag(), fastLegacy.Tag())

	vs := kdf.Versions()
	require.Len(t, vs, 2)
	for i := 1; i < len(vs); i++ {
		assert.True(t, kdf.Older(vs[i-1], vs[i]))
	}
	assert.True(t, kdf.IsLatest(vs[len(vs)-1]))
}

func TestLookup(t *testing.T) {
	for _, v := range kdf.Versions() {
		got, err := kdf.Lookup(v.Tag())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	_, err := kdf.Lookup("md5")
	assert.True(t, errors.Is(errors.Invalid, err), "got %v", err)
}

func TestAEADIVLen(t *testing.T) {
	key := make([]byte, kdf.KeyLen)
	for _, c := range []struct {
		v  kdf.Version
		iv int
	}{
		{kdf.Legacy, 16},
		{kdf.Latest, 12},
	} {
		aead, err := c.v.NewAEAD(key)
		require.NoError(t, err)
		assert.Equal(t, c.iv, aead.NonceSize(), c.v.Tag())
		assert.Equal(t, c.iv, c.v.IVLen(), c.v.Tag())
	}
}

func TestLegacySalt(t *testing.T) {
	s := kdf.LegacySalt("github", "octocat")
	assert.Len(t, s, kdf.LegacySaltLen)
	assert.Equal(t, s, kdf.LegacySalt("github", "octocat"))
	assert.NotEqual(t, s, kdf.LegacySalt("gitlab", "octocat"))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "pbkdf2-sha256(iter=1000)", kdf.Describe(fastLegacy))
	assert.Equal(t, "argon2id(t=1,m=1024,p=1)", kdf.Describe(fastLatest))
}
