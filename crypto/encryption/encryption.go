// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
)

const (
	// SaltSize is the size of a per-encryption salt.
	SaltSize = 16
	// NonceSize is the size of a per-encryption nonce.
	NonceSize = 16
)

var (
	randomMu     sync.Mutex
	randomSource io.Reader = rand.Reader
)

// SetRandSource sets the source of random numbers and returns the
// previous one. It is intended primarily for testing purposes.
func SetRandSource(rd io.Reader) io.Reader {
	randomMu.Lock()
	defer randomMu.Unlock()
	old := randomSource
	randomSource = rd
	return old
}

func random(n int) ([]byte, error) {
	randomMu.Lock()
	rd := randomSource
	randomMu.Unlock()
	b := make([]byte, n)
	m, err := io.ReadFull(rd, b)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("failed to read %d bytes of random data", n), err)
	}
	if m != n {
		return nil, errors.E(fmt.Sprintf("short read of random data: %d < %d", m, n))
	}
	return b, nil
}

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	return random(SaltSize)
}

// NewNonce returns a fresh random nonce.
func NewNonce() ([]byte, error) {
	return random(NonceSize)
}

// Encrypt seals plaintext under key and nonce with the AEAD of
// version v. The caller is responsible for never reusing a nonce
// with the same key.
func Encrypt(v kdf.Version, key, nonce, plaintext []byte) ([]byte, error) {
	aead, iv, err := setup(v, key, nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt opens ciphertext under key and nonce with the AEAD of
// version v. Authentication failures are reported as
// errors.Integrity.
func Decrypt(v kdf.Version, key, nonce, ciphertext []byte) ([]byte, error) {
	aead, iv, err := setup(v, key, nonce)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.Overhead() {
		return nil, errors.E(errors.Integrity, "ciphertext too short")
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, errors.E(errors.Integrity, "decrypt", err)
	}
	return plaintext, nil
}

func setup(v kdf.Version, key, nonce []byte) (aead cipher.AEAD, iv []byte, err error) {
	if len(nonce) != NonceSize {
		return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("nonce must be %d bytes, got %d", NonceSize, len(nonce)))
	}
	if len(key) != kdf.KeyLen {
		return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("key must be %d bytes, got %d", kdf.KeyLen, len(key)))
	}
	a, err := v.NewAEAD(key)
	if err != nil {
		return nil, nil, err
	}
	return a, nonce[:v.IVLen()], nil
}
