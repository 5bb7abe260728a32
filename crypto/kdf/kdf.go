// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package kdf defines the vault's security versions. A security
// version is a closed, ordered set of algorithm variants; each variant
// fixes the password-based key derivation function, its cost
// parameters, and the AEAD used with the keys it derives. Derive is
// used both to hash the master password for verification and to
// derive per-account encryption keys.
//
// The variants, oldest first:
//
//	PBKDF2    PBKDF2-HMAC-SHA256, 310000 iterations; AES-256-GCM with a 128-bit IV
//	Argon2id  Argon2id, t=3, m=64MiB, p=4; ChaCha20-Poly1305 with a 96-bit IV
//
// Argon2id is the latest. Derivation is intentionally slow and must
// never run on a latency-sensitive goroutine.
package kdf

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"strconv"

	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/log"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// KeyLen is the length of every derived key and password hash.
const KeyLen = 32

// LegacySaltLen is the length of a salt produced by LegacySalt.
const LegacySaltLen = 16

// Version is a security version. The set of implementations is
// closed: only the variants declared in this package satisfy it.
type Version interface {
	// Tag is the version's persisted name.
	Tag() string
	// Ordinal orders versions: older versions have smaller ordinals.
	Ordinal() int
	// Derive derives KeyLen bytes from secret and salt.
	Derive(secret string, salt []byte) []byte
	// NewAEAD returns the authenticated cipher keyed by key.
	NewAEAD(key []byte) (cipher.AEAD, error)
	// IVLen is the number of leading nonce bytes the AEAD consumes.
	IVLen() int

	version()
}

// PBKDF2 is the legacy variant.
type PBKDF2 struct {
	Iterations int
}

// Argon2id is the current variant.
type Argon2id struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

var (
	// Legacy is the PBKDF2 variant with its default parameters.
	Legacy = PBKDF2{Iterations: 310000}
	// Latest is the Argon2id variant with its default parameters.
	Latest Version = Argon2id{Time: 3, Memory: 64 * 1024, Threads: 4}
)

// Tag implements Version.
func (PBKDF2) Tag() string { return "pbkdf2-sha256" }

// Ordinal implements Version.
func (PBKDF2) Ordinal() int { return 1 }

// Derive implements Version.
func (v PBKDF2) Derive(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, v.Iterations, KeyLen, sha256.New)
}

// NewAEAD implements Version.
func (PBKDF2) NewAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.E(errors.Invalid, "aes key", err)
	}
	return cipher.NewGCMWithNonceSize(block, 16)
}

// IVLen implements Version.
func (PBKDF2) IVLen() int { return 16 }

func (PBKDF2) version() {}

// Tag implements Version.
func (Argon2id) Tag() string { return "argon2id" }

// Ordinal implements Version.
func (Argon2id) Ordinal() int { return 2 }

// Derive implements Version.
func (v Argon2id) Derive(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, v.Time, v.Memory, v.Threads, KeyLen)
}

// NewAEAD implements Version.
func (Argon2id) NewAEAD(key []byte) (cipher.AEAD, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.E(errors.Invalid, "chacha20poly1305 key", err)
	}
	return aead, nil
}

// IVLen implements Version.
func (Argon2id) IVLen() int { return chacha20poly1305.NonceSize }

func (Argon2id) version() {}

// Versions returns the default instance of every variant, oldest first.
func Versions() []Version {
	return []Version{Legacy, Latest}
}

// Lookup returns the default instance of the variant with the given
// persisted tag.
func Lookup(tag string) (Version, error) {
	for _, v := range Versions() {
		if v.Tag() == tag {
			return v, nil
		}
	}
	return nil, errors.E(errors.Invalid, "unknown security version", tag)
}

// Older tells whether a predates b.
func Older(a, b Version) bool {
	return a.Ordinal() < b.Ordinal()
}

// IsLatest tells whether v is of the latest variant.
func IsLatest(v Version) bool {
	return v.Ordinal() == Latest.Ordinal()
}

// Describe returns a log-friendly description of v and its parameters.
func Describe(v Version) string {
	switch v := v.(type) {
	case PBKDF2:
		return v.Tag() + "(iter=" + strconv.Itoa(v.Iterations) + ")"
	case Argon2id:
		return v.Tag() + "(t=" + strconv.Itoa(int(v.Time)) + ",m=" + strconv.Itoa(int(v.Memory)) + ",p=" + strconv.Itoa(int(v.Threads)) + ")"
	default:
		log.Panicf("kdf: unknown security version %T", v)
		return ""
	}
}

// LegacySalt returns the deterministic salt of accounts persisted
// before salts were stored: the leading bytes of SHA-256 over the
// account's software and username. It is weak (it is neither secret
// nor unique per encryption) and exists only so such accounts can be
// decrypted and migrated.
func LegacySalt(software, username string) []byte {
	sum := sha256.Sum256([]byte(software + username))
	return sum[:LegacySaltLen]
}
