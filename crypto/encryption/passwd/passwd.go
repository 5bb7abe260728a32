// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package passwd

import (
	"crypto/subtle"

	"github.com/grailbio/vault/crypto/encryption"
	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
)

// Verifier verifies a master password. Verifiers are immutable and
// safe for concurrent use.
type Verifier struct {
	hash    []byte
	salt    []byte
	version kdf.Version
}

// State is the persisted form of a Verifier.
type State struct {
	Hash    encryption.Bytes `json:"hash"`
	Salt    encryption.Bytes `json:"salt"`
	Version string           `json:"version"`
}

// New hashes password under version with a fresh salt.
func New(version kdf.Version, password string) (*Verifier, error) {
	if password == "" {
		return nil, errors.E(errors.Invalid, "master password must not be empty")
	}
	salt, err := encryption.NewSalt()
	if err != nil {
		return nil, errors.E("hashing master password", err)
	}
	return &Verifier{
		hash:    version.Derive(password, salt),
		salt:    salt,
		version: version,
	}, nil
}

// FromState restores a Verifier from its persisted form.
func FromState(s State) (*Verifier, error) {
	version, err := kdf.Lookup(s.Version)
	if err != nil {
		return nil, err
	}
	if len(s.Hash) != kdf.KeyLen {
		return nil, errors.E(errors.Invalid, "master password hash has the wrong length")
	}
	if len(s.Salt) == 0 {
		return nil, errors.E(errors.Invalid, "master password salt is missing")
	}
	return &Verifier{
		hash:    s.Hash.Clone(),
		salt:    s.Salt.Clone(),
		version: version,
	}, nil
}

// State returns the Verifier's persisted form.
func (v *Verifier) State() State {
	return State{
		Hash:    encryption.Bytes(v.hash).Clone(),
		Salt:    encryption.Bytes(v.salt).Clone(),
		Version: v.version.Tag(),
	}
}

// Version returns the security version that computed the hash.
func (v *Verifier) Version() kdf.Version {
	return v.version
}

// Verify checks password against the stored hash. A mismatch is
// reported as errors.NotAllowed.
func (v *Verifier) Verify(password string) error {
	h := v.version.Derive(password, v.salt)
	if subtle.ConstantTimeCompare(h, v.hash) == 0 {
		return errors.E(errors.NotAllowed, "mismatched master password")
	}
	return nil
}

// NeedsUpgrade tells whether the hash was computed by a version older
// than target.
func (v *Verifier) NeedsUpgrade(target kdf.Version) bool {
	return kdf.Older(v.version, target)
}

// Rehash returns a new Verifier for password under version, with a
// fresh salt. It does not verify password; callers verify first.
func (v *Verifier) Rehash(version kdf.Version, password string) (*Verifier, error) {
	return New(version, password)
}
