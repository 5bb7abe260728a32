// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package account

import (
	"github.com/google/uuid"
	"github.com/grailbio/vault/crypto/encryption"
	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
)

// Record is the persisted form of an Account: the serialization
// contract with the vault's storage layer.
//
// A record with an absent or empty salt was written before salts were stored; its
// salt is derived from Software and Username. A record without a
// version predates versioning and is read as kdf.Legacy.
type Record struct {
	Software   string           `json:"software"`
	Username   string           `json:"username"`
	Ciphertext encryption.Bytes `json:"password"`
	Salt       encryption.Bytes `json:"salt"`
	Nonce      encryption.Bytes `json:"nonce"`
	Version    string           `json:"securityVersion,omitempty"`
}

// FromRecord restores an account from its persisted form. The legacy
// salt of a salt-less record is derived once, here, so that later
// renames do not change it.
func FromRecord(r Record) (*Account, error) {
	if blank(r.Software) || blank(r.Username) {
		return nil, errors.E(errors.Invalid, "record has a blank software or username")
	}
	if len(r.Nonce) != encryption.NonceSize {
		return nil, errors.E(errors.Invalid, "record nonce has the wrong length")
	}
	if len(r.Salt) != 0 && len(r.Salt) != encryption.SaltSize {
		return nil, errors.E(errors.Invalid, "record salt has the wrong length")
	}
	var version kdf.Version = kdf.Legacy
	if r.Version != "" {
		var err error
		if version, err = kdf.Lookup(r.Version); err != nil {
			return nil, err
		}
	}
	a := &Account{
		id:         uuid.New(),
		software:   r.Software,
		username:   r.Username,
		ciphertext: clone(r.Ciphertext),
		salt:       clone(r.Salt),
		nonce:      clone(r.Nonce),
		version:    version,
	}
	if len(a.salt) == 0 {
		a.salt = kdf.LegacySalt(r.Software, r.Username)
		a.legacySalt = true
	}
	return a, nil
}

// Record returns the account's persisted form. A legacy derived salt
// is written out explicitly.
func (a *Account) Record() Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Record{
		Software:   a.software,
		Username:   a.username,
		Ciphertext: clone(a.ciphertext),
		Salt:       clone(a.salt),
		Nonce:      clone(a.nonce),
		Version:    a.version.Tag(),
	}
}
