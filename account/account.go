// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package account implements the vault's stored credentials and the
// repository that holds them.
//
// An Account keeps its software and username in the clear and its
// password as ciphertext, encrypted under a key derived from the
// master password and a per-encryption salt. Each Account owns a
// reader/writer lock guarding its fields. The lock is never held
// while deriving keys or running the cipher: operations snapshot the
// fields under the lock, do the slow work unlocked, and take the lock
// again only to swap in the result.
package account

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/grailbio/vault/crypto/encryption"
	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/log"
)

// Account is a single stored credential. Its identity is the pointer
// itself; ID is an opaque label used in logs and change events.
type Account struct {
	id uuid.UUID

	mu         sync.RWMutex
	software   string
	username   string
	ciphertext []byte
	salt       []byte
	nonce      []byte
	version    kdf.Version
	// legacySalt is set when salt was derived from software and
	// username rather than generated randomly.
	legacySalt bool
	// gen is incremented by every change to the encrypted fields.
	gen uint64
}

// sealed is the output of one encryption.
type sealed struct {
	ciphertext, salt, nonce []byte
}

func seal(version kdf.Version, master, plaintext string) (sealed, error) {
	salt, err := encryption.NewSalt()
	if err != nil {
		return sealed{}, err
	}
	nonce, err := encryption.NewNonce()
	if err != nil {
		return sealed{}, err
	}
	key := version.Derive(master, salt)
	ct, err := encryption.Encrypt(version, key, nonce, []byte(plaintext))
	if err != nil {
		return sealed{}, err
	}
	return sealed{ct, salt, nonce}, nil
}

func open(version kdf.Version, master string, ciphertext, salt, nonce []byte) (string, error) {
	key := version.Derive(master, salt)
	pt, err := encryption.Decrypt(version, key, nonce, ciphertext)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// New creates an account and immediately encrypts password under a
// fresh salt and nonce. Software and username must not be blank; the
// password may be empty. New is slow: it derives a key.
func New(version kdf.Version, master, software, username, password string) (*Account, error) {
	if blank(software) {
		return nil, errors.E(errors.Invalid, "software must not be blank")
	}
	if blank(username) {
		return nil, errors.E(errors.Invalid, "username must not be blank")
	}
	s, err := seal(version, master, password)
	if err != nil {
		return nil, errors.E("creating account", err)
	}
	return &Account{
		id:         uuid.New(),
		software:   software,
		username:   username,
		ciphertext: s.ciphertext,
		salt:       s.salt,
		nonce:      s.nonce,
		version:    version,
	}, nil
}

// ID returns the account's opaque label.
func (a *Account) ID() uuid.UUID {
	return a.id
}

// Software returns the account's software name.
func (a *Account) Software() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.software
}

// Username returns the account's username.
func (a *Account) Username() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.username
}

// Version returns the security version the password is encrypted
// under.
func (a *Account) Version() kdf.Version {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// IsLegacySalt tells whether the account's salt was derived from its
// software and username instead of being generated randomly.
func (a *Account) IsLegacySalt() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.legacySalt
}

// SetSoftware sets the account's software name. Blank names are
// ignored.
func (a *Account) SetSoftware(s string) {
	if blank(s) {
		return
	}
	a.mu.Lock()
	a.software = s
	a.mu.Unlock()
}

// SetUsername sets the account's username. Blank names are ignored.
func (a *Account) SetUsername(s string) {
	if blank(s) {
		return
	}
	a.mu.Lock()
	a.username = s
	a.mu.Unlock()
}

// RevealPassword decrypts the account's password with a key derived
// from master under version. A wrong master password, a version other
// than the one the password was encrypted under, and corrupted data
// all fail with errors.Integrity.
func (a *Account) RevealPassword(version kdf.Version, master string) (string, error) {
	a.mu.RLock()
	ct, salt, nonce := a.ciphertext, a.salt, a.nonce
	a.mu.RUnlock()
	pt, err := open(version, master, ct, salt, nonce)
	if err != nil {
		return "", errors.E("revealing password of account", a.id.String(), err)
	}
	return pt, nil
}

// SetPassword encrypts plaintext under a fresh salt and nonce with a
// key derived from master under version, and replaces the account's
// ciphertext, salt and nonce together.
func (a *Account) SetPassword(version kdf.Version, plaintext, master string) error {
	s, err := seal(version, master, plaintext)
	if err != nil {
		return errors.E("setting password of account", a.id.String(), err)
	}
	a.mu.Lock()
	a.swap(version, s)
	a.mu.Unlock()
	return nil
}

// swap must be called with a.mu held exclusively.
func (a *Account) swap(version kdf.Version, s sealed) {
	a.ciphertext, a.salt, a.nonce = s.ciphertext, s.salt, s.nonce
	a.version = version
	a.legacySalt = false
	a.gen++
}

// MigrateSecurityVersion decrypts the password under oldVersion and
// re-encrypts it under newVersion with a fresh salt and nonce.
// Accounts using a legacy derived salt are always re-salted, even
// when the versions are the same variant; other accounts are left
// untouched unless oldVersion is older than newVersion. Downgrades
// are rejected with errors.Invalid.
//
// If the account's encrypted fields change while the migration is in
// flight, the migration fails with errors.Precondition and the
// concurrent change wins.
func (a *Account) MigrateSecurityVersion(oldVersion, newVersion kdf.Version, master string) error {
	if kdf.Older(newVersion, oldVersion) {
		return errors.E(errors.Invalid, "cannot migrate from", oldVersion.Tag(), "to", newVersion.Tag())
	}
	a.mu.RLock()
	ct, salt, nonce := a.ciphertext, a.salt, a.nonce
	legacy, gen := a.legacySalt, a.gen
	a.mu.RUnlock()
	if !legacy && !kdf.Older(oldVersion, newVersion) {
		return nil
	}
	pt, err := open(oldVersion, master, ct, salt, nonce)
	if err != nil {
		return errors.E("migrating account", a.id.String(), err)
	}
	s, err := seal(newVersion, master, pt)
	if err != nil {
		return errors.E("migrating account", a.id.String(), err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return errors.E(errors.Precondition, "account", a.id.String(), "was modified during migration")
	}
	a.swap(newVersion, s)
	log.Debug.Printf("account %s: migrated %s -> %s", a.id, oldVersion.Tag(), newVersion.Tag())
	return nil
}
