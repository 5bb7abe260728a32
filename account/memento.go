// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package account

import (
	"github.com/grailbio/vault/crypto/kdf"
)

// Memento is an immutable snapshot of an account's state, captured
// before a risky mutation and used to restore it exactly on rollback.
// The account never references its mementos.
type Memento struct {
	software   string
	username   string
	ciphertext []byte
	salt       []byte
	nonce      []byte
	version    kdf.Version
	legacySalt bool
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

// Software returns the captured software name.
func (m Memento) Software() string { return m.software }

// Username returns the captured username.
func (m Memento) Username() string { return m.username }

// Version returns the captured security version.
func (m Memento) Version() kdf.Version { return m.version }

// CaptureState returns a snapshot of the account's current state.
func (a *Account) CaptureState() Memento {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Memento{
		software:   a.software,
		username:   a.username,
		ciphertext: clone(a.ciphertext),
		salt:       clone(a.salt),
		nonce:      clone(a.nonce),
		version:    a.version,
		legacySalt: a.legacySalt,
	}
}

// RestoreState restores the state captured in m.
func (a *Account) RestoreState(m Memento) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.software = m.software
	a.username = m.username
	a.ciphertext = clone(m.ciphertext)
	a.salt = clone(m.salt)
	a.nonce = clone(m.nonce)
	a.version = m.version
	a.legacySalt = m.legacySalt
	a.gen++
}
