// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package encryption provides the vault's authenticated cipher.
//
// Every encryption uses a fresh 16-byte salt, from which the
// encryption key is derived (see package kdf), and a fresh 16-byte
// nonce. The security version determines how many of the nonce bytes
// the AEAD consumes: AES-GCM variants use all 128 bits as the IV,
// ChaCha20-Poly1305 variants use the leading 96 bits.
//
// Decryption under the wrong key, with the wrong nonce, or of a
// tampered ciphertext fails with an errors.Integrity error. The
// package never distinguishes a wrong password from tampering.
//
// The persisted format of a secret is the tuple
//
//	(version tag, salt, nonce, ciphertext || tag)
//
// with byte strings hex encoded in JSON (see Bytes).
package encryption
