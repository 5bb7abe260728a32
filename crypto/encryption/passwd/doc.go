// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package passwd verifies the vault's master password.
//
// The master password is never stored. A Verifier holds only its
// hash, the salt the hash was computed with, and the security version
// that computed it:
//
//	salt = random(16)
//	hash = version.Derive(password, salt)
//
// and verification recomputes the hash under the stored salt and
// version and compares it in constant time. Since Derive is the same
// expensive function used to derive account keys, a brute force
// attack on the stored hash is no cheaper than one on the accounts.
//
// When the stored version is older than a target version, NeedsUpgrade
// reports true and the caller, having just verified the password,
// may Rehash it under the target.
package passwd
