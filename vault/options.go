// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package vault

import (
	"flag"

	"github.com/grailbio/vault/crypto/kdf"
)

// Options configures a Vault.
type Options struct {
	// Concurrency bounds the number of vault tasks running at once.
	// Non-positive values select workerpool.DefaultConcurrency.
	Concurrency int
	// Version is the security version new and re-encrypted passwords
	// are sealed under. Nil selects kdf.Latest.
	Version kdf.Version
	// UpgradeOnLogin migrates every account and the master password
	// verifier to Version when a login succeeds.
	UpgradeOnLogin bool
}

// DefaultOptions are the options used by the vault command line.
var DefaultOptions = Options{UpgradeOnLogin: true}

func (o Options) version() kdf.Version {
	if o.Version == nil {
		return kdf.Latest
	}
	return o.Version
}

// AddFlags registers the vault's flags, bound to o, with the provided
// flag set.
func (o *Options) AddFlags(fs *flag.FlagSet) {
	fs.IntVar(&o.Concurrency, "vault.concurrency", o.Concurrency, "maximum number of concurrent vault tasks; 0 selects a default based on GOMAXPROCS")
	fs.Var((*versionFlag)(o), "vault.security-version", "security version used to encrypt passwords (pbkdf2-sha256, argon2id)")
	fs.BoolVar(&o.UpgradeOnLogin, "vault.upgrade-on-login", o.UpgradeOnLogin, "re-encrypt accounts under the configured security version after login")
}

type versionFlag Options

func (f *versionFlag) String() string {
	if f == nil {
		return ""
	}
	return Options(*f).version().Tag()
}

func (f *versionFlag) Set(tag string) error {
	v, err := kdf.Lookup(tag)
	if err != nil {
		return err
	}
	f.Version = v
	return nil
}

// Get implements flag.Getter.
func (f *versionFlag) Get() interface{} {
	return Options(*f).version()
}
