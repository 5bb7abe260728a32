// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package vault composes the vault's parts into a password manager
// session: a repository of accounts, the master password verifier,
// and the transaction manager used to change them together.
//
// A Vault is locked until Login succeeds. While unlocked, it holds the
// master password in memory and uses it for account operations.
// Operations that re-encrypt every account (changing the master
// password, upgrading on login) run as a single transaction and
// exclude all other account operations while they run. Account
// operations issued meanwhile are queued without blocking the caller.
package vault

import (
	"context"
	"sync"

	"github.com/grailbio/vault/account"
	"github.com/grailbio/vault/crypto/encryption/passwd"
	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/future"
	"github.com/grailbio/vault/log"
	"github.com/grailbio/vault/sync/ctxsync"
	"github.com/grailbio/vault/sync/workerpool"
	"github.com/grailbio/vault/transaction"
)

// ErrLocked is returned by account operations on a locked vault.
var ErrLocked = errors.E(errors.Precondition, "vault is locked")

// Vault is a password manager session.
type Vault struct {
	opts Options
	pool *workerpool.WorkerPool
	txm  *transaction.Manager
	repo *account.Repository

	// rotation is held shared by account operations, for their full
	// duration, and exclusively while every account is re-encrypted.
	// It is never awaited on a pool slot or on a caller's goroutine.
	rotation ctxsync.RWMutex

	mu       sync.Mutex
	verifier *passwd.Verifier
	master   string
	unlocked bool
}

func newVault(opts Options, verifier *passwd.Verifier) *Vault {
	pool := workerpool.New(context.Background(), opts.Concurrency)
	if !kdf.IsLatest(opts.version()) {
		log.Printf("vault: security version %s is not the latest; new passwords use it", opts.version().Tag())
	}
	return &Vault{
		opts:     opts,
		pool:     pool,
		txm:      transaction.NewManager(pool),
		repo:     account.NewRepository(pool),
		verifier: verifier,
	}
}

// New creates an empty vault protected by master. The new vault is
// unlocked.
func New(opts Options, master string) (*Vault, error) {
	verifier, err := passwd.New(opts.version(), master)
	if err != nil {
		return nil, errors.E("creating vault", err)
	}
	v := newVault(opts, verifier)
	v.master, v.unlocked = master, true
	log.Printf("vault: created, security version %s", kdf.Describe(opts.version()))
	return v, nil
}

// Open restores a vault from its persisted state. The vault is locked
// until Login succeeds.
func Open(opts Options, state passwd.State, records []account.Record) (*Vault, error) {
	verifier, err := passwd.FromState(state)
	if err != nil {
		return nil, errors.E("opening vault", err)
	}
	v := newVault(opts, verifier)
	if err := v.repo.Load(records); err != nil {
		v.pool.Shutdown()
		return nil, errors.E("opening vault", err)
	}
	log.Printf("vault: opened %d account(s)", len(records))
	return v, nil
}

// State returns the vault's persisted form. It waits for a master
// password change or upgrade in progress to finish, so it must not be
// called from a future's continuation.
func (v *Vault) State() (passwd.State, []account.Record) {
	if err := v.rotation.RLock(context.Background()); err != nil {
		log.Panicf("vault: state: %v", err)
	}
	defer v.rotation.RUnlock()
	return v.currentVerifier().State(), v.repo.Records()
}

// Close locks the vault and shuts down its worker pool, waiting for
// accepted work to finish.
func (v *Vault) Close() {
	v.Lock()
	v.txm.Shutdown()
}

// Lock forgets the master password.
func (v *Vault) Lock() {
	v.mu.Lock()
	v.master, v.unlocked = "", false
	v.mu.Unlock()
}

// Unlocked tells whether the vault holds a verified master password.
func (v *Vault) Unlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unlocked
}

func (v *Vault) session() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return "", ErrLocked
	}
	return v.master, nil
}

func (v *Vault) currentVerifier() *passwd.Verifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verifier
}

func (v *Vault) setVerifier(verifier *passwd.Verifier) {
	v.mu.Lock()
	v.verifier = verifier
	v.mu.Unlock()
}

// Login verifies master and unlocks the vault. A wrong password fails
// with errors.NotAllowed. If the vault's options ask for it, Login
// then upgrades every account and the verifier to the configured
// security version; a failed upgrade is rolled back and reported, but
// the vault stays unlocked.
func (v *Vault) Login(ctx context.Context, master string) error {
	verifier := v.currentVerifier()
	_, err := workerpool.Run(v.pool, "vault.login", func(context.Context) (struct{}, error) {
		return struct{}{}, verifier.Verify(master)
	}).Get(ctx)
	if err != nil {
		return errors.E("login", err)
	}
	v.mu.Lock()
	if v.verifier != verifier {
		v.mu.Unlock()
		return errors.E(errors.Precondition, "login: master password changed during login")
	}
	v.master, v.unlocked = master, true
	v.mu.Unlock()
	log.Debug.Printf("vault: unlocked")
	if !v.opts.UpgradeOnLogin {
		return nil
	}
	n, err := v.upgrade(ctx)
	if err != nil {
		return errors.E("login: upgrading vault", err)
	}
	if n > 0 {
		log.Printf("vault: upgraded %d account(s) to %s", n, v.opts.version().Tag())
	}
	return nil
}

// upgrade migrates the accounts and the verifier that are older than
// the configured version, or that use a legacy salt, in one
// transaction, under the session's master password. It returns the
// number of accounts migrated.
func (v *Vault) upgrade(ctx context.Context) (int, error) {
	if err := v.rotation.Lock(ctx); err != nil {
		return 0, err
	}
	defer v.rotation.Unlock()
	master, err := v.session()
	if err != nil {
		return 0, err
	}
	target := v.opts.version()
	verifier := v.currentVerifier()
	var stale []*account.Account
	for _, a := range v.repo.Accounts() {
		if a.IsLegacySalt() || kdf.Older(a.Version(), target) {
			stale = append(stale, a)
		}
	}
	if len(stale) == 0 && !verifier.NeedsUpgrade(target) {
		return 0, nil
	}
	f := transaction.Execute(v.txm, func(tx *transaction.Transaction) (*future.Future[int], error) {
		for _, a := range stale {
			if err := addMigration(tx, a, target, master); err != nil {
				return nil, err
			}
		}
		if !verifier.NeedsUpgrade(target) {
			return future.Resolved(len(stale)), nil
		}
		rehashed, err := transaction.Add(tx, func(context.Context) (int, error) {
			upgraded, err := verifier.Rehash(target, master)
			if err != nil {
				return 0, err
			}
			v.setVerifier(upgraded)
			return len(stale), nil
		}, func(context.Context) error {
			v.setVerifier(verifier)
			return nil
		})
		return rehashed, err
	})
	return waitCommitted(ctx, f)
}

// addMigration adds a step that migrates a to target. An account
// already newer than target keeps its version and is only re-salted.
func addMigration(tx *transaction.Transaction, a *account.Account, target kdf.Version, master string) error {
	var saved account.Memento
	_, err := transaction.Add(tx, func(context.Context) (*account.Account, error) {
		saved = a.CaptureState()
		to := target
		if kdf.Older(target, saved.Version()) {
			to = saved.Version()
		}
		return a, a.MigrateSecurityVersion(saved.Version(), to, master)
	}, func(context.Context) error {
		a.RestoreState(saved)
		return nil
	})
	return err
}

// waitCommitted waits for f without abandoning the transaction that
// completes it: the exclusive rotation lock must outlive the commit.
func waitCommitted[T any](ctx context.Context, f *future.Future[T]) (T, error) {
	select {
	case <-f.Done():
	case <-ctx.Done():
		log.Printf("vault: context done while committing; waiting for the transaction to finish")
	}
	return f.Get(context.Background())
}

// ChangeMasterPassword re-encrypts every account under newMaster and
// the configured security version, and replaces the verifier. Either
// every account and the verifier change, or none do. ChangeMasterPassword
// fails with errors.NotAllowed if oldMaster is wrong. If ctx is done
// before the change completes, it is rolled back. The change does not
// unlock the vault: a session that is unlocked when it completes
// continues under newMaster, and a locked one stays locked.
func (v *Vault) ChangeMasterPassword(ctx context.Context, oldMaster, newMaster string) error {
	if newMaster == "" {
		return errors.E(errors.Invalid, "new master password must not be empty")
	}
	if err := v.rotation.Lock(ctx); err != nil {
		return errors.E("changing master password", err)
	}
	defer v.rotation.Unlock()
	target := v.opts.version()
	verifier := v.currentVerifier()

	tx := v.txm.Begin()
	if _, err := transaction.Add(tx, func(context.Context) (struct{}, error) {
		return struct{}{}, verifier.Verify(oldMaster)
	}, nil); err != nil {
		return err
	}
	accounts := v.repo.Accounts()
	for _, a := range accounts {
		a := a
		var saved account.Memento
		_, err := transaction.Add(tx, func(context.Context) (*account.Account, error) {
			saved = a.CaptureState()
			pw, err := a.RevealPassword(saved.Version(), oldMaster)
			if err != nil {
				return nil, err
			}
			return a, a.SetPassword(target, pw, newMaster)
		}, func(context.Context) error {
			a.RestoreState(saved)
			return nil
		})
		if err != nil {
			return err
		}
	}
	if _, err := transaction.Add(tx, func(context.Context) (*passwd.Verifier, error) {
		next, err := passwd.New(target, newMaster)
		if err != nil {
			return nil, err
		}
		v.setVerifier(next)
		return next, nil
	}, func(context.Context) error {
		v.setVerifier(verifier)
		return nil
	}); err != nil {
		return err
	}

	commit := tx.Commit()
	select {
	case <-commit.Done():
	case <-ctx.Done():
		tx.Rollback()
	}
	ok, err := commit.Get(context.Background())
	if err != nil {
		return errors.E("changing master password", err)
	}
	if !ok {
		return errors.E("changing master password", tx.Err())
	}
	v.mu.Lock()
	if v.unlocked {
		v.master = newMaster
	}
	v.mu.Unlock()
	log.Printf("vault: master password changed; %d account(s) re-encrypted", len(accounts))
	return nil
}

// withSession runs op with the session's master password while
// holding the rotation lock shared until op's future completes. If a
// rotation holds or waits for the lock, op is started from a separate
// goroutine once it ends, and the session is read then.
func withSession[T any](v *Vault, op func(master string) *future.Future[T]) *future.Future[T] {
	if v.rotation.TryRLock() {
		return runSession(v, op)
	}
	f := future.New[T]()
	go func() {
		if err := v.rotation.RLock(context.Background()); err != nil {
			var zero T
			f.Complete(zero, err)
			return
		}
		runSession(v, op).OnComplete(func(val T, err error) { f.Complete(val, err) })
	}()
	return f
}

// runSession must be called with the rotation lock held shared; the
// returned future completes after the lock is released.
func runSession[T any](v *Vault, op func(master string) *future.Future[T]) *future.Future[T] {
	master, err := v.session()
	if err != nil {
		v.rotation.RUnlock()
		return future.Failed[T](err)
	}
	return future.Then(op(master), func(val T, err error) (T, error) {
		v.rotation.RUnlock()
		return val, err
	})
}

// Accounts returns the vault's accounts, in order.
func (v *Vault) Accounts() []*account.Account {
	return v.repo.Accounts()
}

// Subscribe registers fn to receive account change events. See
// account.Repository.Subscribe.
func (v *Vault) Subscribe(fn func(account.Event)) (cancel func()) {
	return v.repo.Subscribe(fn)
}

// Add creates a new account.
func (v *Vault) Add(software, username, password string) *future.Future[*account.Account] {
	return withSession(v, func(master string) *future.Future[*account.Account] {
		return v.repo.Add(v.opts.version(), master, software, username, password)
	})
}

// Edit replaces a's password and, when they are not blank, its names.
func (v *Vault) Edit(a *account.Account, software, username, password string) *future.Future[*account.Account] {
	return withSession(v, func(master string) *future.Future[*account.Account] {
		return v.repo.Edit(v.opts.version(), master, a, software, username, password)
	})
}

// Remove removes a from the vault.
func (v *Vault) Remove(a *account.Account) *future.Future[bool] {
	return withSession(v, func(string) *future.Future[bool] {
		return v.repo.Remove(a)
	})
}

// Reveal decrypts a's password.
func (v *Vault) Reveal(a *account.Account) *future.Future[string] {
	return withSession(v, func(master string) *future.Future[string] {
		return v.repo.RevealPassword(a.Version(), master, a)
	})
}

// Export decrypts every account.
func (v *Vault) Export() *future.Future[[]account.Plain] {
	return withSession(v, func(master string) *future.Future[[]account.Plain] {
		return v.repo.Snapshot(master)
	})
}
