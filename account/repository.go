// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package account

import (
	"context"
	"sync"

	"github.com/grailbio/vault/crypto/kdf"
	"github.com/grailbio/vault/errors"
	"github.com/grailbio/vault/future"
	"github.com/grailbio/vault/log"
	"github.com/grailbio/vault/sync/multierror"
	"github.com/grailbio/vault/sync/workerpool"
	"github.com/grailbio/vault/traverse"
)

// EventKind is the kind of a repository change.
type EventKind int

const (
	// Added is sent after an account is appended.
	Added EventKind = iota
	// Edited is sent after an account is changed by Edit.
	Edited
	// Removed is sent after an account is removed.
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Edited:
		return "edited"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes a change to a repository.
type Event struct {
	Kind    EventKind
	Account *Account
}

// Plain is a decrypted account, as consumed by exporters.
type Plain struct {
	Software string
	Username string
	Password string
}

// Repository is an ordered collection of accounts. Its operations run
// asynchronously on a shared worker pool and return futures; they may
// complete on any goroutine.
//
// Locking: the repository lock guards membership and is always
// acquired before any account lock. Account work (key derivation,
// encryption) happens outside the repository lock, and no code holding
// an account lock calls back into the repository.
type Repository struct {
	pool *workerpool.WorkerPool

	mu       sync.RWMutex
	accounts []*Account

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewRepository returns an empty repository whose work runs on pool.
func NewRepository(pool *workerpool.WorkerPool) *Repository {
	return &Repository{pool: pool, subs: make(map[int]func(Event))}
}

// Load appends accounts restored from records. Load validates every
// record before appending any of them.
func (r *Repository) Load(records []Record) error {
	loaded := make([]*Account, len(records))
	for i, rec := range records {
		a, err := FromRecord(rec)
		if err != nil {
			return errors.E("loading record", err)
		}
		loaded[i] = a
	}
	r.mu.Lock()
	r.accounts = append(r.accounts, loaded...)
	r.mu.Unlock()
	return nil
}

// Accounts returns a read-only snapshot of the repository's accounts,
// in order.
func (r *Repository) Accounts() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Account(nil), r.accounts...)
}

// Len returns the number of accounts.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// Contains tells whether a is a current member of the repository.
func (r *Repository) Contains(a *Account) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(a) >= 0
}

func (r *Repository) indexLocked(a *Account) int {
	for i, b := range r.accounts {
		if a == b {
			return i
		}
	}
	return -1
}

// Subscribe registers fn to receive change events. Events are
// delivered synchronously on the goroutine that performed the change,
// after the change is visible; fn must not block. The returned
// function cancels the subscription.
func (r *Repository) Subscribe(fn func(Event)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Repository) notify(kind EventKind, a *Account) {
	r.subMu.Lock()
	subs := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()
	for _, fn := range subs {
		fn(Event{Kind: kind, Account: a})
	}
}

// Add creates and encrypts a new account and appends it to the
// repository.
func (r *Repository) Add(version kdf.Version, master, software, username, password string) *future.Future[*Account] {
	return workerpool.Run(r.pool, "account.add", func(context.Context) (*Account, error) {
		a, err := New(version, master, software, username, password)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.accounts = append(r.accounts, a)
		r.mu.Unlock()
		log.Debug.Printf("repository: added account %s", a.id)
		r.notify(Added, a)
		return a, nil
	})
}

// Edit re-encrypts a's password and updates its names in place. Blank
// names are left unchanged. Edit fails with errors.Invalid if a is not
// a member of the repository, either when Edit is called or when its
// task starts. The password is replaced before the names, so a failed
// encryption leaves a untouched.
func (r *Repository) Edit(version kdf.Version, master string, a *Account, software, username, password string) *future.Future[*Account] {
	if !r.Contains(a) {
		return future.Failed[*Account](errors.E(errors.Invalid, "edit: account is not in the repository"))
	}
	return workerpool.Run(r.pool, "account.edit", func(context.Context) (*Account, error) {
		if !r.Contains(a) {
			return nil, errors.E(errors.Invalid, "edit: account was removed from the repository")
		}
		if err := a.SetPassword(version, password, master); err != nil {
			return nil, err
		}
		a.SetSoftware(software)
		a.SetUsername(username)
		if !r.Contains(a) {
			log.Debug.Printf("repository: account %s removed while being edited", a.id)
			return a, nil
		}
		log.Debug.Printf("repository: edited account %s", a.id)
		r.notify(Edited, a)
		return a, nil
	})
}

// Remove removes a from the repository. It fails immediately with
// errors.Invalid if a is not a member; otherwise the future tells
// whether this call removed it.
func (r *Repository) Remove(a *Account) *future.Future[bool] {
	if !r.Contains(a) {
		return future.Failed[bool](errors.E(errors.Invalid, "remove: account is not in the repository"))
	}
	return workerpool.Run(r.pool, "account.remove", func(context.Context) (bool, error) {
		r.mu.Lock()
		i := r.indexLocked(a)
		if i < 0 {
			r.mu.Unlock()
			return false, nil
		}
		accounts := make([]*Account, 0, len(r.accounts)-1)
		accounts = append(accounts, r.accounts[:i]...)
		r.accounts = append(accounts, r.accounts[i+1:]...)
		r.mu.Unlock()
		log.Debug.Printf("repository: removed account %s", a.id)
		r.notify(Removed, a)
		return true, nil
	})
}

// RevealPassword decrypts a's password. It fails immediately with
// errors.Invalid if a is not a member of the repository.
func (r *Repository) RevealPassword(version kdf.Version, master string, a *Account) *future.Future[string] {
	if !r.Contains(a) {
		return future.Failed[string](errors.E(errors.Invalid, "reveal: account is not in the repository"))
	}
	return workerpool.Run(r.pool, "account.reveal", func(context.Context) (string, error) {
		return a.RevealPassword(version, master)
	})
}

// ForEachAsync dispatches fn once per account, each as its own task
// on the worker pool. The set of accounts is fixed when ForEachAsync
// is called. The returned group may be waited on by callers that need
// to know when every task has completed; errors from fn are logged
// and reported by the group's Wait.
func (r *Repository) ForEachAsync(fn func(ctx context.Context, a *Account) error) (*workerpool.TaskGroup, error) {
	accounts := r.Accounts()
	grp := r.pool.NewTaskGroup("account.foreach", multierror.NewMultiError(len(accounts)))
	for _, a := range accounts {
		a := a
		err := grp.Enqueue(workerpool.TaskFunc(func(ctx context.Context) error {
			if err := fn(ctx, a); err != nil {
				log.Error.Printf("repository: foreach: account %s: %v", a.id, err)
				return err
			}
			return nil
		}))
		if err != nil {
			return grp, err
		}
	}
	return grp, nil
}

// Snapshot decrypts every account, each under its own security
// version, and returns the plaintexts in repository order. Decryption
// runs within a single pool task so that it never waits on other pool
// tasks; it is parallelized over the task's own slot and whatever idle
// slots the pool lends it.
func (r *Repository) Snapshot(master string) *future.Future[[]Plain] {
	return workerpool.Run(r.pool, "account.snapshot", func(ctx context.Context) ([]Plain, error) {
		accounts := r.Accounts()
		plains := make([]Plain, len(accounts))
		extra, release := r.pool.Borrow(len(accounts) - 1)
		defer release()
		err := traverse.Limit(1+extra).Each(ctx, len(accounts), func(_ context.Context, i int) error {
			a := accounts[i]
			m := a.CaptureState()
			pw, err := open(m.version, master, m.ciphertext, m.salt, m.nonce)
			if err != nil {
				return errors.E("revealing password of account", a.id.String(), err)
			}
			plains[i] = Plain{Software: m.software, Username: m.username, Password: pw}
			return nil
		})
		if err != nil {
			return nil, errors.E("snapshot", err)
		}
		return plains, nil
	})
}

// Records returns the persisted form of every account, in order.
func (r *Repository) Records() []Record {
	accounts := r.Accounts()
	records := make([]Record, len(accounts))
	for i, a := range accounts {
		records[i] = a.Record()
	}
	return records
}
