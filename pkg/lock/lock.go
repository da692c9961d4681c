// Package lock is the Global Mutation Lock (C8, spec.md §4.8): a
// process-wide, non-reentrant try-acquire mutex serializing every
// operation that drives the upstream AI provider through a
// session-resume call. The upstream provider tolerates only one
// concurrent resume per account; two concurrent resumes race and can
// corrupt the session.
package lock

import (
	"sync"

	"github.com/eltmon/panopticon/pkg/perr"
)

// Lock is a single global critical section. Acquire either succeeds
// immediately or fails with *perr.LockBusyError describing the current
// holder; callers never block waiting for it (spec.md I6: "at most one
// mutation in flight, callers observe busy rather than queue").
type Lock struct {
	mu       sync.Mutex
	holderMu sync.Mutex
	holder   string // description of the operation currently holding the lock, "" if free
}

// New creates an unheld Lock.
func New() *Lock { return &Lock{} }

// TryAcquire attempts to take the lock on behalf of an operation
// described by who (e.g. "wakeWithTask(review-agent)"). On success it
// returns a release function the caller must call exactly once.
func (l *Lock) TryAcquire(who string) (release func(), err error) {
	if !l.tryLock() {
		return nil, &perr.LockBusyError{HeldBy: l.currentHolder()}
	}
	l.setHolder(who)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.clearHolder()
		l.mu.Unlock()
	}, nil
}

// tryLock wraps sync.Mutex's TryLock, which reports false rather than
// blocking when already held.
func (l *Lock) tryLock() bool { return l.mu.TryLock() }

func (l *Lock) setHolder(who string) {
	l.holderMu.Lock()
	l.holder = who
	l.holderMu.Unlock()
}

func (l *Lock) clearHolder() {
	l.holderMu.Lock()
	l.holder = ""
	l.holderMu.Unlock()
}

func (l *Lock) currentHolder() string {
	l.holderMu.Lock()
	defer l.holderMu.Unlock()
	if l.holder == "" {
		return "unknown"
	}
	return l.holder
}

// Holder returns a description of the operation currently holding the
// lock, or "" if it is free. Used by the patrol loop and API status
// endpoints to report lock contention.
func (l *Lock) Holder() string {
	l.holderMu.Lock()
	defer l.holderMu.Unlock()
	return l.holder
}
