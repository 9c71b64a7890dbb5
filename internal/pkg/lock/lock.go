// Package lock provides per-key serialization for user-scoped mutations and
// a lease used to keep periodic jobs on one instance at a time.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry is a mutex shared by every caller waiting on the same key.
// refs counts holders and waiters so idle entries can be dropped.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedLock serializes work per int64 key, typically a user id.
// The zero value is not usable; call NewKeyedLock.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewKeyedLock creates an empty KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{entries: make(map[int64]*entry)}
}

func (k *KeyedLock) acquireRef(key int64) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedLock) releaseRef(key int64, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Lock blocks until the key is held.
func (k *KeyedLock) Lock(key int64) {
	k.acquireRef(key).mu.Lock()
}

// Unlock releases the key. Unlocking a key that is not held is a no-op.
func (k *KeyedLock) Unlock(key int64) {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	k.releaseRef(key, e)
}

// TryLock acquires the key without blocking and reports success.
func (k *KeyedLock) TryLock(key int64) bool {
	e := k.acquireRef(key)
	if e.mu.TryLock() {
		return true
	}
	k.releaseRef(key, e)
	return false
}

// LockContext waits for the key until ctx is done or timeout elapses.
func (k *KeyedLock) LockContext(ctx context.Context, key int64, timeout time.Duration) error {
	e := k.acquireRef(key)

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-timeoutCtx.Done():
		// The waiter still gets the mutex eventually; hand it straight back.
		go func() {
			<-done
			e.mu.Unlock()
			k.releaseRef(key, e)
		}()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
}

// WithLockContext runs fn while holding key, giving up after timeout.
func (k *KeyedLock) WithLockContext(ctx context.Context, key int64, timeout time.Duration, fn func() error) error {
	if err := k.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer k.Unlock(key)
	return fn()
}
