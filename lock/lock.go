// Package lock serialises ledger operations per user.
//
// Local is an in-process keyed mutex for single-instance deployments.
// Redis holds the same keys in Redis so several engine instances sharing
// one store do not interleave writes for the same user.
package lock

import (
	"context"
	"slices"
	"sync"
)

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

// Locker acquires exclusive, per-key locks.
type Locker interface {
	// Lock blocks until key is held or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LockAll acquires every key in ascending order, skipping duplicates, so two
// callers locking the same pair cannot deadlock. On failure nothing stays held.
func LockAll(ctx context.Context, l Locker, keys ...string) (Unlock, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]Unlock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	for _, key := range sorted {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}

	return once(release), nil
}

func once(fn func()) Unlock {
	var o sync.Once
	return func() { o.Do(fn) }
}

// Local is a keyed mutex. Entries are reference counted and dropped once
// nobody holds or waits on them.
type Local struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{keys: make(map[string]*keyLock)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	k, ok := l.keys[key]
	if !ok {
		k = &keyLock{sem: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.sem <- struct{}{}:
		return once(func() {
			<-k.sem
			l.release(key, k)
		}), nil
	case <-ctx.Done():
		l.release(key, k)
		return nil, ctx.Err()
	}
}

func (l *Local) release(key string, k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}

// Len returns how many keys are currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
