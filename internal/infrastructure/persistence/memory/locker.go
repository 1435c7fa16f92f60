package memory

import (
	"context"
	"sync"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// KeyedLocker is an in-process per-user mutex. Entries are dropped once nobody holds
// or waits for them, so memory stays proportional to concurrent users.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[shared.UserID]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[shared.UserID]*lockEntry)}
}

// Lock blocks until user's lock is held or ctx is done.
func (k *KeyedLocker) Lock(ctx context.Context, user shared.UserID) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[user]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		k.locks[user] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(user, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.unref(user, e)
		})
	}, nil
}

func (k *KeyedLocker) unref(user shared.UserID, e *lockEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, user)
	}
	k.mu.Unlock()
}

// Len returns the number of users currently holding or waiting for a lock.
func (k *KeyedLocker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
