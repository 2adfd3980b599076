package application

import "sync"

// prLocks is a keyed mutex. Holding the lock for "owner/repo#N" makes the
// eligibility check, the GitHub write and the store write for that PR one
// critical section, shared by the poller and every human confirmation path.
type prLocks struct {
	mu    sync.Mutex
	locks map[string]*prLock
}

type prLock struct {
	mu   sync.Mutex
	refs int
}

func newPRLocks() *prLocks {
	return &prLocks{locks: make(map[string]*prLock)}
}

// lock blocks until the key is free and returns the matching unlock func.
// Entries are removed once no goroutine holds or waits on them.
func (l *prLocks) lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &prLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// size returns the number of keys currently tracked.
func (l *prLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
