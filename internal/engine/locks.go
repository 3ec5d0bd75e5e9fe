package engine

import "sync"

// accountLocks hands out one mutex per account id. Mutations on the same
// account are linearized; different accounts never contend. Entries are
// reference-counted and dropped when the last holder releases, so the map
// does not grow with the account population.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

// Acquire blocks until the caller holds the lock for id and returns the
// release function.
func (l *accountLocks) Acquire(id string) func() {
	l.mu.Lock()
	al, ok := l.locks[id]
	if !ok {
		al = &accountLock{}
		l.locks[id] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()

	return func() {
		al.mu.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
