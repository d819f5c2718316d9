package usecase

import "sync"

// contextLocks serializes writers per context. Contexts never share a lock,
// and idle entries are dropped once the last holder releases.
type contextLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newContextLocks() *contextLocks {
	return &contextLocks{locks: make(map[string]*refLock)}
}

// Lock blocks until the caller owns contextID and returns the release func.
func (l *contextLocks) Lock(contextID string) func() {
	l.mu.Lock()
	rl, ok := l.locks[contextID]
	if !ok {
		rl = &refLock{}
		l.locks[contextID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, contextID)
		}
		l.mu.Unlock()
	}
}
