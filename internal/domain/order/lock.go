package order

import "sync"

// userLocks serializes order mutation per user within this process.
// Concurrent checkout requests from the same user would otherwise race on
// find-or-create of the open order; the partial unique index on open orders
// is the database-level backstop for multi-instance deployments.
type userLocks struct {
	mus sync.Map // userID -> *sync.Mutex
}

// lock acquires the per-user mutex and returns its unlock func.
func (l *userLocks) lock(userID string) func() {
	v, _ := l.mus.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
