package sync

import (
	stdsync "sync"

	"github.com/iudanet/outreach/internal/models"
)

// Locks holds one drain lock per entity type. The worker holds the lock of a
// type for the whole drain; repositories use TryLock to decide whether a
// direct remote write may bypass the queue.
type Locks struct {
	locks map[models.EntityType]chan struct{}
	mu    stdsync.Mutex
}

// NewLocks creates an empty lock set
func NewLocks() *Locks {
	return &Locks{locks: make(map[models.EntityType]chan struct{})}
}

func (l *Locks) get(t models.EntityType) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[t]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[t] = ch
	}
	return ch
}

// Lock blocks until the drain lock of t is free and returns the unlock func
func (l *Locks) Lock(t models.EntityType) func() {
	ch := l.get(t)
	ch <- struct{}{}
	return func() { <-ch }
}

// TryLock acquires the drain lock of t if it is free
func (l *Locks) TryLock(t models.EntityType) (func(), bool) {
	ch := l.get(t)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}
