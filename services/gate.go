package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
)

// EntityGate serializes fetch runs per target. Acquisition never waits: a
// second run against a busy target fails fast with ErrExecutionConflict.
type EntityGate struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewEntityGate() *EntityGate {
	return &EntityGate{locks: map[uuid.UUID]*sync.Mutex{}}
}

// TryAcquire claims the target and returns its release func, or
// ErrExecutionConflict when a run is already in flight.
func (g *EntityGate) TryAcquire(id uuid.UUID) (func(), error) {
	g.mu.Lock()
	lock, ok := g.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[id] = lock
	}
	g.mu.Unlock()

	if !lock.TryLock() {
		return nil, models.ErrExecutionConflict
	}
	return lock.Unlock, nil
}
