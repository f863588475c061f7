package service

import "sync"

// BatchLocks serializes mutating operations per batch: at most one mutation
// in flight per batch id, while different batches proceed in parallel.
// Reads that need a consistent snapshot take the same lock. The approval and
// workflow services share one instance so their mutations never interleave.
type BatchLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBatchLocks creates an empty lock set
func NewBatchLocks() *BatchLocks {
	return &BatchLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given batch and returns it; the caller
// must Unlock it when the mutation is committed.
func (l *BatchLocks) acquire(batchID string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[batchID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[batchID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}
