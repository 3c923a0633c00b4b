package reconcile

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue used in tests and single-node setups
// without Redis.
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[string]Intent
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: make(map[string]Intent)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, intent *Intent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[intent.ID] = *intent
	return nil
}

func (q *MemoryQueue) Ack(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, id)
	return nil
}

func (q *MemoryQueue) Stale(_ context.Context, maxAge time.Duration) ([]Intent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var stale []Intent
	for _, intent := range q.pending {
		if intent.EnqueuedAt.Before(cutoff) {
			stale = append(stale, intent)
		}
	}
	return stale, nil
}

// Len reports the number of pending intents.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
