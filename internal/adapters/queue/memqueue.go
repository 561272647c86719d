package queue

import (
	"sync"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering.
type MemQueue struct {
	mu   sync.Mutex
	data []ports.QueuedSnapshot
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]ports.QueuedSnapshot, 0, capacity),
		cap:  capacity,
	}
}

// Enqueue reports false when the queue is full; s is not kept then.
func (q *MemQueue) Enqueue(s ports.QueuedSnapshot) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, s)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]ports.QueuedSnapshot, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.SnapshotQueue = (*MemQueue)(nil)
