package fetch

import (
	"sync"

	"github.com/lazercorn/anecdote"
)

// RetryQueue records failed load requests until a connectivity-restored
// signal drains them. It is append-only between drains and safe for
// concurrent use: enqueues arriving while a drain is underway land in the
// fresh queue and wait for the next signal, so each enqueue is replayed
// exactly once.
type RetryQueue struct {
	mu      sync.Mutex
	entries []anecdote.LoadRequest
}

// NewRetryQueue creates an empty queue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{}
}

// Enqueue appends a failed request.
func (q *RetryQueue) Enqueue(req anecdote.LoadRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, req)
}

// Drain atomically snapshots the queued requests in enqueue order and
// clears the queue.
func (q *RetryQueue) Drain() []anecdote.LoadRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.entries
	q.entries = nil
	return entries
}

// Len returns the number of queued requests.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
