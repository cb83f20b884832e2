package collector

import (
	"sync"

	"github.com/skobkin/phoenixrec/internal/store"
)

// Queue is the ordered buffer of entries waiting to be sent. It is
// unbounded and signals a single waiter through Notify.
type Queue struct {
	mu      sync.Mutex
	entries []store.Entry
	closed  bool
	notify  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends e and wakes the waiter. It returns false once the queue
// is closed.
func (q *Queue) Push(e store.Entry) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Close makes later pushes fail. Entries already queued stay available
// to Snapshot.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Snapshot returns a copy of the queued entries in order.
func (q *Queue) Snapshot() store.Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	out := make(store.Batch, len(q.entries))
	copy(out, q.entries)
	return out
}

// Remove drops the oldest n entries.
func (q *Queue) Remove(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 {
		return
	}
	if n >= len(q.entries) {
		q.entries = nil
		return
	}
	remaining := make([]store.Entry, len(q.entries)-n)
	copy(remaining, q.entries[n:])
	q.entries = remaining
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Notify fires at least once after every Push.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
