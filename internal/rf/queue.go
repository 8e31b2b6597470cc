package rf

import (
	"context"
	"fmt"
	"sync"
)

// EdgeQueue is a fixed-capacity ring buffer decoupling the time-critical
// capture context from the decode context. The producer never blocks: when
// the queue is full the oldest unconsumed edge is dropped and the drop
// counter incremented, favouring fresh data over stale half-frames.
//
// Push and Pop preserve arrival order. The queue is safe for one producer
// and one consumer running concurrently.
type EdgeQueue struct {
	mu    sync.Mutex
	buf   []Edge
	head  int // index of the oldest edge
	size  int
	drops uint64

	// notify wakes a consumer blocked in Wait. Buffered so that a push
	// never blocks on it.
	notify chan struct{}
}

// NewEdgeQueue creates a queue holding up to capacity edges.
// Returns an error if capacity is not positive.
func NewEdgeQueue(capacity int) (*EdgeQueue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid queue capacity: %d", capacity)
	}
	return &EdgeQueue{
		buf:    make([]Edge, capacity),
		notify: make(chan struct{}, 1),
	}, nil
}

// Push enqueues an edge, dropping the oldest unconsumed edge if the queue
// is full. It never blocks and is bounded in execution time, so it is safe
// to call from an interrupt-driven capture path.
func (q *EdgeQueue) Push(e Edge) {
	q.mu.Lock()
	if q.size == len(q.buf) {
		// Overwrite the oldest entry.
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.drops++
	}
	q.buf[(q.head+q.size)%len(q.buf)] = e
	q.size++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop dequeues the oldest edge. The second return value is false if the
// queue is empty.
func (q *EdgeQueue) Pop() (Edge, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return Edge{}, false
	}

	e := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return e, true
}

// Wait blocks until the queue is non-empty or the context is done.
// Returns false if the context was cancelled.
func (q *EdgeQueue) Wait(ctx context.Context) bool {
	for {
		q.mu.Lock()
		n := q.size
		q.mu.Unlock()

		if n > 0 {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-q.notify:
		}
	}
}

// Len returns the number of edges currently queued.
func (q *EdgeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Drops returns the total number of edges dropped due to overflow.
func (q *EdgeQueue) Drops() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}
