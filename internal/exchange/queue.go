// Package exchange implements the hand-off between producers that must never
// block (capture callbacks, decoders) and a single consuming worker.
package exchange

import (
	"sync"
	"sync/atomic"
)

// Result reports what Offer did with a value.
type Result int

const (
	// Accepted means the value was queued.
	Accepted Result = iota
	// DroppedFull means the queue was at capacity and the value was dropped.
	DroppedFull
	// DroppedClosed means the queue no longer accepts values.
	DroppedClosed
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case DroppedFull:
		return "queue_full"
	case DroppedClosed:
		return "closed"
	}
	return "unknown"
}

// Stats counts offers by outcome.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Full     uint64 `json:"dropped_full"`
	Closed   uint64 `json:"dropped_closed"`
}

// Queue is a bounded multi-producer, single-consumer queue that drops the
// newest value when full. Offer never blocks. Once Close is called the
// consumer drains what is buffered and then sees the channel closed.
type Queue[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool

	accepted atomic.Uint64
	full     atomic.Uint64
	rejected atomic.Uint64
}

// NewQueue creates a queue holding up to depth values. depth < 1 is raised
// to 1.
func NewQueue[T any](depth int) *Queue[T] {
	if depth < 1 {
		depth = 1
	}
	return &Queue[T]{ch: make(chan T, depth)}
}

// Offer enqueues v without blocking.
func (q *Queue[T]) Offer(v T) Result {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.rejected.Add(1)
		return DroppedClosed
	}
	select {
	case q.ch <- v:
		q.accepted.Add(1)
		return Accepted
	default:
		q.full.Add(1)
		return DroppedFull
	}
}

// C is the consumer side. It is closed after Close once drained.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Close stops accepting values. Safe to call more than once and
// concurrently with Offer.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len is the number of buffered values.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap is the queue depth.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Stats returns the offer counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Accepted: q.accepted.Load(),
		Full:     q.full.Load(),
		Closed:   q.rejected.Load(),
	}
}
