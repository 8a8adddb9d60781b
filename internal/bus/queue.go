package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded, non-blocking market event queue. Producers stamp
// arrival order through the ingest sequence so consumers can break
// timestamp ties deterministically.
type Queue struct {
	ch        chan schema.MarketEvent
	closed    uint32
	ingestSeq atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan schema.MarketEvent, capacity)}
}

// TryPublish stamps the event with the next ingest sequence and enqueues it
// without blocking. A full queue counts the drop and returns ErrQueueFull.
func (q *Queue) TryPublish(event schema.MarketEvent) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	event.IngestSeq = q.ingestSeq.Add(1)
	select {
	case q.ch <- event:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns the number of events rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops the queue from accepting new events. Buffered events remain
// readable until drained.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Next blocks until an event arrives, the queue drains after close, or the
// context is done. A closed and drained queue returns ErrQueueClosed.
func (q *Queue) Next(ctx context.Context) (schema.MarketEvent, error) {
	select {
	case <-ctx.Done():
		return schema.MarketEvent{}, ctx.Err()
	case event, ok := <-q.ch:
		if !ok {
			return schema.MarketEvent{}, ErrQueueClosed
		}
		return event, nil
	}
}
