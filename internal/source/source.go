package source

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"main/internal/bus"
	"main/internal/schema"
)

// Source delivers the next market event. Replay and live sources share this
// contract so the orchestrator runs the same loop against both; io.EOF
// marks the end of the stream.
type Source interface {
	Next(ctx context.Context) (schema.MarketEvent, error)
}

// Slice replays an in-memory batch of events in timestamp order, breaking
// ties by ingest sequence. Used by backtests built from loaded candles and
// by tests.
type Slice struct {
	events []schema.MarketEvent
	idx    int
}

// NewSlice sorts the events into delivery order and returns a source over
// them. The input slice is not retained.
func NewSlice(events []schema.MarketEvent) *Slice {
	sorted := make([]schema.MarketEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].IngestSeq < sorted[j].IngestSeq
	})
	return &Slice{events: sorted}
}

// Next returns the next event or io.EOF after the last one.
func (s *Slice) Next(ctx context.Context) (schema.MarketEvent, error) {
	select {
	case <-ctx.Done():
		return schema.MarketEvent{}, ctx.Err()
	default:
	}
	if s.idx >= len(s.events) {
		return schema.MarketEvent{}, io.EOF
	}
	event := s.events[s.idx]
	s.idx++
	return event, nil
}

// StartTimer publishes a timer event to the queue on every interval until
// the context is done or the queue closes. A momentarily full queue counts
// the drop and the ticker keeps running. Stop with the returned func.
func StartTimer(ctx context.Context, queue *bus.Queue, interval time.Duration) func() {
	timerCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-timerCtx.Done():
				return
			case at := <-ticker.C:
				if err := queue.TryPublish(schema.TimerEvent(at.UTC())); err == bus.ErrQueueClosed {
					return
				}
			}
		}
	}()
	return cancel
}

// Live adapts the event queue to the source contract. A closed and drained
// queue ends the stream.
type Live struct {
	queue *bus.Queue
}

// NewLive wraps a queue fed by an exchange feed.
func NewLive(queue *bus.Queue) *Live {
	return &Live{queue: queue}
}

// Next blocks for the next queued event and returns io.EOF once the queue
// is closed and drained.
func (l *Live) Next(ctx context.Context) (schema.MarketEvent, error) {
	event, err := l.queue.Next(ctx)
	if err != nil {
		if errors.Is(err, bus.ErrQueueClosed) {
			return schema.MarketEvent{}, io.EOF
		}
		return schema.MarketEvent{}, err
	}
	return event, nil
}
