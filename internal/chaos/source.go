// Package chaos perturbs an event stream to rehearse the runtime's fault
// handling: dropped packets, duplicated deliveries, and arrival reordering.
// All perturbation is driven by a seeded generator so a chaos run is
// reproducible.
package chaos

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"main/internal/schema"
	"main/internal/source"
)

// Config controls chaos injection behavior.
type Config struct {
	Seed          int64         `json:"seed"`
	DropRate      float64       `json:"dropRate"`
	DuplicateRate float64       `json:"duplicateRate"`
	ReorderWindow int           `json:"reorderWindow"`
	MaxDelay      time.Duration `json:"-"`
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicateRate must be between 0 and 1")
	}
	if c.ReorderWindow < 0 {
		return fmt.Errorf("reorderWindow must be >= 0")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Enabled reports whether any perturbation is configured.
func (c Config) Enabled() bool {
	return c.DropRate > 0 || c.DuplicateRate > 0 || c.ReorderWindow > 1 || c.MaxDelay > 0
}

// Source wraps an event source and applies chaos rules to its stream.
type Source struct {
	cfg     Config
	rng     *rand.Rand
	inner   source.Source
	queue   []schema.MarketEvent
	pending []schema.MarketEvent
	eof     bool
}

// Wrap decorates a source with chaos injection.
func Wrap(inner source.Source, cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Source{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		inner: inner,
	}, nil
}

// Next returns the next perturbed event. The reorder window buffers events
// and releases a random one once full; remaining buffered events flush in
// random order after the inner source ends.
func (s *Source) Next(ctx context.Context) (schema.MarketEvent, error) {
	for {
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue = s.queue[1:]
			return event, nil
		}

		if s.eof {
			if len(s.pending) == 0 {
				return schema.MarketEvent{}, io.EOF
			}
			s.queue = append(s.queue, s.release()...)
			continue
		}

		event, err := s.inner.Next(ctx)
		if err == io.EOF {
			s.eof = true
			continue
		}
		if err != nil {
			return schema.MarketEvent{}, err
		}

		if s.cfg.DropRate > 0 && s.rng.Float64() < s.cfg.DropRate {
			continue
		}
		event = s.applyDelay(event)

		if s.cfg.ReorderWindow <= 1 {
			s.queue = append(s.queue, s.applyDuplicate(event)...)
			continue
		}
		s.pending = append(s.pending, event)
		if len(s.pending) >= s.cfg.ReorderWindow {
			s.queue = append(s.queue, s.release()...)
		}
	}
}

// release pops a random buffered event and applies duplication to it.
func (s *Source) release() []schema.MarketEvent {
	idx := s.rng.Intn(len(s.pending))
	event := s.pending[idx]
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	return s.applyDuplicate(event)
}

func (s *Source) applyDuplicate(event schema.MarketEvent) []schema.MarketEvent {
	out := []schema.MarketEvent{event}
	if s.cfg.DuplicateRate > 0 && s.rng.Float64() < s.cfg.DuplicateRate {
		out = append(out, event)
	}
	return out
}

func (s *Source) applyDelay(event schema.MarketEvent) schema.MarketEvent {
	if s.cfg.MaxDelay <= 0 {
		return event
	}
	delay := time.Duration(s.rng.Int63n(s.cfg.MaxDelay.Nanoseconds() + 1))
	if delay == 0 {
		return event
	}
	event.Timestamp = event.Timestamp.Add(delay)
	return event
}
