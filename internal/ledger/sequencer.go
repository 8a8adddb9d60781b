package ledger

import "sync/atomic"

// Sequencer allocates the monotonic, gapless sequence numbers that make
// ledger replay deterministic. It is the single source of the next value
// for its store.
type Sequencer struct {
	counter atomic.Uint64
}

// NewSequencer creates a sequencer that continues after last.
func NewSequencer(last uint64) *Sequencer {
	s := &Sequencer{}
	s.counter.Store(last)
	return s
}

// BootstrapSequencer seeds a sequencer from the store's persisted tail so a
// crash-recovered process resumes without collision or gap.
func BootstrapSequencer(repo Repository) (*Sequencer, error) {
	last, err := repo.LatestSequence()
	if err != nil {
		return nil, err
	}
	return NewSequencer(last), nil
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.counter.Add(1)
}

// Current returns the most recently issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.counter.Load()
}
