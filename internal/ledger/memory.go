package ledger

import "sync"

// MemoryRepository is a deterministic in-process store used by backtests
// and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRepository creates an empty memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// AppendBatch stores the entries. The batch must continue the store's
// sequence without gaps.
func (r *MemoryRepository) AppendBatch(entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := uint64(1)
	if n := len(r.entries); n > 0 {
		next = r.entries[n-1].Sequence + 1
	}
	for i, entry := range entries {
		if entry.Sequence != next+uint64(i) {
			return ErrSequenceOrder
		}
	}
	r.entries = append(r.entries, entries...)
	return nil
}

// LatestSequence returns the highest persisted sequence, zero when empty.
func (r *MemoryRepository) LatestSequence() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return 0, nil
	}
	return r.entries[len(r.entries)-1].Sequence, nil
}

// Query returns matching entries in sequence order.
func (r *MemoryRepository) Query(q Query) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, entry := range r.entries {
		if !q.Matches(entry) {
			continue
		}
		out = append(out, entry)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
