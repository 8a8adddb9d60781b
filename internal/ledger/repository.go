package ledger

import "errors"

var (
	// ErrSequenceOrder is returned when a batch does not continue the
	// store's sequence without a gap.
	ErrSequenceOrder = errors.New("ledger: batch breaks sequence order")
	// ErrEmptyBatch is returned when AppendBatch receives no entries.
	ErrEmptyBatch = errors.New("ledger: empty batch")
)

// Query describes which ledger entries to load from storage. Zero values
// mean "no filter". Results are returned in ascending sequence order.
type Query struct {
	Exchange      string
	Asset         string
	Type          Type
	StartSequence uint64
	EndSequence   uint64
	Limit         int
}

// Matches reports whether an entry passes the query filters.
func (q Query) Matches(e Entry) bool {
	if q.Exchange != "" && e.Exchange != q.Exchange {
		return false
	}
	if q.Asset != "" && e.Asset != q.Asset {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if q.StartSequence != 0 && e.Sequence < q.StartSequence {
		return false
	}
	if q.EndSequence != 0 && e.Sequence > q.EndSequence {
		return false
	}
	return true
}

// Repository abstracts durable ledger storage. AppendBatch is atomic: after
// a crash mid-write the store must contain either every entry of the batch
// or none of them.
type Repository interface {
	AppendBatch(entries []Entry) error
	LatestSequence() (uint64, error)
	Query(q Query) ([]Entry, error)
}

// Append persists a single entry through a batch of one.
func Append(repo Repository, entry Entry) error {
	return repo.AppendBatch([]Entry{entry})
}
