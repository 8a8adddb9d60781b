package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported ledger line item categories.
type Type string

const (
	TypeTradeRealizedPnl Type = "trade_realized_pnl"
	TypeFee              Type = "fee"
	TypeFunding          Type = "funding"
	TypeTransferIn       Type = "transfer_in"
	TypeTransferOut      Type = "transfer_out"
	TypeAdjustment       Type = "adjustment"
)

// ParseType converts a stored string back into a ledger type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeTradeRealizedPnl, TypeFee, TypeFunding, TypeTransferIn, TypeTransferOut, TypeAdjustment:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown ledger type: %s", s)
	}
}

// Entry is the canonical ledger record describing a single balance delta.
// Sequence numbers are monotonic, unique, and gapless within one store.
type Entry struct {
	Sequence    uint64          `json:"sequence"`
	ID          uuid.UUID       `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Exchange    string          `json:"exchange"`
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	Type        Type            `json:"type"`
	ReferenceID string          `json:"referenceId"`
	Meta        map[string]any  `json:"meta,omitempty"`
}

// NewEntry creates an entry with a fresh id and a zero sequence. The
// sequence is assigned by the sequencer right before the batch commits.
func NewEntry(exchange, asset string, amount decimal.Decimal, entryType Type, referenceID string) Entry {
	return Entry{
		ID:          uuid.New(),
		Timestamp:   time.Now().UTC(),
		Exchange:    exchange,
		Asset:       asset,
		Amount:      amount,
		Type:        entryType,
		ReferenceID: referenceID,
	}
}
