package schema

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SignalKind describes the intent of a strategy signal.
type SignalKind string

const (
	SignalEnterLong  SignalKind = "enter_long"
	SignalEnterShort SignalKind = "enter_short"
	SignalExit       SignalKind = "exit"
	SignalFlat       SignalKind = "flat"
)

// Side maps the signal intent to an order direction. Exit signals close the
// current position, so the caller supplies the position side to invert.
func (k SignalKind) Side(position Side) Side {
	switch k {
	case SignalEnterLong:
		return SideBuy
	case SignalEnterShort:
		return SideSell
	default:
		return position.Opposite()
	}
}

// ExecutionHint selects which execution algorithm handles an approved
// signal. An empty Algorithm means the engine default.
type ExecutionHint struct {
	Algorithm string          `json:"algorithm,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// IsDefault reports whether the hint leaves routing to the engine.
func (h ExecutionHint) IsDefault() bool {
	return h.Algorithm == ""
}

// Signal is a strategy decision. It is produced once and consumed exactly
// once by the risk gate.
type Signal struct {
	ID          uuid.UUID        `json:"id"`
	Symbol      string           `json:"symbol"`
	Kind        SignalKind       `json:"kind"`
	Confidence  float64          `json:"confidence"`
	StopLoss    *decimal.Decimal `json:"stopLoss,omitempty"`
	TakeProfit  *decimal.Decimal `json:"takeProfit,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Hint        ExecutionHint    `json:"hint,omitempty"`
	GroupID     string           `json:"groupId,omitempty"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Note        string           `json:"note,omitempty"`
}

// NewSignal builds a signal with a fresh id.
func NewSignal(symbol string, kind SignalKind, at time.Time) Signal {
	return Signal{
		ID:          uuid.New(),
		Symbol:      symbol,
		Kind:        kind,
		Confidence:  1,
		GeneratedAt: at,
	}
}
