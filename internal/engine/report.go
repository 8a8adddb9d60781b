package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/obs"
)

// EquityPoint is one sample of the equity curve, taken after the effects of
// an event have been applied.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
}

// Report summarizes a completed run. It is also returned on fatal errors
// with whatever was processed up to the failure.
type Report struct {
	Events         uint64          `json:"events"`
	SkippedEvents  uint64          `json:"skippedEvents"`
	Signals        uint64          `json:"signals"`
	DroppedSignals uint64          `json:"droppedSignals"`
	Orders         uint64          `json:"orders"`
	Fills          uint64          `json:"fills"`
	RealizedPnL    decimal.Decimal `json:"realizedPnl"`
	FinalEquity    decimal.Decimal `json:"finalEquity"`
	EquityCurve    []EquityPoint   `json:"equityCurve,omitempty"`

	Metrics obs.Snapshot `json:"-"`
}
