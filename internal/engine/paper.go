package engine

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// FillSimulator turns a placed order into a fill. Returning false means the
// order could not fill (no usable price) and is dropped.
type FillSimulator interface {
	Fill(req schema.OrderRequest, lastPrice decimal.Decimal, at time.Time) (schema.Fill, bool)
}

// PaperFiller fills every order immediately and in full. Limit orders fill
// at their limit price, market orders at the last traded price. Order ids
// are a deterministic counter so replays produce identical ledgers.
type PaperFiller struct {
	// FeeRate is charged on notional. Zero disables fees.
	FeeRate decimal.Decimal

	seq uint64
}

// NewPaperFiller creates a simulator with the given fee rate.
func NewPaperFiller(feeRate decimal.Decimal) *PaperFiller {
	return &PaperFiller{FeeRate: feeRate}
}

// Fill implements FillSimulator.
func (p *PaperFiller) Fill(req schema.OrderRequest, lastPrice decimal.Decimal, at time.Time) (schema.Fill, bool) {
	price := lastPrice
	if req.Price != nil && req.Price.Sign() > 0 {
		price = *req.Price
	}
	if price.Sign() <= 0 || req.Quantity.Sign() <= 0 {
		return schema.Fill{}, false
	}

	p.seq++
	fill := schema.Fill{
		OrderID:   "paper-" + strconv.FormatUint(p.seq, 10),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     price,
		Quantity:  req.Quantity,
		Timestamp: at,
	}
	if p.FeeRate.Sign() > 0 {
		fee := fill.Notional().Mul(p.FeeRate)
		fill.Fee = &fee
	}
	return fill, true
}
