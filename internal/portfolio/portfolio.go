package portfolio

import (
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Position tracks a signed quantity and its volume-weighted average cost.
// Qty is positive for longs and negative for shorts; AvgCost is zero while
// the position is flat.
type Position struct {
	Qty     decimal.Decimal `json:"qty"`
	AvgCost decimal.Decimal `json:"avgCost"`
}

// IsFlat reports whether the position quantity is zero.
func (p Position) IsFlat() bool {
	return p.Qty.IsZero()
}

// Snapshot is the account state the orchestrator mutates between events.
// Cash is the quote balance; Equity is cash plus mark value of open
// positions at their last fill price. All mutation goes through ApplyFill.
type Snapshot struct {
	Cash      decimal.Decimal
	positions map[string]Position
	lastPrice map[string]decimal.Decimal
}

// NewSnapshot creates a snapshot with the given starting cash balance.
func NewSnapshot(cash decimal.Decimal) *Snapshot {
	return &Snapshot{
		Cash:      cash,
		positions: make(map[string]Position),
		lastPrice: make(map[string]decimal.Decimal),
	}
}

// Position returns the current position for a symbol.
func (s *Snapshot) Position(symbol string) Position {
	return s.positions[symbol]
}

// Symbols returns the number of symbols with a non-flat position.
func (s *Snapshot) Symbols() int {
	count := 0
	for _, pos := range s.positions {
		if !pos.IsFlat() {
			count++
		}
	}
	return count
}

// ApplyFill folds a fill into the snapshot and returns the realized PnL of
// the portion that closed existing exposure. Fees reduce cash but are not
// part of realized PnL.
func (s *Snapshot) ApplyFill(fill schema.Fill) decimal.Decimal {
	if fill.Quantity.IsZero() {
		// A zero-quantity fill moves nothing; fold it out here so the
		// average-cost math below never divides by a zero quantity.
		return decimal.Zero
	}

	pos := s.positions[fill.Symbol]
	signedQty := fill.Quantity.Mul(fill.Side.Multiplier())

	realized := decimal.Zero
	switch {
	case pos.Qty.IsZero() || pos.Qty.Sign() == signedQty.Sign():
		// Opening or adding: new weighted average cost, nothing realized.
		newQty := pos.Qty.Add(signedQty)
		cost := pos.AvgCost.Mul(pos.Qty.Abs()).Add(fill.Price.Mul(fill.Quantity))
		pos.AvgCost = cost.Div(newQty.Abs())
		pos.Qty = newQty
	default:
		closeQty := decimal.Min(fill.Quantity, pos.Qty.Abs())
		// Realized PnL carries the sign of the position being closed.
		direction := decimal.NewFromInt(int64(pos.Qty.Sign()))
		realized = fill.Price.Sub(pos.AvgCost).Mul(closeQty).Mul(direction)

		newQty := pos.Qty.Add(signedQty)
		switch {
		case newQty.IsZero():
			pos = Position{}
		case newQty.Sign() != pos.Qty.Sign():
			// Flipped through flat: the remainder opens at the fill price.
			pos = Position{Qty: newQty, AvgCost: fill.Price}
		default:
			pos.Qty = newQty
		}
	}

	s.positions[fill.Symbol] = pos
	s.lastPrice[fill.Symbol] = fill.Price

	s.Cash = s.Cash.Sub(fill.Price.Mul(signedQty))
	if fill.Fee != nil {
		s.Cash = s.Cash.Sub(*fill.Fee)
	}
	return realized
}

// MarkPrice records the latest traded price for equity valuation.
func (s *Snapshot) MarkPrice(symbol string, price decimal.Decimal) {
	s.lastPrice[symbol] = price
}

// Equity returns cash plus the mark value of open positions at the last
// seen price per symbol.
func (s *Snapshot) Equity() decimal.Decimal {
	equity := s.Cash
	for symbol, pos := range s.positions {
		if pos.IsFlat() {
			continue
		}
		price, ok := s.lastPrice[symbol]
		if !ok {
			price = pos.AvgCost
		}
		equity = equity.Add(pos.Qty.Mul(price))
	}
	return equity
}
