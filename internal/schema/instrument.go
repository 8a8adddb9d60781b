package schema

// InstrumentKind distinguishes cash instruments from derivatives. It
// decides how fills turn into ledger entries.
type InstrumentKind string

const (
	InstrumentSpot        InstrumentKind = "spot"
	InstrumentLinearPerp  InstrumentKind = "linear_perpetual"
	InstrumentInversePerp InstrumentKind = "inverse_perpetual"
)

// IsDerivative reports whether positions settle in a margin currency.
func (k InstrumentKind) IsDerivative() bool {
	return k == InstrumentLinearPerp || k == InstrumentInversePerp
}

// Instrument describes a tradable symbol and its accounting currencies.
type Instrument struct {
	Symbol     string         `json:"symbol"`
	Exchange   string         `json:"exchange"`
	Kind       InstrumentKind `json:"kind"`
	Base       string         `json:"base"`
	Quote      string         `json:"quote"`
	Settlement string         `json:"settlement"`
}

// SettlementAsset returns the asset margin and PnL settle in. Spot
// instruments settle in the quote currency.
func (i Instrument) SettlementAsset() string {
	if i.Settlement != "" {
		return i.Settlement
	}
	return i.Quote
}
