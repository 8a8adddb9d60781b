package ledger

import (
	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// FillContext carries everything needed to derive the ledger entries for
// one trade fill.
type FillContext struct {
	Fill        schema.Fill
	Instrument  schema.Instrument
	RealizedPnL decimal.Decimal
}

// EntriesFromFill builds the balanced entry set for a fill: cash movement,
// an optional realized-PnL line for derivative reduces, and a fee line when
// the fee is non-zero. Every entry shares the fill's order id as reference
// so the batch is traceable back to its source.
func EntriesFromFill(ctx FillContext) []Entry {
	var entries []Entry
	if ctx.Instrument.Kind.IsDerivative() {
		entries = derivativeEntries(ctx.Fill, ctx.Instrument)
	} else {
		entries = spotEntries(ctx.Fill, ctx.Instrument)
	}

	if !ctx.RealizedPnL.IsZero() {
		entries = append(entries, buildEntry(
			ctx.Instrument, ctx.Instrument.SettlementAsset(), ctx.RealizedPnL,
			ctx.Fill, TypeTradeRealizedPnl, "realized_pnl",
		))
	}

	if ctx.Fill.Fee != nil && !ctx.Fill.Fee.IsZero() {
		feeAsset := ctx.Fill.FeeAsset
		if feeAsset == "" {
			if ctx.Instrument.Kind.IsDerivative() {
				feeAsset = ctx.Instrument.SettlementAsset()
			} else {
				feeAsset = ctx.Instrument.Quote
			}
		}
		entries = append(entries, buildEntry(
			ctx.Instrument, feeAsset, ctx.Fill.Fee.Neg(),
			ctx.Fill, TypeFee, "fee",
		))
	}

	return entries
}

func spotEntries(fill schema.Fill, inst schema.Instrument) []Entry {
	var entries []Entry
	baseDelta := fill.Quantity.Mul(fill.Side.Multiplier())
	if !baseDelta.IsZero() {
		entries = append(entries, buildEntry(inst, inst.Base, baseDelta, fill, TypeAdjustment, "base"))
	}
	quoteDelta := fill.Notional().Mul(fill.Side.Multiplier()).Neg()
	if !quoteDelta.IsZero() {
		entries = append(entries, buildEntry(inst, inst.Quote, quoteDelta, fill, TypeAdjustment, "quote"))
	}
	return entries
}

func derivativeEntries(fill schema.Fill, inst schema.Instrument) []Entry {
	settlementDelta := fill.Notional().Mul(fill.Side.Multiplier()).Neg()
	if settlementDelta.IsZero() {
		return nil
	}
	return []Entry{buildEntry(inst, inst.SettlementAsset(), settlementDelta, fill, TypeAdjustment, "settlement")}
}

func buildEntry(inst schema.Instrument, asset string, amount decimal.Decimal, fill schema.Fill, entryType Type, component string) Entry {
	entry := NewEntry(inst.Exchange, asset, amount, entryType, fill.OrderID)
	entry.Timestamp = fill.Timestamp
	entry.Meta = map[string]any{
		"symbol":    fill.Symbol,
		"component": component,
	}
	return entry
}
