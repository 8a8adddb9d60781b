package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func spotInstrument() schema.Instrument {
	return schema.Instrument{
		Symbol:   "BTCUSDT",
		Exchange: "paper",
		Kind:     schema.InstrumentSpot,
		Base:     "BTC",
		Quote:    "USDT",
	}
}

func perpInstrument() schema.Instrument {
	return schema.Instrument{
		Symbol:     "BTCUSDT-PERP",
		Exchange:   "paper",
		Kind:       schema.InstrumentLinearPerp,
		Base:       "BTC",
		Quote:      "USDT",
		Settlement: "USDT",
	}
}

func TestSpotBuyEntriesBalance(t *testing.T) {
	fee := dec("0.5")
	fill := schema.Fill{
		OrderID:   "ord-1",
		Symbol:    "BTCUSDT",
		Side:      schema.SideBuy,
		Price:     dec("100"),
		Quantity:  dec("2"),
		Fee:       &fee,
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}

	entries := EntriesFromFill(FillContext{Fill: fill, Instrument: spotInstrument()})
	require.Len(t, entries, 3)

	byAsset := map[string]decimal.Decimal{}
	for _, entry := range entries {
		byAsset[entry.Asset] = byAsset[entry.Asset].Add(entry.Amount)
		assert.Equal(t, "ord-1", entry.ReferenceID)
		assert.Equal(t, fill.Timestamp, entry.Timestamp)
	}

	// cash delta = -(qty × price) - fee, base delta = +qty
	assert.True(t, byAsset["BTC"].Equal(dec("2")), "base delta %s", byAsset["BTC"])
	assert.True(t, byAsset["USDT"].Equal(dec("-200.5")), "quote delta %s", byAsset["USDT"])
}

func TestSpotSellEntriesBalance(t *testing.T) {
	fill := schema.Fill{
		OrderID:   "ord-2",
		Symbol:    "BTCUSDT",
		Side:      schema.SideSell,
		Price:     dec("100"),
		Quantity:  dec("1.5"),
		Timestamp: time.Unix(1700000100, 0).UTC(),
	}

	entries := EntriesFromFill(FillContext{Fill: fill, Instrument: spotInstrument()})
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Amount.Equal(dec("-1.5")))
	assert.True(t, entries[1].Amount.Equal(dec("150")))
	for _, entry := range entries {
		assert.Equal(t, TypeAdjustment, entry.Type)
	}
}

func TestDerivativeCloseProducesRealizedPnl(t *testing.T) {
	fee := dec("0.1")
	fill := schema.Fill{
		OrderID:   "ord-3",
		Symbol:    "BTCUSDT-PERP",
		Side:      schema.SideSell,
		Price:     dec("110"),
		Quantity:  dec("1"),
		Fee:       &fee,
		Timestamp: time.Unix(1700000200, 0).UTC(),
	}

	entries := EntriesFromFill(FillContext{
		Fill:        fill,
		Instrument:  perpInstrument(),
		RealizedPnL: dec("10"),
	})
	require.Len(t, entries, 3)

	types := map[Type]decimal.Decimal{}
	for _, entry := range entries {
		require.Equal(t, "USDT", entry.Asset)
		types[entry.Type] = entry.Amount
	}
	assert.True(t, types[TypeAdjustment].Equal(dec("110")), "settlement %s", types[TypeAdjustment])
	assert.True(t, types[TypeTradeRealizedPnl].Equal(dec("10")))
	assert.True(t, types[TypeFee].Equal(dec("-0.1")))
}

func TestZeroFeeOmitsFeeEntry(t *testing.T) {
	zero := decimal.Zero
	fill := schema.Fill{
		OrderID:  "ord-4",
		Symbol:   "BTCUSDT",
		Side:     schema.SideBuy,
		Price:    dec("10"),
		Quantity: dec("1"),
		Fee:      &zero,
	}
	entries := EntriesFromFill(FillContext{Fill: fill, Instrument: spotInstrument()})
	for _, entry := range entries {
		assert.NotEqual(t, TypeFee, entry.Type)
	}
}
