package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fill(side schema.Side, price, qty string) schema.Fill {
	return schema.Fill{
		OrderID:   "o1",
		Symbol:    "BTC-USDT",
		Side:      side,
		Price:     dec(price),
		Quantity:  dec(qty),
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}
}

func TestApplyFillAveragesCost(t *testing.T) {
	snap := NewSnapshot(dec("10000"))

	realized := snap.ApplyFill(fill(schema.SideBuy, "100", "1"))
	require.True(t, realized.IsZero())

	realized = snap.ApplyFill(fill(schema.SideBuy, "110", "1"))
	require.True(t, realized.IsZero())

	pos := snap.Position("BTC-USDT")
	require.True(t, pos.Qty.Equal(dec("2")), "qty %s", pos.Qty)
	require.True(t, pos.AvgCost.Equal(dec("105")), "avg cost %s", pos.AvgCost)
	require.True(t, snap.Cash.Equal(dec("9790")), "cash %s", snap.Cash)
}

func TestApplyFillRealizesOnClose(t *testing.T) {
	snap := NewSnapshot(dec("0"))
	snap.ApplyFill(fill(schema.SideBuy, "100", "2"))

	realized := snap.ApplyFill(fill(schema.SideSell, "120", "1"))
	require.True(t, realized.Equal(dec("20")), "realized %s", realized)

	pos := snap.Position("BTC-USDT")
	require.True(t, pos.Qty.Equal(dec("1")))
	require.True(t, pos.AvgCost.Equal(dec("100")), "avg cost survives partial close")

	realized = snap.ApplyFill(fill(schema.SideSell, "90", "1"))
	require.True(t, realized.Equal(dec("-10")), "realized %s", realized)
	require.True(t, snap.Position("BTC-USDT").IsFlat())
}

func TestApplyFillShortSide(t *testing.T) {
	snap := NewSnapshot(dec("0"))
	snap.ApplyFill(fill(schema.SideSell, "100", "3"))

	pos := snap.Position("BTC-USDT")
	require.True(t, pos.Qty.Equal(dec("-3")))
	require.True(t, pos.AvgCost.Equal(dec("100")))

	realized := snap.ApplyFill(fill(schema.SideBuy, "80", "3"))
	require.True(t, realized.Equal(dec("60")), "realized %s", realized)
	require.True(t, snap.Position("BTC-USDT").IsFlat())
	require.True(t, snap.Cash.Equal(dec("60")), "cash %s", snap.Cash)
}

func TestApplyFillFlipThroughFlat(t *testing.T) {
	snap := NewSnapshot(dec("0"))
	snap.ApplyFill(fill(schema.SideBuy, "100", "1"))

	realized := snap.ApplyFill(fill(schema.SideSell, "110", "3"))
	require.True(t, realized.Equal(dec("10")), "realized %s", realized)

	pos := snap.Position("BTC-USDT")
	require.True(t, pos.Qty.Equal(dec("-2")), "qty %s", pos.Qty)
	require.True(t, pos.AvgCost.Equal(dec("110")), "remainder opens at fill price")
}

func TestApplyFillZeroQuantityIsNoOp(t *testing.T) {
	snap := NewSnapshot(dec("1000"))

	realized := snap.ApplyFill(fill(schema.SideBuy, "100", "0"))
	require.True(t, realized.IsZero())
	require.True(t, snap.Position("BTC-USDT").IsFlat())
	require.True(t, snap.Cash.Equal(dec("1000")), "cash %s", snap.Cash)

	snap.ApplyFill(fill(schema.SideBuy, "100", "2"))
	realized = snap.ApplyFill(fill(schema.SideSell, "110", "0"))
	require.True(t, realized.IsZero())
	require.True(t, snap.Position("BTC-USDT").Qty.Equal(dec("2")))
}

func TestApplyFillFeeReducesCashOnly(t *testing.T) {
	snap := NewSnapshot(dec("1000"))
	fee := dec("0.5")
	f := fill(schema.SideBuy, "100", "1")
	f.Fee = &fee

	realized := snap.ApplyFill(f)
	require.True(t, realized.IsZero())
	require.True(t, snap.Cash.Equal(dec("899.5")), "cash %s", snap.Cash)
}

func TestEquityMarksOpenPositions(t *testing.T) {
	snap := NewSnapshot(dec("1000"))
	snap.ApplyFill(fill(schema.SideBuy, "100", "2"))
	require.True(t, snap.Equity().Equal(dec("1000")), "equity %s", snap.Equity())

	snap.MarkPrice("BTC-USDT", dec("120"))
	require.True(t, snap.Equity().Equal(dec("1040")), "equity %s", snap.Equity())
	require.Equal(t, 1, snap.Symbols())
}
