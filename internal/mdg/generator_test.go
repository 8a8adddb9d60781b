package mdg

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	cfg := Config{
		Symbols: []string{"BTC-USD", "ETH-USD"},
		Count:   50,
		Seed:    42,
		Start:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	collect := func() []schema.MarketEvent {
		gen, err := NewGenerator(cfg)
		require.NoError(t, err)
		var events []schema.MarketEvent
		for {
			event, err := gen.Next(context.Background())
			if err == io.EOF {
				return events
			}
			require.NoError(t, err)
			events = append(events, event)
		}
	}

	first := collect()
	second := collect()
	require.Len(t, first, 50)
	require.Equal(t, first, second)
}

func TestGeneratorOrdering(t *testing.T) {
	gen, err := NewGenerator(Config{
		Symbols:  []string{"BTC-USD"},
		Count:    10,
		Seed:     7,
		Interval: time.Second,
		Start:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var lastTS time.Time
	var lastSeq uint64
	for i := 0; i < 10; i++ {
		event, err := gen.Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, schema.EventTick, event.Type)
		require.True(t, event.Timestamp.After(lastTS))
		require.Greater(t, event.IngestSeq, lastSeq)
		require.True(t, event.Tick.Price.Sign() > 0)
		lastTS = event.Timestamp
		lastSeq = event.IngestSeq
	}
	_, err = gen.Next(context.Background())
	require.Equal(t, io.EOF, err)
}

func TestGeneratorRoundRobin(t *testing.T) {
	gen, err := NewGenerator(Config{
		Symbols: []string{"A-USD", "B-USD"},
		Count:   4,
		Seed:    1,
	})
	require.NoError(t, err)

	symbols := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		event, err := gen.Next(context.Background())
		require.NoError(t, err)
		symbols = append(symbols, event.Symbol)
	}
	require.Equal(t, []string{"A-USD", "B-USD", "A-USD", "B-USD"}, symbols)
}

func TestGeneratorValidation(t *testing.T) {
	_, err := NewGenerator(Config{})
	require.Error(t, err)

	_, err = NewGenerator(Config{Symbols: []string{"A"}, Step: decimal.NewFromInt(-1)})
	require.Error(t, err)
}
