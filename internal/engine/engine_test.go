package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/execution"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/portfolio"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func tickEvent(symbol, price string, at time.Time, seq uint64) schema.MarketEvent {
	event := schema.TickEvent(schema.Tick{
		Symbol:     symbol,
		Price:      decimal.RequireFromString(price),
		Size:       decimal.NewFromInt(1),
		Side:       schema.SideBuy,
		ExchangeTS: at,
	})
	event.IngestSeq = seq
	return event
}

// scriptedSource replays events verbatim, without re-sorting.
type scriptedSource struct {
	events []schema.MarketEvent
	idx    int
}

func (s *scriptedSource) Next(ctx context.Context) (schema.MarketEvent, error) {
	if ctx.Err() != nil {
		return schema.MarketEvent{}, ctx.Err()
	}
	if s.idx >= len(s.events) {
		return schema.MarketEvent{}, io.EOF
	}
	event := s.events[s.idx]
	s.idx++
	return event, nil
}

// scriptedStrategy emits pre-planned signals on specific tick counts and
// can fail on one of them.
type scriptedStrategy struct {
	strategy.Base
	ticks  int
	failAt int
	emitAt map[int]schema.Signal
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) OnTick(_ context.Context, tick schema.Tick) error {
	s.ticks++
	if s.failAt > 0 && s.ticks == s.failAt {
		return errors.New("handler blew up")
	}
	if signal, ok := s.emitAt[s.ticks]; ok {
		s.Emit(signal)
	}
	return nil
}

type failingRepo struct {
	ledger.Repository
}

func (failingRepo) AppendBatch([]ledger.Entry) error {
	return errors.New("journal volume gone")
}

func newTestOrchestrator(t *testing.T, src *scriptedSource, strat strategy.Strategy, repo ledger.Repository) (*Orchestrator, *portfolio.Snapshot) {
	t.Helper()
	exec, err := execution.New(execution.Config{})
	require.NoError(t, err)
	port := portfolio.NewSnapshot(decimal.NewFromInt(10000))
	orch, err := New(Config{}, Deps{
		Source:    src,
		Strategy:  strat,
		Execution: exec,
		Portfolio: port,
		Repo:      repo,
		Sequencer: ledger.NewSequencer(0),
		Gate:      risk.NewGate(risk.Config{}),
	})
	require.NoError(t, err)
	return orch, port
}

func risingThenFallingTicks(symbol string) []schema.MarketEvent {
	prices := []string{"100", "101", "102", "103", "104", "105", "106", "105", "103", "101"}
	events := make([]schema.MarketEvent, 0, len(prices))
	for i, price := range prices {
		events = append(events, tickEvent(symbol, price, testBase.Add(time.Duration(i)*time.Second), uint64(i+1)))
	}
	return events
}

func TestRequiredDependencies(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}

func TestMedianCrossBacktest(t *testing.T) {
	strat, err := strategy.NewMedianCross(strategy.MedianCrossConfig{Symbol: "BTC-USD", Window: 5})
	require.NoError(t, err)

	repo := ledger.NewMemoryRepository()
	src := &scriptedSource{events: risingThenFallingTicks("BTC-USD")}
	orch, port := newTestOrchestrator(t, src, strat, repo)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, uint64(10), report.Events)
	require.Equal(t, uint64(0), report.SkippedEvents)
	require.Equal(t, uint64(1), report.Signals)
	require.Equal(t, uint64(0), report.DroppedSignals)
	require.Equal(t, uint64(1), report.Orders)
	require.Equal(t, uint64(1), report.Fills)
	require.True(t, report.RealizedPnL.IsZero())
	require.Len(t, report.EquityCurve, 10)

	// One buy of 1 at 105, marked at the closing price 101.
	require.Equal(t, "1", port.Position("BTC-USD").Qty.String())
	require.Equal(t, "105", port.Position("BTC-USD").AvgCost.String())
	require.Equal(t, "9996", report.FinalEquity.String())

	entries, err := repo.Query(ledger.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(1), entries[0].Sequence)
	require.Equal(t, "BTC", entries[0].Asset)
	require.Equal(t, "1", entries[0].Amount.String())
	require.Equal(t, "USD", entries[1].Asset)
	require.Equal(t, "-105", entries[1].Amount.String())
	require.Equal(t, "paper-1", entries[0].ReferenceID)

	require.Equal(t, uint64(10), report.Metrics.EventCounts[schema.EventTick])
	require.Equal(t, uint64(1), report.Metrics.SignalsEmitted)
	require.Equal(t, uint64(1), report.Metrics.OrdersPlaced)
	require.Equal(t, uint64(1), report.Metrics.LedgerBatches)
}

func TestBacktestIsDeterministic(t *testing.T) {
	run := func() Report {
		strat, err := strategy.NewMedianCross(strategy.MedianCrossConfig{Symbol: "BTC-USD", Window: 5})
		require.NoError(t, err)
		src := &scriptedSource{events: risingThenFallingTicks("BTC-USD")}
		orch, _ := newTestOrchestrator(t, src, strat, ledger.NewMemoryRepository())
		report, err := orch.Run(context.Background())
		require.NoError(t, err)
		return report
	}

	first := run()
	second := run()
	// Dispatch latency is wall-clock and varies between runs.
	first.Metrics.DispatchLatency = obs.LatencySnapshot{}
	second.Metrics.DispatchLatency = obs.LatencySnapshot{}
	require.Equal(t, first, second)
}

func TestOutOfOrderEventsSkipped(t *testing.T) {
	strat := &scriptedStrategy{}
	src := &scriptedSource{events: []schema.MarketEvent{
		tickEvent("BTC-USD", "100", testBase, 1),
		tickEvent("BTC-USD", "101", testBase.Add(time.Second), 2),
		// Regression: earlier timestamp must not reach handlers.
		tickEvent("BTC-USD", "99", testBase, 3),
		tickEvent("BTC-USD", "102", testBase.Add(2*time.Second), 4),
	}}
	orch, _ := newTestOrchestrator(t, src, strat, ledger.NewMemoryRepository())

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(3), report.Events)
	require.Equal(t, uint64(1), report.SkippedEvents)
	require.Equal(t, 3, strat.ticks)
}

func TestTimestampTieKeepsIngestOrder(t *testing.T) {
	strat := &scriptedStrategy{}
	src := &scriptedSource{events: []schema.MarketEvent{
		tickEvent("BTC-USD", "100", testBase, 5),
		tickEvent("BTC-USD", "101", testBase, 6),
		// Same timestamp but older arrival: drop it.
		tickEvent("BTC-USD", "99", testBase, 4),
	}}
	orch, _ := newTestOrchestrator(t, src, strat, ledger.NewMemoryRepository())

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), report.Events)
	require.Equal(t, uint64(1), report.SkippedEvents)
}

func TestStrategyErrorSkipsEventOnly(t *testing.T) {
	signal := schema.NewSignal("BTC-USD", schema.SignalEnterLong, testBase)
	strat := &scriptedStrategy{failAt: 2, emitAt: map[int]schema.Signal{3: signal}}
	src := &scriptedSource{events: risingThenFallingTicks("BTC-USD")[:3]}
	orch, port := newTestOrchestrator(t, src, strat, ledger.NewMemoryRepository())

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(3), report.Events)
	require.Equal(t, uint64(1), report.SkippedEvents)
	require.Equal(t, uint64(1), report.Signals)
	require.Equal(t, uint64(1), report.Fills)
	require.Equal(t, "1", port.Position("BTC-USD").Qty.String())
}

func TestLedgerFailureIsFatal(t *testing.T) {
	signal := schema.NewSignal("BTC-USD", schema.SignalEnterLong, testBase)
	strat := &scriptedStrategy{emitAt: map[int]schema.Signal{1: signal}}
	src := &scriptedSource{events: risingThenFallingTicks("BTC-USD")}
	orch, _ := newTestOrchestrator(t, src, strat, failingRepo{ledger.NewMemoryRepository()})

	report, err := orch.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ledger")
	// The fill was applied before persistence failed; the run stops there.
	require.Equal(t, uint64(1), report.Events)
	require.Equal(t, uint64(1), report.Fills)
}

func TestCancelStopsCleanly(t *testing.T) {
	strat := &scriptedStrategy{}
	src := &scriptedSource{events: risingThenFallingTicks("BTC-USD")}
	orch, _ := newTestOrchestrator(t, src, strat, ledger.NewMemoryRepository())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), report.Events)
}

func TestExternalFillEvent(t *testing.T) {
	fee := decimal.RequireFromString("0.1")
	fillEvent := schema.FillEvent(schema.Fill{
		OrderID:   "ext-1",
		Symbol:    "BTC-USD",
		Side:      schema.SideBuy,
		Price:     decimal.NewFromInt(50),
		Quantity:  decimal.NewFromInt(2),
		Fee:       &fee,
		Timestamp: testBase,
	})
	fillEvent.IngestSeq = 1

	strat := &scriptedStrategy{}
	repo := ledger.NewMemoryRepository()
	src := &scriptedSource{events: []schema.MarketEvent{fillEvent}}
	orch, port := newTestOrchestrator(t, src, strat, repo)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), report.Fills)
	require.Equal(t, uint64(0), report.Orders)
	require.Equal(t, "2", port.Position("BTC-USD").Qty.String())
	require.Equal(t, "9899.9", port.Cash.String())

	entries, err := repo.Query(ledger.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3) // base, quote, fee
	last, err := repo.LatestSequence()
	require.NoError(t, err)
	require.Equal(t, uint64(3), last)
}

func TestSlicedExecutionThroughTimers(t *testing.T) {
	qty := decimal.RequireFromString("0.25")
	signal := schema.NewSignal("BTC-USD", schema.SignalEnterLong, testBase)
	signal.Quantity = &qty
	signal.Hint = schema.ExecutionHint{
		Algorithm: "slicer",
		Params:    json.RawMessage(`{"clipSize":"0.1"}`),
	}

	events := []schema.MarketEvent{tickEvent("BTC-USD", "100", testBase, 1)}
	for i := 1; i <= 4; i++ {
		timer := schema.TimerEvent(testBase.Add(time.Duration(i) * time.Second))
		timer.IngestSeq = uint64(i + 1)
		events = append(events, timer)
	}

	strat := &scriptedStrategy{emitAt: map[int]schema.Signal{1: signal}}
	repo := ledger.NewMemoryRepository()
	src := &scriptedSource{events: events}
	orch, port := newTestOrchestrator(t, src, strat, repo)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	// Three clips drain 0.25 at clip size 0.1; the fourth timer finds no
	// active instance.
	require.Equal(t, uint64(3), report.Orders)
	require.Equal(t, uint64(3), report.Fills)
	require.Equal(t, "0.25", port.Position("BTC-USD").Qty.String())

	entries, err := repo.Query(ledger.Query{Asset: "BTC"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "0.1", entries[0].Amount.String())
	require.Equal(t, "0.1", entries[1].Amount.String())
	require.Equal(t, "0.05", entries[2].Amount.String())
}
