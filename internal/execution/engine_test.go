package execution

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/risk"
	"main/internal/schema"
	"main/pkg/exception"
	"main/pkg/plugin"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func approved(symbol string, qty string, hint schema.ExecutionHint) risk.Decision {
	sig := schema.NewSignal(symbol, schema.SignalEnterLong, time.Unix(1700000000, 0).UTC())
	sig.Hint = hint
	return risk.Decision{
		Signal:   sig,
		Action:   risk.ActionAllow,
		Side:     schema.SideBuy,
		Quantity: dec(qty),
	}
}

func timerAt(sec int64) schema.TimerTick {
	return schema.TimerTick{Timestamp: time.Unix(1700000000+sec, 0).UTC()}
}

func TestSlicerEmitsExactClipsThenCompletes(t *testing.T) {
	engine, err := New(Config{})
	require.NoError(t, err)

	hint := schema.ExecutionHint{Algorithm: "slicer", Params: json.RawMessage(`{"clipSize":"0.1"}`)}
	actions, err := engine.Submit(context.Background(), approved("BTC-USDT", "0.25", hint), plugin.MarketSnapshot{})
	require.NoError(t, err)
	require.Empty(t, actions)
	require.Equal(t, 1, engine.ActiveInstances())

	ctx := context.Background()
	var quantities []string
	for i := int64(0); i < 5; i++ {
		for _, action := range engine.OnTimer(ctx, timerAt(i)) {
			require.Equal(t, schema.OrderActionPlace, action.Kind)
			quantities = append(quantities, action.Place.Quantity.String())
		}
	}

	require.Equal(t, []string{"0.1", "0.1", "0.05"}, quantities)
	require.Equal(t, 0, engine.ActiveInstances(), "completed instance is retired")
}

func TestMarketDefaultPlacesImmediately(t *testing.T) {
	engine, err := New(Config{})
	require.NoError(t, err)

	actions, err := engine.Submit(context.Background(), approved("BTC-USDT", "1", schema.ExecutionHint{}), plugin.MarketSnapshot{})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, schema.OrderActionPlace, actions[0].Kind)
	require.True(t, actions[0].Place.Quantity.Equal(dec("1")))
	require.Equal(t, 0, engine.ActiveInstances())
}

func TestSubmitRejectsInvalidSignals(t *testing.T) {
	engine, err := New(Config{})
	require.NoError(t, err)

	denied := approved("BTC-USDT", "1", schema.ExecutionHint{})
	denied.Action = risk.ActionDeny
	denied.Quantity = decimal.Zero
	_, err = engine.Submit(context.Background(), denied, plugin.MarketSnapshot{})
	require.ErrorIs(t, err, exception.ErrInvalidSignal)

	_, err = engine.Submit(context.Background(), approved("BTC-USDT", "1", schema.ExecutionHint{Algorithm: "nope"}), plugin.MarketSnapshot{})
	require.ErrorIs(t, err, exception.ErrUnknownAlgorithm)
}

func TestTrailingStopTriggersOnGiveback(t *testing.T) {
	engine, err := New(Config{})
	require.NoError(t, err)

	hint := schema.ExecutionHint{Algorithm: "trailing_stop", Params: json.RawMessage(`{"trailPercent":"2"}`)}
	decision := approved("BTC-USDT", "1", hint)
	decision.Side = schema.SideSell
	_, err = engine.Submit(context.Background(), decision, plugin.MarketSnapshot{})
	require.NoError(t, err)

	ctx := context.Background()
	tick := func(price string) schema.Tick {
		return schema.Tick{Symbol: "BTC-USDT", Price: dec(price), Size: dec("1"), Side: schema.SideBuy}
	}

	require.Empty(t, engine.OnTick(ctx, tick("100")), "first tick arms")
	require.Empty(t, engine.OnTick(ctx, tick("110")), "new high raises the stop")
	require.Empty(t, engine.OnTick(ctx, tick("109")), "inside the trail")

	actions := engine.OnTick(ctx, tick("107.8"))
	require.Len(t, actions, 1)
	require.Equal(t, schema.SideSell, actions[0].Place.Side)
	require.True(t, actions[0].Place.Quantity.Equal(dec("1")))
	require.Equal(t, 0, engine.ActiveInstances())
}

// fakeCaller stands in for a plugin process in host tests.
type fakeCaller struct {
	handle func(req plugin.Request) (plugin.Result, error)
	calls  []plugin.Op
	closed bool
}

func (f *fakeCaller) Call(_ context.Context, req plugin.Request) (plugin.Result, error) {
	f.calls = append(f.calls, req.Op)
	return f.handle(req)
}

func (f *fakeCaller) Close() error {
	f.closed = true
	return nil
}

func pluginEngine(t *testing.T, launch func(name string) caller) *Engine {
	t.Helper()
	engine, err := New(Config{PluginDir: t.TempDir()})
	require.NoError(t, err)
	engine.host.launch = func(_ context.Context, name string) (caller, error) {
		return launch(name), nil
	}
	return engine
}

func TestPluginFaultTearsDownOnlyThatInstance(t *testing.T) {
	faulty := &fakeCaller{handle: func(req plugin.Request) (plugin.Result, error) {
		if req.Op == plugin.OpFill {
			return plugin.Result{Error: "boom"}, nil
		}
		return plugin.Result{}, nil
	}}
	engine := pluginEngine(t, func(string) caller { return faulty })

	ctx := context.Background()
	_, err := engine.Submit(ctx, approved("BTC-USDT", "1", schema.ExecutionHint{Algorithm: "chase"}), plugin.MarketSnapshot{})
	require.NoError(t, err)

	hint := schema.ExecutionHint{Algorithm: "slicer", Params: json.RawMessage(`{"clipSize":"0.5"}`)}
	_, err = engine.Submit(ctx, approved("BTC-USDT", "1", hint), plugin.MarketSnapshot{})
	require.NoError(t, err)
	require.Equal(t, 2, engine.ActiveInstances())

	engine.OnFill(ctx, schema.Fill{Symbol: "BTC-USDT", Side: schema.SideBuy, Price: dec("100"), Quantity: dec("1")})
	require.Equal(t, 1, engine.ActiveInstances(), "only the faulty plugin is torn down")
	require.True(t, faulty.closed)

	actions := engine.OnTimer(ctx, timerAt(0))
	require.Len(t, actions, 1, "surviving slicer still works")
}

func TestCompletedPluginReceivesNoFurtherCalls(t *testing.T) {
	done := &fakeCaller{handle: func(req plugin.Request) (plugin.Result, error) {
		if req.Op == plugin.OpTimer {
			return plugin.Result{Completed: true}, nil
		}
		return plugin.Result{}, nil
	}}
	engine := pluginEngine(t, func(string) caller { return done })

	ctx := context.Background()
	_, err := engine.Submit(ctx, approved("BTC-USDT", "1", schema.ExecutionHint{Algorithm: "chase"}), plugin.MarketSnapshot{})
	require.NoError(t, err)

	engine.OnTimer(ctx, timerAt(0))
	require.Equal(t, 0, engine.ActiveInstances())

	before := len(done.calls)
	engine.OnTimer(ctx, timerAt(1))
	engine.OnTick(ctx, schema.Tick{Symbol: "BTC-USDT", Price: dec("100")})
	require.Equal(t, before, len(done.calls), "no calls after completion")
}

func TestSnapshotRestoreResumesSlicer(t *testing.T) {
	stateDir := t.TempDir()
	first, err := New(Config{StateDir: stateDir})
	require.NoError(t, err)

	hint := schema.ExecutionHint{Algorithm: "slicer", Params: json.RawMessage(`{"clipSize":"0.1"}`)}
	ctx := context.Background()
	_, err = first.Submit(ctx, approved("BTC-USDT", "0.25", hint), plugin.MarketSnapshot{})
	require.NoError(t, err)

	actions := first.OnTimer(ctx, timerAt(0))
	require.Len(t, actions, 1)
	require.Equal(t, "0.1", actions[0].Place.Quantity.String())
	require.NoError(t, first.PersistState(ctx))

	second, err := New(Config{StateDir: stateDir})
	require.NoError(t, err)
	require.NoError(t, second.RecoverState(ctx))
	require.Equal(t, 1, second.ActiveInstances())

	var quantities []string
	for i := int64(1); i < 4; i++ {
		for _, action := range second.OnTimer(ctx, timerAt(i)) {
			quantities = append(quantities, action.Place.Quantity.String())
		}
	}
	require.Equal(t, []string{"0.1", "0.05"}, quantities, "resumes from the persisted remainder")
}
