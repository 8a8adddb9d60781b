package strategy

import (
	"context"

	"main/internal/schema"
)

// Strategy turns market events into signals. Handlers are invoked by the
// orchestrator strictly in event order; produced signals are collected
// through DrainSignals after each dispatch, so a handler never blocks on
// downstream consumers.
type Strategy interface {
	Name() string
	OnTick(ctx context.Context, tick schema.Tick) error
	OnCandle(ctx context.Context, candle schema.Candle) error
	OnOrderBook(ctx context.Context, book schema.OrderBookUpdate) error
	OnFill(ctx context.Context, fill schema.Fill) error
	OnTimer(ctx context.Context, timer schema.TimerTick) error
	DrainSignals() []schema.Signal
}

// Base provides no-op handlers and the pending signal buffer. Concrete
// strategies embed it and override the handlers they care about.
type Base struct {
	pending []schema.Signal
}

func (b *Base) OnTick(context.Context, schema.Tick) error { return nil }
func (b *Base) OnCandle(context.Context, schema.Candle) error { return nil }
func (b *Base) OnOrderBook(context.Context, schema.OrderBookUpdate) error { return nil }
func (b *Base) OnFill(context.Context, schema.Fill) error { return nil }
func (b *Base) OnTimer(context.Context, schema.TimerTick) error { return nil }

// Emit queues a signal for the next drain.
func (b *Base) Emit(signal schema.Signal) {
	b.pending = append(b.pending, signal)
}

// DrainSignals returns queued signals and clears the buffer.
func (b *Base) DrainSignals() []schema.Signal {
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

// Dispatch routes one market event to the matching handler.
func Dispatch(ctx context.Context, s Strategy, event schema.MarketEvent) error {
	switch event.Type {
	case schema.EventTick:
		return s.OnTick(ctx, *event.Tick)
	case schema.EventCandle:
		return s.OnCandle(ctx, *event.Candle)
	case schema.EventOrderBook:
		return s.OnOrderBook(ctx, *event.OrderBook)
	case schema.EventFill:
		return s.OnFill(ctx, *event.Fill)
	case schema.EventTimer:
		return s.OnTimer(ctx, *event.Timer)
	default:
		return nil
	}
}
