package remote

import (
	"context"
	"encoding/json"

	"main/internal/schema"
)

// InitResult is what the remote process reports after initialize. A
// non-empty symbol list overrides the locally configured subscriptions.
type InitResult struct {
	Symbols []string
}

// Client is the transport-agnostic contract to an out-of-process strategy.
// Event handlers return the signals the remote decided on for that event.
type Client interface {
	Connect(ctx context.Context) error
	Initialize(ctx context.Context, config json.RawMessage) (InitResult, error)
	OnTick(ctx context.Context, tick schema.Tick) ([]schema.Signal, error)
	OnCandle(ctx context.Context, candle schema.Candle) ([]schema.Signal, error)
	OnOrderBook(ctx context.Context, book schema.OrderBookUpdate) ([]schema.Signal, error)
	OnFill(ctx context.Context, fill schema.Fill) ([]schema.Signal, error)
	Heartbeat(ctx context.Context) error
	Close() error
}
