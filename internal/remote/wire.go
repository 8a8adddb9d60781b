package remote

import (
	"encoding/json"

	"main/internal/schema"
)

// Wire op codes. Decimal fields inside the payloads marshal as quoted
// strings, so values round-trip exactly across the boundary.
type wireOp string

const (
	opInitialize wireOp = "initialize"
	opTick       wireOp = "on_tick"
	opCandle     wireOp = "on_candle"
	opOrderBook  wireOp = "on_order_book"
	opFill       wireOp = "on_fill"
	opHeartbeat  wireOp = "heartbeat"
)

// wireRequest is one framed request to the remote strategy.
type wireRequest struct {
	Op        wireOp                  `json:"op"`
	Config    json.RawMessage         `json:"config,omitempty"`
	Tick      *schema.Tick            `json:"tick,omitempty"`
	Candle    *schema.Candle          `json:"candle,omitempty"`
	OrderBook *schema.OrderBookUpdate `json:"orderBook,omitempty"`
	Fill      *schema.Fill            `json:"fill,omitempty"`
}

// wireResponse is the framed reply for every op.
type wireResponse struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Symbols []string        `json:"symbols,omitempty"`
	Signals []schema.Signal `json:"signals,omitempty"`
}
