package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType defines the category of a market event.
type EventType string

const (
	EventUnknown   EventType = ""
	EventTick      EventType = "tick"
	EventCandle    EventType = "candle"
	EventOrderBook EventType = "order_book"
	EventFill      EventType = "fill"
	EventTimer     EventType = "timer"
)

// MarketEvent is the unit flowing through the orchestrator. It is a tagged
// union: exactly one payload pointer matching Type is set. Events are
// ordered by Timestamp; ties are broken by IngestSeq (arrival order).
// An emitted event is never mutated.
type MarketEvent struct {
	Type      EventType `json:"type"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	IngestSeq uint64    `json:"ingestSeq"`

	Tick      *Tick            `json:"tick,omitempty"`
	Candle    *Candle          `json:"candle,omitempty"`
	OrderBook *OrderBookUpdate `json:"orderBook,omitempty"`
	Fill      *Fill            `json:"fill,omitempty"`
	Timer     *TimerTick       `json:"timer,omitempty"`
}

// Tick is a single trade print.
type Tick struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Side       Side            `json:"side"`
	ExchangeTS time.Time       `json:"exchangeTs"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Interval is a candle timeframe identifier.
type Interval string

const (
	Interval1s  Interval = "1s"
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Candle is an OHLCV bar.
type Candle struct {
	Symbol    string          `json:"symbol"`
	Interval  Interval        `json:"interval"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// BookLevel is a single price level of an order book.
type BookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookUpdate is a depth snapshot. Bids descend, asks ascend.
type OrderBookUpdate struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

// Fill reports an execution against one of our orders.
type Fill struct {
	OrderID   string           `json:"orderId"`
	Symbol    string           `json:"symbol"`
	Side      Side             `json:"side"`
	Price     decimal.Decimal  `json:"price"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Fee       *decimal.Decimal `json:"fee,omitempty"`
	FeeAsset  string           `json:"feeAsset,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Notional returns price × quantity.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}

// TimerTick drives time-based execution algorithms during replay and live
// runs alike.
type TimerTick struct {
	Timestamp time.Time `json:"timestamp"`
}

// TickEvent wraps a tick into a market event.
func TickEvent(t Tick) MarketEvent {
	return MarketEvent{Type: EventTick, Symbol: t.Symbol, Timestamp: t.ExchangeTS, Tick: &t}
}

// CandleEvent wraps a candle into a market event.
func CandleEvent(c Candle) MarketEvent {
	return MarketEvent{Type: EventCandle, Symbol: c.Symbol, Timestamp: c.Timestamp, Candle: &c}
}

// OrderBookEvent wraps a depth snapshot into a market event.
func OrderBookEvent(b OrderBookUpdate) MarketEvent {
	return MarketEvent{Type: EventOrderBook, Symbol: b.Symbol, Timestamp: b.Timestamp, OrderBook: &b}
}

// FillEvent wraps a fill into a market event.
func FillEvent(f Fill) MarketEvent {
	return MarketEvent{Type: EventFill, Symbol: f.Symbol, Timestamp: f.Timestamp, Fill: &f}
}

// TimerEvent wraps a timer tick into a market event.
func TimerEvent(at time.Time) MarketEvent {
	return MarketEvent{Type: EventTimer, Timestamp: at, Timer: &TimerTick{Timestamp: at}}
}
