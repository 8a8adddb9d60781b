package plugin

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Op names the plugin entry points. Every request carries exactly one op
// and the payload matching it.
type Op string

const (
	OpInit     Op = "init"
	OpTick     Op = "on_tick"
	OpFill     Op = "on_fill"
	OpTimer    Op = "on_timer"
	OpSnapshot Op = "snapshot"
	OpRestore  Op = "restore"
	OpShutdown Op = "shutdown"
)

// RiskSnapshot is a read-only view of the limits in force when the hosting
// signal was approved.
type RiskSnapshot struct {
	MaxOrderQty decimal.Decimal `json:"maxOrderQty"`
	MaxPosition decimal.Decimal `json:"maxPosition"`
}

// MarketSnapshot is a read-only view of the market at init time.
type MarketSnapshot struct {
	LastPrice *decimal.Decimal `json:"lastPrice,omitempty"`
}

// InitContext is handed to a plugin exactly once, before any other call.
type InitContext struct {
	ContextID string          `json:"contextId"`
	Signal    schema.Signal   `json:"signal"`
	Quantity  decimal.Decimal `json:"quantity"`
	Side      schema.Side     `json:"side"`
	Risk      RiskSnapshot    `json:"risk"`
	Market    MarketSnapshot  `json:"market"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Request is one framed call from host to plugin.
type Request struct {
	Op    Op                `json:"op"`
	Init  *InitContext      `json:"init,omitempty"`
	Tick  *schema.Tick      `json:"tick,omitempty"`
	Fill  *schema.Fill      `json:"fill,omitempty"`
	Timer *schema.TimerTick `json:"timer,omitempty"`
	State []byte            `json:"state,omitempty"`
}

// LogLine is a structured log entry surfaced to the host.
type LogLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Result is the framed response for every op. Error is set instead of
// aborting the plugin process; the host decides the instance's fate.
type Result struct {
	Action    *schema.OrderAction `json:"action,omitempty"`
	Completed bool                `json:"completed"`
	Logs      []LogLine           `json:"logs,omitempty"`
	State     []byte              `json:"state,omitempty"`
	Error     string              `json:"error,omitempty"`
}
