// Chase is an out-of-process execution algorithm. It works a limit order
// near the touch and follows the market when it runs away, amending the
// working price until the full quantity is done.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/pkg/plugin"
)

type chaseParams struct {
	// Offset improves the limit price relative to the last trade: buys
	// rest below it, sells above it.
	Offset decimal.Decimal `json:"offset"`
	// MaxChases caps reprices. Zero means unlimited.
	MaxChases int `json:"maxChases"`
}

type chaseState struct {
	ContextID string          `json:"contextId"`
	Symbol    string          `json:"symbol"`
	Side      schema.Side     `json:"side"`
	Remaining decimal.Decimal `json:"remaining"`
	Offset    decimal.Decimal `json:"offset"`
	MaxChases int             `json:"maxChases"`
	Chases    int             `json:"chases"`
	OrderSeq  int             `json:"orderSeq"`
	Working   bool            `json:"working"`
	WorkingID string          `json:"workingId"`
	Price     decimal.Decimal `json:"price"`
}

type chase struct {
	state chaseState
}

func (c *chase) Init(ctx plugin.InitContext) (plugin.Result, error) {
	var params chaseParams
	if len(ctx.Params) > 0 {
		if err := json.Unmarshal(ctx.Params, &params); err != nil {
			return plugin.Result{}, fmt.Errorf("parse chase params: %w", err)
		}
	}
	if ctx.Quantity.Sign() <= 0 {
		return plugin.Result{}, fmt.Errorf("chase: quantity must be positive")
	}

	c.state = chaseState{
		ContextID: ctx.ContextID,
		Symbol:    ctx.Signal.Symbol,
		Side:      ctx.Side,
		Remaining: ctx.Quantity,
		Offset:    params.Offset,
		MaxChases: params.MaxChases,
	}

	if ctx.Market.LastPrice != nil {
		return c.place(*ctx.Market.LastPrice), nil
	}
	// No reference price yet; the first tick seeds the working order.
	return plugin.Result{Logs: []plugin.LogLine{{
		Level:   "info",
		Message: "chase: waiting for first trade to price the order",
	}}}, nil
}

func (c *chase) OnTick(tick schema.Tick) (plugin.Result, error) {
	if tick.Symbol != c.state.Symbol {
		return plugin.Result{}, nil
	}
	if !c.state.Working {
		return c.place(tick.Price), nil
	}

	if !c.ranAway(tick.Price) {
		return plugin.Result{}, nil
	}
	if c.state.MaxChases > 0 && c.state.Chases >= c.state.MaxChases {
		return plugin.Result{Logs: []plugin.LogLine{{
			Level:   "warn",
			Message: "chase: reprice budget exhausted, holding working price",
		}}}, nil
	}

	c.state.Chases++
	c.state.Price = c.limitPrice(tick.Price)
	action := schema.ModifyAction(schema.OrderModify{
		OrderID:  c.state.WorkingID,
		Symbol:   c.state.Symbol,
		NewPrice: &c.state.Price,
	})
	return plugin.Result{Action: &action}, nil
}

func (c *chase) OnFill(fill schema.Fill) (plugin.Result, error) {
	if fill.Symbol != c.state.Symbol {
		return plugin.Result{}, nil
	}
	c.state.Remaining = c.state.Remaining.Sub(fill.Quantity)
	c.state.Working = false
	if c.state.Remaining.Sign() <= 0 {
		return plugin.Result{Completed: true}, nil
	}
	return plugin.Result{}, nil
}

func (c *chase) OnTimer(schema.TimerTick) (plugin.Result, error) {
	if c.state.Remaining.Sign() <= 0 {
		return plugin.Result{Completed: true}, nil
	}
	return plugin.Result{}, nil
}

func (c *chase) Snapshot() ([]byte, error) {
	return json.Marshal(c.state)
}

func (c *chase) Restore(state []byte) error {
	return json.Unmarshal(state, &c.state)
}

// place opens a working limit order for the remaining quantity around the
// reference price.
func (c *chase) place(reference decimal.Decimal) plugin.Result {
	c.state.OrderSeq++
	c.state.Working = true
	c.state.WorkingID = c.state.ContextID + "-" + strconv.Itoa(c.state.OrderSeq)
	c.state.Price = c.limitPrice(reference)

	action := schema.PlaceAction(schema.OrderRequest{
		Symbol:        c.state.Symbol,
		Side:          c.state.Side,
		Type:          schema.OrderTypeLimit,
		Quantity:      c.state.Remaining,
		Price:         &c.state.Price,
		TimeInForce:   schema.TimeInForceGTC,
		ClientOrderID: c.state.WorkingID,
	})
	return plugin.Result{Action: &action}
}

// limitPrice applies the offset on the passive side of the reference.
func (c *chase) limitPrice(reference decimal.Decimal) decimal.Decimal {
	if c.state.Side == schema.SideBuy {
		return reference.Sub(c.state.Offset)
	}
	return reference.Add(c.state.Offset)
}

// ranAway reports whether the market moved beyond the working price against
// us: above it for buys, below it for sells.
func (c *chase) ranAway(price decimal.Decimal) bool {
	if c.state.Side == schema.SideBuy {
		return price.GreaterThan(c.state.Price.Add(c.state.Offset))
	}
	return price.LessThan(c.state.Price.Sub(c.state.Offset))
}

func main() {
	if err := plugin.Serve(&chase{}); err != nil {
		log.Fatalf("chase plugin exited: %v", err)
	}
}
