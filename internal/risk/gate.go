package risk

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Action is the gate's verdict on a signal.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionClip  Action = "clip"
)

// Reason explains a deny or clip verdict.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonKillSwitch    Reason = "kill_switch"
	ReasonRateLimit     Reason = "rate_limit"
	ReasonZeroQuantity  Reason = "zero_quantity"
	ReasonMaxQty        Reason = "max_order_qty"
	ReasonMaxNotional   Reason = "max_order_notional"
	ReasonPositionLimit Reason = "position_limit"
)

// Config defines static risk limits. A zero limit disables that check.
type Config struct {
	KillSwitch       bool            `json:"killSwitch"`
	DefaultOrderQty  decimal.Decimal `json:"defaultOrderQty"`
	MaxOrderQty      decimal.Decimal `json:"maxOrderQty"`
	MaxOrderNotional decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition      decimal.Decimal `json:"maxPosition"`
	OrderRateLimit   int             `json:"orderRateLimit"`
	OrderRateWindow  time.Duration   `json:"orderRateWindow"`
}

func (c Config) withDefaults() Config {
	if c.DefaultOrderQty.IsZero() {
		c.DefaultOrderQty = decimal.NewFromInt(1)
	}
	return c
}

// View provides the state the gate needs to judge a signal.
type View struct {
	Position       decimal.Decimal
	ReferencePrice decimal.Decimal
	Now            time.Time
}

// Decision is the gate output. Quantity is the approved size, clipped when
// Action is ActionClip and zero when ActionDeny.
type Decision struct {
	Signal   schema.Signal
	Action   Action
	Reason   Reason
	Side     schema.Side
	Quantity decimal.Decimal
}

// Allowed reports whether the signal may proceed with Decision.Quantity.
func (d Decision) Allowed() bool {
	return d.Action != ActionDeny
}

// Gate evaluates signals against static limits before they reach the
// execution engine. Evaluate is called from the orchestrator loop only;
// the kill switch may be tripped from any goroutine.
type Gate struct {
	cfg             Config
	tripped         atomic.Bool
	rateWindowStart time.Time
	rateCount       int
}

// NewGate creates a gate with static limits.
func NewGate(cfg Config) *Gate {
	g := &Gate{cfg: cfg.withDefaults()}
	if cfg.KillSwitch {
		g.tripped.Store(true)
	}
	return g
}

// Trip engages the kill switch. All subsequent signals are denied.
func (g *Gate) Trip() {
	g.tripped.Store(true)
}

// Tripped reports whether the kill switch is engaged.
func (g *Gate) Tripped() bool {
	return g.tripped.Load()
}

// Evaluate judges one signal. Exit signals bypass size limits since they
// only reduce exposure; every signal still respects the kill switch.
func (g *Gate) Evaluate(signal schema.Signal, view View) Decision {
	positionSide := schema.SideBuy
	if view.Position.Sign() < 0 {
		positionSide = schema.SideSell
	}
	decision := Decision{
		Signal:   signal,
		Action:   ActionAllow,
		Side:     signal.Kind.Side(positionSide),
		Quantity: g.requestedQty(signal, view),
	}

	if g.tripped.Load() {
		return deny(decision, ReasonKillSwitch)
	}

	if signal.Kind == schema.SignalExit || signal.Kind == schema.SignalFlat {
		if decision.Quantity.IsZero() {
			return deny(decision, ReasonZeroQuantity)
		}
		return decision
	}

	if g.cfg.OrderRateLimit > 0 && g.cfg.OrderRateWindow > 0 {
		now := view.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		if g.rateWindowStart.IsZero() || now.Sub(g.rateWindowStart) >= g.cfg.OrderRateWindow {
			g.rateWindowStart = now
			g.rateCount = 0
		}
		g.rateCount++
		if g.rateCount > g.cfg.OrderRateLimit {
			return deny(decision, ReasonRateLimit)
		}
	}

	if decision.Quantity.IsZero() {
		return deny(decision, ReasonZeroQuantity)
	}

	if g.cfg.MaxOrderQty.Sign() > 0 && decision.Quantity.GreaterThan(g.cfg.MaxOrderQty) {
		decision.Action = ActionClip
		decision.Reason = ReasonMaxQty
		decision.Quantity = g.cfg.MaxOrderQty
	}

	if g.cfg.MaxOrderNotional.Sign() > 0 && view.ReferencePrice.Sign() > 0 {
		notional := decision.Quantity.Mul(view.ReferencePrice)
		if notional.GreaterThan(g.cfg.MaxOrderNotional) {
			return deny(decision, ReasonMaxNotional)
		}
	}

	if g.cfg.MaxPosition.Sign() > 0 {
		next := view.Position.Add(decision.Quantity.Mul(decision.Side.Multiplier()))
		if next.Abs().GreaterThan(g.cfg.MaxPosition) {
			headroom := g.cfg.MaxPosition.Sub(view.Position.Mul(decision.Side.Multiplier()))
			if headroom.Sign() <= 0 {
				return deny(decision, ReasonPositionLimit)
			}
			decision.Action = ActionClip
			decision.Reason = ReasonPositionLimit
			decision.Quantity = headroom
		}
	}

	return decision
}

func (g *Gate) requestedQty(signal schema.Signal, view View) decimal.Decimal {
	if signal.Quantity != nil {
		return *signal.Quantity
	}
	if signal.Kind == schema.SignalExit || signal.Kind == schema.SignalFlat {
		return view.Position.Abs()
	}
	return g.cfg.DefaultOrderQty
}

func deny(d Decision, reason Reason) Decision {
	d.Action = ActionDeny
	d.Reason = reason
	d.Quantity = decimal.Zero
	return d
}
