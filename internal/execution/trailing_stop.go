package execution

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/pkg/plugin"
)

// TrailingStopParams configures the trailing stop.
type TrailingStopParams struct {
	// TrailPercent is the giveback from the best seen price, e.g. 2 for 2%.
	TrailPercent decimal.Decimal `json:"trailPercent"`
}

type trailingStopState struct {
	Symbol    string          `json:"symbol"`
	Side      schema.Side     `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	TrailPct  decimal.Decimal `json:"trailPct"`
	BestPrice decimal.Decimal `json:"bestPrice"`
	Armed     bool            `json:"armed"`
}

// TrailingStop exits a position once the price gives back the configured
// percentage from its best level since activation. Side is the exit
// direction: a sell stop trails the high, a buy stop trails the low.
type TrailingStop struct {
	state trailingStopState
}

// NewTrailingStop builds a trailing stop from the init context.
func NewTrailingStop(init plugin.InitContext) (Instance, Step, error) {
	var params TrailingStopParams
	if len(init.Params) > 0 {
		if err := json.Unmarshal(init.Params, &params); err != nil {
			return nil, Step{}, errors.Wrap(err, "parse trailing stop params")
		}
	}
	if params.TrailPercent.Sign() <= 0 {
		return nil, Step{}, errors.New("trailing stop: trailPercent must be positive")
	}
	if init.Quantity.Sign() <= 0 {
		return nil, Step{}, errors.New("trailing stop: quantity must be positive")
	}

	t := &TrailingStop{state: trailingStopState{
		Symbol:   init.Signal.Symbol,
		Side:     init.Side,
		Quantity: init.Quantity,
		TrailPct: params.TrailPercent,
	}}
	if init.Market.LastPrice != nil {
		t.state.BestPrice = *init.Market.LastPrice
		t.state.Armed = true
	}
	return t, Step{}, nil
}

func (t *TrailingStop) OnTick(_ context.Context, tick schema.Tick) (Step, error) {
	if tick.Symbol != t.state.Symbol {
		return Step{}, nil
	}
	if !t.state.Armed {
		t.state.BestPrice = tick.Price
		t.state.Armed = true
		return Step{}, nil
	}

	if t.improved(tick.Price) {
		t.state.BestPrice = tick.Price
		return Step{}, nil
	}

	if t.triggered(tick.Price) {
		action := schema.PlaceAction(schema.OrderRequest{
			Symbol:   t.state.Symbol,
			Side:     t.state.Side,
			Type:     schema.OrderTypeMarket,
			Quantity: t.state.Quantity,
		})
		return Step{Action: &action, Completed: true}, nil
	}
	return Step{}, nil
}

// improved reports whether the price moved further in the protected
// direction.
func (t *TrailingStop) improved(price decimal.Decimal) bool {
	if t.state.Side == schema.SideSell {
		return price.GreaterThan(t.state.BestPrice)
	}
	return price.LessThan(t.state.BestPrice)
}

func (t *TrailingStop) triggered(price decimal.Decimal) bool {
	hundred := decimal.NewFromInt(100)
	if t.state.Side == schema.SideSell {
		stop := t.state.BestPrice.Mul(hundred.Sub(t.state.TrailPct)).Div(hundred)
		return price.LessThanOrEqual(stop)
	}
	stop := t.state.BestPrice.Mul(hundred.Add(t.state.TrailPct)).Div(hundred)
	return price.GreaterThanOrEqual(stop)
}

func (t *TrailingStop) OnTimer(context.Context, schema.TimerTick) (Step, error) {
	return Step{}, nil
}

func (t *TrailingStop) OnFill(context.Context, schema.Fill) (Step, error) {
	return Step{}, nil
}

func (t *TrailingStop) Snapshot(context.Context) ([]byte, error) {
	return json.Marshal(t.state)
}

func (t *TrailingStop) Restore(_ context.Context, state []byte) error {
	return json.Unmarshal(state, &t.state)
}

func (t *TrailingStop) Close() error { return nil }
