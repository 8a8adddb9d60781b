package execution

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/pkg/plugin"
)

// SlicerParams configures the quantity slicer.
type SlicerParams struct {
	ClipSize decimal.Decimal `json:"clipSize"`
}

// slicerState is the serialized form carried across restarts.
type slicerState struct {
	Symbol    string           `json:"symbol"`
	Side      schema.Side      `json:"side"`
	Remaining decimal.Decimal  `json:"remaining"`
	ClipSize  decimal.Decimal  `json:"clipSize"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// Slicer splits an approved quantity into fixed clips, emitting one place
// action per timer tick until the remainder is exhausted.
type Slicer struct {
	state slicerState
}

// NewSlicer builds a slicer from the init context. Params must carry a
// positive clip size.
func NewSlicer(init plugin.InitContext) (Instance, Step, error) {
	var params SlicerParams
	if len(init.Params) > 0 {
		if err := json.Unmarshal(init.Params, &params); err != nil {
			return nil, Step{}, errors.Wrap(err, "parse slicer params")
		}
	}
	if params.ClipSize.Sign() <= 0 {
		return nil, Step{}, errors.New("slicer: clipSize must be positive")
	}
	if init.Quantity.Sign() <= 0 {
		return nil, Step{}, errors.New("slicer: quantity must be positive")
	}

	s := &Slicer{state: slicerState{
		Symbol:    init.Signal.Symbol,
		Side:      init.Side,
		Remaining: init.Quantity,
		ClipSize:  params.ClipSize,
		Price:     init.Market.LastPrice,
	}}
	return s, Step{}, nil
}

// Remaining returns the unsliced quantity.
func (s *Slicer) Remaining() decimal.Decimal {
	return s.state.Remaining
}

func (s *Slicer) OnTick(context.Context, schema.Tick) (Step, error) {
	return Step{}, nil
}

// OnTimer emits the next clip. The final clip may be smaller than the
// configured size; completion is reported on the step that drains the
// remainder.
func (s *Slicer) OnTimer(context.Context, schema.TimerTick) (Step, error) {
	if s.state.Remaining.Sign() <= 0 {
		return Step{Completed: true}, nil
	}

	slice := decimal.Min(s.state.Remaining, s.state.ClipSize)
	s.state.Remaining = s.state.Remaining.Sub(slice)

	action := schema.PlaceAction(schema.OrderRequest{
		Symbol:   s.state.Symbol,
		Side:     s.state.Side,
		Type:     schema.OrderTypeMarket,
		Quantity: slice,
	})
	return Step{Action: &action, Completed: s.state.Remaining.Sign() <= 0}, nil
}

func (s *Slicer) OnFill(context.Context, schema.Fill) (Step, error) {
	return Step{}, nil
}

func (s *Slicer) Snapshot(context.Context) ([]byte, error) {
	return json.Marshal(s.state)
}

func (s *Slicer) Restore(_ context.Context, state []byte) error {
	return json.Unmarshal(state, &s.state)
}

func (s *Slicer) Close() error { return nil }
