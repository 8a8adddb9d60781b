package execution

import (
	"context"

	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/pkg/plugin"
)

// Market places the full approved quantity as a single market order and
// completes immediately. It is the engine default when a signal carries no
// execution hint.
type Market struct{}

// NewMarket builds the immediate market algorithm.
func NewMarket(init plugin.InitContext) (Instance, Step, error) {
	if init.Quantity.Sign() <= 0 {
		return nil, Step{}, errors.New("market: quantity must be positive")
	}

	action := schema.PlaceAction(schema.OrderRequest{
		Symbol:   init.Signal.Symbol,
		Side:     init.Side,
		Type:     schema.OrderTypeMarket,
		Quantity: init.Quantity,
	})
	return &Market{}, Step{Action: &action, Completed: true}, nil
}

func (m *Market) OnTick(context.Context, schema.Tick) (Step, error) {
	return Step{Completed: true}, nil
}

func (m *Market) OnTimer(context.Context, schema.TimerTick) (Step, error) {
	return Step{Completed: true}, nil
}

func (m *Market) OnFill(context.Context, schema.Fill) (Step, error) {
	return Step{Completed: true}, nil
}

func (m *Market) Snapshot(context.Context) ([]byte, error) { return nil, nil }

func (m *Market) Restore(context.Context, []byte) error { return nil }

func (m *Market) Close() error { return nil }
