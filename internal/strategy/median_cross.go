package strategy

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

const defaultMedianWindow = 5

// MedianCrossConfig configures the rolling median cross strategy.
type MedianCrossConfig struct {
	Symbol          string           `json:"symbol"`
	Window          int              `json:"window"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	ExitOnDownCross bool             `json:"exitOnDownCross"`
}

func (c MedianCrossConfig) withDefaults() MedianCrossConfig {
	if c.Window <= 0 {
		c.Window = defaultMedianWindow
	}
	return c
}

// MedianCross enters long when the price crosses above the rolling median
// of the preceding window. The window must fill before the first
// evaluation, and a new entry requires the price to first drop back below
// the median.
type MedianCross struct {
	Base
	cfg     MedianCrossConfig
	history *History
	above   bool
	long    bool
}

// NewMedianCross builds the strategy from a config.
func NewMedianCross(cfg MedianCrossConfig) (*MedianCross, error) {
	cfg = cfg.withDefaults()
	if cfg.Symbol == "" {
		return nil, errors.New("median cross: symbol is required")
	}
	return &MedianCross{cfg: cfg, history: NewHistory(cfg.Window)}, nil
}

// NewMedianCrossFromJSON builds the strategy from raw JSON parameters.
func NewMedianCrossFromJSON(params json.RawMessage) (*MedianCross, error) {
	var cfg MedianCrossConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse median cross params")
		}
	}
	return NewMedianCross(cfg)
}

func (s *MedianCross) Name() string { return "median_cross" }

func (s *MedianCross) OnTick(_ context.Context, tick schema.Tick) error {
	if tick.Symbol != s.cfg.Symbol {
		return nil
	}

	// Median covers the window before this tick; the current price is
	// pushed afterwards so it never compares against itself.
	if s.history.Full() {
		median := s.history.Median()
		above := tick.Price.GreaterThan(median)
		switch {
		case above && !s.above && !s.long:
			signal := schema.NewSignal(s.cfg.Symbol, schema.SignalEnterLong, tick.ExchangeTS)
			signal.Quantity = s.cfg.Quantity
			s.Emit(signal)
			s.long = true
		case !above && s.above && s.long && s.cfg.ExitOnDownCross:
			s.Emit(schema.NewSignal(s.cfg.Symbol, schema.SignalExit, tick.ExchangeTS))
			s.long = false
		}
		s.above = above
	}

	s.history.Push(tick.Price)
	return nil
}

func (s *MedianCross) OnFill(_ context.Context, fill schema.Fill) error {
	if fill.Symbol == s.cfg.Symbol && fill.Side == schema.SideSell {
		s.long = false
	}
	return nil
}
