package strategy

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// SMACrossConfig configures the dual moving average strategy.
type SMACrossConfig struct {
	Symbol      string           `json:"symbol"`
	Interval    schema.Interval  `json:"interval"`
	FastWindow  int              `json:"fastWindow"`
	SlowWindow  int              `json:"slowWindow"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
}

func (c SMACrossConfig) withDefaults() SMACrossConfig {
	if c.FastWindow <= 0 {
		c.FastWindow = 9
	}
	if c.SlowWindow <= 0 {
		c.SlowWindow = 21
	}
	if c.Interval == "" {
		c.Interval = schema.Interval1m
	}
	return c
}

// SMACross enters long on a golden cross of candle closes and exits on the
// death cross. Evaluation starts once the slow window is full.
type SMACross struct {
	Base
	cfg      SMACrossConfig
	fast     *History
	slow     *History
	fastOver bool
	primed   bool
	long     bool
}

// NewSMACross builds the strategy from a config.
func NewSMACross(cfg SMACrossConfig) (*SMACross, error) {
	cfg = cfg.withDefaults()
	if cfg.Symbol == "" {
		return nil, errors.New("sma cross: symbol is required")
	}
	if cfg.FastWindow >= cfg.SlowWindow {
		return nil, errors.Errorf("sma cross: fast window %d must be below slow window %d", cfg.FastWindow, cfg.SlowWindow)
	}
	return &SMACross{
		cfg:  cfg,
		fast: NewHistory(cfg.FastWindow),
		slow: NewHistory(cfg.SlowWindow),
	}, nil
}

// NewSMACrossFromJSON builds the strategy from raw JSON parameters.
func NewSMACrossFromJSON(params json.RawMessage) (*SMACross, error) {
	var cfg SMACrossConfig
	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse sma cross params")
		}
	}
	return NewSMACross(cfg)
}

func (s *SMACross) Name() string { return "sma_cross" }

func (s *SMACross) OnCandle(_ context.Context, candle schema.Candle) error {
	if candle.Symbol != s.cfg.Symbol || candle.Interval != s.cfg.Interval {
		return nil
	}

	s.fast.Push(candle.Close)
	s.slow.Push(candle.Close)
	if !s.slow.Full() {
		return nil
	}

	fastOver := s.fast.Mean().GreaterThan(s.slow.Mean())
	if !s.primed {
		// First full evaluation establishes the side without trading.
		s.primed = true
		s.fastOver = fastOver
		return nil
	}

	switch {
	case fastOver && !s.fastOver && !s.long:
		signal := schema.NewSignal(s.cfg.Symbol, schema.SignalEnterLong, candle.Timestamp)
		signal.Quantity = s.cfg.Quantity
		s.Emit(signal)
		s.long = true
	case !fastOver && s.fastOver && s.long:
		s.Emit(schema.NewSignal(s.cfg.Symbol, schema.SignalExit, candle.Timestamp))
		s.long = false
	}
	s.fastOver = fastOver
	return nil
}
