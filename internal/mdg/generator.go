package mdg

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Config controls the synthetic tick generator.
type Config struct {
	Symbols []string
	// BasePrice seeds every symbol's random walk.
	BasePrice decimal.Decimal
	// Step is the maximum absolute price move per tick.
	Step decimal.Decimal
	// Size is the printed trade size.
	Size decimal.Decimal
	// Interval spaces event timestamps.
	Interval time.Duration
	// Count bounds the number of generated events. Zero means unlimited.
	Count int
	// Seed fixes the walk. Zero derives one from the clock.
	Seed int64
	// Start is the timestamp of the first tick.
	Start time.Time
}

func (c Config) withDefaults() Config {
	if c.BasePrice.IsZero() {
		c.BasePrice = decimal.NewFromInt(100)
	}
	if c.Step.IsZero() {
		c.Step = decimal.NewFromInt(1)
	}
	if c.Size.IsZero() {
		c.Size = decimal.NewFromInt(1)
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UTC().UnixNano()
	}
	if c.Start.IsZero() {
		c.Start = time.Now().UTC()
	}
	return c
}

// Validate ensures the generator can run.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("generator needs at least one symbol")
	}
	if c.Step.Sign() < 0 {
		return fmt.Errorf("step must not be negative")
	}
	return nil
}

// Generator produces a deterministic random walk of trade ticks, one symbol
// at a time in round-robin order. With a fixed seed the stream is fully
// reproducible, which makes it usable as a backtest source.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	prices map[string]decimal.Decimal
	index  int
	seq    uint64
	at     time.Time
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	prices := make(map[string]decimal.Decimal, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		prices[symbol] = cfg.BasePrice
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		prices: prices,
		at:     cfg.Start,
	}, nil
}

// Next returns the next synthetic tick. After Count events it returns
// io.EOF.
func (g *Generator) Next(ctx context.Context) (schema.MarketEvent, error) {
	if err := ctx.Err(); err != nil {
		return schema.MarketEvent{}, err
	}
	if g.cfg.Count > 0 && g.seq >= uint64(g.cfg.Count) {
		return schema.MarketEvent{}, io.EOF
	}

	symbol := g.cfg.Symbols[g.index]
	g.index = (g.index + 1) % len(g.cfg.Symbols)

	// Uniform move in [-step, +step], quantized to hundredths of the step.
	move := g.cfg.Step.Mul(decimal.NewFromInt(int64(g.rng.Intn(201)) - 100)).
		Div(decimal.NewFromInt(100))
	price := g.prices[symbol].Add(move)
	if price.Sign() <= 0 {
		price = g.prices[symbol]
	}
	g.prices[symbol] = price

	side := schema.SideBuy
	if g.rng.Intn(2) == 1 {
		side = schema.SideSell
	}

	g.seq++
	event := schema.TickEvent(schema.Tick{
		Symbol:     symbol,
		Price:      price,
		Size:       g.cfg.Size,
		Side:       side,
		ExchangeTS: g.at,
		ReceivedAt: g.at,
	})
	event.IngestSeq = g.seq
	g.at = g.at.Add(g.cfg.Interval)
	return event, nil
}
