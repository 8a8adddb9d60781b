package engine

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/execution"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/portfolio"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/source"
	"main/internal/strategy"
	"main/internal/wal"
	"main/pkg/exception"
	"main/pkg/plugin"
)

const defaultDispatchTimeout = 250 * time.Millisecond

// Config controls the orchestrator loop.
type Config struct {
	// DispatchTimeout bounds a single strategy handler call.
	DispatchTimeout time.Duration
	// Exchange names the venue on ledger entries for symbols missing from
	// the instrument registry.
	Exchange string
	// FeeRate configures the default paper filler when Deps.Filler is nil.
	FeeRate decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = defaultDispatchTimeout
	}
	if c.Exchange == "" {
		c.Exchange = "paper"
	}
	return c
}

// Deps wires the orchestrator to its collaborators. Source, Strategy,
// Execution, Portfolio, Repo, Sequencer and Gate are required; the rest
// default to working no-cost implementations.
type Deps struct {
	Source    source.Source
	Strategy  strategy.Strategy
	Execution *execution.Engine
	Portfolio *portfolio.Snapshot
	Repo      ledger.Repository
	Sequencer *ledger.Sequencer
	Gate      *risk.Gate

	Registry *schema.Registry
	Metrics  *obs.Metrics
	Filler   FillSimulator
	// Recorder journals every accepted event for later replay. Nil
	// disables recording.
	Recorder *wal.Writer
}

// Orchestrator owns the single event loop. It pulls events from the source
// one at a time and applies every effect of event N before reading event
// N+1, so a backtest and a live session run the identical code path.
type Orchestrator struct {
	cfg  Config
	deps Deps

	marks   map[string]decimal.Decimal
	lastTS  time.Time
	lastSeq uint64
	started bool
}

// New creates an orchestrator. Missing required dependencies are rejected
// up front rather than surfacing as a nil dereference mid-run.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Source == nil || deps.Strategy == nil || deps.Execution == nil ||
		deps.Portfolio == nil || deps.Repo == nil || deps.Sequencer == nil || deps.Gate == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "orchestrator dependency missing")
	}
	cfg = cfg.withDefaults()
	if deps.Registry == nil {
		deps.Registry = schema.NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = obs.NewMetrics()
	}
	if deps.Filler == nil {
		deps.Filler = NewPaperFiller(cfg.FeeRate)
	}
	return &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		marks: make(map[string]decimal.Decimal),
	}, nil
}

// Run drives the loop until the source is exhausted, the context is
// canceled, or a ledger write fails. Cancellation between events is a
// normal stop; a ledger failure is fatal and returned with the partial
// report.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var report Report
	for {
		event, err := o.deps.Source.Next(ctx)
		switch {
		case err == nil:
		case err == io.EOF:
			return o.finalize(report), nil
		case ctx.Err() != nil:
			logs.Info("orchestrator stopped by context")
			return o.finalize(report), nil
		default:
			return o.finalize(report), errors.Wrap(err, "read next event")
		}

		if o.regressed(event) {
			o.deps.Metrics.IncSkipped()
			report.SkippedEvents++
			logs.Warnf("out-of-order event skipped: type=%s symbol=%s ts=%s seq=%d",
				event.Type, event.Symbol, event.Timestamp.Format(time.RFC3339Nano), event.IngestSeq)
			continue
		}
		o.started = true
		o.lastTS = event.Timestamp
		o.lastSeq = event.IngestSeq

		if o.deps.Recorder != nil {
			if err := o.deps.Recorder.TryAppend(event); err != nil {
				logs.Warnf("event journal append dropped: %+v", err)
			}
		}

		report.Events++
		begin := time.Now()
		err = o.processEvent(ctx, event, &report)
		o.deps.Metrics.ObserveEvent(event.Type, time.Since(begin))
		if err != nil {
			return o.finalize(report), err
		}

		report.EquityCurve = append(report.EquityCurve, EquityPoint{
			Timestamp: event.Timestamp,
			Equity:    o.deps.Portfolio.Equity(),
		})
	}
}

// regressed reports whether an event moves backwards in the total order
// (timestamp, then ingest sequence).
func (o *Orchestrator) regressed(event schema.MarketEvent) bool {
	if !o.started {
		return false
	}
	if event.Timestamp.Before(o.lastTS) {
		return true
	}
	return event.Timestamp.Equal(o.lastTS) && event.IngestSeq < o.lastSeq
}

func (o *Orchestrator) processEvent(ctx context.Context, event schema.MarketEvent, report *Report) error {
	o.mark(event)

	// A fill arriving from the source is an authoritative execution: its
	// account effects land before any handler observes it.
	if event.Type == schema.EventFill {
		if err := o.applyFill(*event.Fill, report); err != nil {
			return err
		}
	}

	dctx, cancel := context.WithTimeout(ctx, o.cfg.DispatchTimeout)
	err := strategy.Dispatch(dctx, o.deps.Strategy, event)
	cancel()
	if err != nil {
		o.deps.Metrics.IncSkipped()
		report.SkippedEvents++
		logs.Errorf("strategy %s handler failed, event skipped: %+v", o.deps.Strategy.Name(), err)
		return nil
	}

	var queue []schema.OrderAction
	o.collectSignals(ctx, event.Timestamp, &queue, report)

	switch event.Type {
	case schema.EventTick:
		queue = append(queue, o.deps.Execution.OnTick(ctx, *event.Tick)...)
	case schema.EventTimer:
		queue = append(queue, o.deps.Execution.OnTimer(ctx, *event.Timer)...)
	case schema.EventFill:
		queue = append(queue, o.deps.Execution.OnFill(ctx, *event.Fill)...)
	}

	return o.drainActions(ctx, event.Timestamp, queue, report)
}

// collectSignals drains the strategy buffer, runs each signal through the
// risk gate and hands survivors to the execution engine. Produced actions
// are appended to the queue.
func (o *Orchestrator) collectSignals(ctx context.Context, at time.Time, queue *[]schema.OrderAction, report *Report) {
	for _, signal := range o.deps.Strategy.DrainSignals() {
		o.deps.Metrics.IncSignal()
		report.Signals++

		view := risk.View{
			Position:       o.deps.Portfolio.Position(signal.Symbol).Qty,
			ReferencePrice: o.marks[signal.Symbol],
			Now:            at,
		}
		decision := o.deps.Gate.Evaluate(signal, view)
		if decision.Reason != risk.ReasonNone {
			o.deps.Metrics.IncRiskReason(decision.Reason)
		}
		if !decision.Allowed() {
			o.deps.Metrics.IncDropped()
			report.DroppedSignals++
			logs.Warnf("signal %s denied: symbol=%s kind=%s reason=%s",
				signal.ID, signal.Symbol, signal.Kind, decision.Reason)
			continue
		}

		actions, err := o.deps.Execution.Submit(ctx, decision, o.marketSnapshot(signal.Symbol))
		if err != nil {
			o.deps.Metrics.IncDropped()
			report.DroppedSignals++
			logs.Errorf("signal %s rejected by execution: %+v", signal.ID, err)
			continue
		}
		*queue = append(*queue, actions...)
	}
}

// drainActions processes the action queue to quiescence. A place action
// fills through the simulator, and the resulting fill fans out to the
// execution engine and the strategy, both of which may enqueue more work.
func (o *Orchestrator) drainActions(ctx context.Context, at time.Time, queue []schema.OrderAction, report *Report) error {
	for len(queue) > 0 {
		action := queue[0]
		queue = queue[1:]

		switch action.Kind {
		case schema.OrderActionPlace:
			o.deps.Metrics.IncOrder()
			report.Orders++

			fill, ok := o.deps.Filler.Fill(*action.Place, o.marks[action.Place.Symbol], at)
			if !ok {
				logs.Warnf("order not fillable, dropped: symbol=%s side=%s qty=%s",
					action.Place.Symbol, action.Place.Side, action.Place.Quantity)
				continue
			}
			if err := o.applyFill(fill, report); err != nil {
				return err
			}

			queue = append(queue, o.deps.Execution.OnFill(ctx, fill)...)
			if err := o.deps.Strategy.OnFill(ctx, fill); err != nil {
				logs.Errorf("strategy %s fill handler failed: %+v", o.deps.Strategy.Name(), err)
				continue
			}
			o.collectSignals(ctx, at, &queue, report)

		case schema.OrderActionCancel, schema.OrderActionModify:
			// Paper fills are immediate, so there is never a resting order
			// to cancel or amend.
			logs.Debugf("ignoring %s action in paper execution", action.Kind)
		}
	}
	return nil
}

// applyFill folds a fill into the portfolio and persists its ledger batch.
// A ledger write failure aborts the run: the books may no longer match the
// account state, so continuing would compound the damage.
func (o *Orchestrator) applyFill(fill schema.Fill, report *Report) error {
	realized := o.deps.Portfolio.ApplyFill(fill)
	o.marks[fill.Symbol] = fill.Price
	report.Fills++
	report.RealizedPnL = report.RealizedPnL.Add(realized)

	entries := ledger.EntriesFromFill(ledger.FillContext{
		Fill:        fill,
		Instrument:  o.instrument(fill.Symbol),
		RealizedPnL: realized,
	})
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].Sequence = o.deps.Sequencer.Next()
	}
	if err := o.deps.Repo.AppendBatch(entries); err != nil {
		return errors.Wrap(err, "append ledger batch").With("orderId", fill.OrderID)
	}
	o.deps.Metrics.IncLedgerBatch()
	return nil
}

// instrument resolves the registered definition for a symbol, falling back
// to a spot instrument parsed from a BASE-QUOTE symbol.
func (o *Orchestrator) instrument(symbol string) schema.Instrument {
	if inst, ok := o.deps.Registry.Instrument(symbol); ok {
		return inst
	}
	inst := schema.Instrument{
		Symbol:   symbol,
		Exchange: o.cfg.Exchange,
		Kind:     schema.InstrumentSpot,
		Base:     symbol,
		Quote:    "USD",
	}
	if base, quote, ok := strings.Cut(symbol, "-"); ok {
		inst.Base = base
		inst.Quote = quote
	}
	return inst
}

func (o *Orchestrator) mark(event schema.MarketEvent) {
	switch event.Type {
	case schema.EventTick:
		o.marks[event.Symbol] = event.Tick.Price
		o.deps.Portfolio.MarkPrice(event.Symbol, event.Tick.Price)
	case schema.EventCandle:
		o.marks[event.Symbol] = event.Candle.Close
		o.deps.Portfolio.MarkPrice(event.Symbol, event.Candle.Close)
	}
}

func (o *Orchestrator) marketSnapshot(symbol string) plugin.MarketSnapshot {
	var snapshot plugin.MarketSnapshot
	if price, ok := o.marks[symbol]; ok {
		p := price
		snapshot.LastPrice = &p
	}
	return snapshot
}

func (o *Orchestrator) finalize(report Report) Report {
	report.FinalEquity = o.deps.Portfolio.Equity()
	report.Metrics = o.deps.Metrics.Snapshot()
	return report
}
