package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/risk"
	"main/internal/schema"
	"main/pkg/exception"
	"main/pkg/plugin"
)

// Config controls the execution engine.
type Config struct {
	// PluginDir holds externally compiled algorithm binaries. Empty
	// disables plugin hosting.
	PluginDir string
	// StateDir persists instance snapshots across restarts. Empty
	// disables persistence.
	StateDir         string
	CallTimeout      time.Duration
	DefaultAlgorithm string
	// Risk is the read-only limit snapshot handed to plugin init.
	Risk plugin.RiskSnapshot
}

func (c Config) withDefaults() Config {
	if c.DefaultAlgorithm == "" {
		c.DefaultAlgorithm = "market"
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	return c
}

type tracked struct {
	id       string
	name     string
	symbol   string
	isPlugin bool
	inst     Instance
}

// Engine turns approved signals into order actions. Built-in algorithms
// run synchronously in-process; plugin algorithms run in isolated child
// processes. Callbacks route only to instances still active for the
// originating signal's symbol.
type Engine struct {
	cfg      Config
	host     *Host
	arena    *StateArena
	builtins map[string]Builder
	active   []*tracked
}

// New creates an engine with the built-in algorithms registered.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg: cfg,
		builtins: map[string]Builder{
			"market":        NewMarket,
			"slicer":        NewSlicer,
			"trailing_stop": NewTrailingStop,
		},
	}
	if cfg.PluginDir != "" {
		e.host = NewHost(cfg.PluginDir, cfg.CallTimeout)
	}
	if cfg.StateDir != "" {
		arena, err := NewStateArena(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		e.arena = arena
	}
	return e, nil
}

// RegisterBuiltin installs an additional built-in algorithm.
func (e *Engine) RegisterBuiltin(name string, builder Builder) {
	e.builtins[name] = builder
}

// ActiveInstances returns the number of live algorithm instances.
func (e *Engine) ActiveInstances() int {
	return len(e.active)
}

// Submit starts an algorithm instance for an approved signal and returns
// any immediately produced actions. The algorithm is selected by the
// signal's execution hint, falling back to the engine default; built-in
// names shadow plugin names.
func (e *Engine) Submit(ctx context.Context, decision risk.Decision, market plugin.MarketSnapshot) ([]schema.OrderAction, error) {
	if !decision.Allowed() || decision.Signal.Symbol == "" || decision.Quantity.Sign() <= 0 {
		return nil, exception.ErrInvalidSignal
	}

	name := decision.Signal.Hint.Algorithm
	if name == "" {
		name = e.cfg.DefaultAlgorithm
	}

	init := plugin.InitContext{
		ContextID: uuid.NewString(),
		Signal:    decision.Signal,
		Quantity:  decision.Quantity,
		Side:      decision.Side,
		Risk:      e.cfg.Risk,
		Market:    market,
		Params:    decision.Signal.Hint.Params,
	}

	var (
		inst     Instance
		step     Step
		isPlugin bool
		err      error
	)
	if builder, ok := e.builtins[name]; ok {
		inst, step, err = builder(init)
		if err != nil {
			return nil, errors.Wrap(exception.ErrInvalidSignal, err.Error())
		}
	} else if e.host != nil {
		inst, step, err = newPluginInstance(ctx, e.host, name, init)
		if err != nil {
			return nil, err
		}
		isPlugin = true
	} else {
		return nil, exception.ErrUnknownAlgorithm
	}

	if step.Completed {
		_ = inst.Close()
		return step.Actions(), nil
	}

	e.active = append(e.active, &tracked{
		id:       init.ContextID,
		name:     name,
		symbol:   decision.Signal.Symbol,
		isPlugin: isPlugin,
		inst:     inst,
	})
	return step.Actions(), nil
}

// OnTick routes a tick to instances working the same symbol.
func (e *Engine) OnTick(ctx context.Context, tick schema.Tick) []schema.OrderAction {
	return e.dispatch(func(t *tracked) bool { return t.symbol == tick.Symbol },
		func(inst Instance) (Step, error) { return inst.OnTick(ctx, tick) })
}

// OnTimer routes a timer tick to every active instance.
func (e *Engine) OnTimer(ctx context.Context, timer schema.TimerTick) []schema.OrderAction {
	return e.dispatch(func(*tracked) bool { return true },
		func(inst Instance) (Step, error) { return inst.OnTimer(ctx, timer) })
}

// OnFill routes a fill to instances working the same symbol.
func (e *Engine) OnFill(ctx context.Context, fill schema.Fill) []schema.OrderAction {
	return e.dispatch(func(t *tracked) bool { return t.symbol == fill.Symbol },
		func(inst Instance) (Step, error) { return inst.OnFill(ctx, fill) })
}

// dispatch calls one handler across active instances in creation order. A
// completed instance is retired; a faulted one is torn down alone, the
// others keep running.
func (e *Engine) dispatch(match func(*tracked) bool, call func(Instance) (Step, error)) []schema.OrderAction {
	var actions []schema.OrderAction
	keep := e.active[:0]
	for _, t := range e.active {
		if !match(t) {
			keep = append(keep, t)
			continue
		}

		step, err := call(t.inst)
		if err != nil {
			logs.Errorf("algorithm %s (%s) faulted, tearing down: %+v", t.name, t.id, err)
			e.retire(t)
			continue
		}

		actions = append(actions, step.Actions()...)
		if step.Completed {
			e.retire(t)
			continue
		}
		keep = append(keep, t)
	}
	e.active = keep
	return actions
}

func (e *Engine) retire(t *tracked) {
	if err := t.inst.Close(); err != nil {
		logs.Errorf("close algorithm %s (%s): %+v", t.name, t.id, err)
	}
	if e.arena != nil {
		_ = e.arena.Remove(t.id)
	}
}

// PersistState snapshots every active instance into the state arena.
func (e *Engine) PersistState(ctx context.Context) error {
	if e.arena == nil {
		return nil
	}
	for _, t := range e.active {
		state, err := t.inst.Snapshot(ctx)
		if err != nil {
			return errors.Wrap(err, "snapshot instance").With("id", t.id)
		}
		record := arenaRecord{Algorithm: t.name, Symbol: t.symbol, Plugin: t.isPlugin, State: state}
		if err := e.arena.Save(t.id, record); err != nil {
			return errors.Wrap(err, "persist instance").With("id", t.id)
		}
	}
	return nil
}

// RecoverState rebuilds instances from persisted snapshots. Unrecoverable
// entries are logged and dropped rather than blocking startup.
func (e *Engine) RecoverState(ctx context.Context) error {
	if e.arena == nil {
		return nil
	}
	ids, err := e.arena.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		record, err := e.arena.Load(id)
		if err != nil {
			logs.Errorf("load persisted instance %s: %+v", id, err)
			continue
		}
		inst, err := e.rebuild(ctx, record)
		if err != nil {
			logs.Errorf("recover instance %s (%s): %+v", id, record.Algorithm, err)
			_ = e.arena.Remove(id)
			continue
		}
		e.active = append(e.active, &tracked{
			id:       id,
			name:     record.Algorithm,
			symbol:   record.Symbol,
			isPlugin: record.Plugin,
			inst:     inst,
		})
	}
	return nil
}

func (e *Engine) rebuild(ctx context.Context, record arenaRecord) (Instance, error) {
	if record.Plugin {
		if e.host == nil {
			return nil, exception.ErrPluginNotFound
		}
		c, err := e.host.Launch(ctx, record.Algorithm)
		if err != nil {
			return nil, err
		}
		inst := &pluginInstance{name: record.Algorithm, caller: c}
		if err := inst.Restore(ctx, record.State); err != nil {
			_ = inst.Close()
			return nil, err
		}
		return inst, nil
	}

	var inst Instance
	switch record.Algorithm {
	case "slicer":
		inst = &Slicer{}
	case "trailing_stop":
		inst = &TrailingStop{}
	default:
		return nil, exception.ErrUnknownAlgorithm
	}
	if err := inst.Restore(ctx, record.State); err != nil {
		return nil, err
	}
	return inst, nil
}

// Close tears down every active instance.
func (e *Engine) Close() error {
	for _, t := range e.active {
		if err := t.inst.Close(); err != nil {
			logs.Errorf("close algorithm %s (%s): %+v", t.name, t.id, err)
		}
	}
	e.active = nil
	return nil
}
