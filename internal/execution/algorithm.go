package execution

import (
	"context"

	"main/internal/schema"
	"main/pkg/plugin"
)

// Step is the outcome of one algorithm callback: at most one order action,
// a completion flag, and structured log lines for the host to surface.
type Step struct {
	Action    *schema.OrderAction
	Completed bool
	Logs      []plugin.LogLine
}

// Actions returns the step's action as a slice for the orchestrator.
func (s Step) Actions() []schema.OrderAction {
	if s.Action == nil {
		return nil
	}
	return []schema.OrderAction{*s.Action}
}

// Instance is an active execution algorithm bound to one approved signal.
// Built-in instances run in-process; plugin instances proxy to a child
// process. A completed or failed instance receives no further callbacks.
type Instance interface {
	OnTick(ctx context.Context, tick schema.Tick) (Step, error)
	OnTimer(ctx context.Context, timer schema.TimerTick) (Step, error)
	OnFill(ctx context.Context, fill schema.Fill) (Step, error)
	Snapshot(ctx context.Context) ([]byte, error)
	Restore(ctx context.Context, state []byte) error
	Close() error
}

// Builder creates a built-in instance from the init context. The returned
// step may already carry an action, e.g. an immediate market order.
type Builder func(init plugin.InitContext) (Instance, Step, error)
