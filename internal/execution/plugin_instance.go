package execution

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/pkg/exception"
	"main/pkg/plugin"
)

// pluginInstance proxies Instance callbacks to a plugin process. A result
// carrying an error string is a plugin fault; transport errors surface
// as-is after classification by the caller.
type pluginInstance struct {
	name   string
	caller caller
}

func newPluginInstance(ctx context.Context, host *Host, name string, init plugin.InitContext) (*pluginInstance, Step, error) {
	c, err := host.Launch(ctx, name)
	if err != nil {
		return nil, Step{}, err
	}

	inst := &pluginInstance{name: name, caller: c}
	step, err := inst.call(ctx, plugin.Request{Op: plugin.OpInit, Init: &init})
	if err != nil {
		_ = c.Close()
		return nil, Step{}, err
	}
	return inst, step, nil
}

func (p *pluginInstance) call(ctx context.Context, req plugin.Request) (Step, error) {
	result, err := p.caller.Call(ctx, req)
	if err != nil {
		return Step{}, err
	}
	if result.Error != "" {
		return Step{}, errors.Wrap(exception.ErrPluginFault, result.Error)
	}

	for _, line := range result.Logs {
		logs.Infof("plugin %s: [%s] %s", p.name, line.Level, line.Message)
	}
	return Step{Action: result.Action, Completed: result.Completed, Logs: result.Logs}, nil
}

func (p *pluginInstance) OnTick(ctx context.Context, tick schema.Tick) (Step, error) {
	return p.call(ctx, plugin.Request{Op: plugin.OpTick, Tick: &tick})
}

func (p *pluginInstance) OnTimer(ctx context.Context, timer schema.TimerTick) (Step, error) {
	return p.call(ctx, plugin.Request{Op: plugin.OpTimer, Timer: &timer})
}

func (p *pluginInstance) OnFill(ctx context.Context, fill schema.Fill) (Step, error) {
	return p.call(ctx, plugin.Request{Op: plugin.OpFill, Fill: &fill})
}

func (p *pluginInstance) Snapshot(ctx context.Context) ([]byte, error) {
	result, err := p.caller.Call(ctx, plugin.Request{Op: plugin.OpSnapshot})
	if err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, errors.Wrap(exception.ErrPluginFault, result.Error)
	}
	return result.State, nil
}

func (p *pluginInstance) Restore(ctx context.Context, state []byte) error {
	result, err := p.caller.Call(ctx, plugin.Request{Op: plugin.OpRestore, State: state})
	if err != nil {
		return err
	}
	if result.Error != "" {
		return errors.Wrap(exception.ErrPluginFault, result.Error)
	}
	return nil
}

func (p *pluginInstance) Close() error {
	return p.caller.Close()
}
