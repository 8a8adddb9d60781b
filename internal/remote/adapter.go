package remote

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/pkg/exception"
)

// Status is the adapter liveness state.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusInitializing
	StatusActive
	StatusDegraded
	StatusTornDown
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusInitializing:
		return "initializing"
	case StatusActive:
		return "active"
	case StatusDegraded:
		return "degraded"
	case StatusTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

const (
	defaultHeartbeatInterval = time.Second
	defaultMissedThreshold   = 3
)

// AdapterConfig controls the remote strategy adapter.
type AdapterConfig struct {
	// Symbols is the local subscription set; a symbol list in the
	// initialize response overrides it, exactly once, before the first
	// event is dispatched.
	Symbols           []string
	InitConfig        json.RawMessage
	HeartbeatInterval time.Duration
	MissedThreshold   int
}

func (c AdapterConfig) withDefaults() AdapterConfig {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.MissedThreshold <= 0 {
		c.MissedThreshold = defaultMissedThreshold
	}
	return c
}

// Adapter runs decision logic out-of-process behind the local strategy
// contract. The heartbeat loop runs on its own schedule and shares only
// the status cell with event dispatch, so dispatch never races a teardown.
type Adapter struct {
	cfg     AdapterConfig
	client  Client
	status  atomic.Int32
	symbols []string
	pending []schema.Signal

	heartbeatWG sync.WaitGroup
	stopBeat    chan struct{}
}

// NewAdapter wraps a client. Start must run before any event dispatch.
func NewAdapter(client Client, cfg AdapterConfig) *Adapter {
	return &Adapter{
		cfg:      cfg.withDefaults(),
		client:   client,
		stopBeat: make(chan struct{}),
	}
}

// Status returns the current liveness state.
func (a *Adapter) Status() Status {
	return Status(a.status.Load())
}

// Symbols returns the effective subscription set after Start.
func (a *Adapter) Symbols() []string {
	return a.symbols
}

// Start connects, initializes the remote, applies any symbol override, and
// launches the heartbeat loop.
func (a *Adapter) Start(ctx context.Context) error {
	a.status.Store(int32(StatusConnecting))
	if err := a.client.Connect(ctx); err != nil {
		a.status.Store(int32(StatusDisconnected))
		return errors.Wrap(err, "connect remote strategy")
	}

	a.status.Store(int32(StatusInitializing))
	result, err := a.client.Initialize(ctx, a.cfg.InitConfig)
	if err != nil {
		a.status.Store(int32(StatusDisconnected))
		_ = a.client.Close()
		return errors.Wrap(err, "initialize remote strategy")
	}

	a.symbols = a.cfg.Symbols
	if len(result.Symbols) > 0 {
		logs.Infof("remote strategy overrides symbols: %v -> %v", a.cfg.Symbols, result.Symbols)
		a.symbols = result.Symbols
	}

	a.status.Store(int32(StatusActive))
	a.heartbeatWG.Add(1)
	go a.heartbeatLoop()
	return nil
}

// Stop tears the adapter down and waits for the heartbeat loop.
func (a *Adapter) Stop() error {
	a.status.Store(int32(StatusTornDown))
	select {
	case <-a.stopBeat:
	default:
		close(a.stopBeat)
	}
	a.heartbeatWG.Wait()
	return a.client.Close()
}

func (a *Adapter) heartbeatLoop() {
	defer a.heartbeatWG.Done()
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-a.stopBeat:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HeartbeatInterval)
			err := a.client.Heartbeat(ctx)
			cancel()

			if err == nil {
				misses = 0
				if a.Status() == StatusDegraded {
					a.status.Store(int32(StatusActive))
				}
				continue
			}

			misses++
			logs.Errorf("remote heartbeat missed (%d/%d): %+v", misses, a.cfg.MissedThreshold, err)
			if misses >= a.cfg.MissedThreshold {
				a.status.Store(int32(StatusTornDown))
				return
			}
			a.status.Store(int32(StatusDegraded))
		}
	}
}

// forwardable reports whether events may still reach the remote.
func (a *Adapter) forwardable() bool {
	switch a.Status() {
	case StatusActive, StatusDegraded:
		return true
	default:
		return false
	}
}

func (a *Adapter) Name() string { return "remote" }

func (a *Adapter) OnTick(ctx context.Context, tick schema.Tick) error {
	if !a.forwardable() {
		return exception.ErrRemoteTornDown
	}
	signals, err := a.client.OnTick(ctx, tick)
	if err != nil {
		return err
	}
	a.pending = append(a.pending, signals...)
	return nil
}

func (a *Adapter) OnCandle(ctx context.Context, candle schema.Candle) error {
	if !a.forwardable() {
		return exception.ErrRemoteTornDown
	}
	signals, err := a.client.OnCandle(ctx, candle)
	if err != nil {
		return err
	}
	a.pending = append(a.pending, signals...)
	return nil
}

func (a *Adapter) OnOrderBook(ctx context.Context, book schema.OrderBookUpdate) error {
	if !a.forwardable() {
		return exception.ErrRemoteTornDown
	}
	signals, err := a.client.OnOrderBook(ctx, book)
	if err != nil {
		return err
	}
	a.pending = append(a.pending, signals...)
	return nil
}

func (a *Adapter) OnFill(ctx context.Context, fill schema.Fill) error {
	if !a.forwardable() {
		return exception.ErrRemoteTornDown
	}
	signals, err := a.client.OnFill(ctx, fill)
	if err != nil {
		return err
	}
	a.pending = append(a.pending, signals...)
	return nil
}

// OnTimer is local only; the wire contract has no timer op.
func (a *Adapter) OnTimer(context.Context, schema.TimerTick) error {
	return nil
}

// DrainSignals returns signals collected since the last drain.
func (a *Adapter) DrainSignals() []schema.Signal {
	if len(a.pending) == 0 {
		return nil
	}
	out := a.pending
	a.pending = nil
	return out
}
