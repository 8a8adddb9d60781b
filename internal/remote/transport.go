package remote

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/pkg/exception"
	"main/pkg/uds"
)

const (
	defaultRequestTimeout = 2 * time.Second
	defaultMaxAttempts    = 3
)

// TransportConfig controls the socket transport.
type TransportConfig struct {
	SocketPath     string
	RequestTimeout time.Duration
	MaxAttempts    int
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// UDSClient talks to a remote strategy over a unix socket with framed JSON
// messages. Transient failures (unavailable, timed out) retry up to the
// configured attempts under a fixed per-request deadline; other errors
// propagate immediately.
type UDSClient struct {
	cfg    TransportConfig
	client *uds.Client
	conn   net.Conn
}

// NewUDSClient creates a client for the given socket path.
func NewUDSClient(cfg TransportConfig) (*UDSClient, error) {
	cfg = cfg.withDefaults()
	client, err := uds.NewClient(cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	return &UDSClient{cfg: cfg, client: client}, nil
}

// Connect dials the remote socket under the context's deadline.
func (c *UDSClient) Connect(ctx context.Context) error {
	conn, err := c.client.DialContext(ctx)
	if err != nil {
		return errors.Wrap(exception.ErrRemoteUnavailable, err.Error())
	}
	c.conn = conn
	return nil
}

// Close drops the connection.
func (c *UDSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *UDSClient) call(ctx context.Context, req wireRequest) (wireResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return wireResponse{}, err
		}

		resp, err := c.roundTrip(ctx, req)
		if err == nil {
			if resp.Error != "" {
				return wireResponse{}, errors.New(resp.Error)
			}
			return resp, nil
		}
		if !transient(err) {
			return wireResponse{}, err
		}
		lastErr = err
	}
	return wireResponse{}, lastErr
}

func (c *UDSClient) roundTrip(ctx context.Context, req wireRequest) (wireResponse, error) {
	if c.conn == nil {
		if err := c.Connect(ctx); err != nil {
			return wireResponse{}, err
		}
	}

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var resp wireResponse
	if err := uds.Exchange(c.conn, deadline, req, &resp); err != nil {
		c.drop()
		return wireResponse{}, classify(err)
	}
	return resp, nil
}

func (c *UDSClient) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func classify(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return errors.Wrap(exception.ErrRemoteDeadlineExceeded, err.Error())
	}
	return errors.Wrap(exception.ErrRemoteUnavailable, err.Error())
}

func transient(err error) bool {
	return stderrors.Is(err, exception.ErrRemoteUnavailable) ||
		stderrors.Is(err, exception.ErrRemoteDeadlineExceeded)
}

// Initialize sends the opaque strategy config and returns any symbol
// override the remote reports.
func (c *UDSClient) Initialize(ctx context.Context, config json.RawMessage) (InitResult, error) {
	resp, err := c.call(ctx, wireRequest{Op: opInitialize, Config: config})
	if err != nil {
		return InitResult{}, err
	}
	return InitResult{Symbols: resp.Symbols}, nil
}

func (c *UDSClient) OnTick(ctx context.Context, tick schema.Tick) ([]schema.Signal, error) {
	resp, err := c.call(ctx, wireRequest{Op: opTick, Tick: &tick})
	if err != nil {
		return nil, err
	}
	return resp.Signals, nil
}

func (c *UDSClient) OnCandle(ctx context.Context, candle schema.Candle) ([]schema.Signal, error) {
	resp, err := c.call(ctx, wireRequest{Op: opCandle, Candle: &candle})
	if err != nil {
		return nil, err
	}
	return resp.Signals, nil
}

func (c *UDSClient) OnOrderBook(ctx context.Context, book schema.OrderBookUpdate) ([]schema.Signal, error) {
	resp, err := c.call(ctx, wireRequest{Op: opOrderBook, OrderBook: &book})
	if err != nil {
		return nil, err
	}
	return resp.Signals, nil
}

func (c *UDSClient) OnFill(ctx context.Context, fill schema.Fill) ([]schema.Signal, error) {
	resp, err := c.call(ctx, wireRequest{Op: opFill, Fill: &fill})
	if err != nil {
		return nil, err
	}
	return resp.Signals, nil
}

// Heartbeat is a liveness ping; it never retries so a missed beat is
// observed at the configured cadence. A remote that answers with an error
// counts as unhealthy.
func (c *UDSClient) Heartbeat(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, wireRequest{Op: opHeartbeat})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}
