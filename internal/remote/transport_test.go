package remote

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
	"main/pkg/uds"
)

// serveOnce answers framed requests on accepted connections using handler.
// A nil handler closes the connection without answering.
func serveOnce(t *testing.T, path string, handlers []func(req wireRequest) *wireResponse) {
	t.Helper()
	server, err := uds.NewServer(path)
	require.NoError(t, err)
	require.NoError(t, server.Listen())
	t.Cleanup(func() { server.Close() })

	go func() {
		for _, handler := range handlers {
			conn, err := server.Accept()
			if err != nil {
				return
			}
			if handler == nil {
				_ = conn.Close()
				continue
			}
			for {
				var req wireRequest
				if err := uds.ReadFrame(conn, time.Now().Add(time.Second), &req); err != nil {
					_ = conn.Close()
					break
				}
				resp := handler(req)
				if resp == nil {
					_ = conn.Close()
					break
				}
				if err := uds.WriteFrame(conn, time.Now().Add(time.Second), *resp); err != nil {
					_ = conn.Close()
					break
				}
			}
		}
	}()
}

func TestUDSClientRoundTripsDecimalsExactly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.sock")
	price := decimal.RequireFromString("42000.123456789012345678")

	serveOnce(t, path, []func(req wireRequest) *wireResponse{
		func(req wireRequest) *wireResponse {
			if req.Op != opTick || !req.Tick.Price.Equal(price) {
				return &wireResponse{Error: "price mangled"}
			}
			qty := decimal.RequireFromString("0.000000000000000001")
			sig := schema.NewSignal("BTC-USDT", schema.SignalEnterLong, time.Unix(1700000000, 0).UTC())
			sig.Quantity = &qty
			return &wireResponse{OK: true, Signals: []schema.Signal{sig}}
		},
	})

	client, err := NewUDSClient(TransportConfig{SocketPath: path})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Connect(context.Background()))

	signals, err := client.OnTick(context.Background(), schema.Tick{Symbol: "BTC-USDT", Price: price})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	require.Equal(t, "0.000000000000000001", signals[0].Quantity.String())
}

func TestUDSClientRetriesTransientFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.sock")

	// First connection dies before answering; the retry succeeds.
	serveOnce(t, path, []func(req wireRequest) *wireResponse{
		nil,
		func(wireRequest) *wireResponse { return &wireResponse{OK: true} },
	})

	client, err := NewUDSClient(TransportConfig{
		SocketPath:     path,
		RequestTimeout: 500 * time.Millisecond,
		MaxAttempts:    3,
	})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Connect(context.Background()))

	_, err = client.Initialize(context.Background(), nil)
	require.NoError(t, err)
}

func TestUDSClientGivesUpAfterMaxAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.sock")
	serveOnce(t, path, []func(req wireRequest) *wireResponse{nil, nil, nil, nil})

	client, err := NewUDSClient(TransportConfig{
		SocketPath:     path,
		RequestTimeout: 200 * time.Millisecond,
		MaxAttempts:    2,
	})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Connect(context.Background()))

	_, err = client.Initialize(context.Background(), nil)
	require.Error(t, err)
}

func TestHeartbeatSurfacesRemoteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.sock")

	healthy := true
	serveOnce(t, path, []func(req wireRequest) *wireResponse{
		func(req wireRequest) *wireResponse {
			if req.Op != opHeartbeat {
				return &wireResponse{Error: "unexpected op"}
			}
			if healthy {
				healthy = false
				return &wireResponse{OK: true}
			}
			return &wireResponse{Error: "strategy loop stalled"}
		},
	})

	client, err := NewUDSClient(TransportConfig{SocketPath: path})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, client.Heartbeat(context.Background()))

	err = client.Heartbeat(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "strategy loop stalled")
}

func TestClassifyTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var resp wireResponse
	err := uds.ReadFrame(server, time.Now().Add(10*time.Millisecond), &resp)
	require.Error(t, err)
	require.True(t, transient(classify(err)))
}
