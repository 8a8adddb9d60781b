package plugin

import (
	"fmt"
	"os"
	"time"

	"main/internal/schema"
	"main/pkg/uds"
)

// SocketEnv carries the socket path from host to plugin process.
const SocketEnv = "EXEC_PLUGIN_SOCKET"

// Algorithm is the guest-side contract a plugin binary implements. Each
// handler returns the step result; returning an error surfaces it to the
// host as Result.Error without killing the process.
type Algorithm interface {
	Init(ctx InitContext) (Result, error)
	OnTick(tick schema.Tick) (Result, error)
	OnFill(fill schema.Fill) (Result, error)
	OnTimer(timer schema.TimerTick) (Result, error)
	Snapshot() ([]byte, error)
	Restore(state []byte) error
}

// Serve dials the host socket named by SocketEnv and answers calls until
// shutdown or connection loss. Plugin binaries call this from main.
func Serve(algo Algorithm) error {
	path := os.Getenv(SocketEnv)
	if path == "" {
		return fmt.Errorf("plugin: %s is not set", SocketEnv)
	}

	client, err := uds.NewClient(path)
	if err != nil {
		return err
	}
	conn, err := client.Dial()
	if err != nil {
		return fmt.Errorf("plugin: dial host: %w", err)
	}
	defer conn.Close()

	for {
		var req Request
		if err := uds.ReadFrame(conn, time.Time{}, &req); err != nil {
			return err
		}
		if req.Op == OpShutdown {
			return nil
		}

		result := dispatch(algo, req)
		if err := uds.WriteFrame(conn, time.Time{}, result); err != nil {
			return err
		}
	}
}

func dispatch(algo Algorithm, req Request) Result {
	var (
		result Result
		err    error
	)
	switch req.Op {
	case OpInit:
		if req.Init == nil {
			return Result{Error: "init: missing context"}
		}
		result, err = algo.Init(*req.Init)
	case OpTick:
		if req.Tick == nil {
			return Result{Error: "on_tick: missing payload"}
		}
		result, err = algo.OnTick(*req.Tick)
	case OpFill:
		if req.Fill == nil {
			return Result{Error: "on_fill: missing payload"}
		}
		result, err = algo.OnFill(*req.Fill)
	case OpTimer:
		if req.Timer == nil {
			return Result{Error: "on_timer: missing payload"}
		}
		result, err = algo.OnTimer(*req.Timer)
	case OpSnapshot:
		var state []byte
		state, err = algo.Snapshot()
		result = Result{State: state}
	case OpRestore:
		err = algo.Restore(req.State)
	default:
		return Result{Error: fmt.Sprintf("unknown op: %s", req.Op)}
	}

	if err != nil {
		return Result{Error: err.Error()}
	}
	return result
}
