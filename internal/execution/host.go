package execution

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/pkg/exception"
	"main/pkg/plugin"
	"main/pkg/uds"
)

const (
	defaultCallTimeout   = 2 * time.Second
	defaultAttachTimeout = 5 * time.Second
)

// caller is the per-instance channel to a plugin. Production uses a child
// process over a unix socket; tests substitute an in-process fake.
type caller interface {
	Call(ctx context.Context, req plugin.Request) (plugin.Result, error)
	Close() error
}

// Host discovers plugin binaries by name in a directory and launches one
// child process per algorithm instance. Each instance gets its own socket;
// a faulty plugin takes down only its own process.
type Host struct {
	dir           string
	callTimeout   time.Duration
	attachTimeout time.Duration
	launch        func(ctx context.Context, name string) (caller, error)
}

// NewHost creates a host over the given plugin directory.
func NewHost(dir string, callTimeout time.Duration) *Host {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	h := &Host{dir: dir, callTimeout: callTimeout, attachTimeout: defaultAttachTimeout}
	h.launch = h.spawn
	return h
}

// Lookup resolves a plugin name to its binary path.
func (h *Host) Lookup(name string) (string, error) {
	if h == nil || h.dir == "" {
		return "", exception.ErrPluginNotFound
	}
	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", exception.ErrPluginNotFound
	}
	if info.Mode()&0o111 == 0 {
		return "", exception.ErrPluginNotFound
	}
	return path, nil
}

// Launch starts a plugin process and returns its caller.
func (h *Host) Launch(ctx context.Context, name string) (caller, error) {
	return h.launch(ctx, name)
}

func (h *Host) spawn(ctx context.Context, name string) (caller, error) {
	binPath, err := h.Lookup(name)
	if err != nil {
		return nil, err
	}

	socketDir, err := os.MkdirTemp("", "plugin-*")
	if err != nil {
		return nil, errors.Wrap(err, "create socket dir")
	}
	socketPath := filepath.Join(socketDir, "plugin.sock")

	server, err := uds.NewServer(socketPath)
	if err != nil {
		_ = os.RemoveAll(socketDir)
		return nil, err
	}
	if err := server.Listen(); err != nil {
		_ = server.Close()
		_ = os.RemoveAll(socketDir)
		return nil, errors.Wrap(err, "listen plugin socket")
	}

	cmd := exec.CommandContext(ctx, binPath)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", plugin.SocketEnv, socketPath))
	if err := cmd.Start(); err != nil {
		_ = server.Close()
		_ = os.RemoveAll(socketDir)
		return nil, errors.Wrap(err, "start plugin").With("name", name)
	}

	conn, err := server.AcceptWithin(h.attachTimeout)
	_ = server.Close()
	if err != nil {
		_ = cmd.Process.Kill()
		_ = os.RemoveAll(socketDir)
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			err = exception.ErrPluginTimeout
		}
		return nil, errors.Wrap(err, "plugin did not attach").With("name", name)
	}

	return &process{
		name:      name,
		cmd:       cmd,
		conn:      conn,
		timeout:   h.callTimeout,
		socketDir: socketDir,
	}, nil
}

// process is the production caller backed by a child process.
type process struct {
	name      string
	cmd       *exec.Cmd
	conn      net.Conn
	timeout   time.Duration
	socketDir string
}

// Call frames one request and waits for the result under the per-call
// deadline. A timeout poisons the connection, so the instance must be torn
// down by the caller.
func (p *process) Call(ctx context.Context, req plugin.Request) (plugin.Result, error) {
	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var result plugin.Result
	if err := uds.Exchange(p.conn, deadline, req, &result); err != nil {
		return plugin.Result{}, p.classify(err)
	}
	return result, nil
}

func (p *process) classify(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return exception.ErrPluginTimeout
	}
	return errors.Wrap(exception.ErrPluginFault, err.Error())
}

// Close asks the plugin to exit, then reaps the process.
func (p *process) Close() error {
	_ = uds.WriteFrame(p.conn, time.Now().Add(time.Second), plugin.Request{Op: plugin.OpShutdown})
	_ = p.conn.Close()

	done := make(chan struct{})
	go func() {
		_ = p.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		if err := p.cmd.Process.Kill(); err != nil {
			logs.Errorf("kill plugin %s: %+v", p.name, err)
		}
		<-done
	}

	return os.RemoveAll(p.socketDir)
}
