package daq

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/tangkong/hutch-python/errors"
	"github.com/tangkong/hutch-python/pkg/retry"
)

const (
	// lcls2BasePort is the control port for platform 0; each platform
	// gets its own port above it.
	lcls2BasePort = 29980
	// lcls1Port is the shared control port used by the older DAQ
	lcls1Port = 10150

	dialTimeout = 10 * time.Second
)

// remote is a Daq backed by a TCP control connection. Both live
// flavors share this shell; only the class name and address differ.
type remote struct {
	class  string
	addr   string
	logger *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	state  string
	events int
}

func newLCLS1(settings Settings, logger *slog.Logger) *remote {
	host := settings.Host
	if host == "" {
		host = "localhost"
	}
	return &remote{
		class:  "Daq",
		addr:   net.JoinHostPort(host, fmt.Sprintf("%d", lcls1Port)),
		logger: logger,
		state:  stateDisconnected,
	}
}

func newLCLS2(settings Settings, logger *slog.Logger) *remote {
	return &remote{
		class:  "DaqLCLS2",
		addr:   net.JoinHostPort(settings.Host, fmt.Sprintf("%d", lcls2BasePort+settings.Platform)),
		logger: logger,
		state:  stateDisconnected,
	}
}

// Name returns the registry handle
func (r *remote) Name() string { return "daq" }

// ClassName reports the DAQ flavor
func (r *remote) ClassName() string { return r.class }

// Connect dials the control endpoint, retrying transient dial failures
func (r *remote) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return errors.WrapInvalid(
			errors.ErrAlreadyStarted, r.class, "Connect", "state check")
	}

	conn, err := retry.DoWithResult(ctx, errors.DefaultRetryConfig().ToRetryConfig(), func() (net.Conn, error) {
		d := net.Dialer{Timeout: dialTimeout}
		return d.DialContext(ctx, "tcp", r.addr)
	})
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %s: %v", errors.ErrNoConnection, r.addr, err),
			r.class, "Connect", "dial control endpoint")
	}

	r.conn = conn
	r.state = stateConfigured
	r.logger.Info("Connected to daq control", "addr", r.addr, "class", r.class)
	return nil
}

// Disconnect closes the control connection
func (r *remote) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	r.state = stateDisconnected
	if err != nil {
		return errors.Wrap(err, r.class, "Disconnect", "close control connection")
	}
	return nil
}

// Begin starts an acquisition
func (r *remote) Begin(ctx context.Context, events int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return errors.WrapInvalid(
			errors.ErrNotStarted, r.class, "Begin", "state check")
	}
	if r.state == stateRunning {
		return errors.WrapInvalid(
			errors.ErrAlreadyStarted, r.class, "Begin", "state check")
	}
	if err := r.send(ctx, fmt.Sprintf("begin %d\n", events)); err != nil {
		return err
	}
	r.state = stateRunning
	r.events = events
	return nil
}

// End stops the current acquisition
func (r *remote) End(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.state != stateRunning {
		return errors.WrapInvalid(
			errors.ErrNotStarted, r.class, "End", "state check")
	}
	if err := r.send(ctx, "end\n"); err != nil {
		return err
	}
	r.state = stateConfigured
	return nil
}

// State reports the current control state
func (r *remote) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// send writes one control command. Callers hold the mutex.
func (r *remote) send(ctx context.Context, cmd string) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = r.conn.SetWriteDeadline(deadline)
	} else {
		_ = r.conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	}
	if _, err := r.conn.Write([]byte(cmd)); err != nil {
		return errors.WrapTransient(err, r.class, "send", "write control command")
	}
	return nil
}
