// Package client drives a long-lived subscribe/publish session over a
// transport.Conn on background goroutines while exposing a non-blocking API
// to a single-threaded host loop.
//
// Every exported method must be called from the host loop. Every signal is
// emitted on the host loop: outcomes computed on worker goroutines are posted
// through the configured hostloop.Poster before they are dispatched.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/rescp17/lanChat/internal/hostloop"
	"github.com/rescp17/lanChat/internal/session"
	"github.com/rescp17/lanChat/pkg/signal"
	"github.com/rescp17/lanChat/pkg/taskrunner"
	"github.com/rescp17/lanChat/pkg/transport"
)

var (
	// ErrInvalidState is returned when an operation is not legal in the current state.
	ErrInvalidState = errors.New("client: invalid state")
	// ErrEncode is returned when a publish payload cannot be serialized.
	ErrEncode = errors.New("client: cannot encode payload")
	// ErrInvalidConfig is returned by New when a dependency is missing.
	ErrInvalidConfig = errors.New("client: invalid config")
)

// Config holds the dependencies of a Client.
type Config struct {
	// URL of the publish/subscribe service.
	URL string
	// Subscriptions are subscribed in order on every connect.
	Subscriptions []string
	Dialer        transport.Dialer
	Runner        *taskrunner.Runner
	Loop          hostloop.Poster
}

// Client is a protocol client.
type Client struct {
	id            string
	url           string
	subscriptions []string
	dialer        transport.Dialer
	runner        *taskrunner.Runner
	loop          hostloop.Poster
	machine       *session.Machine

	mu      sync.Mutex
	pending *taskrunner.Task[struct{}]
	conn    transport.Conn
	lastErr error

	StateChanged    signal.Signal[session.State]
	Connected       signal.Signal[struct{}]
	Disconnected    signal.Signal[struct{}]
	Error           signal.Signal[error]
	MessageReceived signal.Signal[transport.Message]
}

// New creates a disconnected Client.
func New(cfg Config) (*Client, error) {
	switch {
	case cfg.Dialer == nil:
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidConfig)
	case cfg.Runner == nil:
		return nil, fmt.Errorf("%w: runner is required", ErrInvalidConfig)
	case cfg.Loop == nil:
		return nil, fmt.Errorf("%w: host loop is required", ErrInvalidConfig)
	}
	c := &Client{
		id:            uuid.NewString(),
		url:           cfg.URL,
		subscriptions: append([]string(nil), cfg.Subscriptions...),
		dialer:        cfg.Dialer,
		runner:        cfg.Runner,
		loop:          cfg.Loop,
		machine:       session.NewMachine(),
	}
	c.machine.Changed.Connect(func(s session.State) {
		slog.Debug("Client state changed", "client", c.id, "state", s)
		c.StateChanged.Emit(s)
	})
	c.machine.Connected.Connect(func(struct{}) { c.Connected.Emit(struct{}{}) })
	c.machine.Disconnected.Connect(func(struct{}) { c.Disconnected.Emit(struct{}{}) })
	return c, nil
}

// ID identifies the client in logs.
func (c *Client) ID() string { return c.id }

// URL returns the service URL.
func (c *Client) URL() string { return c.url }

// Subscriptions returns a copy of the subscription list.
func (c *Client) Subscriptions() []string {
	return append([]string(nil), c.subscriptions...)
}

// State returns the current session state.
func (c *Client) State() session.State { return c.machine.State() }

// LastError returns the error that last moved the client to the Error state.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Pending reports whether a connect operation is running.
func (c *Client) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Client) post(fn func()) {
	if !c.loop.Post(fn) {
		slog.Debug("Host loop closed, dropping client event", "client", c.id)
	}
}

// Connect starts the session in the background and returns immediately.
// It does nothing while connected or while a previous connect is still running.
func (c *Client) Connect() {
	if c.State() == session.Connected {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return
	}
	slog.Info("Connecting", "client", c.id, "url", c.url)
	c.pending = taskrunner.Schedule(c.runner, c.run, func(t *taskrunner.Task[struct{}]) {
		c.post(func() { c.connectDone(t) })
	})
}

// run is the connect loop. It owns the connection for its whole lifetime.
func (c *Client) run(ctx context.Context) (struct{}, error) {
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		return struct{}{}, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	for _, ch := range c.subscriptions {
		if err := conn.Subscribe(ctx, ch); err != nil {
			return struct{}{}, fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}

	c.post(func() {
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.machine.Set(session.Connected)
	})
	defer c.post(func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		c.machine.Set(session.Disconnected)
	})

	return struct{}{}, c.consume(ctx, conn)
}

func (c *Client) consume(ctx context.Context, conn transport.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-conn.Messages():
			if !ok {
				if err := conn.Err(); err != nil {
					return fmt.Errorf("message stream: %w", err)
				}
				return nil
			}
			c.post(func() { c.MessageReceived.Emit(msg) })
		}
	}
}

func (c *Client) connectDone(t *taskrunner.Task[struct{}]) {
	c.mu.Lock()
	if c.pending == t {
		c.pending = nil
	}
	c.mu.Unlock()

	if t.Cancelled() {
		slog.Info("Connect operation cancelled", "client", c.id)
		return
	}
	err := t.Err()
	if err == nil {
		return
	}
	slog.Error("Client session failed", "client", c.id, "error", err)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.machine.Set(session.Error)
	c.Error.Emit(err)
}

// Disconnect cancels the running session. It does nothing unless connected.
func (c *Client) Disconnect() error {
	if c.State() != session.Connected {
		return nil
	}
	c.mu.Lock()
	t := c.pending
	c.mu.Unlock()
	if t == nil {
		return fmt.Errorf("%w: connected without a pending connect operation", ErrInvalidState)
	}
	slog.Info("Disconnecting", "client", c.id)
	t.Cancel()
	return nil
}

// Publish sends payload to channel in the background. The returned response is
// filled in on the host loop once the server replied or the publish failed.
func (c *Client) Publish(channel string, payload any) (*MessageResponse, error) {
	if c.State() != session.Connected {
		return nil, fmt.Errorf("%w: cannot publish while %s", ErrInvalidState, c.State())
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("%w: no transport connection", ErrInvalidState)
	}

	data, err := transport.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	resp := newMessageResponse(channel)
	taskrunner.Schedule(c.runner,
		func(ctx context.Context) (json.RawMessage, error) {
			return conn.Publish(ctx, channel, data)
		},
		func(t *taskrunner.Task[json.RawMessage]) {
			c.post(func() {
				result, err := t.Result()
				if err != nil {
					slog.Warn("Publish failed", "client", c.id, "channel", channel, "response", resp.ID, "error", err)
				}
				resp.finish(result, err)
			})
		})
	return resp, nil
}
