// Package transport defines the asynchronous publish/subscribe connection the
// protocol client runs on, and picks an adapter by URL scheme.
//
// Adapters live in sub-packages: memory (in-process hub), redisbroker
// (Redis PUB/SUB) and natsbroker (NATS subjects).
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/segmentio/encoding/json"
)

var (
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("transport: connection closed")
	// ErrUnsupportedScheme is returned when no dialer is registered for a URL scheme.
	ErrUnsupportedScheme = errors.New("transport: unsupported url scheme")
)

// Message is one record pushed by the server on a subscribed channel.
type Message struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Conn is a live connection to a publish/subscribe service.
type Conn interface {
	// Subscribe registers interest in channel and returns once the server
	// acknowledged it. Subscribing twice to the same channel is a no-op.
	Subscribe(ctx context.Context, channel string) error
	// Publish sends data to channel and returns the server's reply.
	Publish(ctx context.Context, channel string, data json.RawMessage) (json.RawMessage, error)
	// Messages streams incoming messages. The channel is closed when the
	// connection ends; Err then reports why.
	Messages() <-chan Message
	// Err returns the error that ended the stream, nil after a clean Close.
	Err() error
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, rawURL string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, rawURL string) (Conn, error) {
	return f(ctx, rawURL)
}

// Mux dispatches Dial calls to the dialer registered for the URL scheme.
type Mux struct {
	mu      sync.RWMutex
	dialers map[string]Dialer
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{dialers: make(map[string]Dialer)}
}

// Register binds scheme (without "://") to d, replacing any previous binding.
func (m *Mux) Register(scheme string, d Dialer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialers[strings.ToLower(scheme)] = d
}

// Schemes returns the registered schemes.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schemes := make([]string, 0, len(m.dialers))
	for s := range m.dialers {
		schemes = append(schemes, s)
	}
	return schemes
}

// Supports reports whether rawURL has a registered scheme.
func (m *Mux) Supports(rawURL string) bool {
	_, err := m.lookup(rawURL)
	return err == nil
}

func (m *Mux) lookup(rawURL string) (Dialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid url %q: %w", rawURL, err)
	}
	m.mu.RLock()
	d, ok := m.dialers[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return d, nil
}

// Dial opens a connection with the dialer registered for rawURL's scheme.
func (m *Mux) Dial(ctx context.Context, rawURL string) (Conn, error) {
	d, err := m.lookup(rawURL)
	if err != nil {
		return nil, err
	}
	return d.Dial(ctx, rawURL)
}
