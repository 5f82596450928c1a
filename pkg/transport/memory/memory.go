// Package memory is an in-process publish/subscribe hub implementing the
// transport interfaces. All data lives in process memory, so it only serves
// clients running in the same process: tests, demos and single-process rooms.
package memory

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/segmentio/encoding/json"

	"github.com/rescp17/lanChat/pkg/transport"
)

// Scheme is the URL scheme served by Dialer, e.g. "mem://demo".
const Scheme = "mem"

// Hub routes publications to the connections subscribed to a channel.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string]map[*Conn]struct{}
	conns map[*Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:  make(map[string]map[*Conn]struct{}),
		conns: make(map[*Conn]struct{}),
	}
}

// Connect opens a connection to the hub.
func (h *Hub) Connect() *Conn {
	c := &Conn{hub: h, inbox: transport.NewInbox(), channels: make(map[string]struct{})}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Subscribers returns the number of connections subscribed to channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Publish delivers data to every subscriber of channel and returns how many received it.
func (h *Hub) Publish(channel string, data json.RawMessage) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.subs[channel]))
	for c := range h.subs[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.inbox.Push(transport.Message{Channel: channel, Data: data}) {
			delivered++
		}
	}
	return delivered
}

// Shutdown terminates every open connection with err, as a server going away would.
func (h *Hub) Shutdown(err error) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.terminate(err)
	}
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	for ch, subs := range h.subs {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.subs, ch)
		}
	}
}

// Conn is a connection to a Hub.
type Conn struct {
	hub   *Hub
	inbox *transport.Inbox

	mu       sync.Mutex
	closed   bool
	channels map[string]struct{}
}

var _ transport.Conn = (*Conn)(nil)

// Subscribe implements transport.Conn.
func (c *Conn) Subscribe(ctx context.Context, channel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	c.channels[channel] = struct{}{}

	c.hub.mu.Lock()
	subs, ok := c.hub.subs[channel]
	if !ok {
		subs = make(map[*Conn]struct{})
		c.hub.subs[channel] = subs
	}
	subs[c] = struct{}{}
	c.hub.mu.Unlock()
	return nil
}

// Publish implements transport.Conn.
func (c *Conn) Publish(ctx context.Context, channel string, data json.RawMessage) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	n := c.hub.Publish(channel, data)
	return transport.NewAck(channel, int64(n)), nil
}

// Messages implements transport.Conn.
func (c *Conn) Messages() <-chan transport.Message {
	return c.inbox.Messages()
}

// Err implements transport.Conn.
func (c *Conn) Err() error {
	return c.inbox.Err()
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.hub.remove(c)
	c.inbox.Abort()
	return nil
}

func (c *Conn) terminate(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.hub.remove(c)
	c.inbox.Finish(err)
}

var (
	hubsMu sync.Mutex
	hubs   = make(map[string]*Hub)
)

// Named returns the process-wide hub registered under name, creating it on first use.
func Named(name string) *Hub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	h, ok := hubs[name]
	if !ok {
		h = NewHub()
		hubs[name] = h
	}
	return h
}

// Dialer connects to hubs. With Hub set every URL resolves to it, otherwise
// the URL host selects a process-wide named hub.
type Dialer struct {
	Hub *Hub
}

// Dial implements transport.Dialer.
func (d Dialer) Dial(ctx context.Context, rawURL string) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Hub != nil {
		return d.Hub.Connect(), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("memory: invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("%w: %q", transport.ErrUnsupportedScheme, u.Scheme)
	}
	return Named(u.Host).Connect(), nil
}
