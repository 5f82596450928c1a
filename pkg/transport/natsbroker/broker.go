// Package natsbroker implements the transport interfaces on top of NATS subjects.
package natsbroker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/encoding/json"

	"github.com/rescp17/lanChat/pkg/transport"
)

// Scheme is the URL scheme served by Dialer.
const Scheme = "nats"

// DefaultPrefix is the subject prefix of chat traffic.
const DefaultPrefix = "lanchat"

// Config of the NATS dialer.
type Config struct {
	Prefix string
	// Name is reported to the server as the connection name.
	Name string
}

// Dialer opens NATS-backed connections from nats:// URLs.
type Dialer struct {
	config Config
}

// NewDialer creates a Dialer.
func NewDialer(conf Config) *Dialer {
	if conf.Prefix == "" {
		conf.Prefix = DefaultPrefix
	}
	if conf.Name == "" {
		conf.Name = "lanchat"
	}
	return &Dialer{config: conf}
}

// Subject maps a channel name like "/chat/demo" to "<prefix>.chat.demo".
func Subject(prefix, channel string) string {
	return prefix + "." + strings.ReplaceAll(strings.TrimPrefix(channel, "/"), "/", ".")
}

// Dial implements transport.Dialer. Reconnects are disabled: a lost server ends
// the message stream with the connection's last error.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inbox := transport.NewInbox()
	nc, err := nats.Connect(rawURL,
		nats.Name(d.config.Name),
		nats.NoReconnect(),
		nats.ClosedHandler(func(nc *nats.Conn) {
			err := nc.LastError()
			if err == nil {
				err = nats.ErrConnectionClosed
			}
			inbox.Finish(fmt.Errorf("natsbroker: %w", err))
		}),
	)
	if err != nil {
		inbox.Abort()
		return nil, fmt.Errorf("natsbroker: connect: %w", err)
	}
	slog.Debug("nats transport connected", "url", nc.ConnectedUrlRedacted())
	return &Conn{
		prefix: d.config.Prefix,
		nc:     nc,
		inbox:  inbox,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Conn is a connection to a NATS server.
type Conn struct {
	prefix string
	nc     *nats.Conn
	inbox  *transport.Inbox

	mu     sync.Mutex
	closed bool
	subs   map[string]*nats.Subscription
}

var _ transport.Conn = (*Conn)(nil)

// Subscribe implements transport.Conn. The server has registered the
// subscription once the flush round trip completes.
func (c *Conn) Subscribe(ctx context.Context, channel string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	if _, ok := c.subs[channel]; ok {
		c.mu.Unlock()
		return nil
	}
	sub, err := c.nc.Subscribe(Subject(c.prefix, channel), func(m *nats.Msg) {
		c.inbox.Push(transport.Message{Channel: channel, Data: json.RawMessage(m.Data)})
	})
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("natsbroker: subscribe %s: %w", channel, err)
	}
	c.subs[channel] = sub
	c.mu.Unlock()

	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("natsbroker: subscribe %s: %w", channel, err)
	}
	return nil
}

// Publish implements transport.Conn. NATS does not report receivers, so the
// reply omits the count.
func (c *Conn) Publish(ctx context.Context, channel string, data json.RawMessage) (json.RawMessage, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	if err := c.nc.Publish(Subject(c.prefix, channel), data); err != nil {
		return nil, fmt.Errorf("natsbroker: publish %s: %w", channel, err)
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return nil, fmt.Errorf("natsbroker: publish %s: %w", channel, err)
	}
	return transport.NewAck(channel, -1), nil
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

	// Abort first so the closed handler's Finish is ignored.
	c.inbox.Abort()
	c.nc.Close()
	return nil
}
