// Package redisbroker implements the transport interfaces on top of Redis PUB/SUB.
package redisbroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"

	"github.com/rescp17/lanChat/pkg/transport"
)

// Scheme is the URL scheme served by Dialer.
const Scheme = "redis"

// DefaultPrefix namespaces the Redis channels used for chat traffic.
const DefaultPrefix = "lanchat:"

// Config of the Redis dialer.
type Config struct {
	// Prefix is prepended to every channel name (default DefaultPrefix).
	Prefix string
}

// Dialer opens Redis-backed connections from redis:// URLs.
type Dialer struct {
	config Config
}

// NewDialer creates a Dialer.
func NewDialer(conf Config) *Dialer {
	if conf.Prefix == "" {
		conf.Prefix = DefaultPrefix
	}
	return &Dialer{config: conf}
}

// Dial implements transport.Dialer. It verifies the server with a PING and
// starts the subscription reader.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (transport.Conn, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redisbroker: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisbroker: ping %s: %w", opts.Addr, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		prefix:  d.config.Prefix,
		rdb:     rdb,
		ps:      rdb.Subscribe(readCtx),
		inbox:   transport.NewInbox(),
		cancel:  cancel,
		subs:    make(map[string]struct{}),
		waiters: make(map[string][]chan struct{}),
		done:    make(chan struct{}),
	}
	go c.read(readCtx)
	slog.Debug("redis transport connected", "addr", opts.Addr)
	return c, nil
}

// Conn is a connection to Redis. Publishing goes through the regular client,
// subscriptions through one dedicated PubSub connection.
type Conn struct {
	prefix string
	rdb    *redis.Client
	ps     *redis.PubSub
	inbox  *transport.Inbox
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	subs    map[string]struct{}
	waiters map[string][]chan struct{}
	done    chan struct{}
}

var _ transport.Conn = (*Conn)(nil)

func (c *Conn) key(channel string) string {
	return c.prefix + channel
}

func (c *Conn) read(ctx context.Context) {
	defer close(c.done)
	for {
		msg, err := c.ps.Receive(ctx)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed || errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				c.inbox.Finish(nil)
			} else {
				c.inbox.Finish(fmt.Errorf("redisbroker: receive: %w", err))
			}
			return
		}
		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind != "subscribe" {
				continue
			}
			c.mu.Lock()
			c.subs[m.Channel] = struct{}{}
			waiters := c.waiters[m.Channel]
			delete(c.waiters, m.Channel)
			c.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
		case *redis.Message:
			c.inbox.Push(transport.Message{
				Channel: strings.TrimPrefix(m.Channel, c.prefix),
				Data:    json.RawMessage(m.Payload),
			})
		}
	}
}

// Subscribe implements transport.Conn. It returns once Redis confirmed the subscription.
func (c *Conn) Subscribe(ctx context.Context, channel string) error {
	key := c.key(channel)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	if _, ok := c.subs[key]; ok {
		c.mu.Unlock()
		return nil
	}
	ack := make(chan struct{})
	c.waiters[key] = append(c.waiters[key], ack)
	c.mu.Unlock()

	if err := c.ps.Subscribe(ctx, key); err != nil {
		return fmt.Errorf("redisbroker: subscribe %s: %w", channel, err)
	}
	select {
	case <-ack:
		return nil
	case <-c.done:
		if err := c.inbox.Err(); err != nil {
			return err
		}
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish implements transport.Conn. The reply carries the number of
// subscribers Redis delivered to.
func (c *Conn) Publish(ctx context.Context, channel string, data json.RawMessage) (json.RawMessage, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	n, err := c.rdb.Publish(ctx, c.key(channel), []byte(data)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisbroker: publish %s: %w", channel, err)
	}
	return transport.NewAck(channel, n), nil
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

	c.inbox.Abort()
	c.cancel()
	psErr := c.ps.Close()
	<-c.done
	return errors.Join(psErr, c.rdb.Close())
}
