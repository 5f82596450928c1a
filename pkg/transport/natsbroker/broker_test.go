package natsbroker

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/lanChat/pkg/transport"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping embedded nats server in short mode")
	}
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "lanchat.chat.demo", Subject("lanchat", "/chat/demo"))
	assert.Equal(t, "p.service.privatechat", Subject("p", "/service/privatechat"))
	assert.Equal(t, "p.members.demo", Subject("p", "members/demo"))
}

func TestConn_PublishSubscribe(t *testing.T) {
	s := runServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := NewDialer(Config{})
	sub, err := d.Dial(ctx, s.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	pub, err := d.Dial(ctx, s.ClientURL())
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, sub.Subscribe(ctx, "/members/demo"))
	require.NoError(t, sub.Subscribe(ctx, "/chat/demo"))
	require.NoError(t, sub.Subscribe(ctx, "/chat/demo"))

	reply, err := pub.Publish(ctx, "/chat/demo", json.RawMessage(`{"user":"bob","chat":"hi"}`))
	require.NoError(t, err)
	var ack transport.PublishAck
	require.NoError(t, transport.Decode(reply, &ack))
	assert.True(t, ack.Successful)
	assert.Equal(t, "/chat/demo", ack.Channel)
	assert.Nil(t, ack.Receivers)

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "/chat/demo", msg.Channel)
		assert.JSONEq(t, `{"user":"bob","chat":"hi"}`, string(msg.Data))
	case <-ctx.Done():
		t.Fatal("message not received")
	}
}

func TestConn_CloseIsClean(t *testing.T) {
	s := runServer(t)
	ctx := context.Background()

	c, err := NewDialer(Config{}).Dial(ctx, s.ClientURL())
	require.NoError(t, err)
	require.NoError(t, c.Subscribe(ctx, "/chat/demo"))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, ok := <-c.Messages()
	assert.False(t, ok)
	assert.NoError(t, c.Err())
	_, err = c.Publish(ctx, "/chat/demo", json.RawMessage(`1`))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestConn_ServerShutdownEndsStream(t *testing.T) {
	s := runServer(t)
	ctx := context.Background()

	c, err := NewDialer(Config{}).Dial(ctx, s.ClientURL())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Subscribe(ctx, "/chat/demo"))

	s.Shutdown()

	select {
	case _, ok := <-c.Messages():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}
	assert.Error(t, c.Err())
}

func TestDialer_Unreachable(t *testing.T) {
	_, err := NewDialer(Config{}).Dial(context.Background(), "nats://127.0.0.1:1")
	assert.Error(t, err)
}
