package redisbroker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/lanChat/pkg/transport"
)

func redisURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}
	u := os.Getenv("LANCHAT_REDIS_URL")
	if u == "" {
		t.Skip("LANCHAT_REDIS_URL not set")
	}
	return u
}

func TestConn_PublishSubscribe(t *testing.T) {
	u := redisURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := NewDialer(Config{Prefix: "lanchat-test-" + uuid.NewString() + ":"})
	sub, err := d.Dial(ctx, u)
	require.NoError(t, err)
	defer sub.Close()
	pub, err := d.Dial(ctx, u)
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, sub.Subscribe(ctx, "/chat/demo"))
	require.NoError(t, sub.Subscribe(ctx, "/chat/demo"))

	reply, err := pub.Publish(ctx, "/chat/demo", json.RawMessage(`{"user":"bob","chat":"hi"}`))
	require.NoError(t, err)
	var ack transport.PublishAck
	require.NoError(t, transport.Decode(reply, &ack))
	assert.True(t, ack.Successful)
	require.NotNil(t, ack.Receivers)
	assert.Equal(t, int64(1), *ack.Receivers)

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "/chat/demo", msg.Channel)
		assert.JSONEq(t, `{"user":"bob","chat":"hi"}`, string(msg.Data))
	case <-ctx.Done():
		t.Fatal("message not received")
	}

	require.NoError(t, sub.Close())
	_, ok := <-sub.Messages()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
	assert.ErrorIs(t, sub.Subscribe(ctx, "/x"), transport.ErrClosed)
}

func TestDialer_InvalidURL(t *testing.T) {
	_, err := NewDialer(Config{}).Dial(context.Background(), "nats://localhost:4222")
	assert.Error(t, err)
}
