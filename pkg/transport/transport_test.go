package transport

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMux_DialByScheme(t *testing.T) {
	mux := NewMux()
	var dialed string
	mux.Register("MEM", DialerFunc(func(ctx context.Context, rawURL string) (Conn, error) {
		dialed = rawURL
		return nil, nil
	}))

	_, err := mux.Dial(context.Background(), "mem://demo")
	require.NoError(t, err)
	assert.Equal(t, "mem://demo", dialed)
	assert.True(t, mux.Supports("mem://other"))
	assert.ElementsMatch(t, []string{"mem"}, mux.Schemes())

	_, err = mux.Dial(context.Background(), "ws://example.org")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.False(t, mux.Supports("ws://example.org"))

	_, err = mux.Dial(context.Background(), "://bad")
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(map[string]string{"user": "alice", "chat": "hi"})
	require.NoError(t, err)

	var out struct {
		User string `json:"user"`
		Chat string `json:"chat"`
	}
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, "alice", out.User)
	assert.Equal(t, "hi", out.Chat)

	raw, err := Encode(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	_, err = Encode(json.RawMessage(`{"a":`))
	assert.Error(t, err)

	_, err = Encode(make(chan int))
	assert.Error(t, err)

	assert.Error(t, Decode(json.RawMessage(`[`), &out))
}

func TestNewAck(t *testing.T) {
	assert.JSONEq(t, `{"successful":true,"channel":"/chat/demo","receivers":2}`, string(NewAck("/chat/demo", 2)))
	assert.JSONEq(t, `{"successful":true,"channel":"/chat/demo"}`, string(NewAck("/chat/demo", -1)))
}

func TestInbox_DeliversInOrderThenCloses(t *testing.T) {
	in := NewInbox()
	for i := 0; i < 5; i++ {
		require.True(t, in.Push(Message{Channel: "/c", Data: json.RawMessage(`1`)}))
	}
	in.Finish(assert.AnError)
	assert.False(t, in.Push(Message{Channel: "/late"}))

	count := 0
	for msg := range in.Messages() {
		assert.Equal(t, "/c", msg.Channel)
		count++
	}
	assert.Equal(t, 5, count)
	assert.ErrorIs(t, in.Err(), assert.AnError)
}

func TestInbox_AbortDropsPending(t *testing.T) {
	in := NewInbox()
	in.Push(Message{Channel: "/a"})
	in.Push(Message{Channel: "/b"})
	in.Abort()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-in.Messages():
			if !ok {
				assert.NoError(t, in.Err())
				return
			}
		case <-deadline:
			t.Fatal("messages channel not closed after Abort")
		}
	}
}
