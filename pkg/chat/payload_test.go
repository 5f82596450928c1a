package chat

import (
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/lanChat/pkg/transport"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		msg     transport.Message
		want    Event
		wantErr bool
	}{
		{
			name: "group chat",
			msg:  transport.Message{Channel: "/chat/demo", Data: json.RawMessage(`{"user":"bob","chat":"hi"}`)},
			want: Event{Kind: EventChat, Chat: ChatPayload{User: "bob", Chat: "hi"}},
		},
		{
			name: "private chat",
			msg:  transport.Message{Channel: "/chat/demo", Data: json.RawMessage(`{"user":"bob","chat":"hi","scope":"private","peer":"alice"}`)},
			want: Event{Kind: EventChat, Chat: ChatPayload{User: "bob", Chat: "hi", Scope: "private", Peer: "alice"}},
		},
		{
			name: "empty chat text",
			msg:  transport.Message{Channel: "/chat/demo", Data: json.RawMessage(`{"user":"bob","chat":""}`)},
			want: Event{Kind: EventChat, Chat: ChatPayload{User: "bob"}},
		},
		{
			name: "members",
			msg:  transport.Message{Channel: "/members/demo", Data: json.RawMessage(`["alice","bob"]`)},
			want: Event{Kind: EventMembers, Members: []string{"alice", "bob"}},
		},
		{
			name: "other room",
			msg:  transport.Message{Channel: "/chat/other", Data: json.RawMessage(`{}`)},
			want: Event{Kind: EventIgnored},
		},
		{
			name:    "chat without user",
			msg:     transport.Message{Channel: "/chat/demo", Data: json.RawMessage(`{"chat":"hi"}`)},
			wantErr: true,
		},
		{
			name:    "chat without text",
			msg:     transport.Message{Channel: "/chat/demo", Data: json.RawMessage(`{"user":"bob"}`)},
			wantErr: true,
		},
		{
			name:    "chat not an object",
			msg:     transport.Message{Channel: "/chat/demo", Data: json.RawMessage(`[1,2]`)},
			wantErr: true,
		},
		{
			name:    "members not a list of names",
			msg:     transport.Message{Channel: "/members/demo", Data: json.RawMessage(`{"user":"bob"}`)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent(tt.msg, "demo")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "/chat/demo", RoomChannel("demo"))
	assert.Equal(t, "/members/demo", MembersChannel("demo"))
}
