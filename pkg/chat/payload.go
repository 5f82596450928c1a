package chat

import (
	"errors"
	"fmt"

	"github.com/segmentio/encoding/json"

	"github.com/rescp17/lanChat/pkg/transport"
)

// ErrMalformedMessage is returned when an incoming payload does not have the expected shape.
var ErrMalformedMessage = errors.New("chat: malformed message")

const (
	// MembersServiceChannel receives member announcements.
	MembersServiceChannel = "/service/members"
	// PrivateChatServiceChannel receives private messages for relaying.
	PrivateChatServiceChannel = "/service/privatechat"
	// LeaveServiceChannel receives leave notices.
	LeaveServiceChannel = "/service/leave"

	// ScopePrivate marks a relayed private message.
	ScopePrivate = "private"
)

// RoomChannel is the broadcast channel where chat messages of room are published.
func RoomChannel(room string) string { return "/chat/" + room }

// MembersChannel is the broadcast channel carrying the member list of room.
func MembersChannel(room string) string { return "/members/" + room }

// ChatPayload is a message on a room channel.
type ChatPayload struct {
	User  string `json:"user"`
	Chat  string `json:"chat"`
	Scope string `json:"scope,omitempty"`
	Peer  string `json:"peer,omitempty"`
}

// Private reports whether the message is a relayed private message.
func (p ChatPayload) Private() bool { return p.Scope == ScopePrivate }

// MemberPayload announces or removes a member. Room is the room channel, not the bare room name.
type MemberPayload struct {
	User string `json:"user"`
	Room string `json:"room"`
}

// PrivateChatPayload asks the room service to deliver Chat from User to Peer.
type PrivateChatPayload struct {
	Room string `json:"room"`
	User string `json:"user"`
	Chat string `json:"chat"`
	Peer string `json:"peer"`
}

// EventKind tells what an incoming message carries.
type EventKind int

const (
	// EventIgnored is a message on a channel the room does not use.
	EventIgnored EventKind = iota
	EventChat
	EventMembers
)

// Event is a validated incoming message.
type Event struct {
	Kind    EventKind
	Chat    ChatPayload
	Members []string
}

type rawChatPayload struct {
	User  *string `json:"user"`
	Chat  *string `json:"chat"`
	Scope string  `json:"scope"`
	Peer  string  `json:"peer"`
}

// DecodeEvent validates msg against the payload shape of its channel in room.
func DecodeEvent(msg transport.Message, room string) (Event, error) {
	switch msg.Channel {
	case RoomChannel(room):
		var raw rawChatPayload
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			return Event{}, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msg.Channel, err)
		}
		if raw.User == nil || *raw.User == "" {
			return Event{}, fmt.Errorf("%w: %s: missing user", ErrMalformedMessage, msg.Channel)
		}
		if raw.Chat == nil {
			return Event{}, fmt.Errorf("%w: %s: missing chat", ErrMalformedMessage, msg.Channel)
		}
		return Event{Kind: EventChat, Chat: ChatPayload{
			User:  *raw.User,
			Chat:  *raw.Chat,
			Scope: raw.Scope,
			Peer:  raw.Peer,
		}}, nil
	case MembersChannel(room):
		var members []string
		if err := json.Unmarshal(msg.Data, &members); err != nil {
			return Event{}, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msg.Channel, err)
		}
		return Event{Kind: EventMembers, Members: members}, nil
	default:
		return Event{Kind: EventIgnored}, nil
	}
}
