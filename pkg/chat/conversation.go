package chat

import (
	"time"

	"github.com/rescp17/lanChat/pkg/signal"
)

// ChatMessage is one line of a conversation.
type ChatMessage struct {
	Time     time.Time
	Sender   string
	Contents string
}

// MessageAdded is emitted by a Conversation after a message was appended at Row.
type MessageAdded struct {
	Row     int
	Message ChatMessage
}

// Conversation is the chronological list of messages on one channel.
// It is owned by the host loop and is not safe for concurrent use.
type Conversation struct {
	channel  string
	messages []ChatMessage

	// SendRequested fires with the contents the user asked to send here.
	SendRequested signal.Signal[string]
	MessageAdded  signal.Signal[MessageAdded]
}

// NewConversation creates an empty conversation on channel.
func NewConversation(channel string) *Conversation {
	return &Conversation{channel: channel}
}

func (c *Conversation) Channel() string { return c.channel }

func (c *Conversation) Len() int { return len(c.messages) }

// At returns the message at row. ok is false when row is out of range.
func (c *Conversation) At(row int) (msg ChatMessage, ok bool) {
	if row < 0 || row >= len(c.messages) {
		return ChatMessage{}, false
	}
	return c.messages[row], true
}

// Messages returns a copy of the messages in arrival order.
func (c *Conversation) Messages() []ChatMessage {
	return append([]ChatMessage(nil), c.messages...)
}

// Send asks for contents to be sent to this conversation's channel.
func (c *Conversation) Send(contents string) {
	c.SendRequested.Emit(contents)
}

// AddIncomingMessage appends msg.
func (c *Conversation) AddIncomingMessage(msg ChatMessage) {
	c.messages = append(c.messages, msg)
	c.MessageAdded.Emit(MessageAdded{Row: len(c.messages) - 1, Message: msg})
}

func (c *Conversation) close() {
	c.SendRequested.DisconnectAll()
	c.MessageAdded.DisconnectAll()
}
