package chat

import (
	"sort"

	"github.com/rescp17/lanChat/pkg/signal"
)

// ChannelType distinguishes the room's group channel from private user channels.
type ChannelType string

const (
	Group ChannelType = "group"
	User  ChannelType = "user"
)

// Channel is a chat channel with its conversation.
type Channel struct {
	Name         string
	Type         ChannelType
	Conversation *Conversation
}

// SendRequest asks for Contents to be sent on a channel.
type SendRequest struct {
	Channel  string
	Type     ChannelType
	Contents string
}

// RowChange reports a channel inserted at or removed from Row.
type RowChange struct {
	Row     int
	Channel *Channel
}

// ChannelsModel lists the channels of a room: the group channel at row 0
// followed by the user channels sorted by name. Messages sent from any
// conversation surface as SendRequested.
//
// It is owned by the host loop and is not safe for concurrent use.
type ChannelsModel struct {
	group    *Channel
	channels []*Channel
	handles  map[*Conversation]signal.Handle

	SendRequested signal.Signal[SendRequest]
	RowsInserted  signal.Signal[RowChange]
	RowsRemoved   signal.Signal[RowChange]
}

// NewChannelsModel creates a model with the group channel named groupName.
func NewChannelsModel(groupName string) *ChannelsModel {
	m := &ChannelsModel{handles: make(map[*Conversation]signal.Handle)}
	m.group = m.newChannel(groupName, Group)
	return m
}

func (m *ChannelsModel) newChannel(name string, typ ChannelType) *Channel {
	ch := &Channel{Name: name, Type: typ, Conversation: NewConversation(name)}
	m.handles[ch.Conversation] = ch.Conversation.SendRequested.Connect(func(contents string) {
		m.SendRequested.Emit(SendRequest{Channel: ch.Name, Type: ch.Type, Contents: contents})
	})
	return ch
}

// Group returns the group channel.
func (m *ChannelsModel) Group() *Channel { return m.group }

// Len returns the number of rows, user channels plus the group channel.
func (m *ChannelsModel) Len() int { return len(m.channels) + 1 }

// At returns the channel at row or nil when row is out of range.
func (m *ChannelsModel) At(row int) *Channel {
	switch {
	case row == 0:
		return m.group
	case row >= 1 && row <= len(m.channels):
		return m.channels[row-1]
	default:
		return nil
	}
}

// Find returns the user channel called name or nil.
func (m *ChannelsModel) Find(name string) *Channel {
	if i := m.index(name); i >= 0 {
		return m.channels[i]
	}
	return nil
}

// Names returns the user channel names in row order.
func (m *ChannelsModel) Names() []string {
	names := make([]string, len(m.channels))
	for i, ch := range m.channels {
		names[i] = ch.Name
	}
	return names
}

func (m *ChannelsModel) index(name string) int {
	i := sort.Search(len(m.channels), func(i int) bool { return m.channels[i].Name >= name })
	if i < len(m.channels) && m.channels[i].Name == name {
		return i
	}
	return -1
}

func (m *ChannelsModel) addChannel(name string) {
	ch := m.newChannel(name, User)
	i := sort.Search(len(m.channels), func(i int) bool { return m.channels[i].Name > name })
	m.channels = append(m.channels, nil)
	copy(m.channels[i+1:], m.channels[i:])
	m.channels[i] = ch
	m.RowsInserted.Emit(RowChange{Row: i + 1, Channel: ch})
}

func (m *ChannelsModel) removeChannel(name string) {
	i := m.index(name)
	if i < 0 {
		return
	}
	ch := m.channels[i]
	m.channels = append(m.channels[:i], m.channels[i+1:]...)
	m.release(ch)
	m.RowsRemoved.Emit(RowChange{Row: i + 1, Channel: ch})
}

func (m *ChannelsModel) release(ch *Channel) {
	if h, ok := m.handles[ch.Conversation]; ok {
		ch.Conversation.SendRequested.Disconnect(h)
		delete(m.handles, ch.Conversation)
	}
	ch.Conversation.close()
}

// UpdateAvailableChannels makes the user channels match names: channels for
// new names are added, channels whose name is missing are removed together
// with their conversation. The group channel is never touched.
func (m *ChannelsModel) UpdateAvailableChannels(names []string) {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	current := make(map[string]struct{}, len(m.channels))
	for _, ch := range m.channels {
		current[ch.Name] = struct{}{}
	}

	var added, dropped []string
	for n := range wanted {
		if _, ok := current[n]; !ok {
			added = append(added, n)
		}
	}
	for n := range current {
		if _, ok := wanted[n]; !ok {
			dropped = append(dropped, n)
		}
	}
	sort.Strings(added)
	sort.Strings(dropped)

	for _, n := range added {
		m.addChannel(n)
	}
	for _, n := range dropped {
		m.removeChannel(n)
	}
}

// AddIncomingMessage appends msg to the conversation of the matching channel.
// Group messages always land in the group channel. It reports false when no
// user channel called name exists.
func (m *ChannelsModel) AddIncomingMessage(name string, typ ChannelType, msg ChatMessage) bool {
	if typ == Group {
		m.group.Conversation.AddIncomingMessage(msg)
		return true
	}
	ch := m.Find(name)
	if ch == nil {
		return false
	}
	ch.Conversation.AddIncomingMessage(msg)
	return true
}

// Close disconnects every handler of the model and its conversations.
func (m *ChannelsModel) Close() {
	for _, ch := range m.channels {
		m.release(ch)
	}
	m.release(m.group)
	m.SendRequested.DisconnectAll()
	m.RowsInserted.DisconnectAll()
	m.RowsRemoved.DisconnectAll()
}
