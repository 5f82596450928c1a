package chat

import (
	appevents "github.com/rescp17/lanChat/internal/app_events"
	"github.com/rescp17/lanChat/pkg/chat"
)

// --- App Events (from TUI to App) ---

// ConnectEvent asks the app to join the configured room.
type ConnectEvent struct {
	appevents.Event
}

// DisconnectEvent asks the app to leave the room.
type DisconnectEvent struct {
	appevents.Event
}

// SendMessageEvent asks the app to send Contents on the selected channel.
type SendMessageEvent struct {
	appevents.Event
	Channel  string
	Type     chat.ChannelType
	Contents string
}

var (
	_ appevents.AppEvent = ConnectEvent{}
	_ appevents.AppEvent = DisconnectEvent{}
	_ appevents.AppEvent = SendMessageEvent{}
)

// --- UI Messages (from App to TUI) ---

type ConnectedMsg struct {
	appevents.UIMessage
}

type DisconnectedMsg struct {
	appevents.UIMessage
}

// ChannelsUpdatedMsg is sent when the channel list was replaced or changed.
type ChannelsUpdatedMsg struct {
	appevents.UIMessage
}

// MessageAddedMsg is sent when a message arrived on Channel.
type MessageAddedMsg struct {
	appevents.UIMessage
	Channel string
	Message chat.ChatMessage
}

var (
	_ appevents.AppUIMessage = ConnectedMsg{}
	_ appevents.AppUIMessage = DisconnectedMsg{}
	_ appevents.AppUIMessage = ChannelsUpdatedMsg{}
	_ appevents.AppUIMessage = MessageAddedMsg{}
)
