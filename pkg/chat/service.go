// Package chat implements the chat room on top of the protocol client: it
// announces the member, sorts incoming messages into per-channel
// conversations and publishes what the user writes.
//
// A Service and the models it creates belong to the host loop. Every method
// must be called from it and every signal is emitted on it.
package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rescp17/lanChat/internal/hostloop"
	"github.com/rescp17/lanChat/internal/session"
	"github.com/rescp17/lanChat/pkg/client"
	"github.com/rescp17/lanChat/pkg/metrics"
	"github.com/rescp17/lanChat/pkg/signal"
	"github.com/rescp17/lanChat/pkg/taskrunner"
	"github.com/rescp17/lanChat/pkg/transport"
)

// DefaultRoom is the room joined when none is configured.
const DefaultRoom = "demo"

var (
	// ErrInvalidState is returned or recorded when the service is used out of order.
	ErrInvalidState = errors.New("chat: invalid state")
	// ErrNoPendingRecipient is recorded when one of our private messages comes
	// back but no outbound private message is waiting for it.
	ErrNoPendingRecipient = errors.New("chat: no pending private message recipient")
)

// Config holds the settings and dependencies of a Service.
type Config struct {
	URL      string
	Room     string
	Username string

	Dialer  transport.Dialer
	Runner  *taskrunner.Runner
	Loop    hostloop.Poster
	Metrics *metrics.Metrics
	// Now stamps incoming messages, time.Now when nil.
	Now func() time.Time
}

// Service is a chat room session.
type Service struct {
	dialer  transport.Dialer
	runner  *taskrunner.Runner
	loop    hostloop.Poster
	metrics *metrics.Metrics
	now     func() time.Time

	url       string
	room      string
	username  string
	lastError string

	client        *client.Client
	clientHandles []func()
	channels      *ChannelsModel
	leaving       bool
	// pendingPrivate holds the recipients of our private messages that have
	// not come back from the service yet, oldest first.
	pendingPrivate []string

	URLChanged       signal.Signal[string]
	RoomChanged      signal.Signal[string]
	UsernameChanged  signal.Signal[string]
	LastErrorChanged signal.Signal[string]
	Connected        signal.Signal[struct{}]
	Disconnected     signal.Signal[struct{}]
	ErrorOccurred    signal.Signal[error]
	// ChannelsChanged fires with the new model on connect and nil on teardown.
	ChannelsChanged signal.Signal[*ChannelsModel]
}

// NewService creates a disconnected Service.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Dialer == nil:
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidState)
	case cfg.Runner == nil:
		return nil, fmt.Errorf("%w: runner is required", ErrInvalidState)
	case cfg.Loop == nil:
		return nil, fmt.Errorf("%w: host loop is required", ErrInvalidState)
	}
	if cfg.Room == "" {
		cfg.Room = DefaultRoom
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		dialer:   cfg.Dialer,
		runner:   cfg.Runner,
		loop:     cfg.Loop,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		url:      cfg.URL,
		room:     cfg.Room,
		username: cfg.Username,
	}, nil
}

func (s *Service) URL() string { return s.url }

func (s *Service) SetURL(url string) {
	s.url = url
	s.URLChanged.Emit(url)
}

func (s *Service) Room() string { return s.room }

// SetRoom changes the room joined by the next Connect. The room of a live
// session cannot change, so it fails with ErrInvalidState until Disconnected.
func (s *Service) SetRoom(room string) error {
	if s.client != nil {
		return fmt.Errorf("%w: cannot change room while in %s", ErrInvalidState, s.room)
	}
	s.room = room
	s.RoomChanged.Emit(room)
	return nil
}

func (s *Service) Username() string { return s.username }

// SetUsername changes the name used by the next Connect. Like SetRoom it
// fails with ErrInvalidState while a session exists.
func (s *Service) SetUsername(username string) error {
	if s.client != nil {
		return fmt.Errorf("%w: cannot rename %s while connected", ErrInvalidState, s.username)
	}
	s.username = username
	s.UsernameChanged.Emit(username)
	return nil
}

// LastError returns the text of the last recorded error.
func (s *Service) LastError() string { return s.lastError }

// Channels returns the current channels model, nil while disconnected.
func (s *Service) Channels() *ChannelsModel { return s.channels }

// State returns the state of the underlying client, Disconnected without one.
func (s *Service) State() session.State {
	if s.client == nil {
		return session.Disconnected
	}
	return s.client.State()
}

func (s *Service) roomChannel() string    { return RoomChannel(s.room) }
func (s *Service) membersChannel() string { return MembersChannel(s.room) }

func (s *Service) setLastError(err error) {
	s.lastError = err.Error()
	s.metrics.IncError()
	s.LastErrorChanged.Emit(s.lastError)
	s.ErrorOccurred.Emit(err)
}

// Connect creates a fresh channels model and client and starts connecting.
func (s *Service) Connect() error {
	if s.client != nil {
		return fmt.Errorf("%w: already connected to %s", ErrInvalidState, s.client.URL())
	}

	channels := NewChannelsModel(s.room)
	channels.SendRequested.Connect(func(req SendRequest) {
		if _, err := s.SendMessage(req.Channel, req.Type, req.Contents); err != nil {
			slog.Error("Failed to send message", "channel", req.Channel, "error", err)
			s.setLastError(err)
		}
	})

	c, err := client.New(client.Config{
		URL:           s.url,
		Subscriptions: []string{s.membersChannel(), s.roomChannel()},
		Dialer:        s.dialer,
		Runner:        s.runner,
		Loop:          s.loop,
	})
	if err != nil {
		channels.Close()
		return err
	}

	hConnected := c.Connected.Connect(func(struct{}) { s.onConnected() })
	hDisconnected := c.Disconnected.Connect(func(struct{}) { s.onDisconnected() })
	hMessage := c.MessageReceived.Connect(s.onMessage)
	hState := c.StateChanged.Connect(func(st session.State) { s.metrics.IncStateTransition(st.String()) })
	// The error handler outlives teardown: a stream failure is reported after Disconnected.
	c.Error.Connect(func(err error) { s.onError(c, err) })
	s.clientHandles = []func(){
		func() { c.Connected.Disconnect(hConnected) },
		func() { c.Disconnected.Disconnect(hDisconnected) },
		func() { c.MessageReceived.Disconnect(hMessage) },
		func() { c.StateChanged.Disconnect(hState) },
	}

	s.client = c
	s.channels = channels
	s.leaving = false
	s.pendingPrivate = nil
	s.ChannelsChanged.Emit(channels)

	slog.Info("Joining room", "room", s.room, "user", s.username, "url", s.url)
	c.Connect()
	return nil
}

func (s *Service) onConnected() {
	if s.client == nil {
		s.consistencyError("connected without a client")
		return
	}
	resp, err := s.client.Publish(MembersServiceChannel, MemberPayload{User: s.username, Room: s.roomChannel()})
	if err != nil {
		slog.Error("Failed to announce member", "error", err)
		s.setLastError(err)
	} else {
		s.watch(resp)
	}
	s.Connected.Emit(struct{}{})
}

func (s *Service) onDisconnected() {
	if s.client == nil {
		s.consistencyError("disconnected without a client")
		return
	}
	s.teardown()
	s.Disconnected.Emit(struct{}{})
}

func (s *Service) onError(c *client.Client, err error) {
	slog.Error("Chat client error", "error", err)
	s.setLastError(err)
	if s.client == c {
		s.teardown()
		s.Disconnected.Emit(struct{}{})
	}
}

func (s *Service) consistencyError(what string) {
	err := fmt.Errorf("%w: %s", ErrInvalidState, what)
	slog.Error("Chat service inconsistency", "error", err)
	s.setLastError(err)
}

func (s *Service) teardown() {
	for _, disconnect := range s.clientHandles {
		disconnect()
	}
	s.clientHandles = nil
	s.client = nil
	if s.channels != nil {
		s.channels.Close()
		s.channels = nil
	}
	s.pendingPrivate = nil
	s.leaving = false
	s.ChannelsChanged.Emit(nil)
}

func (s *Service) onMessage(msg transport.Message) {
	if s.channels == nil {
		s.consistencyError("message received without a channels model")
		return
	}
	ev, err := DecodeEvent(msg, s.room)
	if err != nil {
		slog.Warn("Dropping malformed message", "channel", msg.Channel, "error", err)
		s.setLastError(err)
		return
	}

	switch ev.Kind {
	case EventChat:
		s.onChat(ev.Chat)
	case EventMembers:
		s.metrics.IncReceived("members")
		members := make([]string, 0, len(ev.Members))
		for _, m := range ev.Members {
			if m != s.username {
				members = append(members, m)
			}
		}
		s.channels.UpdateAvailableChannels(members)
	default:
		slog.Debug("Ignoring message", "channel", msg.Channel)
	}
}

func (s *Service) onChat(p ChatPayload) {
	msg := ChatMessage{Time: s.now(), Sender: p.User, Contents: p.Chat}
	if !p.Private() {
		s.metrics.IncReceived("group")
		s.channels.AddIncomingMessage(s.room, Group, msg)
		return
	}

	name := p.User
	if name == s.username {
		// Our own private message came back. The service does not say who it
		// was for, so take the oldest recipient still waiting.
		if len(s.pendingPrivate) == 0 {
			s.setLastError(fmt.Errorf("%w: echo of message %q", ErrNoPendingRecipient, p.Chat))
			return
		}
		name = s.pendingPrivate[0]
		s.pendingPrivate = s.pendingPrivate[1:]
	} else if p.Peer != "" && p.Peer != s.username {
		// Relayed to the whole room but meant for someone else.
		return
	}
	s.metrics.IncReceived("private")
	if !s.channels.AddIncomingMessage(name, User, msg) {
		slog.Debug("No channel for private message", "channel", name)
	}
}

// SendMessage publishes contents on the named channel. Group messages go to
// the room channel, user messages through the private chat service.
func (s *Service) SendMessage(channelName string, typ ChannelType, contents string) (*client.MessageResponse, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: not connected", ErrInvalidState)
	}

	var (
		resp *client.MessageResponse
		err  error
	)
	switch typ {
	case Group:
		resp, err = s.client.Publish(s.roomChannel(), ChatPayload{User: s.username, Chat: contents})
	case User:
		resp, err = s.client.Publish(PrivateChatServiceChannel, PrivateChatPayload{
			Room: s.roomChannel(),
			User: s.username,
			Chat: contents,
			Peer: channelName,
		})
		if err == nil {
			s.pendingPrivate = append(s.pendingPrivate, channelName)
			s.forgetRecipientOnFailure(resp, channelName)
		}
	default:
		return nil, fmt.Errorf("%w: unknown channel type %q", ErrInvalidState, typ)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.IncPublished(string(typ))
	s.watch(resp)
	return resp, nil
}

func (s *Service) watch(resp *client.MessageResponse) {
	resp.Finished.Connect(func(r *client.MessageResponse) {
		if err := r.Err(); err != nil {
			s.metrics.IncPublishFailure()
			slog.Warn("Publish failed", "channel", r.Channel, "response", r.ID, "error", err)
		}
	})
}

// forgetRecipientOnFailure drops the pending recipient of a private message
// whose publish failed, since its echo will never arrive.
func (s *Service) forgetRecipientOnFailure(resp *client.MessageResponse, recipient string) {
	c := s.client
	resp.Finished.Connect(func(r *client.MessageResponse) {
		if r.Err() == nil || s.client != c {
			return
		}
		if i := slices.Index(s.pendingPrivate, recipient); i >= 0 {
			s.pendingPrivate = slices.Delete(s.pendingPrivate, i, i+1)
		}
	})
}

// Disconnect leaves the room. A leave notice is published first and the
// client disconnects once it was answered; calling Disconnect again while the
// notice is in flight disconnects right away.
func (s *Service) Disconnect() error {
	c := s.client
	if c == nil {
		return nil
	}
	if s.leaving || c.State() != session.Connected {
		return c.Disconnect()
	}

	resp, err := c.Publish(LeaveServiceChannel, MemberPayload{User: s.username, Room: s.roomChannel()})
	if err != nil {
		slog.Warn("Failed to publish leave notice", "error", err)
		return c.Disconnect()
	}
	s.leaving = true
	resp.Finished.Connect(func(*client.MessageResponse) {
		if err := c.Disconnect(); err != nil {
			slog.Error("Disconnect failed", "error", err)
			s.setLastError(err)
		}
	})
	return nil
}
