// Package roomservice answers the service channels chat clients publish to:
// it keeps the member list of every room and relays private messages.
//
// Brokers such as Redis or NATS only fan messages out, so one room service
// process has to run next to them for membership and private chats to work.
package roomservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/lanChat/pkg/chat"
	"github.com/rescp17/lanChat/pkg/metrics"
	"github.com/rescp17/lanChat/pkg/transport"
)

// ErrInvalidRequest is logged for service requests that cannot be handled.
var ErrInvalidRequest = errors.New("roomservice: invalid request")

const roomPrefix = "/chat/"

type request struct {
	channel string
	data    json.RawMessage
}

// Service is a room service bound to one connection.
type Service struct {
	conn    transport.Conn
	metrics *metrics.Metrics
	ready   chan struct{}

	mu      sync.Mutex
	members map[string]map[string]struct{}
}

// New creates a Service publishing through conn. m may be nil.
func New(conn transport.Conn, m *metrics.Metrics) *Service {
	return &Service{
		conn:    conn,
		metrics: m,
		ready:   make(chan struct{}),
		members: make(map[string]map[string]struct{}),
	}
}

// Ready is closed once the service channels are subscribed.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Members returns the sorted member list of room.
func (s *Service) Members(room string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedMembers(room)
}

// sortedMembers must be called with the mutex held.
func (s *Service) sortedMembers(room string) []string {
	names := make([]string, 0, len(s.members[room]))
	for n := range s.members[room] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run serves requests until ctx is done or the connection fails. It returns
// nil when ctx is cancelled or the connection is closed cleanly.
func (s *Service) Run(ctx context.Context) error {
	for _, ch := range []string{chat.MembersServiceChannel, chat.PrivateChatServiceChannel, chat.LeaveServiceChannel} {
		if err := s.conn.Subscribe(ctx, ch); err != nil {
			return fmt.Errorf("roomservice: subscribe %s: %w", ch, err)
		}
	}
	close(s.ready)
	slog.Info("Room service ready")

	g, ctx := errgroup.WithContext(ctx)
	requests := make(chan request, 64)

	g.Go(func() error {
		defer close(requests)
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-s.conn.Messages():
				if !ok {
					if err := s.conn.Err(); err != nil {
						return fmt.Errorf("roomservice: message stream: %w", err)
					}
					return nil
				}
				select {
				case requests <- request{channel: msg.Channel, data: msg.Data}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		for req := range requests {
			if err := s.handle(ctx, req); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Warn("Room service request failed", "channel", req.channel, "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

func roomName(roomChannel string) (string, error) {
	room, ok := strings.CutPrefix(roomChannel, roomPrefix)
	if !ok || room == "" || strings.Contains(room, "/") {
		return "", fmt.Errorf("%w: bad room channel %q", ErrInvalidRequest, roomChannel)
	}
	return room, nil
}

func (s *Service) handle(ctx context.Context, req request) error {
	switch req.channel {
	case chat.MembersServiceChannel, chat.LeaveServiceChannel:
		var p chat.MemberPayload
		if err := json.Unmarshal(req.data, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if p.User == "" {
			return fmt.Errorf("%w: missing user", ErrInvalidRequest)
		}
		room, err := roomName(p.Room)
		if err != nil {
			return err
		}
		joining := req.channel == chat.MembersServiceChannel
		kind := "leave"
		if joining {
			kind = "join"
		}
		s.metrics.IncRelayed(kind)
		return s.updateMembers(ctx, room, p.User, joining)
	case chat.PrivateChatServiceChannel:
		var p chat.PrivateChatPayload
		if err := json.Unmarshal(req.data, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if p.User == "" || p.Peer == "" {
			return fmt.Errorf("%w: private chat needs user and peer", ErrInvalidRequest)
		}
		if _, err := roomName(p.Room); err != nil {
			return err
		}
		s.metrics.IncRelayed("private")
		return s.publish(ctx, p.Room, chat.ChatPayload{
			User:  p.User,
			Chat:  p.Chat,
			Scope: chat.ScopePrivate,
			Peer:  p.Peer,
		})
	default:
		return nil
	}
}

func (s *Service) updateMembers(ctx context.Context, room, user string, joining bool) error {
	s.mu.Lock()
	set, ok := s.members[room]
	if !ok {
		set = make(map[string]struct{})
		s.members[room] = set
	}
	if joining {
		set[user] = struct{}{}
	} else {
		delete(set, user)
	}
	names := s.sortedMembers(room)
	if len(set) == 0 {
		delete(s.members, room)
	}
	s.mu.Unlock()

	slog.Info("Room members changed", "room", room, "user", user, "joined", joining, "members", len(names))
	s.metrics.SetRoomMembers(room, len(names))
	return s.publish(ctx, chat.MembersChannel(room), names)
}

func (s *Service) publish(ctx context.Context, channel string, v any) error {
	data, err := transport.Encode(v)
	if err != nil {
		return err
	}
	if _, err := s.conn.Publish(ctx, channel, data); err != nil {
		return fmt.Errorf("roomservice: publish %s: %w", channel, err)
	}
	return nil
}
