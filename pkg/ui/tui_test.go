package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevents "github.com/rescp17/lanChat/internal/app_events"
	chatEvent "github.com/rescp17/lanChat/internal/app_events/chat"
	"github.com/rescp17/lanChat/internal/hostloop"
	"github.com/rescp17/lanChat/internal/session"
	"github.com/rescp17/lanChat/pkg/chat"
	"github.com/rescp17/lanChat/pkg/taskrunner"
	"github.com/rescp17/lanChat/pkg/transport/memory"
)

type fixture struct {
	t    *testing.T
	hub  *memory.Hub
	loop *hostloop.Loop
	svc  *chat.Service
	m    *model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := memory.NewHub()
	loop := hostloop.New(16)
	runner := taskrunner.New(context.Background())
	t.Cleanup(func() {
		runner.Close()
		loop.Close()
	})

	svc, err := chat.NewService(chat.Config{
		URL:      "mem://ui",
		Username: "alice",
		Dialer:   memory.Dialer{Hub: hub},
		Runner:   runner,
		Loop:     loop,
	})
	require.NoError(t, err)

	m := InitialModel(Options{Service: svc, Loop: loop})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return &fixture{t: t, hub: hub, loop: loop, svc: svc, m: m}
}

// settle runs the host loop until cond holds, then lets the model consume
// what the signals produced.
func (f *fixture) settle(cond func() bool) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(f.t, f.loop.RunUntil(ctx, cond))
	f.m.Update(appevents.LoopReadyMsg{})
}

func (f *fixture) connect() {
	f.t.Helper()
	f.m.Update(chatEvent.ConnectEvent{})
	f.settle(func() bool { return f.svc.State() == session.Connected })
}

func TestModel_ConnectShowsOnline(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, connecting, f.m.state)

	f.connect()

	assert.Equal(t, online, f.m.state)
	view := f.m.View()
	assert.Contains(t, view, "online")
	assert.Contains(t, view, "#demo")
	assert.Contains(t, view, "alice")
}

func TestModel_SendMessageOnGroup(t *testing.T) {
	f := newFixture(t)
	f.connect()

	f.m.input.SetValue("hello room")
	f.m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, f.m.input.Value())

	f.settle(func() bool { return f.svc.Channels().Group().Conversation.Len() == 1 })
	assert.Contains(t, f.m.View(), "hello room")
}

func TestModel_UnreadCountForOtherChannels(t *testing.T) {
	f := newFixture(t)
	f.connect()

	f.hub.Publish(chat.MembersChannel("demo"), []byte(`["alice","bob"]`))
	f.settle(func() bool { return f.svc.Channels().Find("bob") != nil })

	f.hub.Publish(chat.RoomChannel("demo"), []byte(`{"user":"bob","chat":"psst","scope":"private","peer":"alice"}`))
	f.settle(func() bool { return f.svc.Channels().Find("bob").Conversation.Len() == 1 })

	assert.Equal(t, 1, f.m.unread["bob"])
	assert.Contains(t, f.m.sidebarView(), "bob (1)")

	f.m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "bob", f.m.selected)
	assert.Zero(t, f.m.unread["bob"])
	assert.Contains(t, f.m.View(), "psst")
}

func TestModel_TransportFailureShowsConnectionLost(t *testing.T) {
	f := newFixture(t)
	f.connect()

	f.hub.Shutdown(errors.New("broker went away"))
	f.settle(func() bool { return f.svc.State() != session.Connected && f.svc.LastError() != "" })

	assert.Equal(t, failed, f.m.state)
	assert.Contains(t, f.m.View(), "broker went away")
	assert.Contains(t, f.m.sidebarView(), "(no channels)")
}

func TestModel_QuitLeavesRoom(t *testing.T) {
	f := newFixture(t)
	f.connect()

	_, cmd := f.m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
	assert.True(t, f.m.leaving)

	f.settle(func() bool { return f.svc.State() == session.Disconnected })
	assert.Equal(t, offline, f.m.state)
}

func TestModel_QuitReleasesPendingLoopWait(t *testing.T) {
	f := newFixture(t)
	f.connect()

	// bubbletea keeps the last waitForLoop command running after Quit.
	pending := make(chan tea.Msg, 1)
	go func() { pending <- f.m.waitForLoop()() }()
	time.Sleep(20 * time.Millisecond)

	f.m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	select {
	case <-pending:
	case <-time.After(time.Second):
		t.Fatal("waitForLoop still blocked after quit")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.loop.RunUntil(ctx, func() bool { return f.svc.State() == session.Disconnected }))
}
