// Package ui is the terminal front end of lanchat. Its bubbletea Update
// function is the host loop: it drains the hostloop mailbox whenever work is
// queued, so every chat signal fires on the bubbletea goroutine.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appevents "github.com/rescp17/lanChat/internal/app_events"
	chatEvent "github.com/rescp17/lanChat/internal/app_events/chat"
	"github.com/rescp17/lanChat/internal/hostloop"
	"github.com/rescp17/lanChat/internal/style"
	"github.com/rescp17/lanChat/internal/util"
	"github.com/rescp17/lanChat/pkg/chat"
)

// connState is the connection status shown in the header.
type connState int

const (
	connecting connState = iota
	online
	offline
	failed
)

func (s connState) String() string {
	switch s {
	case connecting:
		return "connecting"
	case online:
		return "online"
	case offline:
		return "offline"
	default:
		return "connection lost"
	}
}

const sidebarWidth = 18

// Options wires the model to a chat service and the host loop it runs on.
type Options struct {
	Service *chat.Service
	Loop    *hostloop.Loop
}

type model struct {
	service *chat.Service
	loop    *hostloop.Loop
	// waitCtx ends the pending waitForLoop command once the program quits.
	waitCtx    context.Context
	cancelWait context.CancelFunc
	// outbox collects the messages chat signals produce while the loop drains.
	outbox []tea.Msg

	state     connState
	leaving   bool
	selected  string
	unread    map[string]int
	lastError string

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int
}

func InitialModel(opts Options) *model {
	ti := textinput.New()
	ti.Placeholder = "Write a message"
	ti.CharLimit = 500
	ti.Focus()

	waitCtx, cancelWait := context.WithCancel(context.Background())
	m := &model{
		service:    opts.Service,
		loop:       opts.Loop,
		waitCtx:    waitCtx,
		cancelWait: cancelWait,
		state:      connecting,
		selected:   opts.Service.Room(),
		unread:     make(map[string]int),
		keys:       defaultKeyMap(),
		help:       help.New(),
		spinner:    style.NewSpinner(),
		input:      ti,
		viewport:   viewport.New(60, 15),
	}
	m.wire()
	return m
}

func (m *model) emit(msg tea.Msg) {
	m.outbox = append(m.outbox, msg)
}

func (m *model) wire() {
	m.service.Connected.Connect(func(struct{}) { m.emit(chatEvent.ConnectedMsg{}) })
	m.service.Disconnected.Connect(func(struct{}) { m.emit(chatEvent.DisconnectedMsg{}) })
	m.service.ErrorOccurred.Connect(func(err error) { m.emit(appevents.AppErrorMsg{Err: err}) })
	m.service.ChannelsChanged.Connect(func(cm *chat.ChannelsModel) {
		if cm != nil {
			m.watchChannels(cm)
		}
		m.emit(chatEvent.ChannelsUpdatedMsg{})
	})
}

func (m *model) watchChannels(cm *chat.ChannelsModel) {
	m.watchConversation(cm.Group())
	cm.RowsInserted.Connect(func(rc chat.RowChange) {
		m.watchConversation(rc.Channel)
		m.emit(chatEvent.ChannelsUpdatedMsg{})
	})
	cm.RowsRemoved.Connect(func(chat.RowChange) {
		m.emit(chatEvent.ChannelsUpdatedMsg{})
	})
}

func (m *model) watchConversation(ch *chat.Channel) {
	name := ch.Name
	ch.Conversation.MessageAdded.Connect(func(a chat.MessageAdded) {
		m.emit(chatEvent.MessageAddedMsg{Channel: name, Message: a.Message})
	})
}

// waitForLoop is a command that reports when the host loop has queued work.
func (m *model) waitForLoop() tea.Cmd {
	loop, ctx := m.loop, m.waitCtx
	return func() tea.Msg {
		if err := loop.Wait(ctx); err != nil {
			return nil
		}
		return appevents.LoopReadyMsg{}
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		m.waitForLoop(),
		func() tea.Msg { return chatEvent.ConnectEvent{} },
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case appevents.LoopReadyMsg:
		m.loop.Drain()
		cmds = append(cmds, m.waitForLoop())
	case appevents.AppEvent:
		m.dispatch(msg)
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.dispatch(chatEvent.DisconnectEvent{})
			m.cancelWait()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			m.moveSelection(1)
		case key.Matches(msg, m.keys.Prev):
			m.moveSelection(-1)
		case key.Matches(msg, m.keys.Reconnect):
			if m.state == offline || m.state == failed {
				m.dispatch(chatEvent.ConnectEvent{})
			}
		case key.Matches(msg, m.keys.Send):
			contents := strings.TrimSpace(m.input.Value())
			if contents != "" && m.state == online {
				m.input.Reset()
				m.dispatch(chatEvent.SendMessageEvent{Channel: m.selected, Contents: contents})
			}
		case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	for len(m.outbox) > 0 {
		msgs := m.outbox
		m.outbox = nil
		for _, out := range msgs {
			m.handleAppMessage(out)
		}
	}
	return m, tea.Batch(cmds...)
}

// dispatch runs a TUI event against the chat service.
func (m *model) dispatch(ev appevents.AppEvent) {
	switch ev := ev.(type) {
	case chatEvent.ConnectEvent:
		m.state = connecting
		m.leaving = false
		if err := m.service.Connect(); err != nil {
			slog.Error("Connect failed", "error", err)
			m.lastError = err.Error()
			m.state = failed
		}
	case chatEvent.DisconnectEvent:
		m.leaving = true
		if err := m.service.Disconnect(); err != nil {
			slog.Error("Disconnect failed", "error", err)
			m.lastError = err.Error()
		}
	case chatEvent.SendMessageEvent:
		ch := m.channel(ev.Channel)
		if ch == nil {
			m.lastError = fmt.Sprintf("channel %s is gone", ev.Channel)
			return
		}
		ch.Conversation.Send(ev.Contents)
	}
}

func (m *model) handleAppMessage(msg tea.Msg) {
	switch msg := msg.(type) {
	case chatEvent.ConnectedMsg:
		slog.Info("Joined room", "room", m.service.Room())
		m.state = online
		m.lastError = ""
	case chatEvent.DisconnectedMsg:
		if m.leaving {
			m.state = offline
		} else {
			m.state = failed
		}
		m.refreshConversation()
	case appevents.AppErrorMsg:
		m.lastError = msg.Err.Error()
		if m.state == connecting {
			m.state = failed
		}
	case chatEvent.ChannelsUpdatedMsg:
		if m.channel(m.selected) == nil {
			m.selected = m.service.Room()
		}
		m.refreshConversation()
	case chatEvent.MessageAddedMsg:
		if msg.Channel == m.selected {
			m.refreshConversation()
		} else {
			m.unread[msg.Channel]++
		}
	}
}

// channel returns the channel called name, the group channel included.
func (m *model) channel(name string) *chat.Channel {
	cm := m.service.Channels()
	if cm == nil {
		return nil
	}
	if cm.Group().Name == name {
		return cm.Group()
	}
	return cm.Find(name)
}

func (m *model) moveSelection(delta int) {
	cm := m.service.Channels()
	if cm == nil {
		return
	}
	row := 0
	for i := 0; i < cm.Len(); i++ {
		if cm.At(i).Name == m.selected {
			row = i
			break
		}
	}
	row = (row + delta + cm.Len()) % cm.Len()
	m.selected = cm.At(row).Name
	delete(m.unread, m.selected)
	m.refreshConversation()
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
	m.input.Width = max(width-sidebarWidth-8, 10)
	m.viewport.Width = max(width-sidebarWidth-6, 10)
	// header, input, error and help lines plus borders
	m.viewport.Height = max(height-8, 3)
	m.refreshConversation()
}

func (m *model) refreshConversation() {
	ch := m.channel(m.selected)
	if ch == nil {
		m.viewport.SetContent(style.HelpStyle.Render("No conversation."))
		return
	}
	var b strings.Builder
	for _, msg := range ch.Conversation.Messages() {
		b.WriteString(style.TimeStyle.Render(msg.Time.Format("15:04")))
		b.WriteString(" ")
		b.WriteString(style.SenderStyle.Render(msg.Sender))
		b.WriteString(": ")
		b.WriteString(msg.Contents)
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *model) headerView() string {
	status := m.state.String()
	switch m.state {
	case connecting:
		status = m.spinner.View() + " " + status
	case online:
		status = style.OnlineStyle.Render(status)
	case failed:
		status = style.ErrorStyle.Render(status)
	default:
		status = style.OfflineStyle.Render(status)
	}
	title := style.TitleStyle.Render("lanchat")
	info := fmt.Sprintf("#%s as %s", m.service.Room(), style.HighlightFontStyle.Render(m.service.Username()))
	return style.HeaderStyle.Render(title + "  " + info + "  " + status)
}

func (m *model) sidebarView() string {
	var b strings.Builder
	cm := m.service.Channels()
	if cm == nil {
		b.WriteString(style.NoCursorStyle.String())
		b.WriteString(style.OfflineStyle.Render(util.PadRight("(no channels)", sidebarWidth)))
		return b.String()
	}
	for i := 0; i < cm.Len(); i++ {
		ch := cm.At(i)
		if ch.Name == m.selected {
			b.WriteString(style.CursorStyle.String())
		} else {
			b.WriteString(style.NoCursorStyle.String())
		}
		label := util.ChannelLabel(ch.Name, ch.Type == chat.Group, m.unread[ch.Name], sidebarWidth)
		if ch.Type == chat.Group {
			b.WriteString(style.GroupChannelStyle.Render(label))
		} else {
			b.WriteString(style.UserChannelStyle.Render(label))
		}
		if i < cm.Len()-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebarView(),
		style.BaseStyle.Render(m.viewport.View()),
	)

	s := m.headerView() + "\n" + body + "\n" + m.input.View() + "\n"
	if m.lastError != "" {
		s += style.ErrorStyle.Render("Error: "+m.lastError) + "\n"
	}
	s += style.HelpStyle.Render(m.help.View(m.keys))
	return s
}
