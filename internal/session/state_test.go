package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	changed      []State
	connected    int
	disconnected int
	order        []string
}

func attach(m *Machine) *recorder {
	r := &recorder{}
	m.Changed.Connect(func(s State) {
		r.changed = append(r.changed, s)
		r.order = append(r.order, "changed:"+s.String())
	})
	m.Connected.Connect(func(struct{}) {
		r.connected++
		r.order = append(r.order, "connected")
	})
	m.Disconnected.Connect(func(struct{}) {
		r.disconnected++
		r.order = append(r.order, "disconnected")
	})
	return r
}

func TestMachine_InitialState(t *testing.T) {
	assert.Equal(t, Disconnected, NewMachine().State())
}

func TestMachine_SameStateIsNoop(t *testing.T) {
	m := NewMachine()
	r := attach(m)

	assert.False(t, m.Set(Disconnected))
	assert.Empty(t, r.changed)
	assert.Zero(t, r.disconnected)
}

func TestMachine_TransitionSequences(t *testing.T) {
	tests := []struct {
		name             string
		sequence         []State
		wantChanged      []State
		wantConnected    int
		wantDisconnected int
	}{
		{
			name:             "connect then disconnect",
			sequence:         []State{Connected, Disconnected},
			wantChanged:      []State{Connected, Disconnected},
			wantConnected:    1,
			wantDisconnected: 1,
		},
		{
			name:          "repeated assignments collapse",
			sequence:      []State{Connected, Connected, Connected},
			wantChanged:   []State{Connected},
			wantConnected: 1,
		},
		{
			name:          "error has no dedicated notification",
			sequence:      []State{Connected, Error, Error},
			wantChanged:   []State{Connected, Error},
			wantConnected: 1,
		},
		{
			name:             "reconnect from error",
			sequence:         []State{Error, Connected, Disconnected, Disconnected},
			wantChanged:      []State{Error, Connected, Disconnected},
			wantConnected:    1,
			wantDisconnected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			r := attach(m)
			for _, s := range tt.sequence {
				m.Set(s)
			}
			assert.Equal(t, tt.wantChanged, r.changed)
			assert.Equal(t, tt.wantConnected, r.connected)
			assert.Equal(t, tt.wantDisconnected, r.disconnected)
			assert.Equal(t, tt.sequence[len(tt.sequence)-1], m.State())
		})
	}
}

func TestMachine_GenericNotificationFiresFirst(t *testing.T) {
	m := NewMachine()
	r := attach(m)

	m.Set(Connected)
	m.Set(Disconnected)

	assert.Equal(t, []string{
		"changed:connected", "connected",
		"changed:disconnected", "disconnected",
	}, r.order)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "unknown", State(42).String())
}
