package session

import (
	"sync"

	"github.com/rescp17/lanChat/pkg/signal"
)

// State is the connection lifecycle state of a protocol client.
type State int

const (
	// Disconnected is the initial state and the state after a clean shutdown.
	Disconnected State = iota
	// Connected means every subscription was acknowledged and messages are flowing.
	Connected
	// Error means the session ended because of a transport or protocol failure.
	Error
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Machine tracks the current State and notifies listeners about transitions
// in a concurrent-safe manner. Notifications are emitted on the goroutine
// calling Set.
type Machine struct {
	mu    sync.Mutex
	state State

	// Changed fires on every transition with the new state.
	Changed signal.Signal[State]
	// Connected fires after Changed when the new state is Connected.
	Connected signal.Signal[struct{}]
	// Disconnected fires after Changed when the new state is Disconnected.
	Disconnected signal.Signal[struct{}]
}

// NewMachine creates a Machine in the Disconnected state.
func NewMachine() *Machine {
	return &Machine{state: Disconnected}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Set moves the machine to s. Setting the current state again is a no-op and
// fires nothing. It reports whether a transition happened.
func (m *Machine) Set(s State) bool {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return false
	}
	m.state = s
	m.mu.Unlock()

	m.Changed.Emit(s)
	switch s {
	case Connected:
		m.Connected.Emit(struct{}{})
	case Disconnected:
		m.Disconnected.Emit(struct{}{})
	}
	return true
}
