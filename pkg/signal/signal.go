// Package signal provides typed notifications with an ordered set of handlers.
//
// A Signal does not schedule anything: Emit runs every handler on the calling
// goroutine, in the order the handlers were connected. Components that emit
// from a foreign goroutine are expected to post the Emit call into the host
// loop first (see internal/hostloop).
package signal

import "sync"

// Handle identifies one connected handler.
type Handle uint64

type handler[T any] struct {
	id Handle
	fn func(T)
}

// Signal is a named notification carrying a value of type T.
// The zero value is ready to use.
type Signal[T any] struct {
	mu       sync.Mutex
	nextID   Handle
	handlers []handler[T]
}

// Connect registers fn and returns a handle that can be used to disconnect it.
func (s *Signal[T]) Connect(fn func(T)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.handlers = append(s.handlers, handler[T]{id: s.nextID, fn: fn})
	return s.nextID
}

// Disconnect removes the handler registered under h. Unknown handles are ignored.
func (s *Signal[T]) Disconnect(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, hd := range s.handlers {
		if hd.id == h {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

// DisconnectAll removes every handler.
func (s *Signal[T]) DisconnectAll() {
	s.mu.Lock()
	s.handlers = nil
	s.mu.Unlock()
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Emit calls every connected handler with v in registration order.
// Handlers connected or disconnected during an emission take effect on the next one.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	handlersCopy := make([]handler[T], len(s.handlers))
	copy(handlersCopy, s.handlers)
	s.mu.Unlock()

	for _, h := range handlersCopy {
		h.fn(v)
	}
}
