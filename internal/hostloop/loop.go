// Package hostloop implements the mailbox through which background goroutines
// hand work back to the single-threaded host loop.
//
// Producers call Post from any goroutine; Post never blocks. The host loop
// waits for work with Wait and runs it with Drain, in arrival order. A
// bubbletea program does this from its Update function, a headless host calls
// Run.
package hostloop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Wait and Run once the loop has been closed.
var ErrClosed = errors.New("host loop closed")

// Poster schedules fn to run on the host loop.
// It reports false when the loop no longer accepts work.
type Poster interface {
	Post(fn func()) bool
}

// Loop is an unbounded FIFO of host loop tasks. It is goroutine safe.
type Loop struct {
	mu      sync.Mutex
	nodes   []func()
	head    int
	tail    int
	cnt     int
	initCap int
	closed  bool

	// wake is closed and replaced on every Post so all waiters see it.
	wake chan struct{}
	done chan struct{}
}

var _ Poster = (*Loop)(nil)

// New returns a Loop with the given initial capacity.
func New(initialCapacity int) *Loop {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Loop{
		nodes:   make([]func(), initialCapacity),
		initCap: initialCapacity,
		wake:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// resize must be called with the mutex held.
func (l *Loop) resize(n int) {
	nodes := make([]func(), n)
	if l.head < l.tail {
		copy(nodes, l.nodes[l.head:l.tail])
	} else if l.cnt > 0 {
		copy(nodes, l.nodes[l.head:])
		copy(nodes[len(l.nodes)-l.head:], l.nodes[:l.tail])
	}
	l.tail = l.cnt % n
	l.head = 0
	l.nodes = nodes
}

// Post appends fn to the back of the queue and wakes a waiting host loop.
// Tasks posted after Close are dropped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	if l.cnt == len(l.nodes) {
		l.resize(l.cnt * 2)
	}
	l.nodes[l.tail] = fn
	l.tail = (l.tail + 1) % len(l.nodes)
	l.cnt++
	close(l.wake)
	l.wake = make(chan struct{})
	l.mu.Unlock()
	return true
}

func (l *Loop) remove() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cnt == 0 {
		return nil, false
	}
	fn := l.nodes[l.head]
	l.nodes[l.head] = nil
	l.head = (l.head + 1) % len(l.nodes)
	l.cnt--
	if n := len(l.nodes) / 2; n >= l.initCap && l.cnt <= n {
		l.resize(n)
	}
	return fn, true
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cnt
}

// Wait blocks until at least one task is queued, ctx is done or the loop is closed.
// Every waiter is woken by a Post.
func (l *Loop) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		closed, cnt, wake := l.closed, l.cnt, l.wake
		l.mu.Unlock()
		if closed {
			return ErrClosed
		}
		if cnt > 0 {
			return nil
		}
		select {
		case <-wake:
		case <-l.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Drain runs the tasks that were queued when it was called and returns how many ran.
// Tasks posted while draining are left for the next call.
func (l *Loop) Drain() int {
	n := l.Len()
	ran := 0
	for ; ran < n; ran++ {
		fn, ok := l.remove()
		if !ok {
			break
		}
		fn()
	}
	return ran
}

// Run services the loop until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.Wait(ctx); err != nil {
			return err
		}
		l.Drain()
	}
}

// RunUntil services the loop until cond, checked after every drain, reports
// true. It returns ctx.Err() or ErrClosed if the loop stops first.
func (l *Loop) RunUntil(ctx context.Context, cond func() bool) error {
	for !cond() {
		if err := l.Wait(ctx); err != nil {
			return err
		}
		l.Drain()
	}
	return nil
}

// Close stops accepting tasks and discards the queued ones.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.nodes = nil
	l.cnt = 0
	l.head, l.tail = 0, 0
	close(l.done)
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
