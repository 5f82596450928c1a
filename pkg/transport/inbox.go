package transport

import "sync"

// Inbox is an unbounded buffer between an adapter's network reader and the
// Messages channel of a Conn. Push never blocks the reader.
type Inbox struct {
	mu       sync.Mutex
	pending  []Message
	finished bool
	err      error

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	out      chan Message
}

// NewInbox creates an Inbox and starts its delivery goroutine.
func NewInbox() *Inbox {
	in := &Inbox{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		out:  make(chan Message),
	}
	go in.pump()
	return in
}

func (in *Inbox) pump() {
	defer close(in.out)
	for {
		in.mu.Lock()
		if len(in.pending) == 0 {
			finished := in.finished
			in.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-in.wake:
				continue
			case <-in.stop:
				return
			}
		}
		msg := in.pending[0]
		in.pending[0] = Message{}
		in.pending = in.pending[1:]
		in.mu.Unlock()

		select {
		case in.out <- msg:
		case <-in.stop:
			return
		}
	}
}

// Push queues msg for delivery. It reports false once the inbox is finished.
func (in *Inbox) Push(msg Message) bool {
	in.mu.Lock()
	if in.finished {
		in.mu.Unlock()
		return false
	}
	in.pending = append(in.pending, msg)
	in.mu.Unlock()

	select {
	case in.wake <- struct{}{}:
	default:
	}
	return true
}

// Finish stops accepting messages. Queued messages are still delivered before
// the output channel closes. err is reported by Err; only the first call counts.
func (in *Inbox) Finish(err error) {
	in.mu.Lock()
	if in.finished {
		in.mu.Unlock()
		return
	}
	in.finished = true
	in.err = err
	in.mu.Unlock()

	select {
	case in.wake <- struct{}{}:
	default:
	}
}

// Abort finishes the inbox and drops undelivered messages.
func (in *Inbox) Abort() {
	in.Finish(nil)
	in.stopOnce.Do(func() { close(in.stop) })
}

// Messages returns the delivery channel.
func (in *Inbox) Messages() <-chan Message {
	return in.out
}

// Err returns the error given to the first Finish call.
func (in *Inbox) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}
