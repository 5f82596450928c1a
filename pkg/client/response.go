package client

import (
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/rescp17/lanChat/pkg/signal"
)

// MessageResponse is the outcome of one Publish call. It is filled in exactly
// once, on the host loop, after which Finished fires.
type MessageResponse struct {
	ID      string
	Channel string

	// Finished fires once, after Err or Result has been set.
	Finished signal.Signal[*MessageResponse]

	mu       sync.Mutex
	done     chan struct{}
	finished bool
	err      error
	result   json.RawMessage
}

func newMessageResponse(channel string) *MessageResponse {
	return &MessageResponse{
		ID:      uuid.NewString(),
		Channel: channel,
		done:    make(chan struct{}),
	}
}

// Err returns the publish failure, nil on success or while pending.
func (r *MessageResponse) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Result returns the server reply, nil on failure or while pending.
func (r *MessageResponse) Result() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// IsFinished reports whether the response has been filled in.
func (r *MessageResponse) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Done is closed when the response is filled in.
func (r *MessageResponse) Done() <-chan struct{} {
	return r.done
}

// finish sets exactly one of the outcome fields and fires Finished. Later calls are ignored.
func (r *MessageResponse) finish(result json.RawMessage, err error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	if err != nil {
		r.err = err
	} else {
		if result == nil {
			result = json.RawMessage("null")
		}
		r.result = result
	}
	r.mu.Unlock()

	close(r.done)
	r.Finished.Emit(r)
}
