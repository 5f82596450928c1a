package transport

import (
	"fmt"

	"github.com/segmentio/encoding/json"
)

// PublishAck is the reply adapters return for a successful publish.
type PublishAck struct {
	Successful bool   `json:"successful"`
	Channel    string `json:"channel"`
	Receivers  *int64 `json:"receivers,omitempty"`
}

// NewAck encodes an acknowledgement for channel. receivers < 0 means unknown.
func NewAck(channel string, receivers int64) json.RawMessage {
	ack := PublishAck{Successful: true, Channel: channel}
	if receivers >= 0 {
		ack.Receivers = &receivers
	}
	data, err := json.Marshal(ack)
	if err != nil {
		// PublishAck only holds plain fields.
		panic(err)
	}
	return data
}

// Encode marshals v into a payload. A json.RawMessage is validated and passed through.
func Encode(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("transport: invalid raw json payload")
		}
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("transport: encode payload: %w", err)
	}
	return data, nil
}

// Decode unmarshals a payload into v.
func Decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transport: decode payload: %w", err)
	}
	return nil
}
