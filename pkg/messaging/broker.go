package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope every published payload travels in.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into an envelope.
func NewMessage(id, eventType string, payload interface{}, at time.Time) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Message{ID: id, Type: eventType, OccurredAt: at.UTC(), Payload: raw}, nil
}

// Decode unmarshals the payload into dst.
func (m *Message) Decode(dst interface{}) error {
	return json.Unmarshal(m.Payload, dst)
}
