package messaging

import (
	"context"
)

// Channels used across the service.
const (
	ChannelSessionChanges = "session.changes"
	ChannelDomainEvents   = "clinic.events"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope published for outbox events.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
