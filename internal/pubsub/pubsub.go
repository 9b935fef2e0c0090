// Package pubsub is the in-process event bus the relay publishes its lifecycle
// and diagnostic events on. Consumers (metrics, logging sinks) subscribe by
// topic name without the relay knowing about them.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
// It is intentionally simple to act as a wrapper for raw data.
type Message struct {
	// Topic identifies the event kind (e.g., "relay.connection.opened").
	Topic string
	// ConnectionID identifies the relay connection the event is about, if any.
	ConnectionID string
	// Payload contains the JSON-encoded event body.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context (e.g., timestamps).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with the handler
	// in the background until ctx is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is a Publisher that is also a Subscriber.
type Bus interface {
	Publisher
	Subscriber
}
