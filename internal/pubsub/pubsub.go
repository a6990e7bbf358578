// Package pubsub is the in-process broadcast bus that carries chat batches
// and realtime events between services and the websocket hub.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics used on the bus
const (
	TopicChatBatches = "chat.batches"
	TopicChatSystem  = "chat.system"
)

// Message is the envelope passed between components on the bus
type Message struct {
	Topic    string
	UserID   string
	Payload  []byte
	Metadata map[string]string
}

// Handler processes one received message
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
// Subscribe returns once the subscription is live; the handler runs on a
// background goroutine until ctx is cancelled or the bus is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is both ends
type Bus interface {
	Publisher
	Subscriber
}

// PublishJSON marshals payload and publishes it on topic
func PublishJSON(ctx context.Context, p Publisher, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, Message{Topic: topic, Payload: data})
}
