package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/nfrund/topicrelay/internal/topicmgr"
)

// Event[T] wraps a framework topic and provides type-safe publishing and
// subscribing for payloads of type T.
type Event[T any] struct {
	topic topicmgr.Topic
}

// NewEvent defines a typed framework event. The payload's JSON field names are
// recorded in the topic metadata so the catalogue can document them.
func NewEvent[T any](config topicmgr.TopicConfig) Event[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	fields := make([]string, 0)
	typeName := ""
	if t != nil {
		typeName = t.Name()
		if t.Kind() == reflect.Struct {
			for i := 0; i < t.NumField(); i++ {
				tag := t.Field(i).Tag.Get("json")
				if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
					fields = append(fields, name)
				}
			}
		}
	}

	metadata := map[string]interface{}{}
	for k, v := range config.Metadata {
		metadata[k] = v
	}
	metadata["payload_fields"] = fields
	metadata["type_name"] = typeName
	config.Metadata = metadata

	return Event[T]{topic: topicmgr.DefineFramework(config)}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topic.Name()
}

// Topic returns the catalogue definition of the event.
func (e Event[T]) Topic() topicmgr.Topic {
	return e.topic
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], connectionID string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Name(), err)
	}

	return p.Publish(ctx, Message{
		Topic:        event.Name(),
		ConnectionID: connectionID,
		Payload:      data,
	})
}

// Subscribe decodes every message on the event's topic into T before calling fn.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], fn func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.Name(), err)
		}
		return fn(ctx, payload)
	})
}
