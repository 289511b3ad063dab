package pubsub

import (
	"context"
	"encoding/json"
)

// Event[T] binds a topic name to a payload type so that publishing and
// decoding stay in sync at compile time.
type Event[T any] struct {
	topicName   string
	description string
}

// NewEvent declares a typed event. Events are usually defined as package-level
// variables next to the topic constants of the module that owns them.
func NewEvent[T any](name string, description string) Event[T] {
	return Event[T]{
		topicName:   name,
		description: description,
	}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Description returns the human-readable purpose of the event.
func (e Event[T]) Description() string {
	return e.description
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		Payload: data,
	})
}

// Decode unmarshals a bus message into the event's payload type.
func Decode[T any](event Event[T], msg Message) (T, error) {
	var payload T
	err := json.Unmarshal(msg.Payload, &payload)
	return payload, err
}
