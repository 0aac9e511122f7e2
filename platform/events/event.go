// Package events provides the in-process event bus used for communication
// between modules. Lead and payment lifecycle events flow through here;
// the package itself carries no marketplace logic.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event published on the bus.
type Event interface {
	// EventName identifies the event type for subscription routing.
	EventName() string
	// OccurredAt reports when the event happened.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events. Embed it and
// implement EventName on the concrete event type.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt reports when the event happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of a subscribed type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish delivers an event to every handler subscribed to its name.
	// Delivery is asynchronous; a failing handler never fails the publisher.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and waits for all handlers.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the name the event reports
	// from EventName.
	Subscribe(eventName string, handler Handler)
}
