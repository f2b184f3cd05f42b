package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus used to tell local
// consumers (UI shims, tests) about replica state changes.
//
// Handlers subscribe by event type and are called synchronously in the
// publishing goroutine, in subscription order. Handler errors are joined and
// returned from Publish. Handlers must not publish on the same bus from
// inside a handler that holds locks the publisher needs.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type().
	Publish(event Event) error
	// PublishAsync publishes in a separate goroutine; the returned channel
	// receives the joined handler error (or nil) and is then closed.
	PublishAsync(event Event) <-chan error
	// Subscribe registers a handler for one event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error
	// Subscribers returns the number of active subscriptions for eventType.
	Subscribers(eventType string) int
	// Close drops every subscription; later calls to Subscribe fail.
	Close() error
}

// Event is an immutable notification.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked once per delivered event.
type EventHandler func(event Event) error

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}
