package bus

import "time"

// EventBus is the in-process channel a game uses for platform traffic and
// broadcast behavior events.
//
// Key characteristics:
// - Type-based fan-out: handlers subscribe by Event.Type().
// - Topics: each game publishes on its own topic so games sharing a runtime never cross-talk.
// - Synchronous, ordered delivery: handlers run in subscription order in the caller goroutine.
// - Error aggregation: handler errors are joined and returned from PublishToTopic.
type EventBus interface {
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	PublishToTopic(topic string, event Event) error
	// DropTopic removes a topic and cancels every subscription on it.
	DropTopic(topic string)
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type EventHandler func(event Event) error

// Subscription is a registered handler. Cancel is safe to call more than once.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	Cancel() error
}
