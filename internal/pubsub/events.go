package pubsub

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// EventType identifies the type of event.
type EventType string

// Event represents an event in the lifecycle of a resource.
type Event[T any] struct {
	Type    EventType
	Payload T
	// Version orders events of one broker. Later events have higher
	// versions.
	Version uint64
}

// Subscriber can subscribe to events of a given type.
type Subscriber[T any] interface {
	Observe(fn func(Event[T])) Subscription
}

// Publisher can publish events of a given type.
type Publisher[T any] interface {
	Publish(EventType, T)
}
