package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in
	// An empty slice means the handler receives all events
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber subscribes to domain events
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// PublishPending publishes and clears the events recorded on agg. Call it only
// after agg was stored. A nil publisher just clears the events.
func PublishPending(ctx context.Context, publisher EventPublisher, agg AggregateRoot) error {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if publisher == nil || len(events) == 0 {
		return nil
	}
	return publisher.Publish(ctx, events...)
}
