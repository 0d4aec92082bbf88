package event

import (
	"context"
	"fmt"

	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InMemoryEventBus dispatches domain events to subscribed handlers in the
// publishing goroutine. A failing handler is logged and does not stop the
// others or fail the publisher.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(log *zap.Logger) *InMemoryEventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   log,
	}
}

// Publish delivers each event to its handlers in registration order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("aggregate_id", event.AggregateID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes are used; an empty list subscribes to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// dispatch runs one handler inside its own span and turns a panic into an error
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "event."+event.EventType(),
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, event.TenantID().String()),
		telemetry.WithAttribute("aggregate_id", event.AggregateID().String()),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		if err != nil {
			telemetry.RecordError(span, err)
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
