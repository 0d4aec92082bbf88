package event

import (
	"sync"

	"github.com/permitflow/backend/internal/domain/shared"
)

// HandlerRegistry maps event types to their handlers
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: make(map[string][]shared.EventHandler),
	}
}

// Register adds handler for the given event types, or for every event when
// none are given. Registering the same handler twice for a type is a no-op.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = appendUnique(r.wildcard, handler)
		return
	}
	for _, eventType := range eventTypes {
		r.byType[eventType] = appendUnique(r.byType[eventType], handler)
	}
}

// Unregister removes handler everywhere it was registered
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for eventType, handlers := range r.byType {
		if rest := without(handlers, handler); len(rest) > 0 {
			r.byType[eventType] = rest
		} else {
			delete(r.byType, eventType)
		}
	}
}

// GetHandlers returns the handlers for eventType followed by the wildcard handlers
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.byType[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(r.wildcard))
	out = append(out, typed...)
	return append(out, r.wildcard...)
}

// Count returns the number of distinct registered handlers
func (r *HandlerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[shared.EventHandler]struct{})
	for _, h := range r.wildcard {
		seen[h] = struct{}{}
	}
	for _, handlers := range r.byType {
		for _, h := range handlers {
			seen[h] = struct{}{}
		}
	}
	return len(seen)
}

func appendUnique(handlers []shared.EventHandler, handler shared.EventHandler) []shared.EventHandler {
	for _, h := range handlers {
		if h == handler {
			return handlers
		}
	}
	return append(handlers, handler)
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}
