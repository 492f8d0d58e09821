// Package eventbus provides the in-process implementation of the domain event bus.
// This is the infrastructure adapter for domain.EventBus.
package eventbus

import (
	"fmt"
	"sync"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
)

// InProcessEventBus is a synchronous in-process event bus. Publish runs
// the handlers on the caller's goroutine once the storage batch that
// produced the event has landed. A panicking handler is logged and skipped
// so the remaining handlers still run.
type InProcessEventBus struct {
	handlers    map[domain.EventType][]domain.EventHandler
	allHandlers []domain.EventHandler
	mu          sync.RWMutex
	closed      bool
}

// New creates a new in-process event bus.
func New() *InProcessEventBus {
	return &InProcessEventBus{
		handlers: make(map[domain.EventType][]domain.EventHandler),
	}
}

// Publish dispatches an event to all matching handlers. Handlers for the
// specific event type run first, then global handlers.
func (b *InProcessEventBus) Publish(event domain.Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	typed := append([]domain.EventHandler(nil), b.handlers[event.EventType()]...)
	global := append([]domain.EventHandler(nil), b.allHandlers...)
	b.mu.RUnlock()

	for _, h := range typed {
		dispatch(h, event)
	}
	for _, h := range global {
		dispatch(h, event)
	}
}

func dispatch(h domain.EventHandler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("eventbus", "Handler panicked", map[string]interface{}{
				"event":     string(event.EventType()),
				"aggregate": event.AggregateID().String(),
				"panic":     fmt.Sprint(r),
			})
		}
	}()
	h(event)
}

// Subscribe registers a handler for a specific event type.
func (b *InProcessEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler that receives every event.
func (b *InProcessEventBus) SubscribeAll(handler domain.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allHandlers = append(b.allHandlers, handler)
}

// Close marks the bus as closed. No more events will be dispatched.
func (b *InProcessEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
}

// PublishAll dispatches events in order, e.g. the result of
// AggregateRoot.PullEvents.
func (b *InProcessEventBus) PublishAll(events []domain.Event) {
	for _, event := range events {
		b.Publish(event)
	}
}

// HandlerCount returns the total number of registered handlers (for diagnostics).
func (b *InProcessEventBus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allHandlers)
	for _, handlers := range b.handlers {
		count += len(handlers)
	}
	return count
}

// Verify interface compliance at compile time.
var _ domain.EventBus = (*InProcessEventBus)(nil)
