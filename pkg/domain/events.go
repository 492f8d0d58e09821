package domain

import "time"

// ---------------------------------------------------------------------------
// Domain event system: the backbone of DDD communication
// ---------------------------------------------------------------------------

// EventType classifies domain events for routing and filtering.
type EventType string

// Bounded context prefixes ensure global uniqueness of event names.
const (
	// Customer context events
	EventCustomerRegistered  EventType = "customer.registered"
	EventCustomerUpdated     EventType = "customer.updated"
	EventCustomerDeactivated EventType = "customer.deactivated"

	// Vehicle context events
	EventVehicleRegistered  EventType = "vehicle.registered"
	EventVehicleDeactivated EventType = "vehicle.deactivated"

	// Service order context events
	EventOrderOpened        EventType = "order.opened"
	EventOrderStatusChanged EventType = "order.status.changed"
	EventOrderItemAdded     EventType = "order.item.added"
	EventOrderQuoted        EventType = "order.quoted"
	EventOrderCompleted     EventType = "order.completed"
	EventOrderCancelled     EventType = "order.cancelled"

	// Inventory context events
	EventPartCreated   EventType = "inventory.part.created"
	EventStockReserved EventType = "inventory.stock.reserved"
	EventStockReleased EventType = "inventory.stock.released"
	EventStockLow      EventType = "inventory.stock.low"
	EventRestocked     EventType = "inventory.stock.restocked"

	// User context events
	EventUserCreated     EventType = "user.created"
	EventUserDeactivated EventType = "user.deactivated"

	// Background job events
	EventJobTriggered EventType = "job.triggered"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"

	// System-level events
	EventSystemStartup  EventType = "system.startup"
	EventSystemShutdown EventType = "system.shutdown"
)

// Event is the interface all domain events implement.
type Event interface {
	// EventType returns the classified event type.
	EventType() EventType
	// OccurredAt returns when the event happened.
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() EntityID
	// Payload returns the event-specific data.
	Payload() interface{}
}

// BaseEvent provides a reusable implementation of the Event interface.
type BaseEvent struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	AggID     EntityID    `json:"aggregate_id"`
	EventData interface{} `json:"data,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() EntityID { return e.AggID }
func (e BaseEvent) Payload() interface{}  { return e.EventData }

// NewEvent creates a new domain event.
func NewEvent(eventType EventType, aggregateID EntityID, data interface{}) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		AggID:     aggregateID,
		EventData: data,
	}
}

// ---------------------------------------------------------------------------
// Event bus: decoupled cross-context communication
// ---------------------------------------------------------------------------

// EventHandler processes a domain event. Handlers should be idempotent.
type EventHandler func(Event)

// EventBus dispatches domain events to registered handlers.
type EventBus interface {
	// Publish dispatches an event to all registered handlers.
	Publish(event Event)
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler)
	// SubscribeAll registers a handler that receives every event.
	SubscribeAll(handler EventHandler)
	// Close shuts down the event bus.
	Close()
}
