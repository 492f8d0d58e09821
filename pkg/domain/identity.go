// Package domain provides the core DDD building blocks for the workshop
// back office. All bounded contexts share these foundational types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Entity base: every domain object that has identity
// ---------------------------------------------------------------------------

// EntityID is a typed identifier. All entities use string IDs for portability.
type EntityID string

// NewID generates a random (version 4) UUID identifier.
func NewID() EntityID {
	return EntityID(uuid.NewString())
}

// ParseID validates s as a UUID and returns it in canonical form.
func ParseID(s string) (EntityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return EntityID(u.String()), nil
}

// String implements fmt.Stringer.
func (id EntityID) String() string { return string(id) }

// IsZero returns true if the ID is empty.
func (id EntityID) IsZero() bool { return id == "" }

// Identifiable is implemented by every persisted entity.
type Identifiable interface {
	Identity() EntityID
}

// SoftDeletable entities are deactivated instead of removed.
type SoftDeletable interface {
	Identifiable
	Deactivate()
	IsActive() bool
}

// ---------------------------------------------------------------------------
// Timestamp value object
// ---------------------------------------------------------------------------

// Timestamp wraps time.Time with JSON-friendly serialization and domain semantics.
type Timestamp struct {
	time.Time
}

// Now returns the current UTC timestamp.
func Now() Timestamp { return Timestamp{time.Now().UTC()} }

// ZeroTime returns the zero-value timestamp.
func ZeroTime() Timestamp { return Timestamp{} }

// TimestampFrom wraps an existing time.Time.
func TimestampFrom(t time.Time) Timestamp { return Timestamp{t.UTC()} }

// ---------------------------------------------------------------------------
// Aggregate root base
// ---------------------------------------------------------------------------

// AggregateRoot is the base for all aggregate roots. It records domain events
// that occurred during a unit of work, to be dispatched after persistence.
type AggregateRoot struct {
	events []Event
}

// RecordEvent appends a domain event to be dispatched after persistence.
func (a *AggregateRoot) RecordEvent(e Event) {
	a.events = append(a.events, e)
}

// PullEvents returns and clears all pending domain events.
func (a *AggregateRoot) PullEvents() []Event {
	events := a.events
	a.events = nil
	return events
}

// HasPendingEvents returns true if there are undispatched events.
func (a *AggregateRoot) HasPendingEvents() bool {
	return len(a.events) > 0
}

// EventSource is anything that buffers domain events.
type EventSource interface {
	PullEvents() []Event
}
