package domain

import (
	"context"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// Repository pattern: persistence abstraction for all aggregates
// ---------------------------------------------------------------------------

// Reader is the read side of the repository contract. Every query-shaped
// read takes a specification and leaves filtering, eager loading and
// projection to it; the repository only routes the specification to the
// evaluator and materializes the result.
type Reader[T any] interface {
	// FindByID retrieves an entity by its identity. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, id EntityID) (*T, error)
	// FindAll returns every entity, tracked.
	FindAll(ctx context.Context) ([]*T, error)
	// Find returns the tracked entities matching spec.
	Find(ctx context.Context, spec query.Specification[T]) ([]*T, error)
	// FindOne returns the single match, nil if none, and
	// query.ErrMultipleResults if more than one entity matches.
	FindOne(ctx context.Context, spec query.Specification[T]) (*T, error)
	// FindNoTracking returns read-only copies of the entities matching spec.
	FindNoTracking(ctx context.Context, spec query.Specification[T]) ([]*T, error)
	// Source exposes the underlying lazy query for the given tracking mode.
	Source(mode query.TrackingMode) query.Query[T]
}

// Writer is the write side of the repository contract.
type Writer[T any] interface {
	Create(ctx context.Context, entity *T) error
	CreateMany(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	UpdateMany(ctx context.Context, entities []*T) error
	Delete(ctx context.Context, id EntityID) error
	DeleteMany(ctx context.Context, ids []EntityID) error
	// SoftDelete flips the entity's active flag instead of removing it.
	SoftDelete(ctx context.Context, id EntityID) error
}

// Repository defines the generic CRUD contract for aggregate persistence.
// Each bounded context names its own typed alias of this interface.
type Repository[T any] interface {
	Reader[T]
	Writer[T]
}

// ListProjected evaluates spec's projection against the repository's
// read-only source and materializes the reshaped rows. Go methods cannot
// take type parameters, so the projected read lives here.
func ListProjected[T, R any](ctx context.Context, repo Reader[T], spec query.Specification[T]) ([]R, error) {
	q, err := query.EvaluateProjection[T, R](repo.Source(query.NoTracking), spec)
	if err != nil {
		return nil, err
	}
	return q.ToSlice(ctx)
}

// ---------------------------------------------------------------------------
// Unit of Work pattern: transactional boundary
// ---------------------------------------------------------------------------

// UnitOfWork coordinates persistence and event dispatch within a single
// business transaction. After Commit(), pending domain events are published.
type UnitOfWork interface {
	// Begin starts a new unit of work.
	Begin() error
	// Commit persists all changes and dispatches domain events.
	Commit(ctx context.Context) error
	// Rollback discards all changes.
	Rollback() error
	// RegisterNew marks an aggregate as newly created.
	RegisterNew(aggregate interface{})
	// RegisterDirty marks an aggregate as modified.
	RegisterDirty(aggregate interface{})
	// RegisterDeleted marks an aggregate for removal.
	RegisterDeleted(aggregate interface{})
}
