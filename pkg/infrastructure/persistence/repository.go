package persistence

import (
	"context"
	"fmt"
	"reflect"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// Generic repository
// ---------------------------------------------------------------------------

// Repository implements domain.Repository[T] over a Context. Reads route a
// specification through the evaluator; writes register changes with the
// context and save them unless a unit of work is open.
type Repository[T any] struct {
	db   *Context
	kind string
}

// NewRepository creates the repository for T. It panics if T is not in the
// context's catalog.
func NewRepository[T any](db *Context) *Repository[T] {
	kind, err := db.catalog.KindOf(reflect.TypeFor[T]())
	if err != nil {
		panic(err)
	}
	return &Repository[T]{db: db, kind: kind}
}

var _ domain.Repository[struct{}] = (*Repository[struct{}])(nil)

// Source exposes the lazy query over T in the given tracking mode.
func (r *Repository[T]) Source(mode query.TrackingMode) query.Query[T] {
	q := query.From[T](&provider[T]{db: r.db, kind: r.kind})
	if mode == query.NoTracking {
		return q.AsNoTracking()
	}
	return q.AsTracking()
}

func (r *Repository[T]) FindByID(ctx context.Context, id domain.EntityID) (*T, error) {
	item, err := r.Source(query.Tracked).Where(byID[T](id)).SingleOrDefault(ctx)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, r.kind, id)
	}
	return item, nil
}

func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.Source(query.Tracked).ToSlice(ctx)
}

func (r *Repository[T]) Find(ctx context.Context, spec query.Specification[T]) ([]*T, error) {
	q, err := query.Evaluate(r.Source(query.Tracked), spec)
	if err != nil {
		return nil, err
	}
	return q.ToSlice(ctx)
}

func (r *Repository[T]) FindOne(ctx context.Context, spec query.Specification[T]) (*T, error) {
	q, err := query.Evaluate(r.Source(query.Tracked), spec)
	if err != nil {
		return nil, err
	}
	return q.SingleOrDefault(ctx)
}

func (r *Repository[T]) FindNoTracking(ctx context.Context, spec query.Specification[T]) ([]*T, error) {
	q, err := query.Evaluate(r.Source(query.NoTracking), spec)
	if err != nil {
		return nil, err
	}
	return q.ToSlice(ctx)
}

// Count returns the number of entities matching spec.
func (r *Repository[T]) Count(ctx context.Context, spec query.Specification[T]) (int, error) {
	q, err := query.Evaluate(r.Source(query.NoTracking), spec)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return r.CreateMany(ctx, []*T{entity})
}

func (r *Repository[T]) CreateMany(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if err := r.db.Add(e); err != nil {
			return err
		}
	}
	return r.db.autoSave(ctx)
}

func (r *Repository[T]) Update(ctx context.Context, entity *T) error {
	return r.UpdateMany(ctx, []*T{entity})
}

func (r *Repository[T]) UpdateMany(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if err := r.db.Update(e); err != nil {
			return err
		}
	}
	return r.db.autoSave(ctx)
}

func (r *Repository[T]) Delete(ctx context.Context, id domain.EntityID) error {
	return r.DeleteMany(ctx, []domain.EntityID{id})
}

func (r *Repository[T]) DeleteMany(ctx context.Context, ids []domain.EntityID) error {
	for _, id := range ids {
		e, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := r.db.Remove(e); err != nil {
			return err
		}
	}
	return r.db.autoSave(ctx)
}

// SoftDelete deactivates the entity instead of removing it.
func (r *Repository[T]) SoftDelete(ctx context.Context, id domain.EntityID) error {
	e, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	sd, ok := any(e).(domain.SoftDeletable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSoftDeletable, r.kind)
	}
	sd.Deactivate()
	if err := r.db.Update(e); err != nil {
		return err
	}
	return r.db.autoSave(ctx)
}

func byID[T any](id domain.EntityID) *query.Lambda {
	return query.Where[T](func(x query.Expr) query.Expr {
		return query.Eq(query.Field(x, "ID"), query.Const(id))
	})
}
