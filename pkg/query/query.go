package query

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// ---------------------------------------------------------------------------
// Lazy query pipeline
// ---------------------------------------------------------------------------

// TrackingMode selects whether materialized entities are registered for
// change tracking. The caller of the evaluator chooses it; a specification
// never does.
type TrackingMode int

const (
	Tracked TrackingMode = iota
	NoTracking
)

func (m TrackingMode) String() string {
	if m == NoTracking {
		return "no-tracking"
	}
	return "tracked"
}

// Ordering sorts by the value of Key.
type Ordering struct {
	Key        *Lambda
	Descending bool
}

// Plan is everything a provider needs to execute a query.
type Plan struct {
	Filters  []*Lambda
	Includes []string
	Tracking TrackingMode
	OrderBy  []Ordering
	Skip     int
	Take     int // 0 means no limit
}

// Predicate folds the plan's filters into one lambda over T. It returns nil
// when there are no filters.
func (p Plan) Predicate(t reflect.Type) *Lambda {
	switch len(p.Filters) {
	case 0:
		return nil
	case 1:
		return p.Filters[0]
	}
	x := Param("x", t)
	var body Expr = Invoke(p.Filters[0], x)
	for _, f := range p.Filters[1:] {
		body = &Binary{op: OpAndAlso, left: body, right: Invoke(f, x)}
	}
	return NewLambda(body, x)
}

func (p Plan) clone() Plan {
	p.Filters = slices.Clone(p.Filters)
	p.Includes = slices.Clone(p.Includes)
	p.OrderBy = slices.Clone(p.OrderBy)
	return p
}

// Provider materializes a plan. Execute must not do any work until the
// returned sequence is pulled.
type Provider[T any] interface {
	Execute(ctx context.Context, plan Plan) iter.Seq2[*T, error]
}

// Query is an immutable, lazily executed query over T. Each builder method
// returns a new Query; nothing runs until All, ToSlice, First or Count.
type Query[T any] struct {
	provider Provider[T]
	plan     Plan
}

// From starts a query against a provider.
func From[T any](p Provider[T]) Query[T] {
	return Query[T]{provider: p}
}

// Plan returns a copy of the accumulated plan.
func (q Query[T]) Plan() Plan { return q.plan.clone() }

// Where adds a filter.
func (q Query[T]) Where(pred *Lambda) Query[T] {
	p := q.plan.clone()
	p.Filters = append(p.Filters, pred)
	return Query[T]{provider: q.provider, plan: p}
}

// Include adds an eager-load path. Including a path twice has no further
// effect.
func (q Query[T]) Include(path string) Query[T] {
	if slices.Contains(q.plan.Includes, path) {
		return q
	}
	p := q.plan.clone()
	p.Includes = append(p.Includes, path)
	return Query[T]{provider: q.provider, plan: p}
}

// AsNoTracking switches to read-only materialization.
func (q Query[T]) AsNoTracking() Query[T] { return q.tracking(NoTracking) }

// AsTracking switches to tracked materialization.
func (q Query[T]) AsTracking() Query[T] { return q.tracking(Tracked) }

func (q Query[T]) tracking(m TrackingMode) Query[T] {
	p := q.plan.clone()
	p.Tracking = m
	return Query[T]{provider: q.provider, plan: p}
}

// OrderBy appends an ascending sort key.
func (q Query[T]) OrderBy(key *Lambda) Query[T] { return q.order(key, false) }

// OrderByDescending appends a descending sort key.
func (q Query[T]) OrderByDescending(key *Lambda) Query[T] { return q.order(key, true) }

func (q Query[T]) order(key *Lambda, desc bool) Query[T] {
	p := q.plan.clone()
	p.OrderBy = append(p.OrderBy, Ordering{Key: key, Descending: desc})
	return Query[T]{provider: q.provider, plan: p}
}

// Skip drops the first n results.
func (q Query[T]) Skip(n int) Query[T] {
	p := q.plan.clone()
	p.Skip = n
	return Query[T]{provider: q.provider, plan: p}
}

// Take limits the number of results.
func (q Query[T]) Take(n int) Query[T] {
	p := q.plan.clone()
	p.Take = n
	return Query[T]{provider: q.provider, plan: p}
}

// All executes the query when the sequence is pulled.
func (q Query[T]) All(ctx context.Context) iter.Seq2[*T, error] {
	plan := q.plan.clone()
	return func(yield func(*T, error) bool) {
		for item, err := range q.provider.Execute(ctx, plan) {
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// ToSlice materializes every result.
func (q Query[T]) ToSlice(ctx context.Context) ([]*T, error) {
	var out []*T
	for item, err := range q.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// First returns the first result, or nil if there is none.
func (q Query[T]) First(ctx context.Context) (*T, error) {
	for item, err := range q.Take(1).All(ctx) {
		return item, err
	}
	return nil, nil
}

// SingleOrDefault returns the only result, nil if there is none, and
// ErrMultipleResults if there is more than one.
func (q Query[T]) SingleOrDefault(ctx context.Context) (*T, error) {
	items, err := q.Take(2).ToSlice(ctx)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	}
	return nil, ErrMultipleResults
}

// Count materializes the query and counts the results.
func (q Query[T]) Count(ctx context.Context) (int, error) {
	n := 0
	for _, err := range q.AsNoTracking().All(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Projection
// ---------------------------------------------------------------------------

// Projected is a query whose results are reshaped into R by a selector.
type Projected[T, R any] struct {
	source   Query[T]
	selector *Lambda
}

// Source returns the underlying entity query.
func (p Projected[T, R]) Source() Query[T] { return p.source }

// Selector returns the projection lambda.
func (p Projected[T, R]) Selector() *Lambda { return p.selector }

// All executes the source query and projects each result as it is pulled.
func (p Projected[T, R]) All(ctx context.Context) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		for item, err := range p.source.All(ctx) {
			if err != nil {
				yield(zero, err)
				return
			}
			v, err := Eval(p.selector, reflect.ValueOf(item))
			if err != nil {
				yield(zero, err)
				return
			}
			out, ok := v.Interface().(R)
			if !ok {
				yield(zero, fmt.Errorf("%w: projected %s, want %T", ErrInvalidProjection, v.Type(), zero))
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// ToSlice materializes every projected result.
func (p Projected[T, R]) ToSlice(ctx context.Context) ([]R, error) {
	var out []R
	for r, err := range p.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// In-memory provider
// ---------------------------------------------------------------------------

// SliceProvider runs plans over an in-memory slice. The object graph is
// already loaded, so include paths are accepted and ignored, as is the
// tracking mode.
type SliceProvider[T any] struct {
	items []*T
}

// FromSlice starts a query over items.
func FromSlice[T any](items []*T) Query[T] {
	return From[T](&SliceProvider[T]{items: items})
}

func (s *SliceProvider[T]) Execute(ctx context.Context, plan Plan) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		pred := plan.Predicate(reflect.TypeFor[T]())
		var matched []*T
		for _, item := range s.items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			ok, err := Matches(pred, reflect.ValueOf(item))
			if err != nil {
				yield(nil, err)
				return
			}
			if ok {
				matched = append(matched, item)
			}
		}
		matched, err := ApplyWindow(matched, plan)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, item := range matched {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// ApplyWindow sorts items by the plan's orderings (stable) and then applies
// Skip and Take.
func ApplyWindow[T any](items []*T, plan Plan) ([]*T, error) {
	if len(plan.OrderBy) > 0 {
		keys := make([][]reflect.Value, len(items))
		for i, item := range items {
			keys[i] = make([]reflect.Value, len(plan.OrderBy))
			for j, o := range plan.OrderBy {
				v, err := Eval(o.Key, reflect.ValueOf(item))
				if err != nil {
					return nil, err
				}
				keys[i][j] = v
			}
		}
		idx := make([]int, len(items))
		for i := range idx {
			idx[i] = i
		}
		var sortErr error
		slices.SortStableFunc(idx, func(a, b int) int {
			for j, o := range plan.OrderBy {
				c, err := compare(keys[a][j], keys[b][j])
				if err != nil {
					sortErr = err
					return 0
				}
				if o.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
		sorted := make([]*T, len(items))
		for i, k := range idx {
			sorted[i] = items[k]
		}
		items = sorted
	}
	if plan.Skip > 0 {
		if plan.Skip >= len(items) {
			return nil, nil
		}
		items = items[plan.Skip:]
	}
	if plan.Take > 0 && plan.Take < len(items) {
		items = items[:plan.Take]
	}
	return items, nil
}
