package query

import (
	"context"
	"errors"
	"iter"
	"sort"
	"testing"
)

type account struct {
	ID      int
	Name    string
	Active  bool
	Score   int32
	Address *address
	Orders  []*order
}

type address struct {
	City string
}

type order struct {
	ID    int
	Total float64
	Lines []*line
}

type line struct {
	SKU string
}

func scenario() []*account {
	return []*account{
		{ID: 1, Name: "Ana", Active: true},
		{ID: 2, Name: "Ana", Active: false},
		{ID: 3, Name: "Bia", Active: true},
	}
}

func nameContains(s string) *Base[account] {
	return Matching[account](func(x Expr) Expr { return Contains(Field(x, "Name"), Const(s)) })
}

func isActive() *Base[account] {
	return Matching[account](func(x Expr) Expr { return Eq(Field(x, "Active"), Const(true)) })
}

func ids(t *testing.T, items []*account) []int {
	t.Helper()
	out := make([]int, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	sort.Ints(out)
	return out
}

func run(t *testing.T, spec Specification[account], data []*account) []int {
	t.Helper()
	q, err := Evaluate(FromSlice(data), spec)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	items, err := q.ToSlice(context.Background())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	return ids(t, items)
}

func mustPanic(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic with %v", want)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", r)
		}
		if !errors.Is(err, want) {
			t.Fatalf("panic %v, want %v", err, want)
		}
	}()
	fn()
}

// countingProvider records how often a plan was executed.
type countingProvider[T any] struct {
	inner SliceProvider[T]
	calls int
	last  Plan
}

func (c *countingProvider[T]) Execute(ctx context.Context, plan Plan) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		c.calls++
		c.last = plan
		for item, err := range c.inner.Execute(ctx, plan) {
			if !yield(item, err) {
				return
			}
		}
	}
}
