package query

import (
	"fmt"
	"reflect"
)

// ---------------------------------------------------------------------------
// Specification
// ---------------------------------------------------------------------------

// Specification describes what to filter, what related data to eager-load
// and, optionally, how to reshape each result. A nil predicate matches
// every entity.
type Specification[T any] interface {
	// IsSatisfiedBy evaluates the predicate against one entity in process.
	IsSatisfiedBy(entity *T) bool
	Predicate() *Lambda
	Includes() []IncludePath
	Projection() *Lambda
	HasProjection() bool
}

// Base is embedded by concrete specifications. Its builder methods are meant
// to be called from the concrete type's constructor only; once constructed a
// specification is never modified, which makes it safe to evaluate from
// several goroutines at once.
//
//	type ActiveCustomers struct{ query.Base[Customer] }
//
//	func NewActiveCustomers() *ActiveCustomers {
//		s := &ActiveCustomers{}
//		s.Where(func(c query.Expr) query.Expr { return query.Eq(query.Field(c, "Active"), query.Const(true)) })
//		return s
//	}
type Base[T any] struct {
	predicate  *Lambda
	includes   []IncludePath
	projection *Lambda
}

var _ Specification[struct{}] = (*Base[struct{}])(nil)

// Matching builds a standalone specification from a predicate body.
func Matching[T any](build func(x Expr) Expr) *Base[T] {
	b := &Base[T]{}
	b.Where(build)
	return b
}

// All returns a specification with no predicate.
func All[T any]() *Base[T] { return &Base[T]{} }

func (b *Base[T]) Predicate() *Lambda { return b.predicate }

// IsSatisfiedBy runs the predicate through the interpreter. An evaluation
// error counts as no match.
func (b *Base[T]) IsSatisfiedBy(entity *T) bool {
	ok, err := CompilePredicate[T](b.predicate)(entity)
	return err == nil && ok
}

// Includes returns the include paths in registration order. Duplicates are
// kept.
func (b *Base[T]) Includes() []IncludePath { return append([]IncludePath(nil), b.includes...) }

func (b *Base[T]) Projection() *Lambda { return b.projection }

func (b *Base[T]) HasProjection() bool { return b.projection != nil }

// Where sets the predicate from a body over a parameter of type T.
func (b *Base[T]) Where(build func(x Expr) Expr) {
	b.predicate = Where[T](build)
}

// SetPredicate sets an already-built predicate. It panics if the lambda is
// not a boolean function of T.
func (b *Base[T]) SetPredicate(l *Lambda) {
	if l != nil {
		want := reflect.TypeFor[T]()
		if len(l.params) != 1 || !accepts(want, l.params[0].typ) {
			panic(fmt.Errorf("%w: predicate over %s, want %s", ErrTypeMismatch, l.Type(), want))
		}
		mustBool(l.body)
	}
	b.predicate = l
}

// AddInclude registers an eager-load directive from a selector. It panics
// with ErrUnsupportedExpressionShape if the selector cannot be resolved.
func (b *Base[T]) AddInclude(selector *Lambda) {
	p, err := ResolvePath(selector)
	if err != nil {
		panic(err)
	}
	b.includes = append(b.includes, p)
}

// AddIncludeNested registers "load collection, and for each element also
// load member".
func (b *Base[T]) AddIncludeNested(collection, member *Lambda) {
	p, err := ResolveNestedPath(collection, member)
	if err != nil {
		panic(err)
	}
	b.includes = append(b.includes, p)
}

// AddIncludePath registers a path built with the fluent builder. It panics
// if the path does not match the shape of T.
func (b *Base[T]) AddIncludePath(p IncludePath) {
	if err := p.Validate(reflect.TypeFor[T]()); err != nil {
		panic(err)
	}
	b.includes = append(b.includes, p)
}

// SetProjection registers the result projection. A specification carries at
// most one; a second registration panics with ErrDuplicateProjection.
func (b *Base[T]) SetProjection(selector *Lambda) {
	if selector == nil {
		panic(ErrNullArgument)
	}
	if b.projection != nil {
		panic(fmt.Errorf("%w: %s already set, got %s", ErrDuplicateProjection, b.projection, selector))
	}
	want := reflect.TypeFor[T]()
	if len(selector.params) != 1 || !accepts(want, selector.params[0].typ) {
		panic(fmt.Errorf("%w: projection over %s, want %s", ErrTypeMismatch, selector.Type(), want))
	}
	b.projection = selector
}

// Project is a typed helper for SetProjection: the body must construct an R.
func Project[T, R any](build func(x Expr) Expr) *Lambda {
	l := Selector[T](build)
	if want := reflect.TypeFor[R](); l.body.Type() != want {
		panic(fmt.Errorf("%w: projection yields %s, want %s", ErrTypeMismatch, l.body.Type(), want))
	}
	return l
}
