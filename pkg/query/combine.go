package query

import (
	"reflect"
)

// ---------------------------------------------------------------------------
// Combinators
// ---------------------------------------------------------------------------

// Combined is the AND/OR of two specifications. Its predicate and includes
// are computed on every read; the children are held by reference and never
// modified.
type Combined[T any] struct {
	op          BinaryOp
	left, right Specification[T]
}

var _ Specification[struct{}] = (*Combined[struct{}])(nil)

// And combines left and right so that both predicates must hold.
func And[T any](left, right Specification[T]) (*Combined[T], error) {
	return combine[T](OpAndAlso, left, right)
}

// Or combines left and right so that either predicate may hold.
func Or[T any](left, right Specification[T]) (*Combined[T], error) {
	return combine[T](OpOrElse, left, right)
}

func combine[T any](op BinaryOp, left, right Specification[T]) (*Combined[T], error) {
	if isNil(left) || isNil(right) {
		return nil, ErrNullArgument
	}
	return &Combined[T]{op: op, left: left, right: right}, nil
}

// And chains another specification onto c. Grouping is left to right.
func (c *Combined[T]) And(other Specification[T]) (*Combined[T], error) { return And[T](c, other) }

// Or chains another specification onto c. Grouping is left to right.
func (c *Combined[T]) Or(other Specification[T]) (*Combined[T], error) { return Or[T](c, other) }

// Op returns the joining operator.
func (c *Combined[T]) Op() BinaryOp { return c.op }

// Left returns the left child.
func (c *Combined[T]) Left() Specification[T] { return c.left }

// Right returns the right child.
func (c *Combined[T]) Right() Specification[T] { return c.right }

// Predicate invokes both child predicates on one fresh parameter and joins
// the invocations with AndAlso or OrElse. A missing child predicate counts
// as true; if both are missing the result is nil (match all).
func (c *Combined[T]) Predicate() *Lambda {
	lp, rp := c.left.Predicate(), c.right.Predicate()
	if lp == nil && rp == nil {
		return nil
	}
	x := ParamOf[T]("x")
	return NewLambda(&Binary{op: c.op, left: invokeOrTrue(lp, x), right: invokeOrTrue(rp, x)}, x)
}

// Includes is the left child's includes followed by the right child's,
// duplicates included.
func (c *Combined[T]) Includes() []IncludePath {
	l, r := c.left.Includes(), c.right.Includes()
	out := make([]IncludePath, 0, len(l)+len(r))
	out = append(out, l...)
	return append(out, r...)
}

// IsSatisfiedBy reports whether entity matches both or either child.
func (c *Combined[T]) IsSatisfiedBy(entity *T) bool {
	if c.op == OpAndAlso {
		return c.left.IsSatisfiedBy(entity) && c.right.IsSatisfiedBy(entity)
	}
	return c.left.IsSatisfiedBy(entity) || c.right.IsSatisfiedBy(entity)
}

// Projection is always nil: a combination filters, it does not reshape.
func (c *Combined[T]) Projection() *Lambda { return nil }

func (c *Combined[T]) HasProjection() bool { return false }

// Negated inverts a specification's predicate and keeps its includes.
type Negated[T any] struct {
	inner Specification[T]
}

// NotSpec negates spec.
func NotSpec[T any](spec Specification[T]) (*Negated[T], error) {
	if isNil(spec) {
		return nil, ErrNullArgument
	}
	return &Negated[T]{inner: spec}, nil
}

func (n *Negated[T]) Predicate() *Lambda {
	x := ParamOf[T]("x")
	return NewLambda(&Not{operand: invokeOrTrue(n.inner.Predicate(), x)}, x)
}

func (n *Negated[T]) IsSatisfiedBy(entity *T) bool { return !n.inner.IsSatisfiedBy(entity) }
func (n *Negated[T]) Includes() []IncludePath      { return n.inner.Includes() }
func (n *Negated[T]) Projection() *Lambda          { return nil }
func (n *Negated[T]) HasProjection() bool          { return false }

func invokeOrTrue(pred *Lambda, x *Parameter) Expr {
	if pred == nil {
		return Const(true)
	}
	return Invoke(pred, x)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
