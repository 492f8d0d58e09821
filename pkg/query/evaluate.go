package query

import (
	"fmt"
	"reflect"
)

// ---------------------------------------------------------------------------
// Evaluator
// ---------------------------------------------------------------------------

// Evaluate shapes src with spec: the predicate becomes a filter and each
// include path an eager-load directive, in registration order. The tracking
// mode of src is left as the caller set it. Nothing executes here; the
// returned query is as lazy as src.
func Evaluate[T any](src Query[T], spec Specification[T]) (Query[T], error) {
	if isNil(spec) {
		return Query[T]{}, ErrNullArgument
	}
	q := src
	if pred := spec.Predicate(); pred != nil {
		q = q.Where(pred)
	}
	for _, inc := range spec.Includes() {
		q = q.Include(inc.String())
	}
	return q, nil
}

// EvaluateProjection is Evaluate followed by spec's projection into R. It
// fails with ErrInvalidProjection if spec has no projection or if the
// projection's result type cannot be converted to R.
func EvaluateProjection[T, R any](src Query[T], spec Specification[T]) (Projected[T, R], error) {
	if isNil(spec) {
		return Projected[T, R]{}, ErrNullArgument
	}
	if !spec.HasProjection() {
		return Projected[T, R]{}, fmt.Errorf("%w: %T has no projection", ErrInvalidProjection, spec)
	}
	selector, err := bindResult(spec.Projection(), reflect.TypeFor[R]())
	if err != nil {
		return Projected[T, R]{}, err
	}
	q, err := Evaluate(src, spec)
	if err != nil {
		return Projected[T, R]{}, err
	}
	return Projected[T, R]{source: q, selector: selector}, nil
}

// bindResult returns selector unchanged when it already yields want.
// Otherwise the body is re-bound to a fresh parameter and wrapped in an
// explicit conversion, provided the conversion loses nothing.
func bindResult(selector *Lambda, want reflect.Type) (*Lambda, error) {
	got := selector.ResultType()
	if got == want {
		return selector, nil
	}
	if !convertible(got, want) {
		return nil, fmt.Errorf("%w: projection yields %s, requested %s", ErrInvalidProjection, got, want)
	}
	rebound := Rebind(selector, selector.Param().name)
	return NewLambda(&Conversion{operand: rebound.body, typ: want}, rebound.params...), nil
}
