package query

import (
	"fmt"
	"slices"
)

// ---------------------------------------------------------------------------
// Include path resolution
// ---------------------------------------------------------------------------

// ResolvePath turns an include selector into an IncludePath. Three shapes
// are accepted:
//
//	x => x.A.B                       direct or chained member access
//	x => Select(x.Coll, e => e.B)    one level of collection projection
//	x => any(x.Name)                 a conversion around a member access
//
// Anything else fails with ErrUnsupportedExpressionShape naming the
// offending node.
func ResolvePath(selector *Lambda) (IncludePath, error) {
	if selector == nil {
		return IncludePath{}, ErrNullArgument
	}
	if len(selector.params) != 1 {
		return IncludePath{}, unsupported(selector)
	}
	root := selector.params[0]

	switch body := selector.body.(type) {
	case *Member:
		return memberPath(body, root)
	case *Call:
		if body.method != MethodSelect || len(body.args) != 2 {
			return IncludePath{}, unsupported(body)
		}
		coll, err := memberPath(body.args[0], root)
		if err != nil {
			return IncludePath{}, err
		}
		leaf, err := leafPath(body.args[1].(*Lambda))
		if err != nil {
			return IncludePath{}, err
		}
		return coll.Concat(leaf), nil
	case *Conversion:
		m, ok := body.operand.(*Member)
		if !ok {
			return IncludePath{}, unsupported(body)
		}
		return memberPath(m, root)
	}
	return IncludePath{}, unsupported(selector.body)
}

// ResolveNestedPath resolves the two-selector include form: load the
// navigation named by collection and, for each loaded element, the member
// named by nested.
func ResolveNestedPath(collection, nested *Lambda) (IncludePath, error) {
	if collection == nil || nested == nil {
		return IncludePath{}, ErrNullArgument
	}
	head, err := ResolvePath(collection)
	if err != nil {
		return IncludePath{}, err
	}
	leaf, err := leafPath(nested)
	if err != nil {
		return IncludePath{}, err
	}
	return head.Concat(leaf), nil
}

// leafPath resolves the element selector of a collection projection. Only
// member access (optionally wrapped in a conversion) is allowed, so a
// Select nested inside a Select is rejected.
func leafPath(fn *Lambda) (IncludePath, error) {
	if len(fn.params) != 1 {
		return IncludePath{}, unsupported(fn)
	}
	body := fn.body
	if c, ok := body.(*Conversion); ok {
		body = c.operand
	}
	return memberPath(body, fn.params[0])
}

// memberPath walks a member chain from the leaf up to root, then returns
// the segments root-to-leaf.
func memberPath(e Expr, root *Parameter) (IncludePath, error) {
	var stack []Segment
	cur := e
	for {
		switch n := cur.(type) {
		case *Member:
			stack = append(stack, Segment{Name: n.name, Collection: isCollection(n.typ)})
			cur = n.target
			continue
		case *Parameter:
			if n != root || len(stack) == 0 {
				return IncludePath{}, unsupported(n)
			}
			slices.Reverse(stack)
			return IncludePath{segments: stack}, nil
		}
		return IncludePath{}, unsupported(cur)
	}
}

func unsupported(e Expr) error {
	return fmt.Errorf("%w: %s in %s", ErrUnsupportedExpressionShape, describe(e), e)
}

// describe names a node's construct kind for diagnostics.
func describe(e Expr) string {
	switch n := e.(type) {
	case *Binary:
		return "Binary(" + n.op.String() + ")"
	case *Call:
		return "Call(" + string(n.method) + ")"
	case *Conversion:
		return "Convert(" + describe(n.operand) + ")"
	}
	return e.Kind().String()
}
