package query

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// In-process interpreter
// ---------------------------------------------------------------------------

type scope map[*Parameter]reflect.Value

// Eval applies l to args and returns the body's value. Member access
// through a nil pointer yields the member's zero value, mirroring how a
// relational store yields NULL for a missing join.
func Eval(l *Lambda, args ...reflect.Value) (reflect.Value, error) {
	if l == nil {
		return reflect.Value{}, fmt.Errorf("%w: nil lambda", ErrNotEvaluable)
	}
	if len(args) != len(l.params) {
		return reflect.Value{}, fmt.Errorf("%w: %d args for %d params", ErrNotEvaluable, len(args), len(l.params))
	}
	vars := make(scope, len(args))
	for i, p := range l.params {
		vars[p] = args[i]
	}
	return eval(l.body, vars)
}

// Matches evaluates a boolean lambda against a single value. A nil
// lambda matches everything.
func Matches(l *Lambda, v reflect.Value) (bool, error) {
	if l == nil {
		return true, nil
	}
	out, err := Eval(l, v)
	if err != nil {
		return false, err
	}
	if out.Kind() != reflect.Bool {
		return false, fmt.Errorf("%w: predicate yields %s", ErrNotEvaluable, out.Type())
	}
	return out.Bool(), nil
}

// CompilePredicate turns a boolean lambda over T into a Go function backed
// by the interpreter.
func CompilePredicate[T any](l *Lambda) func(*T) (bool, error) {
	return func(item *T) (bool, error) {
		return Matches(l, reflect.ValueOf(item))
	}
}

func eval(e Expr, vars scope) (reflect.Value, error) {
	switch n := e.(type) {
	case *Parameter:
		v, ok := vars[n]
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: unbound parameter %s", ErrNotEvaluable, n.name)
		}
		return v, nil

	case *Member:
		target, err := eval(n.target, vars)
		if err != nil {
			return reflect.Value{}, err
		}
		for target.Kind() == reflect.Pointer || target.Kind() == reflect.Interface {
			if target.IsNil() {
				return reflect.Zero(n.typ), nil
			}
			target = target.Elem()
		}
		f, err := target.FieldByIndexErr(n.index)
		if err != nil {
			return reflect.Zero(n.typ), nil
		}
		return f, nil

	case *Constant:
		if n.value == nil {
			return reflect.Zero(n.typ), nil
		}
		return reflect.ValueOf(n.value), nil

	case *Binary:
		return evalBinary(n, vars)

	case *Not:
		v, err := eval(n.operand, vars)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(!v.Bool()), nil

	case *Call:
		return evalCall(n, vars)

	case *Invocation:
		inner := make(scope, len(vars)+len(n.args))
		for k, v := range vars {
			inner[k] = v
		}
		for i, a := range n.args {
			v, err := eval(a, vars)
			if err != nil {
				return reflect.Value{}, err
			}
			inner[n.lambda.params[i]] = v
		}
		return eval(n.lambda.body, inner)

	case *Conversion:
		v, err := eval(n.operand, vars)
		if err != nil {
			return reflect.Value{}, err
		}
		if n.typ.Kind() == reflect.Interface {
			box := reflect.New(n.typ).Elem()
			box.Set(v)
			return box, nil
		}
		return v.Convert(n.typ), nil

	case *Init:
		out := reflect.New(n.typ).Elem()
		for i, b := range n.bindings {
			v, err := eval(b.Value, vars)
			if err != nil {
				return reflect.Value{}, err
			}
			out.FieldByIndex(n.index[i]).Set(v)
		}
		return out, nil

	case *Lambda:
		return reflect.Value{}, fmt.Errorf("%w: bare lambda %s", ErrNotEvaluable, n)
	}
	return reflect.Value{}, fmt.Errorf("%w: %T", ErrNotEvaluable, e)
}

func evalBinary(n *Binary, vars scope) (reflect.Value, error) {
	left, err := eval(n.left, vars)
	if err != nil {
		return reflect.Value{}, err
	}
	switch n.op {
	case OpAndAlso:
		if !left.Bool() {
			return reflect.ValueOf(false), nil
		}
		return eval(n.right, vars)
	case OpOrElse:
		if left.Bool() {
			return reflect.ValueOf(true), nil
		}
		return eval(n.right, vars)
	}

	right, err := eval(n.right, vars)
	if err != nil {
		return reflect.Value{}, err
	}
	switch n.op {
	case OpEqual, OpNotEqual:
		eq, err := equal(left, right)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(eq == (n.op == OpEqual)), nil
	}

	c, err := compare(left, right)
	if err != nil {
		return reflect.Value{}, err
	}
	var out bool
	switch n.op {
	case OpLess:
		out = c < 0
	case OpLessOrEqual:
		out = c <= 0
	case OpGreater:
		out = c > 0
	case OpGreaterOrEqual:
		out = c >= 0
	}
	return reflect.ValueOf(out), nil
}

func evalCall(n *Call, vars scope) (reflect.Value, error) {
	args := make([]reflect.Value, 0, len(n.args))
	for _, a := range n.args {
		if _, ok := a.(*Lambda); ok {
			continue
		}
		v, err := eval(a, vars)
		if err != nil {
			return reflect.Value{}, err
		}
		args = append(args, v)
	}

	switch n.method {
	case MethodContains:
		return reflect.ValueOf(strings.Contains(args[0].String(), args[1].String())), nil
	case MethodHasPrefix:
		return reflect.ValueOf(strings.HasPrefix(args[0].String(), args[1].String())), nil
	case MethodLen:
		return reflect.ValueOf(args[0].Len()), nil
	case MethodIn:
		set := args[1]
		for i := 0; i < set.Len(); i++ {
			eq, err := equal(args[0], set.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			if eq {
				return reflect.ValueOf(true), nil
			}
		}
		return reflect.ValueOf(false), nil
	case MethodAny:
		fn := n.args[1].(*Lambda)
		coll := args[0]
		for i := 0; i < coll.Len(); i++ {
			v, err := Eval(fn, coll.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			if v.Bool() {
				return reflect.ValueOf(true), nil
			}
		}
		return reflect.ValueOf(false), nil
	case MethodSelect:
		fn := n.args[1].(*Lambda)
		coll := args[0]
		out := reflect.MakeSlice(n.typ, 0, coll.Len())
		for i := 0; i < coll.Len(); i++ {
			v, err := Eval(fn, coll.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, v)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: call %s", ErrNotEvaluable, n.method)
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

var timeType = reflect.TypeFor[time.Time]()

// asTime unwraps time.Time and structs embedding it as their first field.
func asTime(v reflect.Value) (time.Time, bool) {
	if v.Type() == timeType {
		return v.Interface().(time.Time), true
	}
	if v.Kind() == reflect.Struct && v.NumField() > 0 {
		f := v.Type().Field(0)
		if f.Anonymous && f.Type == timeType {
			return v.Field(0).Interface().(time.Time), true
		}
	}
	return time.Time{}, false
}

func equal(a, b reflect.Value) (bool, error) {
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Equal(tb), nil
		}
	}
	if !a.Comparable() || !b.Comparable() {
		return false, fmt.Errorf("%w: %s is not comparable", ErrNotEvaluable, a.Type())
	}
	if a.Type() != b.Type() && b.Type().ConvertibleTo(a.Type()) {
		b = b.Convert(a.Type())
	}
	return a.Equal(b), nil
}

func compare(a, b reflect.Value) (int, error) {
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb), nil
		}
	}
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float()), nil
	case reflect.String:
		return cmp.Compare(a.String(), b.String()), nil
	}
	return 0, fmt.Errorf("%w: %s is not ordered", ErrNotEvaluable, a.Type())
}
