package persistence

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// Predicate → SQL over JSON documents
// ---------------------------------------------------------------------------

var timeType = reflect.TypeFor[time.Time]()

// sqlOps maps comparison operators to SQL.
var sqlOps = map[query.BinaryOp]string{
	query.OpEqual:          "=",
	query.OpNotEqual:       "<>",
	query.OpLess:           "<",
	query.OpLessOrEqual:    "<=",
	query.OpGreater:        ">",
	query.OpGreaterOrEqual: ">=",
}

// translator renders a boolean lambda as a WHERE fragment over the body
// column. Placeholders are appended to args in the order they appear in
// the fragment.
type translator struct {
	root *query.Parameter
	args []any
}

// translate returns the SQL condition for filter and its arguments. Member
// reads are coalesced to the Go zero value so that absent JSON keys compare
// the way the in-process interpreter compares nil-pointer reads. Anything
// without a SQL rendering fails with ErrUntranslatable.
func translate(filter *query.Lambda) (string, []any, error) {
	if filter == nil {
		return "1 = 1", nil, nil
	}
	flat := query.InlineLambda(filter)
	t := &translator{root: flat.Param()}
	sql, err := t.cond(flat.Body())
	if err != nil {
		return "", nil, err
	}
	return sql, t.args, nil
}

func untranslatable(e query.Expr) error {
	return fmt.Errorf("%w: %s", ErrUntranslatable, e)
}

func (t *translator) cond(e query.Expr) (string, error) {
	switch n := e.(type) {
	case *query.Binary:
		if n.Op().Logical() {
			l, err := t.cond(n.Left())
			if err != nil {
				return "", err
			}
			r, err := t.cond(n.Right())
			if err != nil {
				return "", err
			}
			joiner := " AND "
			if n.Op() == query.OpOrElse {
				joiner = " OR "
			}
			return "(" + l + joiner + r + ")", nil
		}
		return t.compare(n)

	case *query.Not:
		inner, err := t.cond(n.Operand())
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil

	case *query.Constant:
		if n.Type().Kind() == reflect.Bool && n.Value() != nil {
			if reflect.ValueOf(n.Value()).Bool() {
				return "(1 = 1)", nil
			}
			return "(1 = 0)", nil
		}

	case *query.Member:
		if n.Type().Kind() == reflect.Bool {
			v, err := t.value(n)
			if err != nil {
				return "", err
			}
			return "(" + v + " = 1)", nil
		}

	case *query.Conversion:
		if n.Operand().Type().Kind() == reflect.Bool {
			return t.cond(n.Operand())
		}

	case *query.Call:
		return t.call(n)
	}
	return "", untranslatable(e)
}

func (t *translator) compare(n *query.Binary) (string, error) {
	op := sqlOps[n.Op()]
	left, right := n.Left(), n.Right()
	if isNullConst(left) {
		left, right = right, left
	}
	if isNullConst(right) {
		v, err := t.raw(left)
		if err != nil {
			return "", err
		}
		switch n.Op() {
		case query.OpEqual:
			return "(" + v + " IS NULL)", nil
		case query.OpNotEqual:
			return "(" + v + " IS NOT NULL)", nil
		}
		return "", untranslatable(n)
	}

	l, err := t.value(left)
	if err != nil {
		return "", err
	}
	r, err := t.value(right)
	if err != nil {
		return "", err
	}
	return "(" + l + " " + op + " " + r + ")", nil
}

func (t *translator) call(n *query.Call) (string, error) {
	args := n.Args()
	switch n.Method() {
	case query.MethodContains, query.MethodHasPrefix:
		s, err := t.value(args[0])
		if err != nil {
			return "", err
		}
		sub, err := t.value(args[1])
		if err != nil {
			return "", err
		}
		if n.Method() == query.MethodContains {
			return "(instr(" + s + ", " + sub + ") > 0)", nil
		}
		return "(instr(" + s + ", " + sub + ") = 1)", nil

	case query.MethodIn:
		set, ok := args[1].(*query.Constant)
		if !ok || set.Value() == nil {
			return "", untranslatable(n)
		}
		rv := reflect.ValueOf(set.Value())
		if rv.Len() == 0 {
			return "(1 = 0)", nil
		}
		v, err := t.value(args[0])
		if err != nil {
			return "", err
		}
		marks := make([]string, rv.Len())
		for i := range marks {
			a, err := constArg(rv.Index(i))
			if err != nil {
				return "", untranslatable(n)
			}
			marks[i] = "?"
			t.args = append(t.args, a)
		}
		return "(" + v + " IN (" + strings.Join(marks, ", ") + "))", nil
	}
	return "", untranslatable(n)
}

// value renders a scalar operand.
func (t *translator) value(e query.Expr) (string, error) {
	switch n := e.(type) {
	case *query.Member:
		raw, err := t.raw(n)
		if err != nil {
			return "", err
		}
		if isTime(n.Type()) {
			return "julianday(" + raw + ")", nil
		}
		if zero, ok := zeroLiteral(n.Type()); ok {
			return "COALESCE(" + raw + ", " + zero + ")", nil
		}
		return raw, nil

	case *query.Constant:
		if n.Value() == nil {
			return "NULL", nil
		}
		rv := reflect.ValueOf(n.Value())
		if tm, ok := asTime(rv); ok {
			t.args = append(t.args, tm.UTC().Format(time.RFC3339Nano))
			return "julianday(?)", nil
		}
		a, err := constArg(rv)
		if err != nil {
			return "", untranslatable(n)
		}
		t.args = append(t.args, a)
		return "?", nil

	case *query.Conversion:
		return t.value(n.Operand())

	case *query.Call:
		if n.Method() == query.MethodLen && n.Args()[0].Type().Kind() == reflect.String {
			s, err := t.value(n.Args()[0])
			if err != nil {
				return "", err
			}
			return "length(" + s + ")", nil
		}
	}
	return "", untranslatable(e)
}

// raw renders a member chain as json_extract over the body column.
func (t *translator) raw(e query.Expr) (string, error) {
	var keys []string
	cur := e
	for {
		m, ok := cur.(*query.Member)
		if !ok {
			break
		}
		key, ok := jsonKey(m.Target().Type(), m.Name())
		if !ok {
			return "", untranslatable(e)
		}
		keys = append(keys, key)
		cur = m.Target()
	}
	if p, ok := cur.(*query.Parameter); !ok || p != t.root || len(keys) == 0 {
		return "", untranslatable(e)
	}
	slices.Reverse(keys)
	t.args = append(t.args, "$."+strings.Join(keys, "."))
	return "json_extract(body, ?)", nil
}

// jsonKey returns the JSON object key of field name on owner. Fields
// excluded from JSON (navigations) have none.
func jsonKey(owner reflect.Type, name string) (string, bool) {
	for owner.Kind() == reflect.Pointer {
		owner = owner.Elem()
	}
	f, ok := owner.FieldByName(name)
	if !ok {
		return "", false
	}
	tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch tag {
	case "-":
		return "", false
	case "":
		return f.Name, true
	}
	return tag, true
}

func isNullConst(e query.Expr) bool {
	c, ok := e.(*query.Constant)
	return ok && c.Value() == nil
}

func isTime(t reflect.Type) bool {
	if t == timeType {
		return true
	}
	return t.Kind() == reflect.Struct && t.NumField() > 0 && t.Field(0).Anonymous && t.Field(0).Type == timeType
}

func asTime(v reflect.Value) (time.Time, bool) {
	if !isTime(v.Type()) {
		return time.Time{}, false
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time), true
	}
	return v.Field(0).Interface().(time.Time), true
}

// zeroLiteral is the SQL literal of a scalar kind's Go zero value.
func zeroLiteral(t reflect.Type) (string, bool) {
	switch t.Kind() {
	case reflect.String:
		return "''", true
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "0", true
	}
	return "", false
}

// constArg converts a constant to a driver argument. Named types are
// reduced to their underlying kind.
func constArg(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	}
	return nil, fmt.Errorf("unsupported constant %s", v.Type())
}
