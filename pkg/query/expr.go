// Package query implements the specification subsystem: an inspectable
// expression tree for predicates and projections, include-path resolution,
// AND/OR composition at the tree level, and an evaluator that shapes a lazy
// query pipeline from a specification.
//
// Predicates are kept as trees rather than closures so that a storage
// adapter can translate them into its own query language.
package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Node kinds
// ---------------------------------------------------------------------------

// Kind classifies an expression node.
type Kind int

const (
	KindParameter Kind = iota
	KindMember
	KindConstant
	KindBinary
	KindNot
	KindCall
	KindInvoke
	KindLambda
	KindConvert
	KindNew
)

var kindNames = [...]string{
	KindParameter: "Parameter",
	KindMember:    "Member",
	KindConstant:  "Constant",
	KindBinary:    "Binary",
	KindNot:       "Not",
	KindCall:      "Call",
	KindInvoke:    "Invoke",
	KindLambda:    "Lambda",
	KindConvert:   "Convert",
	KindNew:       "New",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Expr is a node of the expression tree. Every node knows its static type.
type Expr interface {
	Kind() Kind
	Type() reflect.Type
	String() string
}

var (
	boolType   = reflect.TypeFor[bool]()
	intType    = reflect.TypeFor[int]()
	stringType = reflect.TypeFor[string]()
	anyType    = reflect.TypeFor[any]()
)

// ---------------------------------------------------------------------------
// Parameter
// ---------------------------------------------------------------------------

// Parameter is a lambda parameter. Identity is by pointer: two parameters
// with the same name and type are still distinct.
type Parameter struct {
	name string
	typ  reflect.Type
}

// Param creates a parameter of the given type.
func Param(name string, typ reflect.Type) *Parameter {
	return &Parameter{name: name, typ: typ}
}

// ParamOf creates a parameter of type T.
func ParamOf[T any](name string) *Parameter {
	return Param(name, reflect.TypeFor[T]())
}

func (p *Parameter) Kind() Kind         { return KindParameter }
func (p *Parameter) Type() reflect.Type { return p.typ }
func (p *Parameter) Name() string       { return p.name }
func (p *Parameter) String() string     { return p.name }

// ---------------------------------------------------------------------------
// Member access
// ---------------------------------------------------------------------------

// Member reads an exported struct field from its target. Pointer targets are
// dereferenced.
type Member struct {
	target Expr
	name   string
	typ    reflect.Type
	index  []int
}

// MemberOf builds a member access, checking the field exists on the
// target's struct type.
func MemberOf(target Expr, name string) (*Member, error) {
	t := indirect(target.Type())
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s on non-struct %s", ErrUnknownMember, name, target.Type())
	}
	f, ok := t.FieldByName(name)
	if !ok || !f.IsExported() {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, t, name)
	}
	return &Member{target: target, name: name, typ: f.Type, index: f.Index}, nil
}

// Field builds a chain of member accesses from a dotted path such as
// "Vehicle.Customer.Name". It panics if any member does not exist.
func Field(target Expr, path string) *Member {
	var cur Expr = target
	for _, name := range strings.Split(path, ".") {
		m, err := MemberOf(cur, name)
		if err != nil {
			panic(err)
		}
		cur = m
	}
	return cur.(*Member)
}

func (m *Member) Kind() Kind         { return KindMember }
func (m *Member) Type() reflect.Type { return m.typ }
func (m *Member) Target() Expr       { return m.target }
func (m *Member) Name() string       { return m.name }
func (m *Member) String() string     { return m.target.String() + "." + m.name }

// ---------------------------------------------------------------------------
// Constant
// ---------------------------------------------------------------------------

// Constant is a literal value.
type Constant struct {
	value any
	typ   reflect.Type
}

// Const wraps a Go value. A nil value is typed as any.
func Const(v any) *Constant {
	if v == nil {
		return &Constant{typ: anyType}
	}
	return &Constant{value: v, typ: reflect.TypeOf(v)}
}

func (c *Constant) Kind() Kind         { return KindConstant }
func (c *Constant) Type() reflect.Type { return c.typ }
func (c *Constant) Value() any         { return c.value }

func (c *Constant) String() string {
	switch v := c.value.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	case fmt.Stringer:
		return strconv.Quote(v.String())
	}
	if c.typ.Kind() == reflect.String {
		return strconv.Quote(reflect.ValueOf(c.value).String())
	}
	return fmt.Sprint(c.value)
}

// ---------------------------------------------------------------------------
// Binary
// ---------------------------------------------------------------------------

// BinaryOp is a comparison or a short-circuiting logical operator.
type BinaryOp int

const (
	OpEqual BinaryOp = iota
	OpNotEqual
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
	OpAndAlso
	OpOrElse
)

var binaryOps = [...]struct{ name, symbol string }{
	OpEqual:          {"Equal", "=="},
	OpNotEqual:       {"NotEqual", "!="},
	OpLess:           {"Less", "<"},
	OpLessOrEqual:    {"LessOrEqual", "<="},
	OpGreater:        {"Greater", ">"},
	OpGreaterOrEqual: {"GreaterOrEqual", ">="},
	OpAndAlso:        {"AndAlso", "&&"},
	OpOrElse:         {"OrElse", "||"},
}

func (op BinaryOp) String() string { return binaryOps[op].name }

// Symbol returns the Go-like operator token.
func (op BinaryOp) Symbol() string { return binaryOps[op].symbol }

// Logical reports whether op is AndAlso or OrElse.
func (op BinaryOp) Logical() bool { return op == OpAndAlso || op == OpOrElse }

// Binary applies op to two operands. The result is always bool.
type Binary struct {
	op          BinaryOp
	left, right Expr
}

func (b *Binary) Kind() Kind         { return KindBinary }
func (b *Binary) Type() reflect.Type { return boolType }
func (b *Binary) Op() BinaryOp       { return b.op }
func (b *Binary) Left() Expr         { return b.left }
func (b *Binary) Right() Expr        { return b.right }

func (b *Binary) String() string {
	return "(" + b.left.String() + " " + b.op.Symbol() + " " + b.right.String() + ")"
}

func newBinary(op BinaryOp, left, right Expr) *Binary {
	if op.Logical() {
		mustBool(left)
		mustBool(right)
		return &Binary{op: op, left: left, right: right}
	}
	left, right = coerce(left, right)
	return &Binary{op: op, left: left, right: right}
}

func Eq(l, r Expr) *Binary      { return newBinary(OpEqual, l, r) }
func Ne(l, r Expr) *Binary      { return newBinary(OpNotEqual, l, r) }
func Lt(l, r Expr) *Binary      { return newBinary(OpLess, l, r) }
func Le(l, r Expr) *Binary      { return newBinary(OpLessOrEqual, l, r) }
func Gt(l, r Expr) *Binary      { return newBinary(OpGreater, l, r) }
func Ge(l, r Expr) *Binary      { return newBinary(OpGreaterOrEqual, l, r) }
func AndAlso(l, r Expr) *Binary { return newBinary(OpAndAlso, l, r) }
func OrElse(l, r Expr) *Binary  { return newBinary(OpOrElse, l, r) }

// ---------------------------------------------------------------------------
// Not
// ---------------------------------------------------------------------------

// Not is logical negation.
type Not struct {
	operand Expr
}

// Negate builds !operand.
func Negate(operand Expr) *Not {
	mustBool(operand)
	return &Not{operand: operand}
}

func (n *Not) Kind() Kind         { return KindNot }
func (n *Not) Type() reflect.Type { return boolType }
func (n *Not) Operand() Expr      { return n.operand }
func (n *Not) String() string     { return "!" + n.operand.String() }

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

// Method names the small set of calls the tree understands.
type Method string

const (
	MethodContains  Method = "Contains"
	MethodHasPrefix Method = "HasPrefix"
	MethodIn        Method = "In"
	MethodLen       Method = "Len"
	MethodSelect    Method = "Select"
	MethodAny       Method = "Any"
)

// Call invokes a known method on its arguments.
type Call struct {
	method Method
	args   []Expr
	typ    reflect.Type
}

func (c *Call) Kind() Kind         { return KindCall }
func (c *Call) Type() reflect.Type { return c.typ }
func (c *Call) Method() Method     { return c.method }
func (c *Call) Args() []Expr       { return append([]Expr(nil), c.args...) }

func (c *Call) String() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.String()
	}
	return string(c.method) + "(" + strings.Join(parts, ", ") + ")"
}

// Contains reports whether the string s contains sub.
func Contains(s, sub Expr) *Call {
	mustKind(s, reflect.String)
	mustKind(sub, reflect.String)
	return &Call{method: MethodContains, args: []Expr{s, sub}, typ: boolType}
}

// HasPrefix reports whether the string s starts with prefix.
func HasPrefix(s, prefix Expr) *Call {
	mustKind(s, reflect.String)
	mustKind(prefix, reflect.String)
	return &Call{method: MethodHasPrefix, args: []Expr{s, prefix}, typ: boolType}
}

// In reports whether value is an element of set. set must be a slice
// whose element type matches value.
func In(value, set Expr) *Call {
	st := set.Type()
	if st.Kind() != reflect.Slice {
		panic(fmt.Errorf("%w: In over %s", ErrTypeMismatch, st))
	}
	if !sameBase(st.Elem(), value.Type()) {
		panic(fmt.Errorf("%w: In %s over []%s", ErrTypeMismatch, value.Type(), st.Elem()))
	}
	return &Call{method: MethodIn, args: []Expr{value, set}, typ: boolType}
}

// Len returns the length of a slice or string.
func Len(v Expr) *Call {
	switch v.Type().Kind() {
	case reflect.Slice, reflect.String:
	default:
		panic(fmt.Errorf("%w: Len of %s", ErrTypeMismatch, v.Type()))
	}
	return &Call{method: MethodLen, args: []Expr{v}, typ: intType}
}

// Select projects each element of a collection through fn.
func Select(collection Expr, fn *Lambda) *Call {
	elem := mustCollection(collection)
	mustAccept(fn, elem)
	return &Call{method: MethodSelect, args: []Expr{collection, fn}, typ: reflect.SliceOf(fn.body.Type())}
}

// Any reports whether some element of a collection satisfies pred.
func Any(collection Expr, pred *Lambda) *Call {
	elem := mustCollection(collection)
	mustAccept(pred, elem)
	mustBool(pred.body)
	return &Call{method: MethodAny, args: []Expr{collection, pred}, typ: boolType}
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invocation applies a lambda to argument expressions. It keeps the
// lambda intact so translators can still inspect it.
type Invocation struct {
	lambda *Lambda
	args   []Expr
}

// Invoke applies l to args.
func Invoke(l *Lambda, args ...Expr) *Invocation {
	if len(args) != len(l.params) {
		panic(fmt.Errorf("%w: invoke with %d args, lambda takes %d", ErrTypeMismatch, len(args), len(l.params)))
	}
	for i, a := range args {
		if !accepts(l.params[i].typ, a.Type()) {
			panic(fmt.Errorf("%w: invoke %s with %s", ErrTypeMismatch, l.params[i].typ, a.Type()))
		}
	}
	return &Invocation{lambda: l, args: args}
}

func (i *Invocation) Kind() Kind         { return KindInvoke }
func (i *Invocation) Type() reflect.Type { return i.lambda.body.Type() }
func (i *Invocation) Lambda() *Lambda    { return i.lambda }
func (i *Invocation) Args() []Expr       { return append([]Expr(nil), i.args...) }

func (i *Invocation) String() string {
	parts := make([]string, len(i.args))
	for n, a := range i.args {
		parts[n] = a.String()
	}
	return "Invoke(" + i.lambda.String() + ", " + strings.Join(parts, ", ") + ")"
}

// ---------------------------------------------------------------------------
// Lambda
// ---------------------------------------------------------------------------

// Lambda is a function literal: parameters and a body.
type Lambda struct {
	params []*Parameter
	body   Expr
}

// NewLambda builds a lambda over params.
func NewLambda(body Expr, params ...*Parameter) *Lambda {
	return &Lambda{params: params, body: body}
}

func (l *Lambda) Kind() Kind { return KindLambda }

func (l *Lambda) Type() reflect.Type {
	in := make([]reflect.Type, len(l.params))
	for i, p := range l.params {
		in[i] = p.typ
	}
	return reflect.FuncOf(in, []reflect.Type{l.body.Type()}, false)
}

func (l *Lambda) Body() Expr { return l.body }

// Params returns the lambda's parameters.
func (l *Lambda) Params() []*Parameter { return append([]*Parameter(nil), l.params...) }

// Param returns the first parameter, or nil for a nullary lambda.
func (l *Lambda) Param() *Parameter {
	if len(l.params) == 0 {
		return nil
	}
	return l.params[0]
}

// ResultType is the static type of the body.
func (l *Lambda) ResultType() reflect.Type { return l.body.Type() }

func (l *Lambda) String() string {
	names := make([]string, len(l.params))
	for i, p := range l.params {
		names[i] = p.name
	}
	head := strings.Join(names, ", ")
	if len(l.params) != 1 {
		head = "(" + head + ")"
	}
	return head + " => " + l.body.String()
}

// Where builds a boolean lambda over T. It panics if the body is not bool.
func Where[T any](build func(x Expr) Expr) *Lambda {
	x := ParamOf[T]("x")
	body := build(x)
	mustBool(body)
	return NewLambda(body, x)
}

// Selector builds a single-parameter lambda over T with any body.
func Selector[T any](build func(x Expr) Expr) *Lambda {
	x := ParamOf[T]("x")
	return NewLambda(build(x), x)
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

// Conversion converts its operand to another type. Converting to an
// interface type is a boxing conversion.
type Conversion struct {
	operand Expr
	typ     reflect.Type
}

// Convert builds a conversion. It panics if the Go conversion is illegal.
func Convert(operand Expr, to reflect.Type) *Conversion {
	if !convertible(operand.Type(), to) {
		panic(fmt.Errorf("%w: cannot convert %s to %s", ErrTypeMismatch, operand.Type(), to))
	}
	return &Conversion{operand: operand, typ: to}
}

func (c *Conversion) Kind() Kind         { return KindConvert }
func (c *Conversion) Type() reflect.Type { return c.typ }
func (c *Conversion) Operand() Expr      { return c.operand }
func (c *Conversion) String() string     { return c.typ.String() + "(" + c.operand.String() + ")" }

// ---------------------------------------------------------------------------
// Struct initialisation
// ---------------------------------------------------------------------------

// Binding assigns an expression to a named field of a new struct value.
type Binding struct {
	Field string
	Value Expr
}

// Bind is shorthand for a Binding.
func Bind(field string, value Expr) Binding { return Binding{Field: field, Value: value} }

// Init constructs a struct value from field bindings. Projections use it to
// reshape an entity into a result type.
type Init struct {
	typ      reflect.Type
	bindings []Binding
	index    [][]int
}

// New builds a struct initialisation of typ. Values convertible to the
// field type are wrapped in a Conversion.
func New(typ reflect.Type, bindings ...Binding) *Init {
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%w: New of non-struct %s", ErrTypeMismatch, typ))
	}
	out := &Init{typ: typ, bindings: make([]Binding, len(bindings)), index: make([][]int, len(bindings))}
	for i, b := range bindings {
		f, ok := typ.FieldByName(b.Field)
		if !ok || !f.IsExported() {
			panic(fmt.Errorf("%w: %s.%s", ErrUnknownMember, typ, b.Field))
		}
		v := b.Value
		if v.Type() != f.Type {
			v = Convert(v, f.Type)
		}
		out.bindings[i] = Binding{Field: b.Field, Value: v}
		out.index[i] = f.Index
	}
	return out
}

// NewOf is New with the struct type given as a type parameter.
func NewOf[R any](bindings ...Binding) *Init {
	return New(reflect.TypeFor[R](), bindings...)
}

func (n *Init) Kind() Kind          { return KindNew }
func (n *Init) Type() reflect.Type  { return n.typ }
func (n *Init) Bindings() []Binding { return append([]Binding(nil), n.bindings...) }

func (n *Init) String() string {
	parts := make([]string, len(n.bindings))
	for i, b := range n.bindings {
		parts[i] = b.Field + ": " + b.Value.String()
	}
	return n.typ.Name() + "{" + strings.Join(parts, ", ") + "}"
}

// ---------------------------------------------------------------------------
// Type helpers
// ---------------------------------------------------------------------------

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// sameBase reports whether a and b are the same type once pointers are
// stripped.
func sameBase(a, b reflect.Type) bool {
	return indirect(a) == indirect(b)
}

// accepts reports whether a parameter of type param can be bound to a
// value of type arg. Pointers to the parameter type are accepted.
func accepts(param, arg reflect.Type) bool {
	if param == arg || param == anyType {
		return true
	}
	return arg.Kind() == reflect.Pointer && arg.Elem() == param
}

// convertible reports whether a value of type from can be re-typed as to
// without changing what it means: the same underlying type, a structurally
// identical struct, interface boxing, or lossless numeric widening. Go
// allows more (int to string, float to int) but those conversions alter
// the value.
func convertible(from, to reflect.Type) bool {
	switch {
	case from == to:
		return true
	case to.Kind() == reflect.Interface:
		return from.Implements(to)
	case numClass(from) != notNumeric && numClass(to) != notNumeric:
		return widens(from, to)
	case from.Kind() != to.Kind():
		return false
	}
	return from.ConvertibleTo(to)
}

type numericClass int

const (
	notNumeric numericClass = iota
	signedNumeric
	unsignedNumeric
	floatNumeric
)

func numClass(t reflect.Type) numericClass {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signedNumeric
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsignedNumeric
	case reflect.Float32, reflect.Float64:
		return floatNumeric
	}
	return notNumeric
}

// widens reports whether every value of from is exactly representable in to.
func widens(from, to reflect.Type) bool {
	fc, tc := numClass(from), numClass(to)
	fb, tb := from.Bits(), to.Bits()
	switch {
	case fc == tc:
		return fb <= tb
	case fc == unsignedNumeric && tc == signedNumeric:
		return fb < tb
	case tc == floatNumeric && fc != floatNumeric:
		mantissa := 24
		if tb == 64 {
			mantissa = 53
		}
		return fb < mantissa
	}
	return false
}

func mustBool(e Expr) {
	if e.Type().Kind() != reflect.Bool {
		panic(fmt.Errorf("%w: %s is %s, want bool", ErrTypeMismatch, e, e.Type()))
	}
}

func mustKind(e Expr, k reflect.Kind) {
	if e.Type().Kind() != k {
		panic(fmt.Errorf("%w: %s is %s, want %s", ErrTypeMismatch, e, e.Type(), k))
	}
}

func mustCollection(e Expr) reflect.Type {
	if e.Type().Kind() != reflect.Slice {
		panic(fmt.Errorf("%w: %s is %s, want a slice", ErrTypeMismatch, e, e.Type()))
	}
	return e.Type().Elem()
}

func mustAccept(fn *Lambda, elem reflect.Type) {
	if fn == nil || len(fn.params) != 1 || !accepts(fn.params[0].typ, elem) {
		panic(fmt.Errorf("%w: lambda does not accept %s", ErrTypeMismatch, elem))
	}
}

// coerce lines up comparison operands. A constant whose type converts to
// the other side's type is converted in place, the way an untyped Go
// constant would be.
func coerce(left, right Expr) (Expr, Expr) {
	lt, rt := left.Type(), right.Type()
	if lt == rt {
		return left, right
	}
	if c, ok := right.(*Constant); ok && c.value != nil && rt.ConvertibleTo(lt) {
		return left, &Constant{value: reflect.ValueOf(c.value).Convert(lt).Interface(), typ: lt}
	}
	if c, ok := left.(*Constant); ok && c.value != nil && lt.ConvertibleTo(rt) {
		return &Constant{value: reflect.ValueOf(c.value).Convert(rt).Interface(), typ: rt}, right
	}
	if c, ok := right.(*Constant); ok && c.value == nil {
		return left, &Constant{typ: lt}
	}
	panic(fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, lt, rt))
}
