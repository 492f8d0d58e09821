package query

// ---------------------------------------------------------------------------
// Tree rewriting
// ---------------------------------------------------------------------------

// rewrite rebuilds e bottom-up, giving fn the chance to replace each node
// before its children are visited. Unchanged subtrees are shared.
func rewrite(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if out, done := fn(e); done {
		return out
	}
	switch n := e.(type) {
	case *Member:
		t := rewrite(n.target, fn)
		if t == n.target {
			return n
		}
		return &Member{target: t, name: n.name, typ: n.typ, index: n.index}
	case *Binary:
		l, r := rewrite(n.left, fn), rewrite(n.right, fn)
		if l == n.left && r == n.right {
			return n
		}
		return &Binary{op: n.op, left: l, right: r}
	case *Not:
		o := rewrite(n.operand, fn)
		if o == n.operand {
			return n
		}
		return &Not{operand: o}
	case *Call:
		args, changed := rewriteAll(n.args, fn)
		if !changed {
			return n
		}
		return &Call{method: n.method, args: args, typ: n.typ}
	case *Invocation:
		l := rewrite(n.lambda, fn).(*Lambda)
		args, changed := rewriteAll(n.args, fn)
		if !changed && l == n.lambda {
			return n
		}
		return &Invocation{lambda: l, args: args}
	case *Lambda:
		b := rewrite(n.body, fn)
		if b == n.body {
			return n
		}
		return &Lambda{params: n.params, body: b}
	case *Conversion:
		o := rewrite(n.operand, fn)
		if o == n.operand {
			return n
		}
		return &Conversion{operand: o, typ: n.typ}
	case *Init:
		bindings := make([]Binding, len(n.bindings))
		changed := false
		for i, b := range n.bindings {
			v := rewrite(b.Value, fn)
			changed = changed || v != b.Value
			bindings[i] = Binding{Field: b.Field, Value: v}
		}
		if !changed {
			return n
		}
		return &Init{typ: n.typ, bindings: bindings, index: n.index}
	}
	return e
}

func rewriteAll(in []Expr, fn func(Expr) (Expr, bool)) ([]Expr, bool) {
	out := make([]Expr, len(in))
	changed := false
	for i, a := range in {
		out[i] = rewrite(a, fn)
		changed = changed || out[i] != a
	}
	return out, changed
}

// Inspect visits e and its subtrees in depth-first order. Children of a
// node are skipped when fn returns false for it.
func Inspect(e Expr, fn func(Expr) bool) {
	rewrite(e, func(n Expr) (Expr, bool) { return n, !fn(n) })
}

// Substitute replaces every reference to p in e with with.
func Substitute(e Expr, p *Parameter, with Expr) Expr {
	return rewrite(e, func(n Expr) (Expr, bool) {
		if n == Expr(p) {
			return with, true
		}
		return nil, false
	})
}

// Rebind returns a copy of l over a fresh parameter of the same type.
func Rebind(l *Lambda, name string) *Lambda {
	old := l.Param()
	fresh := Param(name, old.typ)
	return NewLambda(Substitute(l.body, old, fresh), fresh)
}

// Inline beta-reduces every Invocation in e: the invoked lambda's body is
// spliced in with its parameters replaced by the argument expressions.
// Translators use it to see a flat tree over a single parameter.
func Inline(e Expr) Expr {
	return rewrite(e, func(n Expr) (Expr, bool) {
		inv, ok := n.(*Invocation)
		if !ok {
			return nil, false
		}
		body := Inline(inv.lambda.body)
		for i, p := range inv.lambda.params {
			body = Substitute(body, p, Inline(inv.args[i]))
		}
		return body, true
	})
}

// InlineLambda inlines the body of l and keeps its parameters.
func InlineLambda(l *Lambda) *Lambda {
	if l == nil {
		return nil
	}
	return NewLambda(Inline(l.body), l.params...)
}
