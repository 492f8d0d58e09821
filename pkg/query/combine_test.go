package query

import (
	"errors"
	"slices"
	"testing"
)

func TestCombinedScenario(t *testing.T) {
	data := scenario()
	specA := nameContains("Ana")
	specB := isActive()

	and, err := And[account](specA, specB)
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	if got := run(t, and, data); !slices.Equal(got, []int{1}) {
		t.Errorf("AND = %v, want [1]", got)
	}

	or, err := Or[account](specA, specB)
	if err != nil {
		t.Fatalf("or: %v", err)
	}
	if got := run(t, or, data); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("OR = %v, want [1 2 3]", got)
	}
}

func TestCombinatorsMatchSetAlgebra(t *testing.T) {
	data := []*account{
		{ID: 1, Name: "Ana", Active: true, Score: 10},
		{ID: 2, Name: "Ana Paula", Active: false, Score: 40},
		{ID: 3, Name: "Bia", Active: true, Score: 70},
		{ID: 4, Name: "Caio", Active: false, Score: 90},
		{ID: 5, Name: "Bruna", Active: true, Score: 55},
	}
	specs := map[string]*Base[account]{
		"ana":    nameContains("Ana"),
		"active": isActive(),
		"high":   Matching[account](func(x Expr) Expr { return Ge(Field(x, "Score"), Const(50)) }),
		"b":      Matching[account](func(x Expr) Expr { return HasPrefix(Field(x, "Name"), Const("B")) }),
		"all":    All[account](),
	}

	for ln, left := range specs {
		for rn, right := range specs {
			l, r := run(t, left, data), run(t, right, data)

			and, _ := And[account](left, right)
			if got, want := run(t, and, data), intersect(l, r); !slices.Equal(got, want) {
				t.Errorf("%s AND %s = %v, want %v", ln, rn, got, want)
			}
			or, _ := Or[account](left, right)
			if got, want := run(t, or, data), union(l, r); !slices.Equal(got, want) {
				t.Errorf("%s OR %s = %v, want %v", ln, rn, got, want)
			}
		}
	}
}

func TestCombinedPredicateIsTree(t *testing.T) {
	a, b := nameContains("Ana"), isActive()
	before := a.Predicate()

	and, _ := And[account](a, b)
	pred := and.Predicate()

	body, ok := pred.Body().(*Binary)
	if !ok || body.Op() != OpAndAlso {
		t.Fatalf("body = %s, want AndAlso", pred.Body())
	}
	left, lok := body.Left().(*Invocation)
	right, rok := body.Right().(*Invocation)
	if !lok || !rok {
		t.Fatalf("operands are %T and %T, want invocations", body.Left(), body.Right())
	}
	if left.Args()[0] != Expr(pred.Param()) || right.Args()[0] != Expr(pred.Param()) {
		t.Error("both invocations must share the combined lambda's parameter")
	}
	if left.Lambda() != a.Predicate() || right.Lambda() != b.Predicate() {
		t.Error("invocations must reference the child predicates")
	}
	if a.Predicate() != before {
		t.Error("combining mutated the left child")
	}

	// every read computes a new tree with a fresh parameter
	if again := and.Predicate(); again.Param() == pred.Param() {
		t.Error("predicate should be recomputed with a fresh parameter")
	}

	flat := InlineLambda(pred)
	if got, want := flat.String(), "x => (Contains(x.Name, \"Ana\") && (x.Active == true))"; got != want {
		t.Errorf("inlined = %s, want %s", got, want)
	}
}

func TestCombinedIncludesConcatenate(t *testing.T) {
	a := &Base[account]{}
	a.AddIncludePath(Path().Collection("Orders"))
	a.AddIncludePath(Path().Member("Address"))
	b := &Base[account]{}
	b.AddIncludePath(Path().Collection("Orders"))

	and, _ := And[account](a, b)
	got := pathStrings(and.Includes())
	if want := []string{"Orders", "Address", "Orders"}; !slices.Equal(got, want) {
		t.Errorf("includes = %v, want %v", got, want)
	}
	if and.HasProjection() {
		t.Error("combined specification should not carry a projection")
	}
}

func TestCombinatorNullArgument(t *testing.T) {
	var typedNil *Base[account]
	tests := []struct {
		name        string
		left, right Specification[account]
	}{
		{"nil left", nil, isActive()},
		{"nil right", isActive(), nil},
		{"typed nil", typedNil, isActive()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := And(tt.left, tt.right); !errors.Is(err, ErrNullArgument) {
				t.Errorf("And err = %v", err)
			}
			if _, err := Or(tt.left, tt.right); !errors.Is(err, ErrNullArgument) {
				t.Errorf("Or err = %v", err)
			}
		})
	}
	if _, err := NotSpec[account](nil); !errors.Is(err, ErrNullArgument) {
		t.Errorf("Not err = %v", err)
	}
}

func TestChainingNestsLeftToRight(t *testing.T) {
	a, b := nameContains("Ana"), isActive()
	c := Matching[account](func(x Expr) Expr { return Eq(Field(x, "ID"), Const(3)) })

	ab, _ := And[account](a, b)
	abc, err := ab.Or(c)
	if err != nil {
		t.Fatalf("or: %v", err)
	}
	if abc.Left() != Specification[account](ab) || abc.Right() != Specification[account](c) {
		t.Fatal("chain should be (a AND b) OR c")
	}
	if got := run(t, abc, scenario()); !slices.Equal(got, []int{1, 3}) {
		t.Errorf("(Ana AND active) OR id=3 = %v, want [1 3]", got)
	}
}

func TestAbsentPredicateMatchesAll(t *testing.T) {
	all := All[account]()
	and, _ := And[account](all, All[account]())
	if and.Predicate() != nil {
		t.Errorf("AND of two match-all specs = %s, want nil", and.Predicate())
	}
	if got := run(t, and, scenario()); len(got) != 3 {
		t.Errorf("match all returned %v", got)
	}

	withActive, _ := And[account](all, isActive())
	if got := run(t, withActive, scenario()); !slices.Equal(got, []int{1, 3}) {
		t.Errorf("all AND active = %v", got)
	}
}

func TestNot(t *testing.T) {
	n, err := NotSpec[account](isActive())
	if err != nil {
		t.Fatalf("not: %v", err)
	}
	if got := run(t, n, scenario()); !slices.Equal(got, []int{2}) {
		t.Errorf("NOT active = %v, want [2]", got)
	}
}

func TestIsSatisfiedByAgreesWithEvaluate(t *testing.T) {
	data := scenario()
	a, b := nameContains("Ana"), isActive()

	// type arguments are inferred from the operands
	and, err := And(a, b)
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	or, err := Or(a, b)
	if err != nil {
		t.Fatalf("or: %v", err)
	}
	not, err := NotSpec(b)
	if err != nil {
		t.Fatalf("not: %v", err)
	}

	specs := map[string]Specification[account]{
		"ana":        a,
		"ana AND on": and,
		"ana OR on":  or,
		"NOT on":     not,
		"all":        All[account](),
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			var got []int
			for _, acc := range data {
				if spec.IsSatisfiedBy(acc) {
					got = append(got, acc.ID)
				}
			}
			if want := run(t, spec, data); !slices.Equal(normalize(got), want) {
				t.Errorf("IsSatisfiedBy = %v, Evaluate = %v", got, want)
			}
		})
	}
}

func TestIsSatisfiedByNilNavigation(t *testing.T) {
	inCity := Matching[account](func(x Expr) Expr { return Eq(Field(x, "Address.City"), Const("Recife")) })
	if inCity.IsSatisfiedBy(&account{ID: 1}) {
		t.Error("nil address should not match a city")
	}
	if !inCity.IsSatisfiedBy(&account{ID: 2, Address: &address{City: "Recife"}}) {
		t.Error("address in Recife should match")
	}
}

func intersect(a, b []int) []int {
	var out []int
	for _, v := range a {
		if slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return normalize(out)
}

func union(a, b []int) []int {
	out := slices.Clone(a)
	for _, v := range b {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return normalize(out)
}

func normalize(v []int) []int {
	slices.Sort(v)
	if v == nil {
		return []int{}
	}
	return v
}

func pathStrings(paths []IncludePath) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}
