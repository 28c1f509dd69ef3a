package kb_test

import (
	"testing"

	"github.com/brunokim/resolve/dsl"
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	atom   = dsl.Atom
	clause = dsl.Clause
	comp   = dsl.Comp
	int_   = dsl.Int
	list   = dsl.List
	var_   = dsl.Var
)

func pred(t *testing.T, module string, c *logic.Clause) *kb.Predicate {
	t.Helper()
	p, err := kb.NewPredicate(module, c)
	require.NoError(t, err)
	return p
}

func heads(ps []*kb.Predicate) []string {
	var xs []string
	for _, p := range ps {
		xs = append(xs, p.Clause.Head.String())
	}
	return xs
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "user:foo/2", kb.Signature{"user", "foo", 2}.String())
	assert.Equal(t, "lists:append/*", kb.Signature{"lists", "append", kb.Variadic}.String())

	sig, ok := kb.GoalSignature("user", comp(":", atom("lists"), comp("member", var_("X"), var_("L"))))
	require.True(t, ok)
	assert.Equal(t, kb.Signature{"lists", "member", 2}, sig)

	_, ok = kb.GoalSignature("user", int_(1))
	assert.False(t, ok)
}

func TestNewPredicate(t *testing.T) {
	p := pred(t, "", clause(comp("len", list(), int_(0))))
	assert.Equal(t, kb.DefaultModule, p.Module)
	assert.True(t, p.Factual)
	assert.False(t, p.TailRecursive)

	p = pred(t, "m", clause(atom("loop"), atom("true"), atom("loop")))
	assert.True(t, p.TailRecursive)
	assert.False(t, p.Factual)

	_, err := kb.NewPredicate("m", clause(atom("p"), int_(1)))
	assert.True(t, errors.IsType(err, errors.InvalidClause))
}

func TestAssertOrder(t *testing.T) {
	base := kb.New()
	sig := kb.Signature{"user", "p", 1}
	gen := base.Generation()
	base.AssertZ(pred(t, "user", clause(comp("p", int_(1)))))
	base.AssertZ(pred(t, "user", clause(comp("p", int_(2)))))
	base.AssertA(pred(t, "user", clause(comp("p", int_(0)))))

	assert.Equal(t, []string{"p(0)", "p(1)", "p(2)"}, heads(base.Clauses(sig)))
	assert.Greater(t, base.Generation(), gen)
	assert.Equal(t, []kb.Signature{sig}, base.Signatures())
}

func TestRetract(t *testing.T) {
	base := kb.New()
	static := kb.Signature{"user", "s", 0}
	dynamic := kb.Signature{"user", "d", 1}
	base.AssertZ(pred(t, "user", clause(atom("s"))))
	base.DeclareDynamic(dynamic)
	assert.True(t, base.Defined(dynamic))

	p1 := pred(t, "user", clause(comp("d", int_(1))))
	p2 := pred(t, "user", clause(comp("d", int_(2))))
	base.AssertZ(p1)
	base.AssertZ(p2)
	assert.True(t, p1.Dynamic)

	err := base.Retract(static)
	assert.True(t, errors.IsType(err, errors.CannotRetractStaticPredicate), "got err: %v", err)
	_, err = base.RetractPredicate(base.Clauses(static)[0])
	assert.True(t, errors.IsType(err, errors.CannotRetractStaticPredicate), "got err: %v", err)

	snapshot := base.Clauses(dynamic)
	ok, err := base.RetractPredicate(p1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"d(2)"}, heads(base.Clauses(dynamic)))
	assert.Equal(t, []string{"d(1)", "d(2)"}, heads(snapshot))

	require.NoError(t, base.Retract(dynamic))
	assert.Empty(t, base.Clauses(dynamic))
	assert.True(t, base.Defined(dynamic))

	// Retracting an unknown signature makes it dynamic.
	unknown := kb.Signature{"user", "u", 0}
	require.NoError(t, base.Retract(unknown))
	assert.True(t, base.IsDynamic(unknown))
}

func TestLookup(t *testing.T) {
	base := kb.New()
	base.Declare("lists", nil, []logic.Indicator{{Name: "append", Arity: 3}})
	base.Declare("app", []string{"lists"}, nil)
	base.AssertZ(pred(t, "lists", clause(comp("append", list(), var_("L"), var_("L")))))
	base.AssertZ(pred(t, "lists", clause(comp("helper", var_("X")))))
	base.AssertZ(pred(t, "app", clause(comp("append", atom("x"), atom("y"), atom("z")))))

	vp := pred(t, "app", clause(comp("format", var_("F"), var_("Args"))))
	vp.Variadic = true
	base.AssertZ(vp)

	scope := base.Scope("app")
	tests := []struct {
		goal logic.Term
		want []kb.Signature
	}{
		{
			comp("append", var_("A"), var_("B"), var_("C")),
			[]kb.Signature{{"app", "append", 3}, {"lists", "append", 3}},
		},
		{comp("helper", var_("X")), nil},
		{
			comp(":", atom("lists"), comp("helper", var_("X"))),
			[]kb.Signature{{"lists", "helper", 1}},
		},
		{comp("format", atom("f")), []kb.Signature{{"app", "format", kb.Variadic}}},
		{comp("format", atom("f"), int_(1), int_(2)), []kb.Signature{{"app", "format", kb.Variadic}}},
		{atom("format"), nil},
	}
	for _, test := range tests {
		got, ok := base.Lookup(test.goal, scope)
		assert.Equal(t, test.want != nil, ok, "Lookup(%v)", test.goal)
		assert.Equal(t, test.want, got, "Lookup(%v)", test.goal)
	}
	assert.Equal(t, []string{"user", "lists", "app"}, base.Modules())
}

func TestLookup_ExportedVariadic(t *testing.T) {
	base := kb.New()
	base.Declare("fmt", nil, []logic.Indicator{{Name: "format", Arity: 2}})
	base.Declare("app", []string{"fmt"}, nil)
	p := pred(t, "fmt", clause(comp("format", var_("F"), var_("Args"))))
	p.Variadic = true
	base.AssertZ(p)

	assert.True(t, p.Exported)
	assert.True(t, base.IsExported(kb.Signature{"fmt", "format", kb.Variadic}))
	got, ok := base.Lookup(comp("format", atom("f"), int_(1), int_(2)), base.Scope("app"))
	assert.True(t, ok)
	assert.Equal(t, []kb.Signature{{"fmt", "format", kb.Variadic}}, got)
}

func TestGetMatches(t *testing.T) {
	base := kb.New()
	base.AssertZ(pred(t, "user", clause(comp("color", atom("red"), int_(1)))))
	base.AssertZ(pred(t, "user", clause(comp("color", atom("green"), int_(2)))))
	base.AssertZ(pred(t, "user", clause(comp("color", var_("C"), int_(3)), comp("other", var_("C")))))

	m := mem.New()
	vars := make(map[logic.Var]mem.Addr)
	goal := m.Store(comp("color", var_("X"), int_(3)), vars)
	before := m.SaveState()

	matches, err := base.GetMatches(m, goal, base.Scope("user"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	match := matches[0]
	assert.Equal(t, "color(C_3_, 3) :-\n  other(C_3_).", match.Clause.String())
	assert.Equal(t, before, m.SaveState(), "memory should be restored")

	// The caller opens the match it keeps.
	clauseVars, ok := match.Open(m, goal)
	require.True(t, ok)
	c := match.Clause.Body[0].(*logic.Comp).Args[0].(logic.Var)
	require.True(t, m.Unify(clauseVars[c], m.Store(atom("blue"), nil), false))
	assert.Equal(t, atom("blue"), m.Resolve(vars[var_("X")]))

	_, err = base.GetMatches(m, m.Store(comp("nope", int_(1)), nil), base.Scope("user"))
	assert.True(t, errors.IsType(err, errors.UndefinedPredicate), "got err: %v", err)
}

func TestGetMatches_Variadic(t *testing.T) {
	base := kb.New()
	p := pred(t, "user", clause(comp("collect", var_("First"), var_("Rest"))))
	p.Variadic = true
	base.AssertZ(p)

	m := mem.New()
	goal := m.Store(comp("collect", int_(1), int_(2), int_(3)), nil)
	matches, err := base.GetMatches(m, goal, base.Scope("user"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	subst := matches[0].Substitution
	suffix := matches[0].Clause.Head.(*logic.Comp).Args[0].(logic.Var).Suffix()
	assert.Equal(t, int_(1), subst[var_("First").WithSuffix(suffix)])
	assert.Equal(t, list(int_(2), int_(3)).String(), subst[var_("Rest").WithSuffix(suffix)].String())

	normalized, ok := kb.NormalizeVariadic(comp("f", atom("a")), 1)
	require.True(t, ok)
	assert.Equal(t, "f(a, [])", normalized.String())
	_, ok = kb.NormalizeVariadic(atom("f"), 1)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	base := kb.New()
	base.AssertZ(pred(t, "m", clause(atom("a"))))
	base.Clear()
	assert.Empty(t, base.Signatures())
	assert.Equal(t, []string{kb.DefaultModule}, base.Modules())
}
