package compiler_test

import (
	"strings"
	"testing"

	"github.com/brunokim/resolve/compiler"
	"github.com/brunokim/resolve/dsl"
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/test_helpers"
	"github.com/brunokim/resolve/vm"

	"github.com/google/go-cmp/cmp"
)

var (
	atom   = dsl.Atom
	clause = dsl.Clause
	comp   = dsl.Comp
	int_   = dsl.Int
	var_   = dsl.Var
	terms  = dsl.Terms
)

var userScope = kb.Scope{Module: kb.DefaultModule}

type decl struct {
	module string
	clause *logic.Clause
	inline bool
}

func newKB(t *testing.T, decls ...decl) *kb.KnowledgeBase {
	t.Helper()
	base := kb.New()
	for _, d := range decls {
		p, err := kb.NewPredicate(d.module, d.clause)
		if err != nil {
			t.Fatalf("kb.NewPredicate(%v): %v", d.clause, err)
		}
		p.Inlinable = d.inline
		base.AssertZ(p)
	}
	return base
}

func user(clauses ...*logic.Clause) []decl {
	decls := make([]decl, len(clauses))
	for i, c := range clauses {
		decls[i] = decl{clause: c}
	}
	return decls
}

func inline(decls []decl) []decl {
	for i := range decls {
		decls[i].inline = true
	}
	return decls
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func TestCompileBody(t *testing.T) {
	base := newKB(t, user(
		clause(comp("color", atom("red"))),
		clause(comp("color", atom("green"))),
		clause(comp("color", atom("blue"))),
		clause(atom("a")),
		clause(comp("p", var_("X")), comp("color", var_("X"))),
	)...)
	tests := []struct {
		goals []logic.Term
		want  string
	}{
		{
			terms(comp("color", var_("X"))),
			lines("call user:color/1 color(X) [3 clauses]"),
		},
		{
			terms(comp("color", atom("green"))),
			lines("call user:color/1 color(green) [1 clauses] det"),
		},
		{
			terms(comp("color", atom("yellow"))),
			lines("fail"),
		},
		{
			terms(comp("color", var_("X")), atom("!"), atom("a")),
			lines(
				"sequence(3)",
				"  call user:color/1 color(X) [3 clauses]",
				"  !",
				"  call user:a/0 a [1 clauses] det"),
		},
		{
			terms(atom("a"), atom("fail"), comp("color", var_("X"))),
			lines(
				"sequence(2) det",
				"  call user:a/0 a [1 clauses] det",
				"  fail"),
		},
		{
			terms(dsl.Not(atom("a"))),
			lines(
				"if_then_else det",
				"  call user:a/0 a [1 clauses] det",
				"  fail",
				"  true"),
		},
		{
			terms(dsl.IfThenElse(comp("color", var_("X")), atom("a"), atom("true"))),
			lines(
				"if_then_else det",
				"  call user:color/1 color(X) [3 clauses]",
				"  call user:a/0 a [1 clauses] det",
				"  true"),
		},
		{
			terms(dsl.Or(atom("a"), atom("fail"), comp("color", atom("red")))),
			lines(
				"branch(2)",
				"  call user:a/0 a [1 clauses] det",
				"  call user:color/1 color(red) [1 clauses] det"),
		},
		{
			terms(dsl.Call(atom("p"), atom("blue"))),
			lines("call user:p/1 p(blue) [1 clauses]"),
		},
		{
			terms(dsl.Call(var_("G"), atom("x"))),
			lines("var_call G + (x)"),
		},
		{
			terms(dsl.Call(dsl.And(atom("a"), atom("!")))),
			lines("var_call ,(a, !)"),
		},
		{
			terms(comp("=", var_("X"), int_(1)), comp("between", int_(1), int_(3), var_("Y"))),
			lines(
				"sequence(2)",
				"  builtin =(X, 1) det",
				"  builtin between(1, 3, Y)"),
		},
		{
			terms(comp("forall", comp("color", var_("X")), atom("a"))),
			lines(
				"if_then_else det",
				"  sequence(2)",
				"    call user:color/1 color(X) [3 clauses]",
				"    if_then_else det",
				"      call user:a/0 a [1 clauses] det",
				"      fail",
				"      true",
				"  fail",
				"  true"),
		},
	}
	c := compiler.New(base, nil)
	for _, test := range tests {
		node, err := c.CompileBody(test.goals, userScope)
		if err != nil {
			t.Errorf("CompileBody(%v): %v", test.goals, err)
			continue
		}
		got := compiler.Dump(node)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("CompileBody(%v): (-want, +got)\n%s", test.goals, diff)
		}
	}
}

func TestCompileBody_Unresolved(t *testing.T) {
	base := newKB(t, user(clause(atom("a")))...)
	c := compiler.New(base, nil)
	_, err := c.CompileBody(terms(atom("a"), atom("b")), userScope)
	if !errors.IsType(err, errors.UnresolvedPredicate) {
		t.Errorf("CompileBody(a, b): got err %v, want unresolved_predicate", err)
	}
}

func TestCompileBody_Modules(t *testing.T) {
	base := newKB(t,
		decl{clause: clause(atom("p"))},
		decl{module: "lib", clause: clause(atom("p"))},
		decl{module: "lib", clause: clause(atom("q"))},
		decl{module: "other", clause: clause(atom("q"))},
	)
	base.Declare("lib", nil, []logic.Indicator{dsl.Indicator("p", 0)})
	base.Declare("user", []string{"lib"}, nil)
	tests := []struct {
		goal logic.Term
		want string
	}{
		{
			atom("p"),
			lines(
				"branch(2)",
				"  call user:p/0 p [1 clauses] det",
				"  call lib:p/0 p [1 clauses] det"),
		},
		{
			dsl.Qualify("lib", atom("q")),
			lines("call lib:q/0 q [1 clauses] det"),
		},
		{
			dsl.Qualify("other", atom("q")),
			lines("call other:q/0 q [1 clauses] det"),
		},
	}
	c := compiler.New(base, nil)
	for _, test := range tests {
		node, err := c.CompileBody(terms(test.goal), base.Scope("user"))
		if err != nil {
			t.Errorf("CompileBody(%v): %v", test.goal, err)
			continue
		}
		if diff := cmp.Diff(test.want, compiler.Dump(node)); diff != "" {
			t.Errorf("CompileBody(%v): (-want, +got)\n%s", test.goal, diff)
		}
	}
	// lib:q/0 is not exported.
	if _, err := c.CompileBody(terms(atom("q")), base.Scope("user")); err == nil {
		t.Errorf("CompileBody(q): want error for unexported predicate")
	}
}

func TestProcedure_DirectRecursion(t *testing.T) {
	base := newKB(t, user(
		clause(comp("nat", int_(0))),
		clause(comp("nat", comp("s", var_("X"))), comp("nat", var_("X"))),
	)...)
	c := compiler.New(base, nil)
	proc, err := c.Procedure(kb.Signature{Module: "user", Name: "nat", Arity: 1})
	if err != nil {
		t.Fatalf("Procedure(nat/1): %v", err)
	}
	want := lines(
		"user:nat/1",
		"  clause nat(0)",
		"    head_unify(0)",
		"    true",
		"  clause nat(s(X))",
		"    head_unify(s(X))",
		"    cyclical_call user:nat/1 nat(X)")
	if diff := cmp.Diff(want, compiler.DumpProcedure(proc)); diff != "" {
		t.Errorf("DumpProcedure(nat/1): (-want, +got)\n%s", diff)
	}
	code := proc.Code()
	if len(code.Clauses) != 2 {
		t.Fatalf("got %d clauses, want 2", len(code.Clauses))
	}
	call, ok := code.Clauses[1].Body.(*vm.Call)
	if !ok {
		t.Fatalf("got body %T, want *vm.Call", code.Clauses[1].Body)
	}
	if call.Proc != code {
		t.Errorf("recursive call refers to %p, want %p", call.Proc, code)
	}
}

func TestProcedure_MutualRecursion(t *testing.T) {
	base := newKB(t, user(
		clause(comp("even", atom("z"))),
		clause(comp("even", comp("s", var_("N"))), comp("odd", var_("N"))),
		clause(comp("odd", comp("s", var_("N"))), comp("even", var_("N"))),
	)...)
	c := compiler.New(base, nil)
	even, err := c.Procedure(kb.Signature{Module: "user", Name: "even", Arity: 1})
	if err != nil {
		t.Fatalf("Procedure(even/1): %v", err)
	}
	odd, err := c.Procedure(kb.Signature{Module: "user", Name: "odd", Arity: 1})
	if err != nil {
		t.Fatalf("Procedure(odd/1): %v", err)
	}
	want := lines(
		"user:even/1",
		"  clause even(z)",
		"    head_unify(z)",
		"    true",
		"  clause even(s(N))",
		"    head_unify(s(N))",
		"    call user:odd/1 odd(N) [1 clauses]")
	if diff := cmp.Diff(want, compiler.DumpProcedure(even)); diff != "" {
		t.Errorf("DumpProcedure(even/1): (-want, +got)\n%s", diff)
	}
	toOdd := even.Code().Clauses[1].Body.(*vm.Call)
	if toOdd.Proc.Signature != odd.Signature {
		t.Errorf("even/1 calls %v, want %v", toOdd.Proc.Signature, odd.Signature)
	}
	toEven := toOdd.Proc.Clauses[0].Body.(*vm.Call)
	if toEven.Proc != even.Code() {
		t.Errorf("odd/1 calls %p, want even/1 at %p", toEven.Proc, even.Code())
	}
}

func TestProcedure_CompileError(t *testing.T) {
	base := newKB(t, user(
		clause(comp("p", var_("X")), comp("undefined", var_("X"))),
		clause(comp("p", int_(1))),
	)...)
	sink := &errors.CollectSink{}
	c := compiler.New(base, nil, compiler.WithSink(sink))
	proc, err := c.Procedure(kb.Signature{Module: "user", Name: "p", Arity: 1})
	if err != nil {
		t.Fatalf("Procedure(p/1): %v", err)
	}
	want := lines(
		"user:p/1",
		"  clause p(X)",
		"    head_unify(X)",
		"    fail",
		"  clause p(1)",
		"    head_unify(1)",
		"    true")
	if diff := cmp.Diff(want, compiler.DumpProcedure(proc)); diff != "" {
		t.Errorf("DumpProcedure(p/1): (-want, +got)\n%s", diff)
	}
	// Recompiling doesn't report the error again.
	c.Procedure(kb.Signature{Module: "user", Name: "p", Arity: 1})
	errs := sink.Errors()
	if len(errs) != 1 || errs[0].Type != errors.UnresolvedPredicate {
		t.Errorf("got reported errors %v, want a single unresolved_predicate", errs)
	}
}

func TestInlining(t *testing.T) {
	decls := inline(user(
		clause(comp("bit", int_(0))),
		clause(comp("bit", int_(1))),
		clause(comp("pair", var_("X"), var_("Y")), comp("bit", var_("X")), comp("bit", var_("Y"))),
	))
	base := newKB(t, decls...)
	c := compiler.New(base, nil, compiler.WithInlining(true))
	node, err := c.CompileBody(terms(comp("pair", var_("A"), var_("B"))), userScope)
	if err != nil {
		t.Fatalf("CompileBody: %v", err)
	}
	want := lines(
		"sequence(2)",
		"  branch(2)",
		"    builtin =(A, 0) det",
		"    builtin =(A, 1) det",
		"  branch(2)",
		"    builtin =(B, 0) det",
		"    builtin =(B, 1) det")
	if diff := cmp.Diff(want, compiler.Dump(node)); diff != "" {
		t.Errorf("CompileBody(pair(A, B)): (-want, +got)\n%s", diff)
	}
	for name, arity := range map[string]int{"bit": 1, "pair": 2} {
		node, ok := c.Graph().Node(kb.Signature{Module: "user", Name: name, Arity: arity})
		if !ok || !node.IsInlined {
			t.Errorf("%s: want node to be inlined", name)
		}
	}
}

func TestInlining_Cyclical(t *testing.T) {
	decls := inline(user(
		clause(comp("nat", int_(0))),
		clause(comp("nat", comp("s", var_("X"))), comp("nat", var_("X"))),
		clause(comp("first", var_("X")), comp("nat", var_("X")), atom("!")),
	))
	base := newKB(t, decls...)
	c := compiler.New(base, nil, compiler.WithInlining(true))
	node, err := c.CompileBody(terms(comp("nat", var_("N"))), userScope)
	if err != nil {
		t.Fatalf("CompileBody: %v", err)
	}
	if diff := cmp.Diff(lines("call user:nat/1 nat(N) [2 clauses]"), compiler.Dump(node)); diff != "" {
		t.Errorf("CompileBody(nat(N)): (-want, +got)\n%s", diff)
	}
	for _, name := range []string{"nat", "first"} {
		node, _ := c.Graph().Node(kb.Signature{Module: "user", Name: name, Arity: 1})
		if node.IsInlined {
			t.Errorf("%s: want node to not be inlined", name)
		}
	}
}

func TestInlining_CyclicalWithinConstructs(t *testing.T) {
	bodies := []logic.Term{
		comp("once", atom("loop")),
		comp("ignore", atom("loop")),
		comp("not", atom("loop")),
		dsl.Not(atom("loop")),
		comp("findall", var_("X"), atom("loop"), var_("L")),
	}
	for _, body := range bodies {
		base := newKB(t, inline(user(clause(atom("loop"), body)))...)
		c := compiler.New(base, nil, compiler.WithInlining(true))
		if _, err := c.CompileQuery(terms(atom("loop")), userScope); err != nil {
			t.Errorf("loop :- %v: CompileQuery: %v", body, err)
			continue
		}
		node, ok := c.Graph().Node(kb.Signature{Module: "user", Name: "loop", Arity: 0})
		if !ok || !node.IsCyclical || node.IsInlined {
			t.Errorf("loop :- %v: got node %+v, want cyclical and not inlined", body, node)
		}
	}
}

func TestLink_DetIfThenElse(t *testing.T) {
	c := compiler.New(kb.New(), nil)
	tests := []struct {
		goal logic.Term
		det  bool
	}{
		{dsl.IfThenElse(comp("=", var_("X"), atom("a")), comp("=", var_("Y"), atom("b")), comp("=", var_("Y"), atom("c"))), true},
		{dsl.IfThen(comp("==", var_("X"), atom("a")), comp("=", var_("Y"), atom("b"))), true},
		{dsl.Not(comp("=", var_("X"), atom("a"))), true},
		{dsl.IfThenElse(comp("=", var_("X"), atom("a")), dsl.Or(comp("=", var_("Y"), atom("b")), comp("=", var_("Y"), atom("c"))), atom("true")), false},
	}
	for _, test := range tests {
		q, err := c.CompileQuery(terms(test.goal), userScope)
		if err != nil {
			t.Fatalf("CompileQuery(%v): %v", test.goal, err)
		}
		if _, got := q.Op.(*vm.DetIfThenElse); got != test.det {
			t.Errorf("%v: got op %v, want det %t", test.goal, q.Op, test.det)
		}
	}
}

func solve(t *testing.T, base *kb.KnowledgeBase, c *compiler.Compiler, goals ...logic.Term) []vm.Solution {
	t.Helper()
	q, err := c.CompileQuery(goals, userScope)
	if err != nil {
		t.Fatalf("CompileQuery(%v): %v", goals, err)
	}
	m := vm.NewMachine(base, c)
	m.Query = q
	solutions, err := m.Run()
	if err != nil {
		t.Fatalf("Run(%v): %v", goals, err)
	}
	return solutions
}

func TestInlining_SameSolutions(t *testing.T) {
	clauses := []*logic.Clause{
		clause(comp("bit", int_(0))),
		clause(comp("bit", int_(1))),
		clause(comp("eq", var_("X"), var_("X"))),
		clause(comp("pair", var_("X"), var_("Y")), comp("bit", var_("X")), comp("bit", var_("Y"))),
		clause(comp("same", var_("X"), var_("Y")), comp("pair", var_("X"), var_("Y")), comp("eq", var_("X"), var_("Y"))),
		clause(comp("diff", var_("X"), var_("Y")), comp("pair", var_("X"), var_("Y")), dsl.Not(comp("eq", var_("X"), var_("Y")))),
	}
	queries := [][]logic.Term{
		terms(comp("pair", var_("A"), var_("B"))),
		terms(comp("same", var_("A"), var_("B"))),
		terms(comp("diff", var_("A"), var_("B"))),
		terms(comp("diff", int_(1), var_("B"))),
		terms(comp("eq", comp("f", var_("A")), comp("f", atom("x")))),
	}
	plain := newKB(t, user(clauses...)...)
	inlined := newKB(t, inline(user(clauses...))...)
	c1 := compiler.New(plain, nil)
	c2 := compiler.New(inlined, nil, compiler.WithInlining(true))
	for _, goals := range queries {
		want := solve(t, plain, c1, goals...)
		got := solve(t, inlined, c2, goals...)
		if diff := cmp.Diff(want, got, test_helpers.IgnoreUnexported); diff != "" {
			t.Errorf("%v: (-plain, +inlined)\n%s", goals, diff)
		}
	}
}

func TestRecompile(t *testing.T) {
	base := newKB(t, user(clause(comp("color", atom("red"))))...)
	c := compiler.New(base, nil)
	node, err := c.CompileBody(terms(comp("color", var_("X"))), userScope)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(lines("call user:color/1 color(X) [1 clauses] det"), compiler.Dump(node)); diff != "" {
		t.Errorf("before assert: (-want, +got)\n%s", diff)
	}
	p, _ := kb.NewPredicate("", clause(comp("color", atom("green"))))
	base.AssertZ(p)
	node, err = c.CompileBody(terms(comp("color", var_("X"))), userScope)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(lines("call user:color/1 color(X) [2 clauses]"), compiler.Dump(node)); diff != "" {
		t.Errorf("after assert: (-want, +got)\n%s", diff)
	}
}
