package mem_test

import (
	"testing"

	"github.com/brunokim/resolve/dsl"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
	"github.com/brunokim/resolve/test_helpers"

	"github.com/google/go-cmp/cmp"
)

var (
	atom   = dsl.Atom
	comp   = dsl.Comp
	dict   = dsl.Dict
	float_ = dsl.Float
	ilist  = dsl.IList
	int_   = dsl.Int
	list   = dsl.List
	set    = dsl.Set
	tuple  = dsl.Tuple
	var_   = dsl.Var
	assoc  = dsl.Assoc
)

func TestStoreResolve(t *testing.T) {
	tests := []logic.Term{
		atom("a"),
		int_(10),
		float_(1.5),
		var_("X"),
		comp("f", var_("X"), atom("a"), var_("X")),
		list(int_(1), int_(2)),
		ilist(atom("a"), var_("T")),
		tuple(atom("a"), comp("g", var_("Y"))),
		set(int_(3), int_(1)),
		assoc(atom("k"), var_("V")),
		dict(atom("t"), atom("b"), int_(2), atom("a"), var_("A")),
	}
	for _, term := range tests {
		m := mem.New()
		got := m.Resolve(m.Store(term, nil))
		if diff := cmp.Diff(term, got, test_helpers.IgnoreUnexported); diff != "" {
			t.Errorf("%v: (-want, +got)%s", term, diff)
		}
	}
}

func TestStore_SharesVars(t *testing.T) {
	m := mem.New()
	vars := make(map[logic.Var]mem.Addr)
	a1 := m.Store(comp("f", var_("X"), var_("_"), var_("_")), vars)
	a2 := m.Store(comp("g", var_("X")), vars)
	if len(vars) != 1 {
		t.Fatalf("got vars %v, want only X", vars)
	}
	if !m.Unify(a2, m.Store(comp("g", atom("a")), nil), false) {
		t.Fatalf("g(X) != g(a)")
	}
	got := m.Resolve(a1)
	want := comp("f", atom("a"), var_("_G1"), var_("_G2"))
	if diff := cmp.Diff(want, got, test_helpers.IgnoreUnexported); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if m.NewConstant(atom("a")) != m.Store(atom("a"), nil) {
		t.Errorf("constants are not deduplicated")
	}
}

func TestUnify(t *testing.T) {
	tests := []struct {
		t1, t2 logic.Term
		want   bool
		term   logic.Term
	}{
		{atom("a"), atom("a"), true, atom("a")},
		{atom("a"), atom("b"), false, nil},
		{int_(1), float_(1), true, int_(1)},
		{int_(1), int_(2), false, nil},
		{atom("1"), int_(1), false, nil},
		{var_("X"), atom("a"), true, atom("a")},
		{
			comp("f", var_("X"), atom("b")),
			comp("f", atom("a"), var_("Y")),
			true,
			comp("f", atom("a"), atom("b")),
		},
		{comp("f", var_("X")), comp("g", var_("X")), false, nil},
		{comp("f", var_("X")), comp("f", var_("X"), var_("Y")), false, nil},
		{
			comp("f", var_("X"), var_("X")),
			comp("f", atom("a"), atom("b")),
			false, nil,
		},
		{
			list(var_("H"), int_(2)),
			ilist(int_(1), var_("T")),
			true,
			list(int_(1), int_(2)),
		},
		{
			list(int_(1)),
			comp(".", int_(1), atom("[]")),
			true,
			list(int_(1)),
		},
		{tuple(var_("A"), int_(2)), tuple(int_(1), var_("B")), true, tuple(int_(1), int_(2))},
		{tuple(int_(1)), list(int_(1)), false, nil},
		{set(int_(1), var_("X")), set(int_(1), int_(2)), false, nil},
		{
			dict(var_("T"), atom("a"), int_(1), atom("b"), var_("B")),
			dict(atom("t"), atom("b"), int_(2), atom("c"), int_(3)),
			true,
			dict(atom("t"), atom("a"), int_(1), atom("b"), int_(2)),
		},
		{
			dict(atom("t"), atom("a"), int_(1)),
			dict(atom("u"), atom("b"), int_(1)),
			false, nil,
		},
		{
			dict(atom("t"), atom("a"), int_(1)),
			dict(atom("t"), atom("a"), int_(2)),
			false, nil,
		},
		{
			dict(atom("t"), atom("a"), var_("X")),
			comp("$dict", var_("T"), list(comp("-", atom("a"), int_(1)))),
			true,
			dict(atom("t"), atom("a"), int_(1)),
		},
	}
	for _, test := range tests {
		m := mem.New()
		a1, a2 := m.Store(test.t1, nil), m.Store(test.t2, nil)
		before := m.Resolve(a1)
		if got := m.Unify(a1, a2, true); got != test.want {
			t.Errorf("unify(%v, %v) = %t, want %t", test.t1, test.t2, got, test.want)
			continue
		}
		if !test.want {
			if diff := cmp.Diff(before, m.Resolve(a1), test_helpers.IgnoreUnexported); diff != "" {
				t.Errorf("unify(%v, %v): failed transaction left bindings (-want, +got)%s", test.t1, test.t2, diff)
			}
			continue
		}
		got := m.Resolve(a1)
		if diff := cmp.Diff(test.term, got, test_helpers.IgnoreUnexported); diff != "" {
			t.Errorf("unify(%v, %v): (-want, +got)%s", test.t1, test.t2, diff)
		}
	}
}

func TestUnify_Symmetry(t *testing.T) {
	terms := []logic.Term{
		atom("a"),
		atom("b"),
		int_(1),
		float_(1),
		float_(2.5),
		comp("f", atom("a")),
		comp("f", atom("b")),
		comp("f", atom("a"), atom("b")),
		list(atom("a")),
		list(atom("a"), atom("b")),
		comp(".", atom("a"), atom("[]")),
		tuple(atom("a")),
		set(atom("a"), atom("b")),
		dict(atom("t"), atom("a"), int_(1)),
		dict(atom("t"), atom("b"), int_(2)),
		dict(atom("t"), atom("a"), int_(2), atom("b"), int_(2)),
	}
	for _, t1 := range terms {
		for _, t2 := range terms {
			m := mem.New()
			a1, a2 := m.Store(t1, nil), m.Store(t2, nil)
			ok1 := m.Unify(a1, a2, true)
			ok2 := m.Unify(a2, a1, true)
			if ok1 != ok2 {
				t.Errorf("unify(%v, %v) = %t, but unify(%v, %v) = %t", t1, t2, ok1, t2, t1, ok2)
			}
		}
	}
}

func TestUnify_VarDirection(t *testing.T) {
	m := mem.New()
	x := m.NewVar(var_("X"))
	y := m.NewVar(var_("Y"))
	if !m.Unify(x, y, false) {
		t.Fatalf("X != Y")
	}
	if m.Walk(y) != x {
		t.Errorf("younger var Y should be bound to X, got Walk(Y) = %v", m.Walk(y))
	}
	if m.Walk(x) != x {
		t.Errorf("older var X should be unbound, got Walk(X) = %v", m.Walk(x))
	}
}

func TestRollback(t *testing.T) {
	m := mem.New()
	vars := make(map[logic.Var]mem.Addr)
	a := m.Store(comp("f", var_("X"), var_("Y"), var_("Z")), vars)
	m.Unify(vars[var_("X")], m.Store(atom("a"), nil), false)

	s := m.SaveState()
	want := m.Resolve(a)
	size := m.Size()

	m.Unify(a, m.Store(comp("f", var_("_"), list(int_(1), var_("W")), var_("Y")), nil), false)
	if diff := cmp.Diff(want, m.Resolve(a), test_helpers.IgnoreUnexported); diff == "" {
		t.Fatalf("unify had no effect on %v", want)
	}
	m.LoadState(s)

	if diff := cmp.Diff(want, m.Resolve(a), test_helpers.IgnoreUnexported); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if m.Size() != size {
		t.Errorf("m.Size() = %d, want %d", m.Size(), size)
	}
}

func TestLoadState_Stale(t *testing.T) {
	m := mem.New()
	s := m.SaveState()
	x := m.NewVar(var_("X"))
	m.LoadState(s)
	m.NewVar(var_("Y"))

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic when using stale address %v", x)
		}
	}()
	m.Resolve(x)
}

func TestLoadState_Newer(t *testing.T) {
	m := mem.New()
	s1 := m.SaveState()
	m.NewVar(var_("X"))
	s2 := m.SaveState()
	m.LoadState(s1)

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic when restoring a state newer than memory")
		}
	}()
	m.LoadState(s2)
}

func TestBind_Bound(t *testing.T) {
	m := mem.New()
	x := m.NewVar(var_("X"))
	m.Bind(x, m.NewConstant(atom("a")))
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic when binding a bound var")
		}
	}()
	m.Bind(x, m.NewConstant(atom("b")))
}

func TestCompare(t *testing.T) {
	order := []logic.Term{
		var_("A"),
		var_("B"),
		int_(-1),
		float_(1),
		int_(1),
		atom("a"),
		comp("f", atom("a")),
		comp("f", atom("b")),
		comp("g", atom("a"), atom("b")),
		list(atom("a")),
		list(atom("a"), atom("b")),
		tuple(atom("a")),
		tuple(atom("a"), atom("b")),
		set(atom("a")),
		assoc(atom("a"), int_(1)),
		dict(atom("t"), atom("a"), int_(1)),
		dict(atom("t"), atom("a"), int_(1), atom("b"), int_(1)),
	}
	m := mem.New()
	vars := make(map[logic.Var]mem.Addr)
	addrs := make([]mem.Addr, len(order))
	for i, term := range order {
		addrs[i] = m.Store(term, vars)
	}
	for i := 0; i < len(addrs)-1; i++ {
		if got := m.Compare(addrs[i], addrs[i+1]); got != -1 {
			t.Errorf("compare(%v, %v) = %d, want -1", order[i], order[i+1], got)
		}
		if got := m.Compare(addrs[i+1], addrs[i]); got != 1 {
			t.Errorf("compare(%v, %v) = %d, want 1", order[i+1], order[i], got)
		}
	}
	if !m.Equal(m.Store(list(int_(1)), nil), m.Store(list(int_(1)), nil)) {
		t.Errorf("[1] != [1]")
	}
	if m.Equal(vars[var_("A")], m.NewVar(var_("A"))) {
		t.Errorf("distinct vars should not be equal")
	}
}

func TestReify(t *testing.T) {
	m := mem.New()
	vars := make(map[logic.Var]mem.Addr)
	a := m.Store(comp("f", var_("X"), var_("Y"), var_("X")), vars)
	m.Unify(vars[var_("Y")], m.Store(list(var_("Z")), vars), false)

	term, names := m.Reify(a)
	want := comp("f", var_("_G0"), list(var_("_G2")), var_("_G0"))
	if diff := cmp.Diff(want, term, test_helpers.IgnoreUnexported); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	// Storing again aliases the same cells.
	b := m.Store(term, names)
	if !m.Unify(vars[var_("Z")], m.NewConstant(int_(7)), false) {
		t.Fatalf("Z != 7")
	}
	got := m.Resolve(b)
	want = comp("f", var_("X"), list(int_(7)), var_("X"))
	if diff := cmp.Diff(want, got, test_helpers.IgnoreUnexported); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestFormat(t *testing.T) {
	m := mem.New()
	vars := make(map[logic.Var]mem.Addr)
	a := m.Store(comp("f", var_("X"), list(int_(1), int_(2)), dict(atom("t"), atom("k"), var_("V"))), vars)
	if got, want := m.Format(a), "f(_X0, [1, 2], t{k:_X1})"; got != want {
		t.Errorf("Format(%v) = %q, want %q", a, got, want)
	}

	// X = f(X) builds a cyclic term.
	m = mem.New()
	x := m.NewVar(var_("X"))
	fx := m.NewStruct("f", []mem.Addr{x})
	m.Unify(x, fx, false)
	if got, want := m.Format(x), "f(_S1)=_S1"; got != want {
		t.Errorf("Format(X = f(X)) = %q, want %q", got, want)
	}
	if got, want := m.Resolve(x).String(), "f(_S0)"; got != want {
		t.Errorf("Resolve(X = f(X)) = %q, want %q", got, want)
	}
}

// cyclic stores X = f(X, arg), returning the address of X.
func cyclic(m *mem.Memory, name string, arg logic.Term) mem.Addr {
	x := m.NewVar(var_(name))
	m.Unify(x, m.NewStruct("f", []mem.Addr{x, m.Store(arg, nil)}), false)
	return x
}

func TestUnify_Cyclic(t *testing.T) {
	m := mem.New()
	x, y, z := cyclic(m, "X", atom("a")), cyclic(m, "Y", atom("a")), cyclic(m, "Z", atom("b"))
	if got := m.Compare(x, y); got != 0 {
		t.Errorf("compare(X, Y) = %d, want 0", got)
	}
	if got := m.Compare(x, z); got != -1 {
		t.Errorf("compare(X, Z) = %d, want -1", got)
	}
	if !m.Unify(x, y, true) {
		t.Errorf("X = f(X, a), Y = f(Y, a): want X = Y")
	}
	if m.Unify(x, z, true) {
		t.Errorf("X = f(X, a), Z = f(Z, b): want X \\= Z")
	}

	// L1 = [a|L1], L2 = [a|L2].
	l1, l2 := m.NewVar(var_("L1")), m.NewVar(var_("L2"))
	a := m.Store(atom("a"), nil)
	m.Unify(l1, m.NewList([]mem.Addr{a}, l1), false)
	m.Unify(l2, m.NewList([]mem.Addr{a}, l2), false)
	if got := m.Compare(l1, l2); got != 0 {
		t.Errorf("compare(L1, L2) = %d, want 0", got)
	}
	if !m.Unify(l1, l2, true) {
		t.Errorf("L1 = [a|L1], L2 = [a|L2]: want L1 = L2")
	}
}

func TestCompare_ArgsInOrder(t *testing.T) {
	m := mem.New()
	a := m.Store(comp("f", comp("g", atom("b")), atom("a")), nil)
	b := m.Store(comp("f", comp("g", atom("a")), atom("z")), nil)
	if got := m.Compare(a, b); got != 1 {
		t.Errorf("compare(f(g(b), a), f(g(a), z)) = %d, want 1", got)
	}
}

func TestListElems(t *testing.T) {
	m := mem.New()
	elems, ok := m.ListElems(m.Store(list(int_(1), atom("a")), nil))
	if !ok || len(elems) != 2 {
		t.Fatalf("ListElems([1, a]) = %v, %t", elems, ok)
	}
	if _, ok := m.ListElems(m.Store(ilist(int_(1), var_("T")), nil)); ok {
		t.Errorf("ListElems([1|T]) should not be a proper list")
	}
	if elems, ok := m.ListElems(m.Store(atom("[]"), nil)); !ok || len(elems) != 0 {
		t.Errorf("ListElems([]) = %v, %t", elems, ok)
	}
}
