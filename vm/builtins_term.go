package vm

import (
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
	"github.com/brunokim/resolve/runes"
)

func init() {
	det("=", 2, func(m *Machine, args []mem.Addr) (bool, error) {
		return m.unify(args[0], args[1]), nil
	})
	det(`\=`, 2, func(m *Machine, args []mem.Addr) (bool, error) {
		s := m.Mem.SaveState()
		ok := m.unify(args[0], args[1])
		m.Mem.LoadState(s)
		return !ok, nil
	})
	det("==", 2, compareWith(func(c int) bool { return c == 0 }))
	det(`\==`, 2, compareWith(func(c int) bool { return c != 0 }))
	det("@<", 2, compareWith(func(c int) bool { return c < 0 }))
	det("@>", 2, compareWith(func(c int) bool { return c > 0 }))
	det("@=<", 2, compareWith(func(c int) bool { return c <= 0 }))
	det("@>=", 2, compareWith(func(c int) bool { return c >= 0 }))
	det("compare", 3, compare3)

	det("var", 1, typeCheck(func(m *Machine, a mem.Addr) bool { return a.Kind == mem.Variable }))
	det("nonvar", 1, typeCheck(func(m *Machine, a mem.Addr) bool { return a.Kind != mem.Variable }))
	det("atomic", 1, typeCheck(func(m *Machine, a mem.Addr) bool { return a.Kind == mem.Constant }))
	det("compound", 1, typeCheck(isCompound))
	det("atom", 1, typeCheck(func(m *Machine, a mem.Addr) bool {
		_, ok := m.constant(a).(logic.Atom)
		return ok
	}))
	det("number", 1, typeCheck(func(m *Machine, a mem.Addr) bool {
		_, ok := logic.Numeric(m.constant(a))
		return ok
	}))
	det("integer", 1, typeCheck(func(m *Machine, a mem.Addr) bool {
		_, ok := m.constant(a).(logic.Int)
		return ok
	}))
	det("float", 1, typeCheck(func(m *Machine, a mem.Addr) bool {
		_, ok := m.constant(a).(logic.Float)
		return ok
	}))
	det("callable", 1, typeCheck(func(m *Machine, a mem.Addr) bool {
		_, ok := m.constant(a).(logic.Atom)
		return ok || isCompound(m, a)
	}))
	det("is_list", 1, typeCheck(func(m *Machine, a mem.Addr) bool {
		_, ok := m.Mem.ListElems(a)
		return ok
	}))
	det("ground", 1, typeCheck(func(m *Machine, a mem.Addr) bool {
		return logic.IsGround(m.Mem.Resolve(a))
	}))

	det("functor", 3, functor)
	det("arg", 3, arg)
	det("=..", 2, univ)
	det("copy_term", 2, func(m *Machine, args []mem.Addr) (bool, error) {
		term, _ := m.Mem.Reify(args[0])
		return m.unify(args[1], m.Mem.Store(term, nil)), nil
	})
	det("atom_length", 2, func(m *Machine, args []mem.Addr) (bool, error) {
		name, err := m.atomArg(args, 1)
		if err != nil {
			return false, err
		}
		return m.unify(args[1], m.int_(runes.Count(name))), nil
	})
}

func compareWith(pred func(int) bool) DetFunc {
	return func(m *Machine, args []mem.Addr) (bool, error) {
		return pred(m.Mem.Compare(args[0], args[1])), nil
	}
}

func compare3(m *Machine, args []mem.Addr) (bool, error) {
	var order string
	switch c := m.Mem.Compare(args[1], args[2]); {
	case c < 0:
		order = "<"
	case c > 0:
		order = ">"
	default:
		order = "="
	}
	return m.unify(args[0], m.atom(order)), nil
}

func typeCheck(pred func(m *Machine, a mem.Addr) bool) DetFunc {
	return func(m *Machine, args []mem.Addr) (bool, error) {
		return pred(m, m.Mem.Walk(args[0])), nil
	}
}

func isCompound(m *Machine, a mem.Addr) bool {
	return a.Kind == mem.Structure || a.Kind == mem.Abstract
}

// functor(Term, Name, Arity)
func functor(m *Machine, args []mem.Addr) (bool, error) {
	t := m.Mem.Walk(args[0])
	switch t.Kind {
	case mem.Variable:
		arity, err := m.intArg(args, 3)
		if err != nil {
			return false, err
		}
		name := m.Mem.Walk(args[1])
		if name.Kind == mem.Variable {
			return false, instantiationError(2)
		}
		if arity == 0 {
			return m.unify(t, name), nil
		}
		atom, ok := m.constant(name).(logic.Atom)
		if !ok {
			return false, typeError("atom", 2, m.Mem.Resolve(name))
		}
		if arity < 0 {
			return false, typeError("not_less_than_zero", 3, logic.Int{Value: arity})
		}
		params := make([]mem.Addr, arity)
		for i := range params {
			params[i] = m.Mem.NewVar(logic.AnonymousVar)
		}
		return m.unify(t, m.Mem.NewStruct(atom.Name, params)), nil
	case mem.Constant:
		return m.unify(args[1], t) && m.unify(args[2], m.int_(0)), nil
	}
	name, params, _ := m.Mem.Functor(t)
	return m.unify(args[1], m.atom(name)) && m.unify(args[2], m.int_(len(params))), nil
}

// arg(N, Term, Arg)
func arg(m *Machine, args []mem.Addr) (bool, error) {
	n, err := m.intArg(args, 1)
	if err != nil {
		return false, err
	}
	t := m.Mem.Walk(args[1])
	if t.Kind == mem.Variable {
		return false, instantiationError(2)
	}
	if !isCompound(m, t) {
		return false, typeError("compound", 2, m.Mem.Resolve(t))
	}
	_, params, _ := m.Mem.Functor(t)
	if n < 1 || n > len(params) {
		return false, nil
	}
	return m.unify(args[2], params[n-1]), nil
}

// Term =.. [Name|Args]
func univ(m *Machine, args []mem.Addr) (bool, error) {
	t := m.Mem.Walk(args[0])
	switch t.Kind {
	case mem.Constant:
		return m.unify(args[1], m.Mem.NewList([]mem.Addr{t}, m.atom("[]"))), nil
	case mem.Structure, mem.Abstract:
		name, params, _ := m.Mem.Functor(t)
		elems := append([]mem.Addr{m.atom(name)}, params...)
		return m.unify(args[1], m.Mem.NewList(elems, m.atom("[]"))), nil
	}
	elems, ok := m.Mem.ListElems(args[1])
	if !ok {
		return false, instantiationError(2)
	}
	if len(elems) == 0 {
		return false, typeError("non_empty_list", 2, logic.EmptyList)
	}
	head := m.Mem.Walk(elems[0])
	if head.Kind == mem.Variable {
		return false, instantiationError(2)
	}
	if len(elems) == 1 {
		return m.unify(t, head), nil
	}
	atom, ok := m.constant(head).(logic.Atom)
	if !ok {
		return false, typeError("atom", 2, m.Mem.Resolve(head))
	}
	return m.unify(t, m.Mem.NewStruct(atom.Name, elems[1:])), nil
}
