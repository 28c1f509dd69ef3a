package vm

import (
	"math"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
)

func init() {
	det("throw", 1, func(m *Machine, args []mem.Addr) (bool, error) {
		if m.Mem.IsUnbound(args[0]) {
			return false, instantiationError(1)
		}
		return false, errors.Errorf(errors.UserException, m.Mem.Resolve(args[0]))
	})
	det("halt", 0, func(m *Machine, args []mem.Addr) (bool, error) {
		m.Halt()
		return true, nil
	})
	det("findall", 3, findall)
	gen("between", 3, between)
}

// findall(Template, Goal, List) unifies List with a copy of Template for each solution of
// Goal. Bindings made by Goal are undone.
func findall(m *Machine, args []mem.Addr) (bool, error) {
	op, env, err := m.LinkGoal(args[1], m.scope)
	if err != nil {
		return false, err
	}
	s := m.Mem.SaveState()
	var results []logic.Term
	err = m.SubQuery(op, env, func() bool {
		t, _ := m.Mem.Reify(args[0])
		results = append(results, t)
		return true
	})
	if err != nil {
		return false, err
	}
	if m.halted {
		return true, nil
	}
	m.Mem.LoadState(s)
	elems := make([]mem.Addr, len(results))
	for i, t := range results {
		// Each copy has its own fresh vars.
		elems[i] = m.Mem.Store(t, nil)
	}
	return m.unify(args[2], m.Mem.NewList(elems, m.atom("[]"))), nil
}

// between(Low, High, X) enumerates the integers from Low to High, inclusive. High may be
// 'inf' or 'infinite'.
func between(m *Machine, args []mem.Addr) (Generator, error) {
	lo, err := m.intArg(args, 1)
	if err != nil {
		return nil, err
	}
	var hi int
	switch t := m.constant(args[1]).(type) {
	case logic.Atom:
		if t.Name != "inf" && t.Name != "infinite" {
			return nil, typeError("integer", 2, t)
		}
		hi = math.MaxInt
	default:
		if hi, err = m.intArg(args, 2); err != nil {
			return nil, err
		}
	}
	x := m.Mem.Walk(args[2])
	if x.Kind != mem.Variable {
		n, ok := m.constant(x).(logic.Int)
		if !ok {
			return nil, typeError("integer", 3, m.Mem.Resolve(x))
		}
		done := false
		return GeneratorFunc(func(m *Machine) (bool, error) {
			ok := !done && lo <= n.Value && n.Value <= hi
			done = true
			return ok, nil
		}), nil
	}
	i := lo
	return GeneratorFunc(func(m *Machine) (bool, error) {
		if i > hi {
			return false, nil
		}
		m.Mem.Bind(x, m.int_(i))
		if i == math.MaxInt {
			hi = i - 1
		} else {
			i++
		}
		return true, nil
	}), nil
}
