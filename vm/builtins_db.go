package vm

import (
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
)

func init() {
	det("asserta", 1, assertClause(true))
	det("assertz", 1, assertClause(false))
	det("assert", 1, assertClause(false))
	det("retractall", 1, retractAll)
	gen("retract", 1, retract)
	gen("clause", 2, clause2)
}

// scopeOf returns the scope to look up a clause head, that is restricted to a single module
// if the head was qualified.
func (m *Machine) scopeOf(module string) kb.Scope {
	if module == "" {
		return m.scope
	}
	return kb.Scope{Module: module}
}

// splitClause returns the module qualification, head and body of a clause term Head :- Body.
// Facts have 'true' as body.
func (m *Machine) splitClause(a mem.Addr) (string, mem.Addr, mem.Addr, error) {
	module, a := m.unqualify(a)
	if name, args, _ := m.Mem.Functor(a); name == ":-" && len(args) == 2 {
		hmodule, head := m.unqualify(args[0])
		if hmodule != "" {
			module = hmodule
		}
		return module, head, args[1], nil
	}
	return module, a, m.atom("true"), nil
}

func (m *Machine) unqualify(a mem.Addr) (string, mem.Addr) {
	var module string
	for {
		a = m.Mem.Walk(a)
		name, args, _ := m.Mem.Functor(a)
		if name != ":" || len(args) != 2 {
			return module, a
		}
		atom, ok := m.constant(args[0]).(logic.Atom)
		if !ok {
			return module, a
		}
		module, a = atom.Name, args[1]
	}
}

// callableHead checks that head is callable, returning its signature.
func (m *Machine) callableHead(module string, head mem.Addr) (kb.Signature, error) {
	head = m.Mem.Walk(head)
	if head.Kind == mem.Variable {
		return kb.Signature{}, instantiationError(1)
	}
	if module == "" {
		module = m.scope.Module
	}
	term := m.Mem.Resolve(head)
	sig, ok := kb.GoalSignature(module, term)
	if !ok {
		return kb.Signature{}, typeError("callable", 1, term)
	}
	return sig, nil
}

func assertClause(front bool) DetFunc {
	return func(m *Machine, args []mem.Addr) (bool, error) {
		module, head, body, err := m.splitClause(args[0])
		if err != nil {
			return false, err
		}
		if _, err := m.callableHead(module, head); err != nil {
			return false, err
		}
		if module == "" {
			module = m.scope.Module
		}
		term, _ := m.Mem.Reify(m.Mem.NewStruct(":-", []mem.Addr{head, body}))
		c := term.(*logic.Comp)
		p, err := kb.NewPredicate(module, logic.NewClause(c.Args[0], logic.Goals(c.Args[1])...))
		if err != nil {
			return false, err
		}
		sig := p.Signature()
		if !m.KB.IsDynamic(sig) {
			if len(m.KB.Clauses(sig)) > 0 {
				return false, errors.Errorf(errors.CannotAssertStaticPredicate, sig)
			}
			m.KB.DeclareDynamic(sig)
		}
		if front {
			m.KB.AssertA(p)
		} else {
			m.KB.AssertZ(p)
		}
		return true, nil
	}
}

// matches returns the candidate clauses for head. An undefined head has no candidates.
func (m *Machine) matches(module string, head mem.Addr) ([]kb.Match, error) {
	if _, err := m.callableHead(module, head); err != nil {
		return nil, err
	}
	matches, err := m.KB.GetMatches(m.Mem, head, m.scopeOf(module))
	if errors.IsType(err, errors.UndefinedPredicate) {
		return nil, nil
	}
	return matches, err
}

// openClause unifies the head and body of a match with the given terms, restoring the
// memory if they don't unify.
func (m *Machine) openClause(match kb.Match, head, body mem.Addr) bool {
	s := m.Mem.SaveState()
	vars, ok := match.Open(m.Mem, head)
	if ok {
		ok = m.unify(m.Mem.Store(logic.Conjunction(match.Clause.Body...), vars), body)
	}
	if !ok {
		m.Mem.LoadState(s)
	}
	return ok
}

// retract(Clause) removes the first dynamic clause that unifies with Clause, and others on
// backtracking.
func retract(m *Machine, args []mem.Addr) (Generator, error) {
	module, head, body, err := m.splitClause(args[0])
	if err != nil {
		return nil, err
	}
	matches, err := m.matches(module, head)
	if err != nil {
		return nil, err
	}
	return GeneratorFunc(func(m *Machine) (bool, error) {
		for len(matches) > 0 {
			match := matches[0]
			matches = matches[1:]
			if !match.Predicate.Dynamic {
				return false, errors.Errorf(errors.CannotRetractStaticPredicate, match.Predicate.Signature())
			}
			if !m.openClause(match, head, body) {
				continue
			}
			removed, err := m.KB.RetractPredicate(match.Predicate)
			if err != nil {
				return false, err
			}
			if removed {
				return true, nil
			}
		}
		return false, nil
	}), nil
}

// retractall(Head) removes every clause whose head unifies with Head. If there are none,
// the signature is declared dynamic.
func retractAll(m *Machine, args []mem.Addr) (bool, error) {
	module, head := m.unqualify(args[0])
	sig, err := m.callableHead(module, head)
	if err != nil {
		return false, err
	}
	matches, err := m.matches(module, head)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 && !m.KB.Defined(sig) {
		m.KB.DeclareDynamic(sig)
		return true, nil
	}
	for _, match := range matches {
		if _, err := m.KB.RetractPredicate(match.Predicate); err != nil {
			return false, err
		}
	}
	return true, nil
}

// clause(Head, Body) enumerates the clauses that unify with Head and Body.
func clause2(m *Machine, args []mem.Addr) (Generator, error) {
	module, head := m.unqualify(args[0])
	matches, err := m.matches(module, head)
	if err != nil {
		return nil, err
	}
	return GeneratorFunc(func(m *Machine) (bool, error) {
		for len(matches) > 0 {
			match := matches[0]
			matches = matches[1:]
			if m.openClause(match, head, args[1]) {
				return true, nil
			}
		}
		return false, nil
	}), nil
}
