package mem

import (
	"fmt"

	"github.com/brunokim/resolve/logic"
)

// Unify makes the terms at a and b equal, binding variables as needed.
//
// If transactional is true, a failed unification leaves the memory as it was before the
// call. Otherwise, bindings made before the mismatch was found are kept, and it's up to the
// caller to restore an earlier state.
func (m *Memory) Unify(a, b Addr, transactional bool) bool {
	var s State
	if transactional {
		s = m.SaveState()
	}
	if m.unify(a, b) {
		return true
	}
	if transactional {
		m.LoadState(s)
	}
	return false
}

// bindVars binds the younger var to the older one, so that the direction is stable
// regardless of argument order.
func (m *Memory) bindVars(a, b Addr) {
	if a.index < b.index {
		m.Bind(b, a)
	} else {
		m.Bind(a, b)
	}
}

func constEqual(t1, t2 logic.Term) bool {
	if t1 == t2 {
		return true
	}
	n1, ok1 := logic.Numeric(t1)
	n2, ok2 := logic.Numeric(t2)
	return ok1 && ok2 && n1 == n2
}

// unify executes a depth-first traversal of cells, binding unbound vars to the other
// cell, or comparing them for equality.
func (m *Memory) unify(a1, a2 Addr) bool {
	stack := []Addr{a1, a2}
	var visited pairSet
	for len(stack) > 0 {
		// Pop address pair from stack.
		n := len(stack)
		a1, a2 := m.Walk(stack[n-2]), m.Walk(stack[n-1])
		stack = stack[:n-2]
		if a1 == a2 {
			// 1. They are the same, nothing to do.
			continue
		}
		// 2. Some of them is a var. Bind them.
		if a1.Kind == Variable && a2.Kind == Variable {
			m.bindVars(a1, a2)
			continue
		}
		if a1.Kind == Variable {
			m.Bind(a1, a2)
			continue
		}
		if a2.Kind == Variable {
			m.Bind(a2, a1)
			continue
		}
		// 3. A pair of compound cells seen before is assumed to unify, so that cyclic
		// terms terminate.
		if a1.Kind != Constant && a2.Kind != Constant {
			if visited == nil {
				visited = make(pairSet)
			}
			if !visited.visit(a1, a2) {
				continue
			}
		}
		// 4. Abstract terms unify by their expansion, except for dict pairs.
		if a1.Kind == Abstract && a2.Kind == Abstract {
			c1, c2 := m.abstractCell(a1), m.abstractCell(a2)
			if c1.kind == DictKind && c2.kind == DictKind {
				stack = m.pushDictPairs(stack, c1, c2)
				continue
			}
			if c1.kind != c2.kind {
				return false
			}
			stack = append(stack, c1.expansion, c2.expansion)
			continue
		}
		if a1.Kind == Abstract {
			a1 = m.abstractCell(a1).expansion
		}
		if a2.Kind == Abstract {
			a2 = m.abstractCell(a2).expansion
		}
		switch a1.Kind {
		case Constant:
			// 5. If they are both constants, check that they are equal.
			if a2.Kind != Constant || !constEqual(m.constant(a1), m.constant(a2)) {
				return false
			}
		case Structure:
			// 6. Check if they are both struct cells with the same functor.
			if a2.Kind != Structure {
				return false
			}
			s1, s2 := m.structCell(a1), m.structCell(a2)
			if s1.functor != s2.functor || len(s1.args) != len(s2.args) {
				return false
			}
			// 7. Push addresses of args pair-wise onto stack, last first.
			for i := len(s1.args) - 1; i >= 0; i-- {
				stack = append(stack, s1.args[i], s2.args[i])
			}
		case Predicate:
			return false
		default:
			panic(fmt.Sprintf("mem.unify: unhandled kind %v", a1.Kind))
		}
	}
	return true
}

// pushDictPairs pushes the tags and the values of keys present in both dicts.
func (m *Memory) pushDictPairs(stack []Addr, d1, d2 *abstractCell) []Addr {
	var pairs []Addr
	i, j := 0, 0
	for i < len(d1.keys) && j < len(d2.keys) {
		switch o := m.Compare(d1.keys[i], d2.keys[j]); {
		case o < 0:
			i++
		case o > 0:
			j++
		default:
			pairs = append(pairs, d1.vals[i], d2.vals[j])
			i++
			j++
		}
	}
	for k := len(pairs) - 2; k >= 0; k -= 2 {
		stack = append(stack, pairs[k], pairs[k+1])
	}
	return append(stack, d1.tag, d2.tag)
}
