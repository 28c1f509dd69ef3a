package mem

import (
	"fmt"

	"github.com/brunokim/resolve/logic"
)

func compareInts(i1, i2 int) int {
	if i1 < i2 {
		return -1
	}
	if i1 > i2 {
		return 1
	}
	return 0
}

func compareStrings(s1, s2 string) int {
	if s1 < s2 {
		return -1
	}
	if s1 > s2 {
		return 1
	}
	return 0
}

func (m *Memory) cellOrder(a Addr) int {
	switch a.Kind {
	case Variable:
		return 1
	case Constant:
		if _, ok := m.constant(a).(logic.Atom); ok {
			return 3
		}
		return 2
	case Structure:
		return 4
	case Abstract:
		return 4 + int(m.abstractCell(a).kind)
	}
	panic(fmt.Sprintf("mem.cellOrder: unhandled kind %v", a.Kind))
}

// Compare returns -1, 0 or 1 if the term at a is less, equal or greater than the term at b,
// following the standard order of terms. Unbound variables are ordered by age.
func (m *Memory) Compare(a, b Addr) int {
	return m.compare(a, b, make(pairSet))
}

// pairSet holds pairs of compound cells already being compared, that are assumed equal when
// found again within a cyclic term.
type pairSet map[[2]Addr]bool

func (ps pairSet) visit(a1, a2 Addr) bool {
	pair := [2]Addr{a1, a2}
	if ps[pair] {
		return false
	}
	ps[pair] = true
	return true
}

func (m *Memory) compare(a, b Addr, visited pairSet) int {
	stack := []Addr{a, b}
	for len(stack) > 0 {
		n := len(stack)
		a1, a2 := m.Walk(stack[n-2]), m.Walk(stack[n-1])
		stack = stack[:n-2]
		if a1 == a2 {
			continue
		}
		if o := compareInts(m.cellOrder(a1), m.cellOrder(a2)); o != 0 {
			return o
		}
		switch a1.Kind {
		case Variable:
			return compareInts(int(a1.index), int(a2.index))
		case Constant:
			if o := logic.Compare(m.constant(a1), m.constant(a2)); o != 0 {
				return o
			}
		case Structure:
			s1, s2 := m.structCell(a1), m.structCell(a2)
			if o := compareInts(len(s1.args), len(s2.args)); o != 0 {
				return o
			}
			if o := compareStrings(s1.functor, s2.functor); o != 0 {
				return o
			}
			if !visited.visit(a1, a2) {
				continue
			}
			for i := len(s1.args) - 1; i >= 0; i-- {
				stack = append(stack, s1.args[i], s2.args[i])
			}
		case Abstract:
			if !visited.visit(a1, a2) {
				continue
			}
			if o := m.compareAbstract(a1, a2, visited); o != 0 {
				return o
			}
		default:
			panic(fmt.Sprintf("mem.Compare: unhandled kind %v", a1.Kind))
		}
	}
	return 0
}

// compareAbstract compares two abstract terms of the same kind element by element.
func (m *Memory) compareAbstract(a1, a2 Addr, visited pairSet) int {
	c1, c2 := m.abstractCell(a1), m.abstractCell(a2)
	e1, e2 := m.structCell(c1.expansion), m.structCell(c2.expansion)
	switch c1.kind {
	case ListKind, SetKind, AssocKind:
		// Head and tail, the list of elements, or key and value.
		for i := range e1.args {
			if o := m.compare(e1.args[i], e2.args[i], visited); o != 0 {
				return o
			}
		}
		return 0
	case TupleKind:
		return m.compareAll(e1.args, e2.args, visited)
	case DictKind:
		if o := m.compare(c1.tag, c2.tag, visited); o != 0 {
			return o
		}
		n := min(len(c1.keys), len(c2.keys))
		for i := 0; i < n; i++ {
			if o := m.compare(c1.keys[i], c2.keys[i], visited); o != 0 {
				return o
			}
			if o := m.compare(c1.vals[i], c2.vals[i], visited); o != 0 {
				return o
			}
		}
		return compareInts(len(c1.keys), len(c2.keys))
	}
	panic(fmt.Sprintf("mem.compareAbstract: unhandled kind %d", c1.kind))
}

func (m *Memory) compareAll(as1, as2 []Addr, visited pairSet) int {
	n := min(len(as1), len(as2))
	for i := 0; i < n; i++ {
		if o := m.compare(as1[i], as2[i], visited); o != 0 {
			return o
		}
	}
	return compareInts(len(as1), len(as2))
}

// Equal returns whether the terms at a and b are identical, without binding any variable.
func (m *Memory) Equal(a, b Addr) bool {
	return m.Compare(a, b) == 0
}
