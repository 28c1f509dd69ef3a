package mem

import (
	"fmt"

	"github.com/brunokim/resolve/logic"
)

type resolver struct {
	m       *Memory
	parents map[Addr]struct{}
	// Only set when reifying.
	vars map[logic.Var]Addr
}

// Resolve rebuilds the term at a, following bindings.
//
// Unbound variables resolve to their origin name, except for anonymous ones that are named
// after their cell, like _G12. Abstract terms are rebuilt in their sugar form.
func (m *Memory) Resolve(a Addr) logic.Term {
	r := &resolver{m: m, parents: make(map[Addr]struct{})}
	return r.resolve(a)
}

// Reify rebuilds the term at a like Resolve, but names every unbound variable after its cell,
// returning the name of each one. Storing the term again with the returned map aliases the
// same variables.
func (m *Memory) Reify(a Addr) (logic.Term, map[logic.Var]Addr) {
	r := &resolver{m: m, parents: make(map[Addr]struct{}), vars: make(map[logic.Var]Addr)}
	return r.resolve(a), r.vars
}

func cellVar(prefix string, a Addr) logic.Var {
	return logic.NewVar(fmt.Sprintf("%s%d", prefix, a.index))
}

func (r *resolver) resolveVar(a Addr) logic.Var {
	if r.vars != nil {
		x := cellVar("_G", a)
		r.vars[x] = a
		return x
	}
	name := r.m.varCell(a).name
	if name.Name == "" || name.IsAnonymous() {
		return cellVar("_G", a)
	}
	return name
}

func (r *resolver) resolveAll(as []Addr) []logic.Term {
	terms := make([]logic.Term, len(as))
	for i, a := range as {
		terms[i] = r.resolve(a)
	}
	return terms
}

func (r *resolver) resolve(a Addr) logic.Term {
	a = r.m.Walk(a)
	switch a.Kind {
	case Constant:
		return r.m.constant(a)
	case Variable:
		return r.resolveVar(a)
	}
	// Cyclic terms can be built since unification has no occurs check.
	if _, ok := r.parents[a]; ok {
		return cellVar("_S", a)
	}
	r.parents[a] = struct{}{}
	defer delete(r.parents, a)
	switch a.Kind {
	case Structure:
		cell := r.m.structCell(a)
		return logic.NewComp(cell.functor, r.resolveAll(cell.args)...)
	case Abstract:
		return r.resolveAbstract(a)
	case Predicate:
		cell := r.m.predCell(a)
		return logic.NewComp(":-", r.resolve(cell.Head), r.resolve(cell.Body))
	}
	panic(fmt.Sprintf("mem.resolve: unhandled kind %v", a.Kind))
}

func (r *resolver) resolveAbstract(a Addr) logic.Term {
	cell := r.m.abstractCell(a)
	exp := r.m.structCell(cell.expansion)
	switch cell.kind {
	case ListKind:
		var elems []logic.Term
		seen := map[Addr]struct{}{a: {}}
		for {
			elems = append(elems, r.resolve(exp.args[0]))
			next := r.m.Walk(exp.args[1])
			if next.Kind != Abstract || r.m.abstractCell(next).kind != ListKind {
				return logic.NewIncompleteList(elems, r.resolve(next))
			}
			if _, ok := seen[next]; ok {
				return logic.NewIncompleteList(elems, cellVar("_S", next))
			}
			seen[next] = struct{}{}
			exp = r.m.structCell(r.m.abstractCell(next).expansion)
		}
	case TupleKind:
		return logic.NewTuple(r.resolveAll(exp.args)...)
	case SetKind:
		if elems, ok := r.m.ListElems(exp.args[0]); ok {
			return logic.NewSet(r.resolveAll(elems)...)
		}
		return logic.NewComp(exp.functor, r.resolveAll(exp.args)...)
	case AssocKind:
		return logic.NewAssoc(r.resolve(exp.args[0]), r.resolve(exp.args[1]))
	case DictKind:
		assocs := make([]*logic.Assoc, len(cell.keys))
		for i := range cell.keys {
			assocs[i] = logic.NewAssoc(r.resolve(cell.keys[i]), r.resolve(cell.vals[i]))
		}
		tag := r.resolve(cell.tag)
		if _, err := logic.NewAssocSet(assocs); err != nil {
			// Keys became equal through bindings.
			return logic.NewComp(exp.functor, r.resolveAll(exp.args)...)
		}
		return logic.NewDict(tag, assocs...)
	}
	panic(fmt.Sprintf("mem.resolveAbstract: unhandled kind %d", cell.kind))
}
