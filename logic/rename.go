package logic

import (
	"fmt"
)

// Rename returns term with every named var replaced by one with the provided suffix.
// The anonymous var is kept as is.
func Rename(term Term, suffix int) Term {
	if !term.hasVar() {
		return term
	}
	return MapVars(term, func(x Var) Term { return x.WithSuffix(suffix) })
}

// Rename returns a copy of the clause with vars renamed by suffix.
func (c *Clause) Rename(suffix int) *Clause {
	if !c.hasVar_ {
		return c
	}
	body := make([]Term, len(c.Body))
	for i, term := range c.Body {
		body[i] = Rename(term, suffix)
	}
	return NewClause(Rename(c.Head, suffix), body...)
}

// MapVars returns term with every var x replaced by f(x).
func MapVars(term Term, f func(x Var) Term) Term {
	if !term.hasVar() {
		return term
	}
	switch t := term.(type) {
	case Var:
		return f(t)
	case *Comp:
		return NewComp(t.Functor, mapVars(t.Args, f)...)
	case *List:
		return NewIncompleteList(mapVars(t.Terms, f), MapVars(t.Tail, f))
	case *Tuple:
		return NewTuple(mapVars(t.Terms, f)...)
	case *Set:
		return NewSet(mapVars(t.Terms, f)...)
	case *Assoc:
		return NewAssoc(MapVars(t.Key, f), MapVars(t.Val, f))
	case *Dict:
		assocs := make([]*Assoc, len(t.Assocs))
		for i, assoc := range t.Assocs {
			assocs[i] = MapVars(assoc, f).(*Assoc)
		}
		tag := MapVars(t.Tag, f)
		if set, err := NewAssocSet(assocs); err == nil {
			return NewDict(tag, set...)
		}
		// Keys became equal after replacement, so they are kept in the original order.
		hasVar := tag.hasVar()
		for _, assoc := range assocs {
			hasVar = hasVar || assoc.hasVar()
		}
		return &Dict{Tag: tag, Assocs: assocs, hasVar_: hasVar}
	default:
		panic(fmt.Sprintf("logic.MapVars: unhandled type %T (%v)", term, term))
	}
}

func mapVars(terms []Term, f func(x Var) Term) []Term {
	result := make([]Term, len(terms))
	for i, term := range terms {
		result[i] = MapVars(term, f)
	}
	return result
}
