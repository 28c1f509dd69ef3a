package kb

import (
	"fmt"

	"github.com/brunokim/resolve/logic"
)

// Variadic is the arity of signatures that match goals of any arity above their number of
// fixed params.
const Variadic = -1

// DefaultModule is the module of predicates and goals without a declared module.
const DefaultModule = "user"

// Signature identifies a predicate family.
type Signature struct {
	Module string
	Name   string
	Arity  int
}

func (s Signature) String() string {
	if s.Arity == Variadic {
		return fmt.Sprintf("%s:%s/*", s.Module, logic.FormatAtom(s.Name))
	}
	return fmt.Sprintf("%s:%s/%d", s.Module, logic.FormatAtom(s.Name), s.Arity)
}

// Indicator returns the signature without its module.
func (s Signature) Indicator() logic.Indicator {
	return logic.Indicator{Name: s.Name, Arity: s.Arity}
}

// IsVariadic returns whether the signature matches goals of any arity.
func (s Signature) IsVariadic() bool {
	return s.Arity == Variadic
}

// AsVariadic returns the arity-agnostic signature with same module and name.
func (s Signature) AsVariadic() Signature {
	return Signature{s.Module, s.Name, Variadic}
}

// Unqualify removes module qualifications 'M:Goal' from goal, returning the innermost
// module, or "" if goal is not qualified.
func Unqualify(goal logic.Term) (string, logic.Term) {
	var module string
	for {
		c, ok := goal.(*logic.Comp)
		if !ok || c.Functor != ":" || len(c.Args) != 2 {
			return module, goal
		}
		m, ok := c.Args[0].(logic.Atom)
		if !ok {
			return module, goal
		}
		module, goal = m.Name, c.Args[1]
	}
}

// GoalSignature returns the signature of a callable goal, using module if the goal is not
// qualified.
func GoalSignature(module string, goal logic.Term) (Signature, bool) {
	if m, inner := Unqualify(goal); m != "" {
		module, goal = m, inner
	}
	ind, ok := logic.GoalIndicator(goal)
	if !ok {
		return Signature{}, false
	}
	return Signature{module, ind.Name, ind.Arity}, true
}

// Scope is the set of modules visible to an unqualified goal: the scope module followed by
// its imports. Imported modules only expose their exported predicates.
type Scope struct {
	Module  string
	Imports []string
}

// Visible returns the visible modules, in lookup order.
func (s Scope) Visible() []string {
	return append([]string{s.Module}, s.Imports...)
}
