// Package dsl contains short builders for terms and clauses, used by hosts and tests.
package dsl

import (
	"github.com/brunokim/resolve/logic"
)

func Terms(terms ...logic.Term) []logic.Term {
	return terms
}

func Atom(name string) logic.Atom {
	return logic.Atom{Name: name}
}

func Int(i int) logic.Int {
	return logic.Int{Value: i}
}

func Float(f float64) logic.Float {
	return logic.Float{Value: f}
}

func Var(name string) logic.Var {
	return logic.NewVar(name)
}

func SVar(name string, suffix int) logic.Var {
	return logic.NewVar(name).WithSuffix(suffix)
}

func Comp(functor string, args ...logic.Term) *logic.Comp {
	return logic.NewComp(functor, args...)
}

func Indicator(name string, arity int) logic.Indicator {
	return logic.Indicator{Name: name, Arity: arity}
}

func Clause(head logic.Term, body ...logic.Term) *logic.Clause {
	return logic.NewClause(head, body...)
}

func Clauses(cs ...*logic.Clause) []*logic.Clause {
	return cs
}

// ----

func List(terms ...logic.Term) logic.Term {
	return logic.NewList(terms...)
}

func IList(terms ...logic.Term) logic.Term {
	n := len(terms)
	butlast, last := terms[:n-1], terms[n-1]
	return logic.NewIncompleteList(butlast, last)
}

func Tuple(terms ...logic.Term) *logic.Tuple {
	return logic.NewTuple(terms...)
}

func Set(terms ...logic.Term) *logic.Set {
	return logic.NewSet(terms...)
}

// ----

func Assoc(key, val logic.Term) *logic.Assoc {
	return logic.NewAssoc(key, val)
}

// Dict returns a dict with tag and alternating keys and values.
func Dict(tag logic.Term, kvs ...logic.Term) *logic.Dict {
	n := len(kvs)
	if n%2 == 1 {
		panic("Expected even number of key-value entries")
	}
	assocs := make([]*logic.Assoc, n/2)
	for i := 0; i < n/2; i++ {
		assocs[i] = Assoc(kvs[2*i], kvs[2*i+1])
	}
	return logic.NewDict(tag, assocs...)
}

// ---- Control constructs

func And(goals ...logic.Term) logic.Term {
	return logic.Conjunction(goals...)
}

func Or(goals ...logic.Term) logic.Term {
	return logic.Disjunction(goals...)
}

func IfThen(cond, then logic.Term) *logic.Comp {
	return Comp("->", cond, then)
}

func IfThenElse(cond, then, else_ logic.Term) *logic.Comp {
	return Comp(";", IfThen(cond, then), else_)
}

func Not(goal logic.Term) *logic.Comp {
	return Comp("\\+", goal)
}

func Call(goal logic.Term, extra ...logic.Term) *logic.Comp {
	return Comp("call", append([]logic.Term{goal}, extra...)...)
}

// Qualify returns the goal qualified with a module, 'module:goal'.
func Qualify(module string, goal logic.Term) *logic.Comp {
	return Comp(":", Atom(module), goal)
}
