package kb

import (
	"sync"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/logic"
)

// Predicate is a single clause of a predicate family, with the flags of its declaration.
type Predicate struct {
	Module string
	Clause *logic.Clause

	Dynamic   bool
	Exported  bool
	Inlinable bool
	// Variadic clauses have heads name(P1, ..., Pk, Rest), and match goals with k or more
	// args, with Rest bound to the list of remaining args.
	Variadic bool

	// Derived from the clause.
	TailRecursive bool
	Factual       bool

	mu      sync.Mutex
	code    interface{}
	codeGen uint64
	hasCode bool
}

// NewPredicate returns a predicate for a clause in module. The clause is normalized, and
// an InvalidClause error is returned if it contains non-callable terms.
func NewPredicate(module string, clause *logic.Clause) (*Predicate, error) {
	c, err := clause.Normalize()
	if err != nil {
		return nil, errors.Errorf(errors.InvalidClause, clause, err)
	}
	if module == "" {
		module = DefaultModule
	}
	p := &Predicate{Module: module, Clause: c, Factual: c.IsFact()}
	p.TailRecursive = isTailRecursive(module, c)
	return p, nil
}

func isTailRecursive(module string, c *logic.Clause) bool {
	if len(c.Body) == 0 {
		return false
	}
	head, _ := GoalSignature(module, c.Head)
	last, ok := GoalSignature(module, c.Body[len(c.Body)-1])
	return ok && head == last
}

// Signature returns the signature of this predicate's family.
func (p *Predicate) Signature() Signature {
	ind, _ := logic.GoalIndicator(p.Clause.Head)
	if p.Variadic {
		return Signature{p.Module, ind.Name, Variadic}
	}
	return Signature{p.Module, ind.Name, ind.Arity}
}

func (p *Predicate) headIndicator() logic.Indicator {
	ind, _ := logic.GoalIndicator(p.Clause.Head)
	return ind
}

// FixedParams returns the number of params of a variadic predicate before the rest list.
func (p *Predicate) FixedParams() int {
	ind, _ := logic.GoalIndicator(p.Clause.Head)
	if p.Variadic {
		return ind.Arity - 1
	}
	return ind.Arity
}

func (p *Predicate) String() string {
	return p.Clause.String()
}

// Code returns the compiled code cached for generation gen.
func (p *Predicate) Code(gen uint64) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasCode || p.codeGen != gen {
		return nil, false
	}
	return p.code, true
}

// SetCode caches compiled code for generation gen.
func (p *Predicate) SetCode(code interface{}, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.code, p.codeGen, p.hasCode = code, gen, true
}

// NormalizeVariadic rewrites a goal name(A1, ..., An) into name(A1, ..., Ak, [Ak+1, ..., An]),
// for a variadic predicate with k fixed params. It returns false if n < k.
func NormalizeVariadic(goal logic.Term, fixed int) (logic.Term, bool) {
	ind, ok := logic.GoalIndicator(goal)
	if !ok || ind.Arity < fixed {
		return nil, false
	}
	args := logic.GoalArgs(goal)
	params := make([]logic.Term, fixed+1)
	copy(params, args[:fixed])
	params[fixed] = logic.NewList(args[fixed:]...)
	return logic.NewComp(ind.Name, params...), true
}
