package compiler

import (
	"go.uber.org/zap"

	"github.com/brunokim/resolve/depgraph"
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/vm"
)

// context is the state of compilation for a goal.
type context struct {
	scope kb.Scope
	// module qualifying the goal, if any.
	module string
}

func (c *Compiler) compileBody(goals []logic.Term, ctx context) (Node, error) {
	nodes := make([]Node, len(goals))
	for i, goal := range goals {
		node, err := c.compileGoal(goal, ctx)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return &Sequence{Nodes: nodes}, nil
}

var (
	conjunction = logic.Indicator{Name: ",", Arity: 2}
	disjunction = logic.Indicator{Name: ";", Arity: 2}
	implication = logic.Indicator{Name: "->", Arity: 2}
	negation    = logic.Indicator{Name: `\+`, Arity: 1}
	not         = logic.Indicator{Name: "not", Arity: 1}
	forall      = logic.Indicator{Name: "forall", Arity: 2}
	once        = logic.Indicator{Name: "once", Arity: 1}
	ignore      = logic.Indicator{Name: "ignore", Arity: 1}
	qualified   = logic.Indicator{Name: ":", Arity: 2}
)

func (c *Compiler) compileGoal(goal logic.Term, ctx context) (Node, error) {
	switch g := goal.(type) {
	case logic.Var:
		return &VarCall{Goal: c.qualify(g, ctx), Scope: ctx.scope}, nil
	case logic.Atom:
		switch g.Name {
		case "true":
			return True{}, nil
		case "fail", "false":
			return False{}, nil
		case "!":
			return Cut{}, nil
		}
		return c.compileCall(g, ctx)
	case *logic.Comp:
		return c.compileComp(g, ctx)
	}
	return nil, errors.Errorf(errors.ExpectedTermOfTypeAt, "callable", 0, goal)
}

func (c *Compiler) compileComp(g *logic.Comp, ctx context) (Node, error) {
	switch g.Indicator() {
	case conjunction:
		return c.compileBody(logic.Goals(g), ctx)
	case disjunction:
		if cond, ok := g.Args[0].(*logic.Comp); ok && cond.Indicator() == implication {
			return c.compileIf(cond.Args[0], cond.Args[1], g.Args[1], ctx)
		}
		left, err := c.compileGoal(g.Args[0], ctx)
		if err != nil {
			return nil, err
		}
		right, err := c.compileGoal(g.Args[1], ctx)
		if err != nil {
			return nil, err
		}
		return &Branch{Nodes: []Node{left, right}}, nil
	case implication:
		return c.compileIf(g.Args[0], g.Args[1], nil, ctx)
	case negation, not:
		return c.compileIf(g.Args[0], logic.Fail, logic.True, ctx)
	case forall:
		// forall(Cond, Action) is \+ (Cond, \+ Action).
		inner := logic.NewComp(",", g.Args[0], logic.NewComp(`\+`, g.Args[1]))
		return c.compileIf(inner, logic.Fail, logic.True, ctx)
	case once:
		return c.compileIf(g.Args[0], logic.True, nil, ctx)
	case ignore:
		return c.compileIf(g.Args[0], logic.True, logic.True, ctx)
	case qualified:
		if m, ok := g.Args[0].(logic.Atom); ok {
			ctx.module = m.Name
			return c.compileGoal(g.Args[1], ctx)
		}
	}
	if g.Functor == "call" {
		return c.compileMetaCall(g.Args[0], g.Args[1:], ctx)
	}
	return c.compileCall(g, ctx)
}

// compileIf compiles (Cond -> Then ; Else), or (Cond -> Then) if else_ is nil.
func (c *Compiler) compileIf(cond, then, else_ logic.Term, ctx context) (Node, error) {
	condNode, err := c.compileGoal(cond, ctx)
	if err != nil {
		return nil, err
	}
	thenNode, err := c.compileGoal(then, ctx)
	if err != nil {
		return nil, err
	}
	if else_ == nil {
		return &IfThen{Cond: condNode, Then: thenNode}, nil
	}
	elseNode, err := c.compileGoal(else_, ctx)
	if err != nil {
		return nil, err
	}
	return &IfThenElse{Cond: condNode, Then: thenNode, Else: elseNode}, nil
}

// compileMetaCall compiles call(Goal, Extra...). A cut within Goal is local to the call, so
// goals with cuts are only compiled at runtime.
func (c *Compiler) compileMetaCall(goal logic.Term, extra []logic.Term, ctx context) (Node, error) {
	if full, ok := depgraph.AddArgs(goal, extra...); ok && !hasCut(full) {
		return c.compileGoal(full, ctx)
	}
	return &VarCall{Goal: c.qualify(goal, ctx), Extra: extra, Scope: ctx.scope}, nil
}

// hasCut returns whether a cut is reachable from goal through control constructs.
func hasCut(goal logic.Term) bool {
	switch g := goal.(type) {
	case logic.Var:
		// May be bound to a cut at runtime.
		return true
	case logic.Atom:
		return g == logic.Cut
	case *logic.Comp:
		switch g.Indicator() {
		case conjunction, disjunction, implication:
			return hasCut(g.Args[0]) || hasCut(g.Args[1])
		case qualified:
			return hasCut(g.Args[1])
		}
	}
	return false
}

func (c *Compiler) qualify(goal logic.Term, ctx context) logic.Term {
	if ctx.module == "" {
		return goal
	}
	return logic.NewComp(":", logic.Atom{Name: ctx.module}, goal)
}

// ---- Calls

func (c *Compiler) compileCall(goal logic.Term, ctx context) (Node, error) {
	ind, _ := logic.GoalIndicator(goal)
	args := logic.GoalArgs(goal)
	if b, ok := vm.Lookup(ind.Name, ind.Arity); ok {
		return &BuiltInCall{Builtin: b, Args: args, Scope: ctx.scope}, nil
	}
	sigs, ok := c.kb.Lookup(c.qualify(goal, ctx), ctx.scope)
	if !ok {
		sig, _ := kb.GoalSignature(ctx.scope.Module, c.qualify(goal, ctx))
		return nil, errors.Errorf(errors.UnresolvedPredicate, sig)
	}
	if len(sigs) > 1 {
		c.logger.Warn("goal resolves to multiple modules",
			zap.Stringer("goal", goal),
			zap.String("scope", ctx.scope.Module),
			zap.Stringers("signatures", sigs))
	}
	nodes := make([]Node, len(sigs))
	for i, sig := range sigs {
		node, err := c.callSignature(sig, goal, args)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &Branch{Nodes: nodes}, nil
}

func (c *Compiler) callSignature(sig kb.Signature, goal logic.Term, args []logic.Term) (Node, error) {
	if c.kb.IsDynamic(sig) {
		return &DynamicCall{Signature: sig, Goal: goal, Args: args}, nil
	}
	if tmpl, ok := c.templates[sig]; ok && !c.expanding[sig] {
		// A template reached again from its own expansion is called as a procedure.
		c.expanding[sig] = true
		defer delete(c.expanding, sig)
		return c.compileGoal(tmpl.instantiate(args, c.kb.NextSuffix()), context{scope: tmpl.scope})
	}
	if proc, ok := c.building[sig]; ok {
		return &CyclicalCall{Goal: goal, Args: args, Procedure: proc}, nil
	}
	proc := c.procedure(sig)
	clauses := c.matchingClauses(proc, goal)
	if len(clauses) == 0 {
		return False{}, nil
	}
	filtered := &Procedure{Signature: sig, Clauses: clauses}
	filtered.code = &vm.Procedure{Signature: sig, Clauses: clauseCodes(clauses)}
	return &Call{Goal: goal, Args: args, Procedure: filtered}, nil
}

// matchingClauses returns the clauses of proc whose head unifies with goal.
func (c *Compiler) matchingClauses(proc *Procedure, goal logic.Term) []*Clause {
	m := c.scratch
	s := m.SaveState()
	defer m.LoadState(s)
	var clauses []*Clause
	for _, clause := range proc.Clauses {
		p := clause.Predicate
		g := goal
		if p.Variadic {
			var ok bool
			if g, ok = kb.NormalizeVariadic(goal, p.FixedParams()); !ok {
				continue
			}
		}
		// Goal and head are stored with separate var maps, so they are renamed apart.
		if m.Unify(m.Store(g, nil), m.Store(p.Clause.Head, nil), true) {
			clauses = append(clauses, clause)
		}
	}
	return clauses
}
