package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/brunokim/resolve/depgraph"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
)

// template is the body of an inlinable predicate, as a disjunction of its clauses over
// a set of params. Calls to the predicate are replaced by the body with params bound to the
// call args.
//
//	p(a, Y) :- q(Y).
//	p(X, b).
//
// becomes, for a call p(A, B):
//
//	(A = a, q(B) ; true)
type template struct {
	sig    kb.Signature
	params []logic.Var
	body   logic.Term
	scope  kb.Scope
}

func (t *template) String() string {
	return fmt.Sprintf("%v(%v) :- %v", t.sig, t.params, t.body)
}

// inlinePass builds the templates of every inlinable node of the graph. Nodes are visited
// depth-first from the roots, so that callees get their template before their callers.
// Templates are expanded into call sites as calls are compiled.
func (c *Compiler) inlinePass() map[kb.Signature]*template {
	templates := make(map[kb.Signature]*template)
	nodes := c.graph.Nodes()
	for _, node := range nodes {
		node.IsInlined = false
	}
	if !c.inline {
		return templates
	}
	visited := make(map[depgraph.NodeID]bool)
	var visit func(node *depgraph.Node)
	visit = func(node *depgraph.Node) {
		if visited[node.ID] {
			return
		}
		visited[node.ID] = true
		for _, id := range node.Dependencies {
			visit(c.graph.NodeByID(id))
		}
		if !c.canInline(node) {
			return
		}
		templates[node.Signature] = c.makeTemplate(node)
		node.IsInlined = true
		c.logger.Debug("inlined predicate", zap.Stringer("signature", node.Signature))
	}
	for _, root := range c.graph.RootNodes() {
		visit(root)
	}
	// Nodes only called from within a cycle are not reachable from a root.
	for _, node := range nodes {
		visit(node)
	}
	return templates
}

func (c *Compiler) canInline(node *depgraph.Node) bool {
	if node.IsCyclical || node.Signature.IsVariadic() || c.kb.IsDynamic(node.Signature) {
		return false
	}
	if len(node.Clauses) == 0 {
		return false
	}
	for _, p := range node.Clauses {
		if !p.Inlinable || p.Dynamic {
			return false
		}
		for _, goal := range p.Clause.Body {
			if hasCut(goal) {
				return false
			}
		}
	}
	return true
}

func (c *Compiler) makeTemplate(node *depgraph.Node) *template {
	arity := node.Signature.Arity
	params := make([]logic.Var, arity)
	for i := range params {
		params[i] = logic.NewVar(fmt.Sprintf("_V%d", i+1))
	}
	alts := make([]logic.Term, len(node.Clauses))
	for i, p := range node.Clauses {
		clause := p.Clause.Rename(c.kb.NextSuffix())
		alts[i] = templateClause(clause, params)
	}
	return &template{
		sig:    node.Signature,
		params: params,
		body:   logic.Disjunction(alts...),
		scope:  c.kb.Scope(node.Signature.Module),
	}
}

// templateClause rewrites a clause as a conjunction over params. Head vars that occur only
// once are replaced by their param, and other head args are unified with it.
func templateClause(clause *logic.Clause, params []logic.Var) logic.Term {
	args := logic.GoalArgs(clause.Head)
	count := make(map[logic.Var]int)
	for _, arg := range args {
		for _, x := range logic.Vars(arg) {
			count[x]++
		}
	}
	subst := make(map[logic.Var]logic.Var)
	var goals []logic.Term
	for i, arg := range args {
		x, ok := arg.(logic.Var)
		switch {
		case ok && x.IsAnonymous():
		case ok && count[x] == 1:
			subst[x] = params[i]
		default:
			goals = append(goals, logic.NewComp("=", params[i], arg))
		}
	}
	for _, goal := range clause.Body {
		goals = append(goals, logic.MapVars(goal, func(x logic.Var) logic.Term {
			if param, ok := subst[x]; ok {
				return param
			}
			return x
		}))
	}
	body := logic.Conjunction(goals...)
	if c, ok := body.(*logic.Comp); ok && c.Indicator() == implication {
		// Keep (C -> T) from becoming an if-then-else within the disjunction.
		body = logic.Conjunction(body, logic.True)
	}
	return body
}

// instantiate returns the template body with params replaced by args, and other vars
// renamed with suffix.
func (t *template) instantiate(args []logic.Term, suffix int) logic.Term {
	index := make(map[logic.Var]int, len(t.params))
	for i, x := range t.params {
		index[x] = i
	}
	return logic.MapVars(t.body, func(x logic.Var) logic.Term {
		if i, ok := index[x]; ok {
			return args[i]
		}
		return x.WithSuffix(suffix)
	})
}
