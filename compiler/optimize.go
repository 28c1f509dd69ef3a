package compiler

import (
	"fmt"
)

// Optimize simplifies an execution graph and marks its deterministic nodes. Deterministic
// if-then-else nodes are linked to ops executed in place.
//
//	(A, (B, C))        => (A, B, C)
//	(A, true, B)       => (A, B)
//	(A, fail, B)       => (A, fail)
//	(A ; fail ; B)     => (A ; B)
//	(true -> A ; B)    => A
//	(fail -> A ; B)    => B
func Optimize(node Node) Node {
	switch n := node.(type) {
	case True, False, Cut, *HeadUnify, *DynamicCall, *VarCall, *CyclicalCall:
		return node
	case *Sequence:
		return optimizeSequence(n)
	case *Branch:
		return optimizeBranch(n)
	case *IfThenElse:
		cond := Optimize(n.Cond)
		switch cond.(type) {
		case True:
			return Optimize(n.Then)
		case False:
			return Optimize(n.Else)
		}
		then, else_ := Optimize(n.Then), Optimize(n.Else)
		return &IfThenElse{
			Cond: cond,
			Then: then,
			Else: else_,
			Det:  then.IsDet() && else_.IsDet(),
		}
	case *IfThen:
		cond := Optimize(n.Cond)
		switch cond.(type) {
		case True:
			return Optimize(n.Then)
		case False:
			return False{}
		}
		then := Optimize(n.Then)
		return &IfThen{Cond: cond, Then: then, Det: then.IsDet()}
	case *BuiltInCall:
		return &BuiltInCall{Builtin: n.Builtin, Args: n.Args, Scope: n.Scope, Det: n.Builtin.IsDet()}
	case *Call:
		return &Call{Goal: n.Goal, Args: n.Args, Procedure: n.Procedure, Det: isDetProcedure(n.Procedure)}
	default:
		panic(fmt.Sprintf("compiler.Optimize: unhandled type %T (%v)", node, node))
	}
}

func optimizeSequence(n *Sequence) Node {
	var nodes []Node
	add := func(node Node) bool {
		switch node.(type) {
		case True:
			return true
		case False:
			nodes = append(nodes, node)
			return false
		}
		nodes = append(nodes, node)
		return true
	}
	var flatten func(seq *Sequence) bool
	flatten = func(seq *Sequence) bool {
		for _, child := range seq.Nodes {
			child = Optimize(child)
			if inner, ok := child.(*Sequence); ok {
				if !flatten(inner) {
					return false
				}
				continue
			}
			if !add(child) {
				return false
			}
		}
		return true
	}
	flatten(n)
	switch len(nodes) {
	case 0:
		return True{}
	case 1:
		return nodes[0]
	}
	det := true
	for _, node := range nodes {
		det = det && node.IsDet()
	}
	return &Sequence{Nodes: nodes, Det: det}
}

func optimizeBranch(n *Branch) Node {
	var nodes []Node
	var flatten func(br *Branch)
	flatten = func(br *Branch) {
		for _, child := range br.Nodes {
			child = Optimize(child)
			switch c := child.(type) {
			case False:
			case *Branch:
				flatten(c)
			default:
				nodes = append(nodes, child)
			}
		}
	}
	flatten(n)
	switch len(nodes) {
	case 0:
		return False{}
	case 1:
		return nodes[0]
	}
	return &Branch{Nodes: nodes}
}

// isDetProcedure returns whether a call to p succeeds at most once. The clauses of p are
// already filtered for the call site.
func isDetProcedure(p *Procedure) bool {
	if len(p.Clauses) != 1 {
		return false
	}
	body := p.Clauses[0].Body
	return body != nil && body.IsDet()
}
