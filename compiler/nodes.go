package compiler

import (
	"fmt"
	"strings"

	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/vm"
)

// Node is a node of an execution graph.
type Node interface {
	fmt.Stringer
	// IsDet returns whether the node is known to succeed at most once.
	IsDet() bool
	isNode()
}

// True always succeeds.
type True struct{}

// False always fails.
type False struct{}

// Cut commits to the choices made since the clause was called.
type Cut struct{}

// Sequence executes each node in order.
type Sequence struct {
	Nodes []Node
	Det   bool
}

// Branch executes each node as an alternative.
type Branch struct {
	Nodes []Node
	Det   bool
}

// IfThenElse executes Then for the first solution of Cond, or Else if Cond fails.
type IfThenElse struct {
	Cond, Then, Else Node
	Det              bool
}

// IfThen executes Then for the first solution of Cond, and fails if Cond fails.
type IfThen struct {
	Cond, Then Node
	Det        bool
}

// HeadUnify unifies the args of a call with the head args of a clause.
type HeadUnify struct {
	Args []logic.Term
}

// BuiltInCall calls a predicate implemented by the machine.
type BuiltInCall struct {
	Builtin *vm.Builtin
	Args    []logic.Term
	Scope   kb.Scope
	Det     bool
}

// Call calls a static procedure, with only the clauses that may match the call args.
type Call struct {
	Goal      logic.Term
	Args      []logic.Term
	Procedure *Procedure
	Det       bool
}

// DynamicCall calls a dynamic predicate, whose clauses are only known at runtime.
type DynamicCall struct {
	Signature kb.Signature
	Goal      logic.Term
	Args      []logic.Term
}

// VarCall calls a goal that is only known at runtime.
type VarCall struct {
	Goal  logic.Term
	Extra []logic.Term
	Scope kb.Scope
}

// CyclicalCall calls a procedure that is still being compiled, and that may only be
// referenced by pointer.
type CyclicalCall struct {
	Goal      logic.Term
	Args      []logic.Term
	Procedure *Procedure
}

func (True) isNode()          {}
func (False) isNode()         {}
func (Cut) isNode()           {}
func (*Sequence) isNode()     {}
func (*Branch) isNode()       {}
func (*IfThenElse) isNode()   {}
func (*IfThen) isNode()       {}
func (*HeadUnify) isNode()    {}
func (*BuiltInCall) isNode()  {}
func (*Call) isNode()         {}
func (*DynamicCall) isNode()  {}
func (*VarCall) isNode()      {}
func (*CyclicalCall) isNode() {}

func (True) IsDet() bool           { return true }
func (False) IsDet() bool          { return true }
func (Cut) IsDet() bool            { return true }
func (n *Sequence) IsDet() bool    { return n.Det }
func (n *Branch) IsDet() bool      { return n.Det }
func (n *IfThenElse) IsDet() bool  { return n.Det }
func (n *IfThen) IsDet() bool      { return n.Det }
func (*HeadUnify) IsDet() bool     { return true }
func (n *BuiltInCall) IsDet() bool { return n.Det }
func (n *Call) IsDet() bool        { return n.Det }
func (*DynamicCall) IsDet() bool   { return false }
func (*VarCall) IsDet() bool       { return false }
func (*CyclicalCall) IsDet() bool  { return false }

func detMark(det bool) string {
	if det {
		return " det"
	}
	return ""
}

func (True) String() string  { return "true" }
func (False) String() string { return "fail" }
func (Cut) String() string   { return "!" }

func (n *Sequence) String() string {
	return fmt.Sprintf("sequence(%d)%s", len(n.Nodes), detMark(n.Det))
}

func (n *Branch) String() string {
	return fmt.Sprintf("branch(%d)%s", len(n.Nodes), detMark(n.Det))
}

func (n *IfThenElse) String() string {
	return "if_then_else" + detMark(n.Det)
}

func (n *IfThen) String() string {
	return "if_then" + detMark(n.Det)
}

func (n *HeadUnify) String() string {
	return fmt.Sprintf("head_unify(%s)", joinTerms(n.Args))
}

func (n *BuiltInCall) String() string {
	return fmt.Sprintf("builtin %s(%s)%s", logic.FormatAtom(n.Builtin.Name), joinTerms(n.Args), detMark(n.Det))
}

func (n *Call) String() string {
	return fmt.Sprintf("call %v %v [%d clauses]%s", n.Procedure.Signature, n.Goal, len(n.Procedure.Clauses), detMark(n.Det))
}

func (n *DynamicCall) String() string {
	return fmt.Sprintf("dynamic_call %v %v", n.Signature, n.Goal)
}

func (n *VarCall) String() string {
	if len(n.Extra) == 0 {
		return fmt.Sprintf("var_call %v", n.Goal)
	}
	return fmt.Sprintf("var_call %v + (%s)", n.Goal, joinTerms(n.Extra))
}

func (n *CyclicalCall) String() string {
	return fmt.Sprintf("cyclical_call %v %v", n.Procedure.Signature, n.Goal)
}

func joinTerms(terms []logic.Term) string {
	strs := make([]string, len(terms))
	for i, term := range terms {
		strs[i] = term.String()
	}
	return strings.Join(strs, ", ")
}

// ---- Procedures

// Clause is the compiled form of a single clause.
type Clause struct {
	Predicate *kb.Predicate
	// Head is nil if the head unification was elided.
	Head   *HeadUnify
	Params []logic.Term
	Body   Node

	code *vm.ClauseCode
}

// Code returns the linked code of the clause.
func (c *Clause) Code() *vm.ClauseCode {
	return c.code
}

// Procedure is the compiled form of a predicate family.
type Procedure struct {
	Signature kb.Signature
	Clauses   []*Clause

	code *vm.Procedure
}

// Code returns the linked code of the procedure. Its clauses are only set once the
// procedure is fully compiled.
func (p *Procedure) Code() *vm.Procedure {
	return p.code
}

// ---- Dump

// Dump renders a node and its children as an indented tree.
func Dump(node Node) string {
	var b strings.Builder
	dump(&b, node, 0)
	return b.String()
}

// DumpProcedure renders every clause of a procedure.
func DumpProcedure(p *Procedure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v\n", p.Signature)
	for _, c := range p.Clauses {
		fmt.Fprintf(&b, "  clause %v\n", c.Predicate.Clause.Head)
		if c.Head != nil {
			dump(&b, c.Head, 2)
		}
		dump(&b, c.Body, 2)
	}
	return b.String()
}

func dump(b *strings.Builder, node Node, depth int) {
	fmt.Fprintf(b, "%s%v\n", strings.Repeat("  ", depth), node)
	switch n := node.(type) {
	case *Sequence:
		for _, child := range n.Nodes {
			dump(b, child, depth+1)
		}
	case *Branch:
		for _, child := range n.Nodes {
			dump(b, child, depth+1)
		}
	case *IfThenElse:
		dump(b, n.Cond, depth+1)
		dump(b, n.Then, depth+1)
		dump(b, n.Else, depth+1)
	case *IfThen:
		dump(b, n.Cond, depth+1)
		dump(b, n.Then, depth+1)
	}
}
