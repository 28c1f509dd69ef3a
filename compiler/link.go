package compiler

import (
	"fmt"

	"github.com/brunokim/resolve/vm"
)

// link converts an optimized execution graph into machine operations.
func link(node Node) vm.Op {
	switch n := node.(type) {
	case True:
		return vm.True{}
	case False:
		return vm.Fail{}
	case Cut:
		return vm.Cut{}
	case *Sequence:
		ops := make([]vm.Op, len(n.Nodes))
		for i, child := range n.Nodes {
			ops[i] = link(child)
		}
		return sequence(ops)
	case *Branch:
		alts := make([]vm.Op, len(n.Nodes))
		for i, child := range n.Nodes {
			alts[i] = link(child)
		}
		return vm.Or{Alts: alts}
	case *IfThenElse:
		return ifThenElse(n.Det, link(n.Cond), link(n.Then), link(n.Else))
	case *IfThen:
		return ifThenElse(n.Det, link(n.Cond), link(n.Then), vm.Fail{})
	case *BuiltInCall:
		if n.Builtin.Name == "=" && len(n.Args) == 2 {
			return &vm.Unify{A: n.Args[0], B: n.Args[1]}
		}
		if n.Builtin.IsDet() {
			return &vm.BuiltIn{Builtin: n.Builtin, Args: n.Args, Scope: n.Scope}
		}
		return &vm.Generate{Builtin: n.Builtin, Args: n.Args, Scope: n.Scope}
	case *Call:
		return &vm.Call{Proc: n.Procedure.code, Args: n.Args}
	case *CyclicalCall:
		return &vm.Call{Proc: n.Procedure.code, Args: n.Args}
	case *DynamicCall:
		return &vm.DynamicCall{Signature: n.Signature, Args: n.Args}
	case *VarCall:
		return &vm.VarCall{Goal: n.Goal, Extra: n.Extra, Scope: n.Scope}
	case *HeadUnify:
		panic("compiler.link: head unification is linked within the clause code")
	default:
		panic(fmt.Sprintf("compiler.link: unhandled type %T (%v)", node, node))
	}
}

// ifThenElse links a deterministic if-then-else to be executed in place, when every
// branch can be tried.
func ifThenElse(det bool, cond, then, else_ vm.Op) vm.Op {
	if det {
		c, ok1 := cond.(vm.DetOp)
		t, ok2 := then.(vm.DetOp)
		e, ok3 := else_.(vm.DetOp)
		if ok1 && ok2 && ok3 {
			return &vm.DetIfThenElse{Cond: c, Then: t, Else: e}
		}
	}
	return &vm.IfThenElse{Cond: cond, Then: then, Else: else_}
}

// sequence groups consecutive deterministic ops to be executed in place.
func sequence(ops []vm.Op) vm.Op {
	var result []vm.Op
	var dets []vm.DetOp
	flush := func() {
		switch len(dets) {
		case 0:
		case 1:
			result = append(result, dets[0])
		default:
			result = append(result, vm.DetSeq{Ops: dets})
		}
		dets = nil
	}
	for _, op := range ops {
		if det, ok := op.(vm.DetOp); ok {
			dets = append(dets, det)
			continue
		}
		flush()
		result = append(result, op)
	}
	flush()
	if len(result) == 1 {
		return result[0]
	}
	return vm.And{Ops: result}
}
