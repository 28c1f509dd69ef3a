package vm

import (
	"fmt"
	"strings"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
)

// Op is an executable operation.
//
// Exec runs the operation for frame k, whose Op is the receiver. It must either continue
// with m.Proceed, usually to k.Next, fail with m.Fail or abort with m.Throw.
type Op interface {
	fmt.Stringer
	Exec(m *Machine, k *Cont)
}

// DetOp is an operation that never creates choice points. Try executes it in place,
// returning whether it succeeded.
type DetOp interface {
	Op
	Try(m *Machine, k *Cont) bool
}

// Procedure is the compiled code of a predicate family. The clauses of a procedure may be
// filled after it's referenced, to allow for recursive calls.
type Procedure struct {
	Signature kb.Signature
	Clauses   []*ClauseCode
}

func (p *Procedure) String() string {
	return fmt.Sprintf("%v (%d clauses)", p.Signature, len(p.Clauses))
}

// ClauseCode is the compiled code of a single clause.
type ClauseCode struct {
	Predicate *kb.Predicate
	// Head args, matched against the call args on activation.
	Head []logic.Term
	// Vars of the clause, allocated on activation.
	Vars []logic.Var
	Body Op
	// Elided is set when the head args are distinct vars, that are aliased to the call args
	// instead of unified.
	Elided bool
}

func (c *ClauseCode) String() string {
	return c.Predicate.String()
}

var (
	_ DetOp = True{}
	_ DetOp = Fail{}
	_ DetOp = Cut{}
	_ DetOp = DetSeq{}
	_ DetOp = (*Unify)(nil)
	_ DetOp = (*BuiltIn)(nil)
	_ DetOp = (*DetIfThenElse)(nil)
	_ Op    = And{}
	_ Op    = Or{}
	_ Op    = (*IfThenElse)(nil)
	_ Op    = (*Call)(nil)
	_ Op    = (*DynamicCall)(nil)
	_ Op    = (*VarCall)(nil)
	_ Op    = (*Generate)(nil)
)

// ---- Control

type True struct{}

func (True) String() string { return "true" }

func (True) Try(m *Machine, k *Cont) bool { return true }

func (True) Exec(m *Machine, k *Cont) { m.Proceed(k.Next) }

type Fail struct{}

func (Fail) String() string { return "fail" }

func (Fail) Try(m *Machine, k *Cont) bool { return false }

func (Fail) Exec(m *Machine, k *Cont) { m.Fail() }

// Cut discards the choice points created since the clause was called.
type Cut struct{}

func (Cut) String() string { return "!" }

func (Cut) Try(m *Machine, k *Cont) bool {
	m.CutTo(k.CutB)
	return true
}

func (op Cut) Exec(m *Machine, k *Cont) {
	op.Try(m, k)
	m.Proceed(k.Next)
}

// And executes each op in sequence.
type And struct {
	Ops []Op
}

func (op And) String() string {
	return fmt.Sprintf("and(%d)", len(op.Ops))
}

func (op And) Exec(m *Machine, k *Cont) {
	next := k.Next
	for i := len(op.Ops) - 1; i >= 0; i-- {
		next = &Cont{Op: op.Ops[i], Env: k.Env, CutB: k.CutB, Next: next}
	}
	m.Proceed(next)
}

// DetSeq executes a sequence of deterministic ops in place.
type DetSeq struct {
	Ops []DetOp
}

func (op DetSeq) String() string {
	names := make([]string, len(op.Ops))
	for i, op := range op.Ops {
		names[i] = op.String()
	}
	return fmt.Sprintf("det(%s)", strings.Join(names, ", "))
}

func (op DetSeq) Try(m *Machine, k *Cont) bool {
	for _, op := range op.Ops {
		if !op.Try(m, k) {
			return false
		}
	}
	return true
}

func (op DetSeq) Exec(m *Machine, k *Cont) {
	if op.Try(m, k) {
		m.Proceed(k.Next)
	} else {
		m.Fail()
	}
}

// Or executes each alternative in order, on backtracking.
type Or struct {
	Alts []Op
}

func (op Or) String() string {
	return fmt.Sprintf("or(%d)", len(op.Alts))
}

func (op Or) Exec(m *Machine, k *Cont) {
	if len(op.Alts) == 0 {
		m.Fail()
		return
	}
	for i := len(op.Alts) - 1; i > 0; i-- {
		m.PushChoice(&Cont{Op: op.Alts[i], Env: k.Env, CutB: k.CutB, Next: k.Next})
	}
	m.Proceed(&Cont{Op: op.Alts[0], Env: k.Env, CutB: k.CutB, Next: k.Next})
}

// IfThenElse executes Then for the first solution of Cond, or Else if Cond has no
// solutions. A cut within Cond is local to it.
type IfThenElse struct {
	Cond, Then, Else Op
}

func (op *IfThenElse) String() string {
	return fmt.Sprintf("if_then_else(%v, %v, %v)", op.Cond, op.Then, op.Else)
}

func (op *IfThenElse) Exec(m *Machine, k *Cont) {
	barrier := m.NumChoices()
	m.PushChoice(&Cont{Op: op.Else, Env: k.Env, CutB: k.CutB, Next: k.Next})
	then := &Cont{Op: op.Then, Env: k.Env, CutB: k.CutB, Next: k.Next}
	commit := &Cont{Op: commit{barrier}, Env: k.Env, CutB: k.CutB, Next: then}
	m.Proceed(&Cont{Op: op.Cond, Env: k.Env, CutB: barrier + 1, Next: commit})
}

type commit struct {
	barrier int
}

func (op commit) String() string {
	return fmt.Sprintf("commit(%d)", op.barrier)
}

func (op commit) Exec(m *Machine, k *Cont) {
	m.CutTo(op.barrier)
	m.Proceed(k.Next)
}

// DetIfThenElse is an IfThenElse whose branches are all deterministic, executed in place.
type DetIfThenElse struct {
	Cond, Then, Else DetOp
}

func (op *DetIfThenElse) String() string {
	return fmt.Sprintf("det_if_then_else(%v, %v, %v)", op.Cond, op.Then, op.Else)
}

func (op *DetIfThenElse) Try(m *Machine, k *Cont) bool {
	s := m.Mem.SaveState()
	local := &Cont{Op: op.Cond, Env: k.Env, CutB: m.NumChoices(), Next: k.Next}
	if op.Cond.Try(m, local) {
		return op.Then.Try(m, k)
	}
	if m.err != nil || m.halted {
		return false
	}
	m.Mem.LoadState(s)
	return op.Else.Try(m, k)
}

func (op *DetIfThenElse) Exec(m *Machine, k *Cont) {
	if op.Try(m, k) {
		m.Proceed(k.Next)
	} else {
		m.Fail()
	}
}

// ---- Unification

// Unify unifies two terms of the clause.
type Unify struct {
	A, B logic.Term
}

func (op *Unify) String() string {
	return fmt.Sprintf("%v = %v", op.A, op.B)
}

func (op *Unify) Try(m *Machine, k *Cont) bool {
	return m.Mem.Unify(m.store(op.A, k.Env), m.store(op.B, k.Env), false)
}

func (op *Unify) Exec(m *Machine, k *Cont) {
	if op.Try(m, k) {
		m.Proceed(k.Next)
	} else {
		m.Fail()
	}
}

// ---- Calls

// Call executes the clauses of a static procedure, in order.
type Call struct {
	Proc *Procedure
	Args []logic.Term
}

func (op *Call) String() string {
	return fmt.Sprintf("call %v", op.Proc)
}

func (op *Call) Exec(m *Machine, k *Cont) {
	m.tryClauses(&alternatives{op.Proc.Clauses, m.storeAll(op.Args, k.Env)}, k.Next)
}

// DynamicCall executes the clauses of a dynamic signature, as they are when the call starts.
type DynamicCall struct {
	Signature kb.Signature
	Args      []logic.Term
}

func (op *DynamicCall) String() string {
	return fmt.Sprintf("dynamic_call %v", op.Signature)
}

func (op *DynamicCall) Exec(m *Machine, k *Cont) {
	ps := m.KB.Clauses(op.Signature)
	clauses := make([]*ClauseCode, 0, len(ps))
	for _, p := range ps {
		code, err := m.Linker.LinkClause(p)
		if err != nil {
			m.Throw(err)
			return
		}
		clauses = append(clauses, code)
	}
	m.tryClauses(&alternatives{clauses, m.storeAll(op.Args, k.Env)}, k.Next)
}

// VarCall executes a goal known only at runtime, as in call(Goal, Extra...). A cut within
// the goal is local to it.
type VarCall struct {
	Goal  logic.Term
	Extra []logic.Term
	Scope kb.Scope
}

func (op *VarCall) String() string {
	args := append([]logic.Term{op.Goal}, op.Extra...)
	return logic.NewComp("call", args...).String()
}

func (op *VarCall) Exec(m *Machine, k *Cont) {
	goal := m.store(op.Goal, k.Env)
	if len(op.Extra) > 0 {
		var err error
		goal, err = m.addArgs(goal, m.storeAll(op.Extra, k.Env))
		if err != nil {
			m.Throw(err)
			return
		}
	}
	code, env, err := m.LinkGoal(goal, op.Scope)
	if err != nil {
		m.Throw(err)
		return
	}
	m.Proceed(&Cont{Op: code, Env: env, CutB: m.NumChoices(), Next: k.Next})
}

func (m *Machine) addArgs(goal mem.Addr, extra []mem.Addr) (mem.Addr, error) {
	goal = m.Mem.Walk(goal)
	if goal.Kind == mem.Variable {
		return mem.Addr{}, errors.Errorf(errors.InstantiationError, "callable")
	}
	name, args, ok := m.Mem.Functor(goal)
	if !ok {
		return mem.Addr{}, errors.Errorf(errors.ExpectedTermOfTypeAt, "callable", 0, m.Mem.Resolve(goal))
	}
	if name == ":" && len(args) == 2 {
		inner, err := m.addArgs(args[1], extra)
		if err != nil {
			return mem.Addr{}, err
		}
		return m.Mem.NewStruct(":", []mem.Addr{args[0], inner}), nil
	}
	all := make([]mem.Addr, 0, len(args)+len(extra))
	all = append(append(all, args...), extra...)
	return m.Mem.NewStruct(name, all), nil
}

// alternatives is the choice point of a call with remaining clauses to try.
type alternatives struct {
	clauses []*ClauseCode
	args    []mem.Addr
}

func (op *alternatives) String() string {
	return fmt.Sprintf("alternatives(%d)", len(op.clauses))
}

func (op *alternatives) Exec(m *Machine, k *Cont) {
	m.tryClauses(op, k.Next)
}

// tryClauses activates the first clause, leaving a choice point for the others. The cut
// barrier of the clause is below its own choice point, so that a cut discards the remaining
// alternatives.
func (m *Machine) tryClauses(alt *alternatives, next *Cont) {
	if len(alt.clauses) == 0 {
		m.Fail()
		return
	}
	barrier := m.NumChoices()
	if len(alt.clauses) > 1 {
		m.PushChoice(&Cont{Op: &alternatives{alt.clauses[1:], alt.args}, Next: next})
	}
	m.activate(alt.clauses[0], alt.args, barrier, next)
}

func (m *Machine) activate(c *ClauseCode, args []mem.Addr, cutB int, next *Cont) {
	if c.Predicate != nil && c.Predicate.Variadic {
		fixed := c.Predicate.FixedParams()
		if len(args) < fixed {
			m.Fail()
			return
		}
		params := make([]mem.Addr, fixed+1)
		copy(params, args[:fixed])
		params[fixed] = m.Mem.NewList(args[fixed:], m.Mem.NewConstant(logic.EmptyList))
		args = params
	}
	if len(args) != len(c.Head) {
		m.Fail()
		return
	}
	var bound map[logic.Var]mem.Addr
	if c.Elided {
		bound = make(map[logic.Var]mem.Addr, len(args))
		for i, h := range c.Head {
			bound[h.(logic.Var)] = args[i]
		}
	}
	env := m.newEnv(c.Vars, bound)
	if !c.Elided {
		for i, h := range c.Head {
			if !m.Mem.Unify(m.store(h, env), args[i], false) {
				m.Fail()
				return
			}
		}
	}
	m.Proceed(&Cont{Op: c.Body, Env: env, CutB: cutB, Next: next})
}

// ---- Builtins

// BuiltIn executes a deterministic builtin.
type BuiltIn struct {
	Builtin *Builtin
	Args    []logic.Term
	Scope   kb.Scope
}

func (op *BuiltIn) String() string {
	return fmt.Sprintf("builtin %v", op.Builtin)
}

func (op *BuiltIn) Try(m *Machine, k *Cont) bool {
	m.scope = op.Scope
	ok, err := op.Builtin.Det(m, m.storeAll(op.Args, k.Env))
	if err != nil {
		m.Throw(err)
		return false
	}
	return ok
}

func (op *BuiltIn) Exec(m *Machine, k *Cont) {
	if op.Try(m, k) {
		m.Proceed(k.Next)
	} else {
		m.Fail()
	}
}

// Generate executes a builtin with multiple solutions.
type Generate struct {
	Builtin *Builtin
	Args    []logic.Term
	Scope   kb.Scope
}

func (op *Generate) String() string {
	return fmt.Sprintf("generate %v", op.Builtin)
}

func (op *Generate) Exec(m *Machine, k *Cont) {
	m.scope = op.Scope
	gen, err := op.Builtin.Gen(m, m.storeAll(op.Args, k.Env))
	if err != nil {
		m.Throw(err)
		return
	}
	m.generate(gen, k.Next)
}

type resume struct {
	gen Generator
}

func (op resume) String() string {
	return fmt.Sprintf("resume(%T)", op.gen)
}

func (op resume) Exec(m *Machine, k *Cont) {
	m.generate(op.gen, k.Next)
}

// generate asks gen for its next solution, leaving a choice point to ask again.
func (m *Machine) generate(gen Generator, next *Cont) {
	s := m.Mem.SaveState()
	ok, err := gen.Next(m)
	if err != nil {
		m.Throw(err)
		return
	}
	if !ok {
		m.Fail()
		return
	}
	m.pushChoiceAt(&Cont{Op: resume{gen}, Next: next}, s)
	m.Proceed(next)
}
