// Package vm implements the virtual machine that executes compiled operations.
//
// Operations are composed through continuations: each Cont frame holds the operation to
// execute, the environment of the clause activation it belongs to, the cut barrier of that
// clause, and the frame to continue with on success. A ChoicePoint saves a continuation
// together with a memory snapshot, and backtracking restores the most recent one.
//
// The machine is a state machine driven by Next, that returns control after every solution
// and resumes from the preserved choice point stack on the following call. Run and
// RunInteractive are built on top of it.
package vm

import (
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
)

// State is the execution state of a machine.
type State int

const (
	// Ready to start a query, or finished enumerating its solutions.
	Ready State = iota
	// Success is the state while a branch is still executing.
	Success
	// SolutionState is the state after a branch completed, and its solution was recorded.
	SolutionState
	// FailState is the state after a branch failed, and backtracking is needed.
	FailState
	// Halted is the state after an error was thrown or halt/0 was called.
	Halted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Success:
		return "success"
	case SolutionState:
		return "solution"
	case FailState:
		return "fail"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Solution is a set of bindings for query vars.
type Solution map[logic.Var]logic.Term

// String formats bindings as "X = a, Y = b", ordered by var name, or "true" if there are no
// bindings.
func (s Solution) String() string {
	if len(s) == 0 {
		return "true"
	}
	xs := make([]logic.Var, 0, len(s))
	for x := range s {
		xs = append(xs, x)
	}
	sort.Slice(xs, func(i, j int) bool { return logic.Less(xs[i], xs[j]) })
	bindings := make([]string, len(xs))
	for i, x := range xs {
		bindings[i] = fmt.Sprintf("%v = %v", x, s[x])
	}
	return strings.Join(bindings, ", ")
}

// Env maps the vars of a clause activation to their addresses.
type Env struct {
	vars map[logic.Var]mem.Addr
}

// Cont is a continuation frame.
type Cont struct {
	Op   Op
	Env  *Env
	CutB int
	Next *Cont
}

// ChoicePoint is an alternative continuation, with the memory state to restore before
// running it.
type ChoicePoint struct {
	Cont  *Cont
	State mem.State
}

// Query is a compiled query, ready to be run by a machine.
type Query struct {
	Op Op
	// Vars of the query, that are bound in each solution.
	Vars []logic.Var
	// Locals are other vars used by the compiled code.
	Locals []logic.Var
	Scope  kb.Scope
}

// Linker compiles clauses and goals into operations while the machine runs.
type Linker interface {
	LinkClause(p *kb.Predicate) (*ClauseCode, error)
	LinkGoal(goal logic.Term, scope kb.Scope) (*Query, error)
}

// Machine executes compiled queries. It's not safe for concurrent use; use Scoped to
// create machines for other goroutines.
type Machine struct {
	KB     *kb.KnowledgeBase
	Linker Linker
	Mem    *mem.Memory
	Query  *Query
	// IterLimit is the maximum number of operations executed by a query. Zero means no
	// limit.
	IterLimit int
	Solutions []Solution

	state       State
	started     bool
	base        mem.State
	halted      bool
	err         error
	next        *Cont
	choices     []*ChoicePoint
	env         *Env
	scope       kb.Scope
	iter        int
	activations int

	logger *zap.Logger
	trace  bool
	sink   errors.Sink

	interrupted atomic.Bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithMemory sets the term memory of the machine.
func WithMemory(m *mem.Memory) Option {
	return func(machine *Machine) {
		machine.Mem = m
	}
}

// WithIterLimit sets the maximum number of operations per query.
func WithIterLimit(limit int) Option {
	return func(machine *Machine) {
		machine.IterLimit = limit
	}
}

// WithLogger sets the logger. At debug level, every executed operation is traced.
func WithLogger(logger *zap.Logger) Option {
	return func(machine *Machine) {
		machine.logger = logger
	}
}

// WithSink sets the sink receiving thrown errors.
func WithSink(sink errors.Sink) Option {
	return func(machine *Machine) {
		machine.sink = sink
	}
}

// NewMachine returns a machine that runs queries against base.
func NewMachine(base *kb.KnowledgeBase, linker Linker, opts ...Option) *Machine {
	m := &Machine{
		KB:     base,
		Linker: linker,
		logger: zap.NewNop(),
		sink:   errors.NopSink{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.Mem == nil {
		m.Mem = mem.New()
	}
	m.trace = m.logger.Core().Enabled(zapcore.DebugLevel)
	return m
}

// Scoped returns a machine sharing the knowledge base and linker, with its own memory and
// stacks.
func (m *Machine) Scoped() *Machine {
	return NewMachine(m.KB, m.Linker,
		WithIterLimit(m.IterLimit),
		WithLogger(m.logger),
		WithSink(m.sink))
}

// State returns the current execution state.
func (m *Machine) State() State {
	return m.state
}

// NumSolutions returns the number of solutions found for the current query.
func (m *Machine) NumSolutions() int {
	return len(m.Solutions)
}

// Interrupt stops the machine at the next executed operation, as if halt/0 was called. It
// may be called from any goroutine, and the machine won't run queries afterwards.
func (m *Machine) Interrupt() {
	m.interrupted.Store(true)
}

// Reset discards the execution state, so that the query runs from the start.
func (m *Machine) Reset() {
	if m.started {
		m.Mem.LoadState(m.base)
	}
	m.state = Ready
	m.started = false
	m.halted = false
	m.err = nil
	m.next = nil
	m.choices = nil
	m.env = nil
	m.iter = 0
	m.Solutions = nil
}

// Run executes the query until every solution is found.
func (m *Machine) Run() ([]Solution, error) {
	for _, err := range m.RunInteractive() {
		if err != nil {
			return m.Solutions, err
		}
	}
	return m.Solutions, nil
}

// RunInteractive returns an iterator over solutions, computed lazily as the iteration
// proceeds. Stopping the iteration abandons the remaining solutions.
func (m *Machine) RunInteractive() iter.Seq2[Solution, error] {
	return func(yield func(Solution, error) bool) {
		m.Reset()
		for {
			solution, ok, err := m.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(solution, nil) {
				return
			}
		}
	}
}

// Next executes the query until the next solution. It returns false when there are no
// more solutions.
func (m *Machine) Next() (Solution, bool, error) {
	if m.interrupted.Load() && !m.halted {
		m.Halt()
	}
	switch {
	case m.err != nil:
		return nil, false, m.err
	case m.halted:
		return nil, false, nil
	case m.state == Ready && m.started:
		return nil, false, nil
	case m.state == Ready:
		if err := m.start(); err != nil {
			return nil, false, err
		}
	case m.state == SolutionState:
		m.state = FailState
	}
	found, err := m.solve()
	if err != nil || !found {
		return nil, false, err
	}
	m.state = SolutionState
	solution := m.solution()
	m.Solutions = append(m.Solutions, solution)
	return solution, true, nil
}

func (m *Machine) start() error {
	if m.Query == nil {
		return errors.Errorf(errors.StackEmpty, "no query")
	}
	m.base = m.Mem.SaveState()
	m.started = true
	m.state = Success
	m.scope = m.Query.Scope
	m.env = &Env{vars: make(map[logic.Var]mem.Addr)}
	for _, x := range m.Query.Vars {
		m.env.vars[x] = m.Mem.NewVar(x)
	}
	for _, x := range m.Query.Locals {
		m.env.vars[x] = m.Mem.NewVar(x)
	}
	m.next = &Cont{Op: m.Query.Op, Env: m.env, CutB: 0}
	m.logger.Debug("query", zap.Stringer("op", m.Query.Op))
	return nil
}

func (m *Machine) solution() Solution {
	solution := make(Solution)
	for _, x := range m.Query.Vars {
		if x.IsAnonymous() {
			continue
		}
		solution[x] = m.Mem.Resolve(m.env.vars[x])
	}
	return solution
}

// solve executes operations until the current continuation is exhausted, which is a
// solution, or until there are no more choice points.
func (m *Machine) solve() (bool, error) {
	for {
		if m.err != nil {
			return false, m.err
		}
		if m.interrupted.Load() && !m.halted {
			m.logger.Debug("interrupted", zap.Int("iter", m.iter))
			m.Halt()
		}
		if m.halted {
			return false, nil
		}
		if m.state == FailState && !m.backtrack() {
			return false, nil
		}
		if m.next == nil {
			return true, nil
		}
		m.iter++
		if m.IterLimit > 0 && m.iter > m.IterLimit {
			m.Throw(errors.Errorf(errors.IterationLimit, m.IterLimit))
			continue
		}
		k := m.next
		m.next = nil
		if m.trace {
			m.logger.Debug("exec",
				zap.Int("iter", m.iter),
				zap.Stringer("op", k.Op),
				zap.Int("cut_barrier", k.CutB),
				zap.Int("choices", len(m.choices)))
		}
		k.Op.Exec(m, k)
	}
}

// ---- Control primitives used by operations

// Proceed continues execution with k. A nil k means that the query succeeded.
func (m *Machine) Proceed(k *Cont) {
	m.next = k
}

// Fail marks the current branch as failed, so that the machine backtracks.
func (m *Machine) Fail() {
	if m.state != Halted {
		m.state = FailState
	}
}

// Throw aborts the query with err, discarding every choice point. Only the first error
// thrown is kept.
func (m *Machine) Throw(err error) {
	if m.err != nil {
		return
	}
	m.logger.Debug("throw", zap.Error(err))
	if e, ok := errors.As(err); ok {
		m.sink.Report(e)
	}
	m.err = err
	m.state = Halted
	m.choices = nil
	m.next = nil
}

// Halt stops the enumeration of solutions without an error.
func (m *Machine) Halt() {
	m.halted = true
	m.state = Halted
	m.choices = nil
	m.next = nil
}

// PushChoice saves an alternative continuation, to be executed on backtracking.
func (m *Machine) PushChoice(k *Cont) {
	m.pushChoiceAt(k, m.Mem.SaveState())
}

func (m *Machine) pushChoiceAt(k *Cont, s mem.State) {
	m.choices = append(m.choices, &ChoicePoint{Cont: k, State: s})
}

// NumChoices returns the height of the choice point stack, used as a cut barrier.
func (m *Machine) NumChoices() int {
	return len(m.choices)
}

// CutTo discards choice points above the barrier.
func (m *Machine) CutTo(barrier int) {
	if len(m.choices) > barrier {
		m.choices = m.choices[:barrier]
	}
}

func (m *Machine) backtrack() bool {
	n := len(m.choices)
	if n == 0 {
		m.state = Ready
		return false
	}
	choice := m.choices[n-1]
	m.choices = m.choices[:n-1]
	m.Mem.LoadState(choice.State)
	m.next = choice.Cont
	m.state = Success
	if m.trace {
		m.logger.Debug("backtrack", zap.Stringer("op", choice.Cont.Op), zap.Int("choices", n-1))
	}
	return true
}

// Scope returns the scope of the goal being executed, used by builtins that call goals.
func (m *Machine) Scope() kb.Scope {
	return m.scope
}

// ---- Activations

// newEnv allocates fresh cells for the vars of a clause activation.
func (m *Machine) newEnv(vars []logic.Var, bound map[logic.Var]mem.Addr) *Env {
	m.activations++
	env := &Env{vars: make(map[logic.Var]mem.Addr, len(vars))}
	for _, x := range vars {
		if a, ok := bound[x]; ok {
			env.vars[x] = a
			continue
		}
		env.vars[x] = m.Mem.NewVar(x.WithSuffix(m.activations))
	}
	return env
}

func (m *Machine) store(term logic.Term, env *Env) mem.Addr {
	return m.Mem.Store(term, env.vars)
}

func (m *Machine) storeAll(terms []logic.Term, env *Env) []mem.Addr {
	addrs := make([]mem.Addr, len(terms))
	for i, term := range terms {
		addrs[i] = m.store(term, env)
	}
	return addrs
}

// SubQuery runs op to exhaustion on a separate choice point stack, sharing the memory,
// calling yield after each solution. It stops early if yield returns false. Bindings made
// by op are kept, and should be undone by the caller.
func (m *Machine) SubQuery(op Op, env *Env, yield func() bool) error {
	choices, next, state := m.choices, m.next, m.state
	defer func() {
		if m.err == nil && !m.halted {
			m.choices, m.next, m.state = choices, next, state
		}
	}()
	m.choices = nil
	m.next = &Cont{Op: op, Env: env, CutB: 0}
	m.state = Success
	for {
		found, err := m.solve()
		if err != nil {
			return err
		}
		if !found || !yield() {
			return nil
		}
		m.state = FailState
	}
}

// LinkGoal compiles a goal stored at addr within scope, returning the operation and an
// environment that aliases the goal's vars.
func (m *Machine) LinkGoal(goal mem.Addr, scope kb.Scope) (Op, *Env, error) {
	a := m.Mem.Walk(goal)
	if a.Kind == mem.Variable {
		return nil, nil, errors.Errorf(errors.InstantiationError, "callable")
	}
	term, vars := m.Mem.Reify(a)
	switch term.(type) {
	case logic.Atom, *logic.Comp:
	default:
		return nil, nil, errors.Errorf(errors.ExpectedTermOfTypeAt, "callable", 0, term)
	}
	q, err := m.Linker.LinkGoal(term, scope)
	if err != nil {
		if errors.IsType(err, errors.UnresolvedPredicate) {
			sig, _ := kb.GoalSignature(scope.Module, term)
			return nil, nil, errors.Errorf(errors.UndefinedPredicate, sig)
		}
		return nil, nil, err
	}
	return q.Op, m.newEnv(append(q.Vars, q.Locals...), vars), nil
}
