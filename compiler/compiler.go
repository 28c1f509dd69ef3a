// Package compiler turns clause bodies into execution graphs, and links them into
// operations for the virtual machine.
//
// Calls to static predicates are resolved at compile time: the clauses that can't match
// the call args are excluded from each call site, and a call with no matching clauses
// becomes a failure. Recursive calls refer to their procedure by pointer, that is completed
// once every clause is compiled.
//
// Compiled code is valid for a single generation of the knowledge base, and is recompiled
// lazily after it changes.
package compiler

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/brunokim/resolve/depgraph"
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
	"github.com/brunokim/resolve/vm"
)

// Compiler compiles predicates from a knowledge base. It's safe for concurrent use, as long
// as the knowledge base is not mutated concurrently.
type Compiler struct {
	kb     *kb.KnowledgeBase
	graph  *depgraph.Graph
	inline bool
	logger *zap.Logger
	sink   errors.Sink

	mu         sync.Mutex
	synced     bool
	generation uint64
	procs      map[kb.Signature]*Procedure
	building   map[kb.Signature]*Procedure
	templates  map[kb.Signature]*template
	expanding  map[kb.Signature]bool
	reported   map[*kb.Predicate]bool
	scratch    *mem.Memory
}

var _ vm.Linker = (*Compiler)(nil)

// Option configures a Compiler.
type Option func(*Compiler)

// WithInlining enables the inlining of predicates marked as inlinable.
func WithInlining(inline bool) Option {
	return func(c *Compiler) {
		c.inline = inline
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithSink sets the sink receiving compile errors.
func WithSink(sink errors.Sink) Option {
	return func(c *Compiler) {
		c.sink = sink
	}
}

// New returns a compiler for base. If graph is nil, a new dependency graph is built.
func New(base *kb.KnowledgeBase, graph *depgraph.Graph, opts ...Option) *Compiler {
	c := &Compiler{
		kb:       base,
		graph:    graph,
		logger:   zap.NewNop(),
		sink:     errors.NopSink{},
		reported: make(map[*kb.Predicate]bool),
		scratch:  mem.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.graph == nil {
		c.graph = depgraph.New(base, depgraph.WithLogger(c.logger))
	}
	return c
}

// Graph returns the dependency graph, rebuilt if the knowledge base changed.
func (c *Compiler) Graph() *depgraph.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	return c.graph
}

// sync discards compiled code from previous generations.
func (c *Compiler) sync() {
	gen := c.kb.Generation()
	if c.synced && c.generation == gen {
		return
	}
	if c.graph.Stale() {
		c.graph.Rebuild()
	}
	c.synced = true
	c.generation = gen
	c.procs = make(map[kb.Signature]*Procedure)
	c.building = make(map[kb.Signature]*Procedure)
	c.expanding = make(map[kb.Signature]bool)
	c.templates = c.inlinePass()
	c.logger.Debug("compiler synced",
		zap.Uint64("generation", gen),
		zap.Int("inlined", len(c.templates)))
}

// ---- Entry points

// CompileBody compiles and optimizes a conjunction of goals within scope.
func (c *Compiler) CompileBody(goals []logic.Term, scope kb.Scope) (Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	node, err := c.compileBody(goals, context{scope: scope})
	if err != nil {
		return nil, err
	}
	return Optimize(node), nil
}

// CompileQuery compiles a conjunction of goals into a query for the machine.
func (c *Compiler) CompileQuery(goals []logic.Term, scope kb.Scope) (*vm.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	return c.compileQuery(goals, scope)
}

func (c *Compiler) compileQuery(goals []logic.Term, scope kb.Scope) (*vm.Query, error) {
	node, err := c.compileBody(goals, context{scope: scope})
	if err != nil {
		return nil, err
	}
	node = Optimize(node)
	vars := namedVars(logic.Vars(logic.Conjunction(goals...)))
	return &vm.Query{
		Op:     link(node),
		Vars:   vars,
		Locals: localVars(node, vars),
		Scope:  scope,
	}, nil
}

// Procedure returns the compiled procedure of sig.
func (c *Compiler) Procedure(sig kb.Signature) (*Procedure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	if !c.kb.Defined(sig) {
		return nil, errors.Errorf(errors.UndefinedPredicate, sig)
	}
	return c.procedure(sig), nil
}

// LinkClause returns the code of a single clause, used for dynamic calls.
func (c *Compiler) LinkClause(p *kb.Predicate) (*vm.ClauseCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	return c.clause(p).code, nil
}

// LinkGoal compiles a goal known only at runtime.
func (c *Compiler) LinkGoal(goal logic.Term, scope kb.Scope) (*vm.Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	return c.compileQuery([]logic.Term{goal}, scope)
}

// ---- Procedures

// cachedClause is the compiled clause stored in a predicate. Compilers with different
// options may share a knowledge base, so the owner is checked.
type cachedClause struct {
	owner  *Compiler
	clause *Clause
}

func (c *Compiler) procedure(sig kb.Signature) *Procedure {
	if proc, ok := c.procs[sig]; ok {
		return proc
	}
	proc := &Procedure{Signature: sig, code: &vm.Procedure{Signature: sig}}
	c.building[sig] = proc
	for _, p := range c.kb.Clauses(sig) {
		proc.Clauses = append(proc.Clauses, c.clause(p))
	}
	delete(c.building, sig)
	proc.code.Clauses = clauseCodes(proc.Clauses)
	c.procs[sig] = proc
	return proc
}

func clauseCodes(clauses []*Clause) []*vm.ClauseCode {
	codes := make([]*vm.ClauseCode, len(clauses))
	for i, clause := range clauses {
		codes[i] = clause.code
	}
	return codes
}

func (c *Compiler) clause(p *kb.Predicate) *Clause {
	if code, ok := p.Code(c.generation); ok {
		if cached, ok := code.(cachedClause); ok && cached.owner == c {
			return cached.clause
		}
	}
	clause, err := c.compileClause(p)
	if err != nil {
		c.report(p, err)
		clause = failingClause(p)
	}
	p.SetCode(cachedClause{c, clause}, c.generation)
	return clause
}

func (c *Compiler) compileClause(p *kb.Predicate) (*Clause, error) {
	body, err := c.compileBody(p.Clause.Body, context{scope: c.kb.Scope(p.Module)})
	if err != nil {
		return nil, err
	}
	body = Optimize(body)
	params := logic.GoalArgs(p.Clause.Head)
	clause := &Clause{Predicate: p, Params: params, Body: body}
	if !distinctVars(params) {
		clause.Head = &HeadUnify{Args: params}
	}
	vars := namedVars(p.Clause.Vars())
	clause.code = &vm.ClauseCode{
		Predicate: p,
		Head:      params,
		Vars:      append(vars, localVars(body, vars)...),
		Body:      link(body),
		Elided:    clause.Head == nil,
	}
	return clause, nil
}

// failingClause replaces a clause that failed to compile.
func failingClause(p *kb.Predicate) *Clause {
	params := logic.GoalArgs(p.Clause.Head)
	return &Clause{
		Predicate: p,
		Head:      &HeadUnify{Args: params},
		Params:    params,
		Body:      False{},
		code: &vm.ClauseCode{
			Predicate: p,
			Head:      params,
			Vars:      namedVars(logic.Vars(p.Clause.Head)),
			Body:      vm.Fail{},
		},
	}
}

// report sends a compile error to the sink, once per predicate.
func (c *Compiler) report(p *kb.Predicate, err error) {
	if c.reported[p] {
		return
	}
	c.reported[p] = true
	c.logger.Warn("clause failed to compile", zap.Stringer("clause", p), zap.Error(err))
	if e, ok := errors.As(err); ok {
		c.sink.Report(e)
	} else {
		c.sink.Report(errors.Errorf(errors.InvalidClause, p, err))
	}
}

// distinctVars returns whether every term is a var, and named vars appear only once.
func distinctVars(terms []logic.Term) bool {
	seen := make(map[logic.Var]bool)
	for _, term := range terms {
		x, ok := term.(logic.Var)
		if !ok {
			return false
		}
		if x.IsAnonymous() {
			continue
		}
		if seen[x] {
			return false
		}
		seen[x] = true
	}
	return true
}

func namedVars(xs []logic.Var) []logic.Var {
	var named []logic.Var
	for _, x := range xs {
		if !x.IsAnonymous() {
			named = append(named, x)
		}
	}
	return named
}

// localVars returns the vars used within node that are not in known.
func localVars(node Node, known []logic.Var) []logic.Var {
	seen := make(map[logic.Var]bool)
	for _, x := range known {
		seen[x] = true
	}
	var locals []logic.Var
	walkTerms(node, func(term logic.Term) {
		for _, x := range logic.Vars(term) {
			if !x.IsAnonymous() && !seen[x] {
				seen[x] = true
				locals = append(locals, x)
			}
		}
	})
	return locals
}

// walkTerms calls f for every term referenced by node and its children.
func walkTerms(node Node, f func(logic.Term)) {
	each := func(terms []logic.Term) {
		for _, term := range terms {
			f(term)
		}
	}
	switch n := node.(type) {
	case True, False, Cut:
	case *Sequence:
		for _, child := range n.Nodes {
			walkTerms(child, f)
		}
	case *Branch:
		for _, child := range n.Nodes {
			walkTerms(child, f)
		}
	case *IfThenElse:
		walkTerms(n.Cond, f)
		walkTerms(n.Then, f)
		walkTerms(n.Else, f)
	case *IfThen:
		walkTerms(n.Cond, f)
		walkTerms(n.Then, f)
	case *HeadUnify:
		each(n.Args)
	case *BuiltInCall:
		each(n.Args)
	case *Call:
		each(n.Args)
	case *DynamicCall:
		each(n.Args)
	case *CyclicalCall:
		each(n.Args)
	case *VarCall:
		f(n.Goal)
		each(n.Extra)
	default:
		panic(fmt.Sprintf("compiler.walkTerms: unhandled type %T (%v)", node, node))
	}
}
