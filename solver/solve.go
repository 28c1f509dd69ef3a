// Package solver is the entry point for hosts: it loads clauses into a knowledge base and
// runs queries against it.
//
// Queries may be run in batch with Solve, lazily with Solutions, streamed over a channel
// with Query, or concurrently with QueryAll. Each query runs in its own machine, sharing
// the compiled code of the solver.
package solver

import (
	"context"
	"iter"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunokim/resolve/compiler"
	"github.com/brunokim/resolve/config"
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/program"
	"github.com/brunokim/resolve/vm"
)

// Solution is a set of bindings for query vars.
type Solution = vm.Solution

// Result is a single streamed solution, or the error that ended the query.
type Result struct {
	Solution Solution
	Err      error
}

// Solver holds a knowledge base and the compiler for its predicates.
//
// Loading clauses and running queries may happen in different goroutines. Queries run by
// QueryAll are concurrent with each other, and must not assert or retract clauses.
type Solver struct {
	kb        *kb.KnowledgeBase
	compiler  *compiler.Compiler
	logger    *zap.Logger
	sink      errors.Sink
	iterLimit int
	inline    bool
	module    string

	mu        sync.RWMutex
	inlinable map[kb.Signature]bool
	variadic  map[kb.Signature]bool
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger of the solver and its components.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Solver) {
		s.logger = logger
	}
}

// WithSink sets the sink receiving compile and runtime errors.
func WithSink(sink errors.Sink) Option {
	return func(s *Solver) {
		s.sink = sink
	}
}

// WithIterLimit sets the maximum number of operations per query. Zero means no limit.
func WithIterLimit(limit int) Option {
	return func(s *Solver) {
		s.iterLimit = limit
	}
}

// WithInlining enables the inlining of predicates declared with DeclareInline.
func WithInlining(inline bool) Option {
	return func(s *Solver) {
		s.inline = inline
	}
}

// WithDefaultModule sets the module of queries and clauses without one.
func WithDefaultModule(module string) Option {
	return func(s *Solver) {
		s.module = module
	}
}

// WithConfig applies the engine settings of a config file.
func WithConfig(cfg config.Engine) Option {
	return func(s *Solver) {
		s.iterLimit = cfg.IterLimit
		s.inline = cfg.Inline
		if cfg.DefaultModule != "" {
			s.module = cfg.DefaultModule
		}
	}
}

// New returns a solver with an empty knowledge base.
func New(opts ...Option) *Solver {
	s := &Solver{
		logger:    zap.NewNop(),
		sink:      errors.NopSink{},
		module:    kb.DefaultModule,
		inlinable: make(map[kb.Signature]bool),
		variadic:  make(map[kb.Signature]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.kb = kb.New(kb.WithLogger(s.logger))
	s.compiler = compiler.New(s.kb, nil,
		compiler.WithInlining(s.inline),
		compiler.WithLogger(s.logger),
		compiler.WithSink(s.sink))
	return s
}

// KB returns the knowledge base of the solver.
func (s *Solver) KB() *kb.KnowledgeBase {
	return s.kb
}

// Compiler returns the compiler of the solver.
func (s *Solver) Compiler() *compiler.Compiler {
	return s.compiler
}

// ---- Loading

// Declare registers a module with its imports and exported predicates.
func (s *Solver) Declare(module string, imports []string, exports ...logic.Indicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kb.Declare(module, imports, exports)
}

// DeclareDynamic marks predicates of module as dynamic.
func (s *Solver) DeclareDynamic(module string, inds ...logic.Indicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ind := range inds {
		s.kb.DeclareDynamic(s.signature(module, ind))
	}
}

// DeclareInline marks predicates of module as candidates for inlining. It applies to
// clauses consulted afterwards.
func (s *Solver) DeclareInline(module string, inds ...logic.Indicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ind := range inds {
		s.inlinable[s.signature(module, ind)] = true
	}
}

// DeclareVariadic marks predicates of module as variadic, so that the last param of their
// clauses receives the list of remaining call args. It applies to clauses consulted
// afterwards.
func (s *Solver) DeclareVariadic(module string, inds ...logic.Indicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ind := range inds {
		s.variadic[s.signature(module, ind)] = true
	}
}

func (s *Solver) signature(module string, ind logic.Indicator) kb.Signature {
	if module == "" {
		module = s.module
	}
	return kb.Signature{Module: module, Name: ind.Name, Arity: ind.Arity}
}

// Consult appends clauses to module, in order.
func (s *Solver) Consult(module string, clauses ...*logic.Clause) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consult(module, clauses)
}

func (s *Solver) consult(module string, clauses []*logic.Clause) error {
	if module == "" {
		module = s.module
	}
	for _, c := range clauses {
		p, err := kb.NewPredicate(module, c)
		if err != nil {
			return err
		}
		ind, _ := logic.GoalIndicator(p.Clause.Head)
		sig := kb.Signature{Module: module, Name: ind.Name, Arity: ind.Arity}
		p.Inlinable = s.inlinable[sig]
		p.Variadic = s.variadic[sig] && ind.Arity > 0
		s.kb.AssertZ(p)
	}
	s.logger.Debug("consulted", zap.String("module", module), zap.Int("clauses", len(clauses)))
	return nil
}

// Load declares and consults every module of a program. Its queries are not run.
func (s *Solver) Load(p *program.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range p.Modules {
		s.kb.Declare(m.Name, m.Imports, m.Exports)
		for _, ind := range m.Dynamic {
			s.kb.DeclareDynamic(s.signature(m.Name, ind))
		}
		for _, ind := range m.Inline {
			s.inlinable[s.signature(m.Name, ind)] = true
		}
		for _, ind := range m.Variadic {
			s.variadic[s.signature(m.Name, ind)] = true
		}
		if err := s.consult(m.Name, m.Clauses); err != nil {
			return errors.New("module %s: %v", m.Name, err)
		}
	}
	return nil
}

// Assert adds a clause to module, before its other clauses if first is set.
func (s *Solver) Assert(module string, c *logic.Clause, first bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if module == "" {
		module = s.module
	}
	p, err := kb.NewPredicate(module, c)
	if err != nil {
		return err
	}
	if first {
		s.kb.AssertA(p)
	} else {
		s.kb.AssertZ(p)
	}
	return nil
}

// Retract removes every clause of a dynamic predicate.
func (s *Solver) Retract(module string, ind logic.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kb.Retract(s.signature(module, ind))
}

// ---- Queries

func (s *Solver) machine(module string, goals []logic.Term) (*vm.Machine, error) {
	if module == "" {
		module = s.module
	}
	q, err := s.compiler.CompileQuery(goals, s.kb.Scope(module))
	if err != nil {
		return nil, err
	}
	m := vm.NewMachine(s.kb, s.compiler,
		vm.WithIterLimit(s.iterLimit),
		vm.WithLogger(s.logger),
		vm.WithSink(s.sink))
	m.Query = q
	return m, nil
}

// Solve returns every solution of a conjunction of goals.
func (s *Solver) Solve(goals ...logic.Term) ([]Solution, error) {
	return s.SolveIn(s.module, goals...)
}

// SolveIn returns every solution of a conjunction of goals run within module.
func (s *Solver) SolveIn(module string, goals ...logic.Term) ([]Solution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, err := s.machine(module, goals)
	if err != nil {
		return nil, err
	}
	solutions, err := m.Run()
	s.logger.Debug("solved",
		zap.Stringers("goals", goals),
		zap.Int("solutions", len(solutions)),
		zap.Error(err))
	return solutions, err
}

// Solutions returns an iterator over solutions of a conjunction of goals, computed as the
// iteration proceeds. Clauses may be loaded between iterations, and are not visible to the
// running query.
func (s *Solver) Solutions(goals ...logic.Term) iter.Seq2[Solution, error] {
	return s.SolutionsIn(s.module, goals...)
}

// SolutionsIn is like Solutions, running goals within module.
func (s *Solver) SolutionsIn(module string, goals ...logic.Term) iter.Seq2[Solution, error] {
	return func(yield func(Solution, error) bool) {
		s.mu.RLock()
		m, err := s.machine(module, goals)
		s.mu.RUnlock()
		if err != nil {
			yield(nil, err)
			return
		}
		for {
			s.mu.RLock()
			solution, ok, err := m.Next()
			s.mu.RUnlock()
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

// Query streams solutions of a conjunction of goals over a channel, that is closed when
// there are no more solutions, after an error, or when ctx is done. Cancelling ctx stops
// the query even within an infinite computation.
func (s *Solver) Query(ctx context.Context, goals ...logic.Term) <-chan Result {
	return s.QueryIn(ctx, s.module, goals...)
}

// QueryIn is like Query, running goals within module.
func (s *Solver) QueryIn(ctx context.Context, module string, goals ...logic.Term) <-chan Result {
	stream := make(chan Result)
	go func() {
		defer close(stream)
		send := func(r Result) bool {
			select {
			case stream <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		s.mu.RLock()
		m, err := s.machine(module, goals)
		s.mu.RUnlock()
		if err != nil {
			send(Result{Err: err})
			return
		}
		stop := context.AfterFunc(ctx, m.Interrupt)
		defer stop()
		for {
			s.mu.RLock()
			solution, ok, err := m.Next()
			s.mu.RUnlock()
			if err != nil {
				send(Result{Err: err})
				return
			}
			if !ok || !send(Result{Solution: solution}) {
				return
			}
		}
	}()
	return stream
}

// QueryAll runs queries concurrently, each in its own machine, returning the solutions of
// each query in order. The first error cancels the remaining queries.
func (s *Solver) QueryAll(ctx context.Context, queries [][]logic.Term) ([][]Solution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([][]Solution, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, goals := range queries {
		g.Go(func() error {
			m, err := s.machine(s.module, goals)
			if err != nil {
				return err
			}
			stop := context.AfterFunc(ctx, m.Interrupt)
			defer stop()
			solutions, err := m.Run()
			if err != nil {
				return err
			}
			results[i] = solutions
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
