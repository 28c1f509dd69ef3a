// Package kb implements the knowledge base: predicates indexed by signature, module
// declarations and the lookup of candidate clauses for a goal.
//
// The knowledge base is not safe for concurrent mutation. Concurrent readers are fine as
// long as no one is asserting or retracting.
package kb

import (
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
)

type module struct {
	imports []string
	exports map[logic.Indicator]bool
}

// KnowledgeBase stores predicates by signature.
type KnowledgeBase struct {
	preds      map[Signature][]*Predicate
	dynamic    map[Signature]bool
	modules    map[string]*module
	order      []string
	generation uint64
	renames    atomic.Int64
	logger     *zap.Logger
}

// Option configures a KnowledgeBase.
type Option func(*KnowledgeBase)

// WithLogger sets the logger for assert and retract events.
func WithLogger(logger *zap.Logger) Option {
	return func(kb *KnowledgeBase) {
		kb.logger = logger
	}
}

// New returns an empty knowledge base, with only the default module.
func New(opts ...Option) *KnowledgeBase {
	kb := &KnowledgeBase{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(kb)
	}
	kb.Clear()
	return kb
}

// Clear removes every predicate and module declaration.
func (kb *KnowledgeBase) Clear() {
	kb.preds = make(map[Signature][]*Predicate)
	kb.dynamic = make(map[Signature]bool)
	kb.modules = make(map[string]*module)
	kb.order = nil
	kb.module(DefaultModule)
	kb.generation++
}

// Generation is bumped on every mutation. Compiled code is valid for a single generation.
func (kb *KnowledgeBase) Generation() uint64 {
	return kb.generation
}

func (kb *KnowledgeBase) module(name string) *module {
	mod, ok := kb.modules[name]
	if !ok {
		mod = &module{exports: make(map[logic.Indicator]bool)}
		kb.modules[name] = mod
		kb.order = append(kb.order, name)
	}
	return mod
}

// Declare registers a module with its imports and exported predicates.
func (kb *KnowledgeBase) Declare(name string, imports []string, exports []logic.Indicator) {
	mod := kb.module(name)
	mod.imports = append(mod.imports, imports...)
	for _, ind := range exports {
		mod.exports[ind] = true
	}
	for sig, ps := range kb.preds {
		if sig.Module == name && kb.IsExported(sig) {
			for _, p := range ps {
				p.Exported = true
			}
		}
	}
	kb.generation++
}

// Scope returns the scope of goals within a module.
func (kb *KnowledgeBase) Scope(name string) Scope {
	mod, ok := kb.modules[name]
	if !ok {
		return Scope{Module: name}
	}
	return Scope{Module: name, Imports: mod.imports}
}

// Modules returns the declared modules, in declaration order.
func (kb *KnowledgeBase) Modules() []string {
	return append([]string(nil), kb.order...)
}

// IsExported returns whether sig is visible to modules that import its module. A variadic
// signature is exported by the indicator of its clause heads.
func (kb *KnowledgeBase) IsExported(sig Signature) bool {
	mod, ok := kb.modules[sig.Module]
	if !ok {
		return false
	}
	if mod.exports[sig.Indicator()] {
		return true
	}
	if !sig.IsVariadic() {
		return false
	}
	for _, p := range kb.preds[sig] {
		if mod.exports[p.headIndicator()] {
			return true
		}
	}
	return false
}

// ---- Mutation

func (kb *KnowledgeBase) prepare(p *Predicate) Signature {
	sig := p.Signature()
	kb.module(sig.Module)
	if kb.dynamic[sig] {
		p.Dynamic = true
	}
	if kb.IsExported(sig) || kb.modules[sig.Module].exports[p.headIndicator()] {
		p.Exported = true
	}
	kb.generation++
	return sig
}

// AssertA inserts p before every other clause of its signature.
func (kb *KnowledgeBase) AssertA(p *Predicate) {
	sig := kb.prepare(p)
	kb.preds[sig] = append([]*Predicate{p}, kb.preds[sig]...)
	kb.logger.Debug("asserta", zap.Stringer("signature", sig), zap.Stringer("clause", p.Clause))
}

// AssertZ inserts p after every other clause of its signature.
func (kb *KnowledgeBase) AssertZ(p *Predicate) {
	sig := kb.prepare(p)
	kb.preds[sig] = append(kb.preds[sig], p)
	kb.logger.Debug("assertz", zap.Stringer("signature", sig), zap.Stringer("clause", p.Clause))
}

// DeclareDynamic marks sig as dynamic. A dynamic signature is defined even with no clauses,
// so calling it fails instead of raising an error.
func (kb *KnowledgeBase) DeclareDynamic(sig Signature) {
	kb.module(sig.Module)
	kb.dynamic[sig] = true
	for _, p := range kb.preds[sig] {
		p.Dynamic = true
	}
	kb.generation++
}

// IsDynamic returns whether sig was declared dynamic.
func (kb *KnowledgeBase) IsDynamic(sig Signature) bool {
	return kb.dynamic[sig]
}

// Retract removes every clause of sig, keeping it declared as dynamic. Retracting a
// signature with static clauses returns CannotRetractStaticPredicate.
func (kb *KnowledgeBase) Retract(sig Signature) error {
	if len(kb.preds[sig]) > 0 && !kb.dynamic[sig] {
		return errors.Errorf(errors.CannotRetractStaticPredicate, sig)
	}
	kb.dynamic[sig] = true
	delete(kb.preds, sig)
	kb.generation++
	kb.logger.Debug("retract", zap.Stringer("signature", sig))
	return nil
}

// RetractPredicate removes a single dynamic clause. It returns whether the clause was
// present.
func (kb *KnowledgeBase) RetractPredicate(p *Predicate) (bool, error) {
	sig := p.Signature()
	if !p.Dynamic {
		return false, errors.Errorf(errors.CannotRetractStaticPredicate, sig)
	}
	ps := kb.preds[sig]
	for i, other := range ps {
		if other != p {
			continue
		}
		// Make a new slice, since snapshots from Clauses may share the backing array.
		rest := make([]*Predicate, 0, len(ps)-1)
		rest = append(rest, ps[:i]...)
		kb.preds[sig] = append(rest, ps[i+1:]...)
		kb.generation++
		kb.logger.Debug("retract clause", zap.Stringer("signature", sig), zap.Stringer("clause", p.Clause))
		return true, nil
	}
	return false, nil
}

// ---- Queries

// Clauses returns the clauses of sig. The returned slice is a snapshot, unaffected by later
// asserts and retracts.
func (kb *KnowledgeBase) Clauses(sig Signature) []*Predicate {
	return append([]*Predicate(nil), kb.preds[sig]...)
}

// Defined returns whether sig has clauses or is dynamic.
func (kb *KnowledgeBase) Defined(sig Signature) bool {
	return len(kb.preds[sig]) > 0 || kb.dynamic[sig]
}

// Signatures returns every defined signature, sorted.
func (kb *KnowledgeBase) Signatures() []Signature {
	seen := make(map[Signature]bool)
	for sig, ps := range kb.preds {
		if len(ps) > 0 {
			seen[sig] = true
		}
	}
	for sig := range kb.dynamic {
		seen[sig] = true
	}
	sigs := make([]Signature, 0, len(seen))
	for sig := range seen {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool {
		s1, s2 := sigs[i], sigs[j]
		if s1.Module != s2.Module {
			return s1.Module < s2.Module
		}
		if s1.Name != s2.Name {
			return s1.Name < s2.Name
		}
		return s1.Arity < s2.Arity
	})
	return sigs
}

func (kb *KnowledgeBase) lookupModule(module string, ind logic.Indicator) (Signature, bool) {
	sig := Signature{module, ind.Name, ind.Arity}
	if kb.Defined(sig) {
		return sig, true
	}
	vsig := sig.AsVariadic()
	ps := kb.preds[vsig]
	if len(ps) > 0 && ps[0].FixedParams() <= ind.Arity {
		return vsig, true
	}
	return Signature{}, false
}

// Lookup returns the signatures that may match a goal.
//
// A qualified goal M:G is looked up by its exact signature in M, then by the variadic
// signature. An unqualified goal is looked up this way in every module visible from scope,
// where imported modules only contribute exported signatures.
func (kb *KnowledgeBase) Lookup(goal logic.Term, scope Scope) ([]Signature, bool) {
	module, goal := Unqualify(goal)
	ind, ok := logic.GoalIndicator(goal)
	if !ok {
		return nil, false
	}
	if module != "" {
		sig, ok := kb.lookupModule(module, ind)
		if !ok {
			return nil, false
		}
		return []Signature{sig}, true
	}
	var sigs []Signature
	for i, mod := range scope.Visible() {
		sig, ok := kb.lookupModule(mod, ind)
		if !ok || (i > 0 && !kb.IsExported(sig)) {
			continue
		}
		sigs = append(sigs, sig)
	}
	return sigs, len(sigs) > 0
}

// NextSuffix returns a suffix to rename clause vars apart.
func (kb *KnowledgeBase) NextSuffix() int {
	return int(kb.renames.Add(1))
}

// Match is a candidate clause for a goal.
type Match struct {
	Predicate *Predicate
	// Clause is the candidate with its vars renamed apart.
	Clause *logic.Clause
	// Substitution has the bindings of head vars after unifying with the goal.
	Substitution map[logic.Var]logic.Term
}

// Open stores the clause head in m and unifies it with goal, returning the address of each
// clause var. Bindings are kept, so the caller must restore a previous state to undo them.
func (mt Match) Open(m *mem.Memory, goal mem.Addr) (map[logic.Var]mem.Addr, bool) {
	vars := make(map[logic.Var]mem.Addr)
	if mt.Predicate.Variadic {
		goal = normalizeVariadicAddr(m, goal, mt.Predicate.FixedParams())
	}
	head := m.Store(mt.Clause.Head, vars)
	return vars, m.Unify(head, goal, false)
}

func normalizeVariadicAddr(m *mem.Memory, goal mem.Addr, fixed int) mem.Addr {
	name, args, _ := m.Functor(goal)
	params := make([]mem.Addr, fixed+1)
	copy(params, args[:fixed])
	params[fixed] = m.NewList(args[fixed:], m.NewConstant(logic.EmptyList))
	return m.NewStruct(name, params)
}

// UnqualifyAddr is like Unqualify, for a goal stored in memory.
func UnqualifyAddr(m *mem.Memory, goal mem.Addr) mem.Addr {
	for {
		name, args, _ := m.Functor(goal)
		if name != ":" || len(args) != 2 {
			return goal
		}
		if mod := m.Walk(args[0]); mod.Kind != mem.Constant {
			return goal
		} else if _, ok := m.Term(mod).(logic.Atom); !ok {
			return goal
		}
		goal = args[1]
	}
}

// GetMatches returns the clauses whose head unifies with goal. Each candidate is renamed
// apart and unified against the goal, and the memory is restored after each attempt, so it
// is unchanged when GetMatches returns. Use Match.Open to unify with the kept candidate.
//
// It returns UndefinedPredicate if no signature is visible for goal.
func (kb *KnowledgeBase) GetMatches(m *mem.Memory, goal mem.Addr, scope Scope) ([]Match, error) {
	term := m.Resolve(goal)
	sigs, ok := kb.Lookup(term, scope)
	if !ok {
		sig, _ := GoalSignature(scope.Module, term)
		return nil, errors.Errorf(errors.UndefinedPredicate, sig)
	}
	goal = UnqualifyAddr(m, goal)
	var matches []Match
	for _, sig := range sigs {
		for _, p := range kb.Clauses(sig) {
			match := Match{Predicate: p, Clause: p.Clause.Rename(kb.NextSuffix())}
			s := m.SaveState()
			vars, ok := match.Open(m, goal)
			if ok {
				match.Substitution = make(map[logic.Var]logic.Term)
				for _, x := range logic.Vars(match.Clause.Head) {
					if !x.IsAnonymous() {
						match.Substitution[x] = m.Resolve(vars[x])
					}
				}
				matches = append(matches, match)
			}
			m.LoadState(s)
		}
	}
	return matches, nil
}
