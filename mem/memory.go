// Package mem implements the addressable term memory of the engine.
//
// Terms are stored as cells in typed arenas, and referred to by an Addr. Variable cells
// are destructively bound during unification, and every binding is recorded in a trail.
// A State snapshot records the size of each arena and of the trail, so that restoring it
// undoes every binding and frees every cell created since the snapshot.
//
// Constants are deduplicated by value and never freed. Cells allocated after a snapshot
// that was later restored are gone: using their addresses panics.
package mem

import (
	"fmt"

	"github.com/brunokim/resolve/logic"
)

// Kind is the arena an address refers to.
type Kind uint8

const (
	Invalid Kind = iota
	Constant
	Variable
	Structure
	Abstract
	Predicate
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "const"
	case Variable:
		return "var"
	case Structure:
		return "struct"
	case Abstract:
		return "abstract"
	case Predicate:
		return "pred"
	}
	return "invalid"
}

// Addr is a handle to a cell within a Memory. The zero Addr is invalid.
type Addr struct {
	Kind   Kind
	index  int32
	serial uint32
}

// IsValid returns whether the address may refer to a cell.
func (a Addr) IsValid() bool {
	return a.Kind != Invalid
}

func (a Addr) String() string {
	return fmt.Sprintf("%v@%d", a.Kind, a.index)
}

// AbstractKind identifies the sugar form of an abstract cell.
type AbstractKind uint8

const (
	ListKind AbstractKind = iota + 1
	TupleKind
	SetKind
	AssocKind
	DictKind
)

type varCell struct {
	name   logic.Var
	ref    Addr
	serial uint32
}

type structCell struct {
	functor string
	args    []Addr
	serial  uint32
}

type abstractCell struct {
	kind      AbstractKind
	expansion Addr
	// Only for dicts, with keys in standard order.
	tag    Addr
	keys   []Addr
	vals   []Addr
	serial uint32
}

type predCell struct {
	PredicateCell
	serial uint32
}

// PredicateCell is the contents of a stored clause.
type PredicateCell struct {
	Head, Body    Addr
	Dynamic       bool
	TailRecursive bool
}

// State is an opaque snapshot of a Memory.
type State struct {
	vars, structs, abstracts, preds int
	trail                           int
}

// Memory is an arena of term cells. It's not safe for concurrent use.
type Memory struct {
	consts    []logic.Term
	constIdx  map[logic.Term]Addr
	vars      []varCell
	structs   []structCell
	abstracts []abstractCell
	preds     []predCell
	trail     []Addr
	serial    uint32
}

// New returns an empty memory.
func New() *Memory {
	return &Memory{constIdx: make(map[logic.Term]Addr)}
}

func (m *Memory) nextSerial() uint32 {
	m.serial++
	return m.serial
}

// ---- Snapshots

// SaveState returns a snapshot of the current memory.
func (m *Memory) SaveState() State {
	return State{
		vars:      len(m.vars),
		structs:   len(m.structs),
		abstracts: len(m.abstracts),
		preds:     len(m.preds),
		trail:     len(m.trail),
	}
}

// LoadState undoes every binding made after s was taken, and frees every cell allocated
// since.
//
// It panics if s is more recent than the current memory, that is, if an earlier snapshot was
// already restored.
func (m *Memory) LoadState(s State) {
	if s.trail > len(m.trail) || s.vars > len(m.vars) || s.structs > len(m.structs) ||
		s.abstracts > len(m.abstracts) || s.preds > len(m.preds) {
		panic(fmt.Sprintf("mem.LoadState: state %+v is more recent than memory", s))
	}
	for i := len(m.trail) - 1; i >= s.trail; i-- {
		idx := int(m.trail[i].index)
		if idx < s.vars {
			m.vars[idx].ref = Addr{}
		}
	}
	m.trail = m.trail[:s.trail]
	m.vars = m.vars[:s.vars]
	m.structs = m.structs[:s.structs]
	m.abstracts = m.abstracts[:s.abstracts]
	m.preds = m.preds[:s.preds]
}

// Size returns the number of live cells, excluding constants.
func (m *Memory) Size() int {
	return len(m.vars) + len(m.structs) + len(m.abstracts) + len(m.preds)
}

// ---- Cell access

func stale(a Addr) string {
	return fmt.Sprintf("mem: stale address %v (serial %d)", a, a.serial)
}

func (m *Memory) constant(a Addr) logic.Term {
	if a.Kind != Constant || int(a.index) >= len(m.consts) {
		panic(stale(a))
	}
	return m.consts[a.index]
}

func (m *Memory) varCell(a Addr) *varCell {
	if a.Kind != Variable || int(a.index) >= len(m.vars) || m.vars[a.index].serial != a.serial {
		panic(stale(a))
	}
	return &m.vars[a.index]
}

func (m *Memory) structCell(a Addr) *structCell {
	if a.Kind != Structure || int(a.index) >= len(m.structs) || m.structs[a.index].serial != a.serial {
		panic(stale(a))
	}
	return &m.structs[a.index]
}

func (m *Memory) abstractCell(a Addr) *abstractCell {
	if a.Kind != Abstract || int(a.index) >= len(m.abstracts) || m.abstracts[a.index].serial != a.serial {
		panic(stale(a))
	}
	return &m.abstracts[a.index]
}

func (m *Memory) predCell(a Addr) *predCell {
	if a.Kind != Predicate || int(a.index) >= len(m.preds) || m.preds[a.index].serial != a.serial {
		panic(stale(a))
	}
	return &m.preds[a.index]
}

// ---- Allocation

// NewConstant returns the address of an atomic term, allocating it on first use.
func (m *Memory) NewConstant(t logic.Term) Addr {
	switch t.(type) {
	case logic.Atom, logic.Int, logic.Float:
	default:
		panic(fmt.Sprintf("mem.NewConstant: unhandled type %T (%v)", t, t))
	}
	if a, ok := m.constIdx[t]; ok {
		return a
	}
	a := Addr{Kind: Constant, index: int32(len(m.consts))}
	m.consts = append(m.consts, t)
	m.constIdx[t] = a
	return a
}

// NewVar allocates an unbound variable cell. name is kept as the variable origin, and used
// when resolving it while unbound.
func (m *Memory) NewVar(name logic.Var) Addr {
	serial := m.nextSerial()
	a := Addr{Kind: Variable, index: int32(len(m.vars)), serial: serial}
	m.vars = append(m.vars, varCell{name: name, serial: serial})
	return a
}

// NewStruct allocates a structure cell.
func (m *Memory) NewStruct(functor string, args []Addr) Addr {
	serial := m.nextSerial()
	a := Addr{Kind: Structure, index: int32(len(m.structs)), serial: serial}
	m.structs = append(m.structs, structCell{functor: functor, args: args, serial: serial})
	return a
}

func (m *Memory) newAbstract(cell abstractCell) Addr {
	cell.serial = m.nextSerial()
	a := Addr{Kind: Abstract, index: int32(len(m.abstracts)), serial: cell.serial}
	m.abstracts = append(m.abstracts, cell)
	return a
}

// NewList allocates a list with elems and tail.
func (m *Memory) NewList(elems []Addr, tail Addr) Addr {
	for i := len(elems) - 1; i >= 0; i-- {
		exp := m.NewStruct(logic.ListFunctor, []Addr{elems[i], tail})
		tail = m.newAbstract(abstractCell{kind: ListKind, expansion: exp})
	}
	return tail
}

// StoreClause allocates a predicate cell.
func (m *Memory) StoreClause(head, body Addr, dynamic, tailRecursive bool) Addr {
	serial := m.nextSerial()
	a := Addr{Kind: Predicate, index: int32(len(m.preds)), serial: serial}
	m.preds = append(m.preds, predCell{PredicateCell{head, body, dynamic, tailRecursive}, serial})
	return a
}

// Clause returns the contents of a predicate cell.
func (m *Memory) Clause(a Addr) PredicateCell {
	return m.predCell(a).PredicateCell
}

// ---- Store

// Store interns a term tree and returns its address.
//
// Each variable is allocated once per call and recorded in vars, unless vars already has an
// address for it. The anonymous variable is always fresh. vars may be nil.
func (m *Memory) Store(term logic.Term, vars map[logic.Var]Addr) Addr {
	if vars == nil {
		vars = make(map[logic.Var]Addr)
	}
	return m.store(term, vars)
}

func (m *Memory) storeAll(terms []logic.Term, vars map[logic.Var]Addr) []Addr {
	addrs := make([]Addr, len(terms))
	for i, term := range terms {
		addrs[i] = m.store(term, vars)
	}
	return addrs
}

func (m *Memory) store(term logic.Term, vars map[logic.Var]Addr) Addr {
	switch t := term.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return m.NewConstant(t)
	case logic.Var:
		if t.IsAnonymous() {
			return m.NewVar(t)
		}
		if a, ok := vars[t]; ok {
			return a
		}
		a := m.NewVar(t)
		vars[t] = a
		return a
	case *logic.Comp:
		return m.NewStruct(t.Functor, m.storeAll(t.Args, vars))
	case *logic.List:
		elems := m.storeAll(t.Terms, vars)
		return m.NewList(elems, m.store(t.Tail, vars))
	case *logic.Tuple:
		exp := m.NewStruct(logic.TupleFunctor, m.storeAll(t.Terms, vars))
		return m.newAbstract(abstractCell{kind: TupleKind, expansion: exp})
	case *logic.Set:
		list := m.NewList(m.storeAll(t.Terms, vars), m.NewConstant(logic.EmptyList))
		exp := m.NewStruct(logic.SetFunctor, []Addr{list})
		return m.newAbstract(abstractCell{kind: SetKind, expansion: exp})
	case *logic.Assoc:
		exp := m.NewStruct(":", []Addr{m.store(t.Key, vars), m.store(t.Val, vars)})
		return m.newAbstract(abstractCell{kind: AssocKind, expansion: exp})
	case *logic.Dict:
		tag := m.store(t.Tag, vars)
		keys := make([]Addr, len(t.Assocs))
		vals := make([]Addr, len(t.Assocs))
		pairs := make([]Addr, len(t.Assocs))
		for i, assoc := range t.Assocs {
			keys[i] = m.store(assoc.Key, vars)
			vals[i] = m.store(assoc.Val, vars)
			pairs[i] = m.NewStruct(logic.PairFunctor, []Addr{keys[i], vals[i]})
		}
		list := m.NewList(pairs, m.NewConstant(logic.EmptyList))
		exp := m.NewStruct(logic.DictFunctor, []Addr{tag, list})
		return m.newAbstract(abstractCell{kind: DictKind, expansion: exp, tag: tag, keys: keys, vals: vals})
	default:
		panic(fmt.Sprintf("mem.Store: unhandled type %T (%v)", term, term))
	}
}

// ---- Bindings

// Walk follows the chain of bound variables from a, returning the first address that is
// not a bound variable.
func (m *Memory) Walk(a Addr) Addr {
	for a.Kind == Variable {
		cell := m.varCell(a)
		if !cell.ref.IsValid() {
			return a
		}
		a = cell.ref
	}
	return a
}

// IsUnbound returns whether a walks to an unbound variable.
func (m *Memory) IsUnbound(a Addr) bool {
	return m.Walk(a).Kind == Variable
}

// Bind binds the unbound variable at v to t. The binding is trailed, and undone by
// restoring an earlier State.
//
// It panics if v is not an unbound variable.
func (m *Memory) Bind(v, t Addr) {
	cell := m.varCell(v)
	if cell.ref.IsValid() {
		panic(fmt.Sprintf("mem.Bind: %v is already bound", v))
	}
	cell.ref = t
	m.trail = append(m.trail, v)
}

// ---- Accessors

// Term returns the atomic term at a constant address.
func (m *Memory) Term(a Addr) logic.Term {
	return m.constant(m.Walk(a))
}

// VarName returns the origin of a variable.
func (m *Memory) VarName(a Addr) logic.Var {
	return m.varCell(a).name
}

// Functor returns the functor and args of a structure, or of the expansion of an abstract
// term. Atoms are returned with no args.
func (m *Memory) Functor(a Addr) (string, []Addr, bool) {
	a = m.Walk(a)
	switch a.Kind {
	case Constant:
		if atom, ok := m.constant(a).(logic.Atom); ok {
			return atom.Name, nil, true
		}
	case Structure:
		cell := m.structCell(a)
		return cell.functor, cell.args, true
	case Abstract:
		return m.Functor(m.abstractCell(a).expansion)
	}
	return "", nil, false
}

// Expansion returns the canonical structure of an abstract term.
func (m *Memory) Expansion(a Addr) Addr {
	return m.abstractCell(a).expansion
}

// AbstractKind returns the sugar form of an abstract term.
func (m *Memory) AbstractKind(a Addr) AbstractKind {
	return m.abstractCell(a).kind
}

// ListElems returns the elements of a proper list, or false if a is not a proper list.
func (m *Memory) ListElems(a Addr) ([]Addr, bool) {
	var elems []Addr
	for {
		a = m.Walk(a)
		switch a.Kind {
		case Constant:
			return elems, m.constant(a) == logic.EmptyList
		case Abstract:
			a = m.abstractCell(a).expansion
		}
		if a.Kind != Structure {
			return nil, false
		}
		cell := m.structCell(a)
		if cell.functor != logic.ListFunctor || len(cell.args) != 2 {
			return nil, false
		}
		elems = append(elems, cell.args[0])
		a = cell.args[1]
	}
}
