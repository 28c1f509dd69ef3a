package vm

import (
	"fmt"
	"sort"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
)

// DetFunc implements a deterministic builtin, that succeeds at most once.
type DetFunc func(m *Machine, args []mem.Addr) (bool, error)

// GenFunc implements a builtin with multiple solutions, returning a generator for them.
type GenFunc func(m *Machine, args []mem.Addr) (Generator, error)

// Generator produces the solutions of a builtin lazily. Each call to Next either binds the
// next solution and returns true, or returns false when there are no more solutions.
type Generator interface {
	Next(m *Machine) (bool, error)
}

// GeneratorFunc is a Generator implemented by a closure.
type GeneratorFunc func(m *Machine) (bool, error)

func (f GeneratorFunc) Next(m *Machine) (bool, error) {
	return f(m)
}

// Builtin is a predicate implemented in Go. Exactly one of Det and Gen is set.
type Builtin struct {
	Name  string
	Arity int
	Det   DetFunc
	Gen   GenFunc
}

// Indicator returns the name and arity of the builtin.
func (b *Builtin) Indicator() logic.Indicator {
	return logic.Indicator{Name: b.Name, Arity: b.Arity}
}

// IsDet returns whether the builtin succeeds at most once.
func (b *Builtin) IsDet() bool {
	return b.Gen == nil
}

func (b *Builtin) String() string {
	return b.Indicator().String()
}

var builtins = make(map[logic.Indicator]*Builtin)

// Register adds a builtin to the registry. It panics if the indicator is already taken, or
// if the builtin doesn't have exactly one implementation.
func Register(b *Builtin) {
	if (b.Det == nil) == (b.Gen == nil) {
		panic(fmt.Sprintf("vm.Register: %v must have exactly one implementation", b))
	}
	ind := b.Indicator()
	if _, ok := builtins[ind]; ok {
		panic(fmt.Sprintf("vm.Register: %v is already registered", b))
	}
	builtins[ind] = b
}

// Lookup returns the builtin registered for name/arity.
func Lookup(name string, arity int) (*Builtin, bool) {
	b, ok := builtins[logic.Indicator{Name: name, Arity: arity}]
	return b, ok
}

// Builtins returns every registered builtin, sorted by indicator.
func Builtins() []*Builtin {
	bs := make([]*Builtin, 0, len(builtins))
	for _, b := range builtins {
		bs = append(bs, b)
	}
	sort.Slice(bs, func(i, j int) bool {
		b1, b2 := bs[i], bs[j]
		if b1.Name != b2.Name {
			return b1.Name < b2.Name
		}
		return b1.Arity < b2.Arity
	})
	return bs
}

func det(name string, arity int, fn DetFunc) {
	Register(&Builtin{Name: name, Arity: arity, Det: fn})
}

func gen(name string, arity int, fn GenFunc) {
	Register(&Builtin{Name: name, Arity: arity, Gen: fn})
}

// ---- Helpers for builtin implementations

func (m *Machine) unify(a, b mem.Addr) bool {
	return m.Mem.Unify(a, b, false)
}

func (m *Machine) atom(name string) mem.Addr {
	return m.Mem.NewConstant(logic.Atom{Name: name})
}

func (m *Machine) int_(value int) mem.Addr {
	return m.Mem.NewConstant(logic.Int{Value: value})
}

// constant returns the atomic term at a, or nil if it's not a constant.
func (m *Machine) constant(a mem.Addr) logic.Term {
	a = m.Mem.Walk(a)
	if a.Kind != mem.Constant {
		return nil
	}
	return m.Mem.Term(a)
}

func typeError(kind string, pos int, term interface{}) error {
	return errors.Errorf(errors.ExpectedTermOfTypeAt, kind, pos, term)
}

func instantiationError(pos int) error {
	return errors.Errorf(errors.InstantiationError, pos)
}

// atomArg returns the name of the atom at arg pos (1-based).
func (m *Machine) atomArg(args []mem.Addr, pos int) (string, error) {
	a := m.Mem.Walk(args[pos-1])
	if a.Kind == mem.Variable {
		return "", instantiationError(pos)
	}
	atom, ok := m.constant(a).(logic.Atom)
	if !ok {
		return "", typeError("atom", pos, m.Mem.Resolve(a))
	}
	return atom.Name, nil
}

// intArg returns the value of the integer at arg pos (1-based).
func (m *Machine) intArg(args []mem.Addr, pos int) (int, error) {
	a := m.Mem.Walk(args[pos-1])
	if a.Kind == mem.Variable {
		return 0, instantiationError(pos)
	}
	n, ok := m.constant(a).(logic.Int)
	if !ok {
		return 0, typeError("integer", pos, m.Mem.Resolve(a))
	}
	return n.Value, nil
}
