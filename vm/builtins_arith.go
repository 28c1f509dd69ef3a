package vm

import (
	"math"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/mem"
)

type evaluable func(xs []logic.Term) (logic.Term, error)

var evaluables map[logic.Indicator]evaluable

func init() {
	evaluables = map[logic.Indicator]evaluable{
		{Name: "+", Arity: 2}:   binary(func(a, b int) int { return a + b }, func(a, b float64) float64 { return a + b }),
		{Name: "-", Arity: 2}:   binary(func(a, b int) int { return a - b }, func(a, b float64) float64 { return a - b }),
		{Name: "*", Arity: 2}:   binary(func(a, b int) int { return a * b }, func(a, b float64) float64 { return a * b }),
		{Name: "/", Arity: 2}:   divide,
		{Name: "//", Arity: 2}:  intDivide,
		{Name: "mod", Arity: 2}: modulo,
		{Name: "min", Arity: 2}: pick(func(c int) bool { return c <= 0 }),
		{Name: "max", Arity: 2}: pick(func(c int) bool { return c >= 0 }),
		{Name: "abs", Arity: 1}: unary(func(a int) int { return max(a, -a) }, math.Abs),
		{Name: "-", Arity: 1}:   unary(func(a int) int { return -a }, func(a float64) float64 { return -a }),
		{Name: "+", Arity: 1}:   unary(func(a int) int { return a }, func(a float64) float64 { return a }),
	}

	det("is", 2, func(m *Machine, args []mem.Addr) (bool, error) {
		x, err := m.eval(args[1], 2)
		if err != nil {
			return false, err
		}
		return m.unify(args[0], m.Mem.NewConstant(x)), nil
	})
	det("=:=", 2, arithCompare(func(c int) bool { return c == 0 }))
	det(`=\=`, 2, arithCompare(func(c int) bool { return c != 0 }))
	det("<", 2, arithCompare(func(c int) bool { return c < 0 }))
	det(">", 2, arithCompare(func(c int) bool { return c > 0 }))
	det("=<", 2, arithCompare(func(c int) bool { return c <= 0 }))
	det(">=", 2, arithCompare(func(c int) bool { return c >= 0 }))
}

// eval evaluates the arithmetic expression at a, that is the pos-th arg of a builtin.
func (m *Machine) eval(a mem.Addr, pos int) (logic.Term, error) {
	a = m.Mem.Walk(a)
	switch a.Kind {
	case mem.Variable:
		return nil, instantiationError(pos)
	case mem.Constant:
		switch t := m.Mem.Term(a).(type) {
		case logic.Int, logic.Float:
			return t, nil
		case logic.Atom:
			switch t.Name {
			case "pi":
				return logic.Float{Value: math.Pi}, nil
			case "e":
				return logic.Float{Value: math.E}, nil
			}
		}
		return nil, typeError("evaluable", pos, m.Mem.Resolve(a))
	case mem.Structure:
		name, params, _ := m.Mem.Functor(a)
		fn, ok := evaluables[logic.Indicator{Name: name, Arity: len(params)}]
		if !ok {
			return nil, typeError("evaluable", pos, logic.Indicator{Name: name, Arity: len(params)})
		}
		xs := make([]logic.Term, len(params))
		for i, param := range params {
			x, err := m.eval(param, pos)
			if err != nil {
				return nil, err
			}
			xs[i] = x
		}
		return fn(xs)
	}
	return nil, typeError("evaluable", pos, m.Mem.Resolve(a))
}

func asFloat(x logic.Term) float64 {
	f, _ := logic.Numeric(x)
	return f
}

func asInts(xs []logic.Term) ([]int, bool) {
	ints := make([]int, len(xs))
	for i, x := range xs {
		n, ok := x.(logic.Int)
		if !ok {
			return nil, false
		}
		ints[i] = n.Value
	}
	return ints, true
}

func binary(fi func(a, b int) int, ff func(a, b float64) float64) evaluable {
	return func(xs []logic.Term) (logic.Term, error) {
		if ints, ok := asInts(xs); ok {
			return logic.Int{Value: fi(ints[0], ints[1])}, nil
		}
		return logic.Float{Value: ff(asFloat(xs[0]), asFloat(xs[1]))}, nil
	}
}

func unary(fi func(a int) int, ff func(a float64) float64) evaluable {
	return func(xs []logic.Term) (logic.Term, error) {
		if n, ok := xs[0].(logic.Int); ok {
			return logic.Int{Value: fi(n.Value)}, nil
		}
		return logic.Float{Value: ff(asFloat(xs[0]))}, nil
	}
}

func zeroDivisor() error {
	return errors.Errorf(errors.EvaluationError, "zero_divisor")
}

// divide returns an integer if the division is exact, and a float otherwise.
func divide(xs []logic.Term) (logic.Term, error) {
	if ints, ok := asInts(xs); ok {
		a, b := ints[0], ints[1]
		if b == 0 {
			return nil, zeroDivisor()
		}
		if a%b == 0 {
			return logic.Int{Value: a / b}, nil
		}
	}
	b := asFloat(xs[1])
	if b == 0 {
		return nil, zeroDivisor()
	}
	return logic.Float{Value: asFloat(xs[0]) / b}, nil
}

func integerOperands(xs []logic.Term) (int, int, error) {
	ints, ok := asInts(xs)
	if !ok {
		for i, x := range xs {
			if _, ok := x.(logic.Int); !ok {
				return 0, 0, typeError("integer", i+1, x)
			}
		}
	}
	if ints[1] == 0 {
		return 0, 0, zeroDivisor()
	}
	return ints[0], ints[1], nil
}

// intDivide truncates toward zero.
func intDivide(xs []logic.Term) (logic.Term, error) {
	a, b, err := integerOperands(xs)
	if err != nil {
		return nil, err
	}
	return logic.Int{Value: a / b}, nil
}

// modulo has the sign of the divisor.
func modulo(xs []logic.Term) (logic.Term, error) {
	a, b, err := integerOperands(xs)
	if err != nil {
		return nil, err
	}
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return logic.Int{Value: r}, nil
}

func pick(first func(c int) bool) evaluable {
	return func(xs []logic.Term) (logic.Term, error) {
		if first(compareNumbers(xs[0], xs[1])) {
			return xs[0], nil
		}
		return xs[1], nil
	}
}

func compareNumbers(x, y logic.Term) int {
	if ints, ok := asInts([]logic.Term{x, y}); ok {
		switch {
		case ints[0] < ints[1]:
			return -1
		case ints[0] > ints[1]:
			return 1
		}
		return 0
	}
	a, b := asFloat(x), asFloat(y)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func arithCompare(pred func(int) bool) DetFunc {
	return func(m *Machine, args []mem.Addr) (bool, error) {
		x, err := m.eval(args[0], 1)
		if err != nil {
			return false, err
		}
		y, err := m.eval(args[1], 2)
		if err != nil {
			return false, err
		}
		return pred(compareNumbers(x, y)), nil
	}
}
