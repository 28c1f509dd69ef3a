package logic

import (
	"fmt"
)

// ---- Comparisons

func termOrder(t Term) int {
	switch t.(type) {
	case Var:
		return 1
	case Int, Float:
		return 2
	case Atom:
		return 3
	case *Comp:
		return 4
	case *List:
		return 5
	case *Tuple:
		return 6
	case *Set:
		return 7
	case *Assoc:
		return 8
	case *Dict:
		return 9
	default:
		panic(fmt.Sprintf("logic.termOrder: unhandled type %T", t))
	}
}

type ordering int

const (
	less ordering = iota
	equal
	more
)

func compareStrings(s1, s2 string) ordering {
	if s1 < s2 {
		return less
	}
	if s1 > s2 {
		return more
	}
	return equal
}

func compareInts(a, b int) ordering {
	if a < b {
		return less
	}
	if a > b {
		return more
	}
	return equal
}

func compareFloats(a, b float64) ordering {
	if a < b {
		return less
	}
	if a > b {
		return more
	}
	return equal
}

// Numeric returns the value of a numeric term as a float, and whether it is a number.
func Numeric(t Term) (float64, bool) {
	switch n := t.(type) {
	case Int:
		return float64(n.Value), true
	case Float:
		return n.Value, true
	}
	return 0, false
}

// compareNumbers compares by value; when values are equal a Float comes before an Int.
func compareNumbers(t1, t2 Term) ordering {
	if i1, ok := t1.(Int); ok {
		if i2, ok := t2.(Int); ok {
			return compareInts(i1.Value, i2.Value)
		}
	}
	v1, _ := Numeric(t1)
	v2, _ := Numeric(t2)
	if o := compareFloats(v1, v2); o != equal {
		return o
	}
	_, isInt1 := t1.(Int)
	_, isInt2 := t2.(Int)
	switch {
	case isInt1 == isInt2:
		return equal
	case isInt2:
		return less
	default:
		return more
	}
}

func compareTerms(ts1, ts2 []Term) ordering {
	n := min(len(ts1), len(ts2))
	for i := 0; i < n; i++ {
		if o := compare(ts1[i], ts2[i]); o != equal {
			return o
		}
	}
	return compareInts(len(ts1), len(ts2))
}

func compare(t1, t2 Term) ordering {
	if o := compareInts(termOrder(t1), termOrder(t2)); o != equal {
		return o
	}
	switch u := t1.(type) {
	case Atom:
		return compareStrings(u.Name, t2.(Atom).Name)
	case Int, Float:
		return compareNumbers(t1, t2)
	case Var:
		return u.compare(t2.(Var))
	case *Comp:
		return u.compare(t2.(*Comp))
	case *List:
		return u.compare(t2.(*List))
	case *Tuple:
		return compareTerms(u.Terms, t2.(*Tuple).Terms)
	case *Set:
		return compareTerms(u.Terms, t2.(*Set).Terms)
	case *Assoc:
		return u.compare(t2.(*Assoc))
	case *Dict:
		return u.compare(t2.(*Dict))
	default:
		panic(fmt.Sprintf("logic.compare: unhandled type %T", t1))
	}
}

func (x Var) compare(other Var) ordering {
	if o := compareStrings(x.Name, other.Name); o != equal {
		return o
	}
	return compareInts(x.suffix, other.suffix)
}

func (c *Comp) compare(other *Comp) ordering {
	if o := compareInts(len(c.Args), len(other.Args)); o != equal {
		return o
	}
	if o := compareStrings(c.Functor, other.Functor); o != equal {
		return o
	}
	return compareTerms(c.Args, other.Args)
}

func (l *List) compare(other *List) ordering {
	n := min(len(l.Terms), len(other.Terms))
	for i := 0; i < n; i++ {
		if o := compare(l.Terms[i], other.Terms[i]); o != equal {
			return o
		}
	}
	return compare(
		NewIncompleteList(l.Terms[n:], l.Tail),
		NewIncompleteList(other.Terms[n:], other.Tail))
}

func (a *Assoc) compare(other *Assoc) ordering {
	if o := compare(a.Key, other.Key); o != equal {
		return o
	}
	return compare(a.Val, other.Val)
}

func (d *Dict) compare(other *Dict) ordering {
	if o := compare(d.Tag, other.Tag); o != equal {
		return o
	}
	n := min(len(d.Assocs), len(other.Assocs))
	for i := 0; i < n; i++ {
		if o := compare(d.Assocs[i], other.Assocs[i]); o != equal {
			return o
		}
	}
	return compareInts(len(d.Assocs), len(other.Assocs))
}

// ---- Less()

// Less returns the order between t1 and t2, following the standard of terms.
//
// The order of terms is: Vars < Numbers < Atoms < Comps < List < Tuple < Set < Assoc < Dict
func Less(t1, t2 Term) bool {
	return compare(t1, t2) == less
}

// Compare returns -1, 0 or 1 if t1 is less, equal or greater than t2 in the standard order.
func Compare(t1, t2 Term) int {
	switch compare(t1, t2) {
	case less:
		return -1
	case more:
		return 1
	}
	return 0
}

// Less returns whether this assoc is less than another.
//
// Assocs are compared first by key, than by value.
func (t *Assoc) Less(other *Assoc) bool { return t.compare(other) == less }

// ---- Eq()

// Eq returns whether t1 and t2 are identical terms.
//
// Note that this only takes into account the structure of terms, not whether
// any binding may make them identical.
func Eq(t1, t2 Term) bool {
	return compare(t1, t2) == equal
}
