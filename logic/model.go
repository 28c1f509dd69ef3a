// Package logic implements the term model of the engine: immutable terms, clauses and
// the standard order between them.
//
// A logic term can fall in one of four categories:
//
// * atomic: a term that represents an immutable value, such as an atom or a number.
//
// * variable: a term that represents an unbound, yet-to-be-resolved term.
//
// * complex: a functor applied to an ordered list of terms.
//
// * abstract: syntactic sugar (lists, tuples, sets and dicts) that has a canonical
// complex expansion, returned by Expand.
//
// A logic program is composed of clauses of the form 'head :- term1, term2.', that
// must be read as "head holds if term1 and term2 holds". A clause with no terms in
// the body is called a fact.
package logic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---- Basic types

// Term is a representation of a logic term.
type Term interface {
	fmt.Stringer
	short() string
	vars(seen map[Var]struct{}, xs []Var) []Var
	hasVar() bool
}

// Atom is an atomic term representing a symbol.
type Atom struct {
	// Name is the identifier for an atom.
	Name string
}

// Int is an atomic term representing an integer.
type Int struct {
	// Value is the (immutable) value of an int.
	Value int
}

// Float is an atomic term representing a floating point number.
type Float struct {
	Value float64
}

// Var is a variable term.
type Var struct {
	// Name is the identifier for a var.
	Name   string
	suffix int
}

// Comp is a complex term, representing an immutable compound term.
type Comp struct {
	// Functor is the primary identifier of a comp.
	Functor string
	// Args is the list of terms within this term.
	Args    []Term
	hasVar_ bool
}

// List is an abstract term, representing an ordered sequence of terms.
type List struct {
	// Terms are the contents of a list.
	Terms []Term
	// Tail is the continuation of a list, which is usually another
	// list, the empty list, or an unbound var.
	Tail    Term
	hasVar_ bool
}

// Tuple is an abstract term, representing a fixed-size sequence of terms.
type Tuple struct {
	Terms   []Term
	hasVar_ bool
}

// Set is an abstract term with unique elements, kept in standard order.
type Set struct {
	Terms   []Term
	hasVar_ bool
}

// Assoc is a complex term, representing an association pair.
type Assoc struct {
	// Key is the association key
	Key Term
	// Val is the association value
	Val     Term
	hasVar_ bool
}

// AssocSet is a set of assocs, implemented as a sorted array.
type AssocSet []*Assoc

// Dict is an abstract term, representing a tagged set of associations with
// unique keys.
type Dict struct {
	// Tag identifies the kind of dict, usually an atom or an unbound var.
	Tag Term
	// Set of associations of this dict.
	Assocs  AssocSet
	hasVar_ bool
}

// Clause is the representation of a logic rule.
// Note that Clause is not a Term, so it can't be used within complex terms.
type Clause struct {
	// Head is the consequent of a clause. May be Atom or Comp.
	Head Term
	// Body is the antecedent of a clause, as a conjunction of goals.
	Body    []Term
	hasVar_ bool
}

// ---- Public vars

var (
	// AnonymousVar represents a variable to be ignored.
	AnonymousVar = NewVar("_")
	// EmptyList is an atom representing an empty list.
	EmptyList = Atom{"[]"}
	// True is the goal that always succeeds.
	True = Atom{"true"}
	// Fail is the goal that always fails.
	Fail = Atom{"fail"}
	// Cut is the goal that commits to the choices made since entering a clause.
	Cut = Atom{"!"}
)

// Functors of the canonical expansion of abstract terms.
const (
	ListFunctor  = "."
	TupleFunctor = "$tuple"
	SetFunctor   = "$set"
	DictFunctor  = "$dict"
	PairFunctor  = "-"
)

// ---- Vars

// NewVar creates a new var.
//
// It panics if the name doesn't start with an uppercase letter or an underscore.
func NewVar(name string) Var {
	if !IsVar(name) {
		panic(fmt.Sprintf("NewVar: invalid name: %q", name))
	}
	return Var{name, 0}
}

// WithSuffix creates a new var with the same name and provided suffix. Used to
// generate vars from the same template.
func (x Var) WithSuffix(suffix int) Var {
	if x.Name == "_" {
		return x
	}
	return Var{x.Name, suffix}
}

// Suffix returns the renaming suffix of a var, 0 for vars as written by the user.
func (x Var) Suffix() int {
	return x.suffix
}

// IsAnonymous returns whether this var is the anonymous var '_'.
func (x Var) IsAnonymous() bool {
	return x.Name == "_"
}

// ---- Compound terms

// NewComp creates a compound term.
func NewComp(functor string, terms ...Term) *Comp {
	return &Comp{Functor: functor, Args: terms, hasVar_: anyHasVar(terms)}
}

func anyHasVar(terms []Term) bool {
	for _, term := range terms {
		if term.hasVar() {
			return true
		}
	}
	return false
}

// Indicator is a notation for a comp, usually shown as functor/arity, e.g., f/2.
type Indicator struct {
	// Name is the compound term's functor.
	Name string
	// Arity is the compound term's number of args.
	Arity int
}

func (i Indicator) String() string {
	return fmt.Sprintf("%s/%d", i.Name, i.Arity)
}

// Indicator returns the functor's indicator.
func (c *Comp) Indicator() Indicator {
	return Indicator{c.Functor, len(c.Args)}
}

// GoalIndicator returns the indicator of a callable term. Atoms are
// treated as functors with 0 arity.
func GoalIndicator(term Term) (Indicator, bool) {
	switch t := term.(type) {
	case Atom:
		return Indicator{t.Name, 0}, true
	case *Comp:
		return t.Indicator(), true
	}
	return Indicator{}, false
}

// GoalArgs returns the arguments of a callable term.
func GoalArgs(term Term) []Term {
	if c, ok := term.(*Comp); ok {
		return c.Args
	}
	return nil
}

// ---- Lists

// NewList creates a List with the provided terms and EmptyList as tail.
func NewList(terms ...Term) Term {
	return NewIncompleteList(terms, EmptyList)
}

// NewIncompleteList creates a List with the provided terms and tail.
func NewIncompleteList(terms []Term, tail Term) Term {
	if len(terms) == 0 {
		return tail
	}
	if l, ok := tail.(*List); ok {
		tmp := make([]Term, len(terms)+len(l.Terms))
		copy(tmp, terms)
		copy(tmp[len(terms):], l.Terms)
		terms = tmp
		tail = l.Tail
	}
	hasVar := anyHasVar(terms) || tail.hasVar()
	return &List{Terms: terms, Tail: tail, hasVar_: hasVar}
}

// Slice returns a new list starting from the n-th term, inclusive.
func (l *List) Slice(n int) Term {
	if n < 0 || n > len(l.Terms) {
		panic(fmt.Sprintf("(*List).Slice: invalid index %d", n))
	}
	if n == len(l.Terms) {
		return l.Tail
	}
	if !l.hasVar_ {
		return &List{Terms: l.Terms[n:], Tail: l.Tail, hasVar_: false}
	}
	return NewIncompleteList(l.Terms[n:], l.Tail)
}

// ListTerms returns the elements of a proper list, or false if term is not
// a proper list.
func ListTerms(term Term) ([]Term, bool) {
	if term == EmptyList {
		return nil, true
	}
	l, ok := term.(*List)
	if !ok || l.Tail != EmptyList {
		return nil, false
	}
	return l.Terms, true
}

func (l *List) asString() (string, bool) {
	if l.Tail != EmptyList {
		return "", false
	}
	chars := make([]rune, len(l.Terms))
	for i, term := range l.Terms {
		if a, ok := term.(Atom); !ok {
			return "", false
		} else if ch, ok := singleRune(a.Name); !ok {
			return "", false
		} else {
			chars[i] = ch
		}
	}
	return FormatString(chars), true
}

// ---- Tuples and sets

// NewTuple creates a tuple with the provided terms.
func NewTuple(terms ...Term) *Tuple {
	return &Tuple{Terms: terms, hasVar_: anyHasVar(terms)}
}

// NewSet creates a set with the provided terms, sorted in standard order and
// without duplicates.
func NewSet(terms ...Term) *Set {
	tmp := make([]Term, len(terms))
	copy(tmp, terms)
	sort.SliceStable(tmp, func(i, j int) bool { return Less(tmp[i], tmp[j]) })
	var uniq []Term
	for i, term := range tmp {
		if i > 0 && Eq(term, tmp[i-1]) {
			continue
		}
		uniq = append(uniq, term)
	}
	return &Set{Terms: uniq, hasVar_: anyHasVar(uniq)}
}

// ---- Assoc and Dict

// NewAssoc returns an assoc with provided key and value.
func NewAssoc(key, val Term) *Assoc {
	return &Assoc{Key: key, Val: val, hasVar_: key.hasVar() || val.hasVar()}
}

// NewAssocSet returns an AssocSet with the provided assocs.
//
// It returns an error if there are any duplicate keys.
func NewAssocSet(as []*Assoc) (AssocSet, error) {
	tmp := make(AssocSet, len(as))
	copy(tmp, as)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i].Less(tmp[j]) })
	for i := 0; i < len(tmp)-1; i++ {
		if Eq(tmp[i].Key, tmp[i+1].Key) {
			return nil, fmt.Errorf("duplicate keys in AssocSet: %v", tmp[i].Key)
		}
	}
	return tmp, nil
}

// Get returns the value associated with key.
func (as AssocSet) Get(key Term) (Term, bool) {
	i, ok := as.index(key)
	if !ok {
		return nil, false
	}
	return as[i].Val, true
}

func (as AssocSet) index(key Term) (int, bool) {
	i := sort.Search(len(as), func(i int) bool { return !Less(as[i].Key, key) })
	return i, i < len(as) && Eq(key, as[i].Key)
}

// NewDict returns a dict with the provided tag and assocs.
//
// It panics if there are duplicate keys in assocs.
func NewDict(tag Term, assocs ...*Assoc) *Dict {
	assocSet, err := NewAssocSet(assocs)
	if err != nil {
		panic(err)
	}
	hasVar := tag.hasVar()
	for _, assoc := range assocSet {
		if assoc.hasVar() {
			hasVar = true
			break
		}
	}
	return &Dict{Tag: tag, Assocs: assocSet, hasVar_: hasVar}
}

// ---- Clauses

// NewClause returns a clause with the provided head and terms as body.
func NewClause(head Term, body ...Term) *Clause {
	hasVar := anyHasVar(body) || head.hasVar()
	return &Clause{Head: head, Body: body, hasVar_: hasVar}
}

// IsFact returns whether the clause has an empty body.
func (c *Clause) IsFact() bool {
	return len(c.Body) == 0
}

// ClauseNormalizeError contains data about an invalid clause.
type ClauseNormalizeError struct {
	// "head" or "body"
	TermLocation string
	Clause       *Clause
	Term         Term
}

func (err *ClauseNormalizeError) Error() string {
	if err.TermLocation == "head" {
		return fmt.Sprintf("invalid head term for clause %v: %v (must be atom or comp)", err.Clause, err.Term)
	}
	return fmt.Sprintf("invalid body term for clause %v: %v (must be atom, var or comp)", err.Clause, err.Term)
}

// Normalize checks that the clause only contains callable terms.
//
// Variables in the clause's body are converted to a 'call(X)' functor, and a
// 'true' body is dropped.
func (c *Clause) Normalize() (*Clause, error) {
	switch c.Head.(type) {
	case Atom, *Comp:
	default:
		return nil, &ClauseNormalizeError{"head", c, c.Head}
	}
	var body []Term
	for _, term := range c.Body {
		switch t := term.(type) {
		case Atom:
			if t == True && len(c.Body) == 1 {
				continue
			}
			body = append(body, t)
		case Var:
			body = append(body, NewComp("call", t))
		case *Comp:
			body = append(body, t)
		default:
			return nil, &ClauseNormalizeError{"body", c, term}
		}
	}
	return NewClause(c.Head, body...), nil
}

// ---- Conjunctions

// Conjunction joins goals with ','/2, returning 'true' for an empty list.
func Conjunction(goals ...Term) Term {
	if len(goals) == 0 {
		return True
	}
	term := goals[len(goals)-1]
	for i := len(goals) - 2; i >= 0; i-- {
		term = NewComp(",", goals[i], term)
	}
	return term
}

// Disjunction joins goals with ';'/2, returning 'fail' for an empty list.
func Disjunction(goals ...Term) Term {
	if len(goals) == 0 {
		return Fail
	}
	term := goals[len(goals)-1]
	for i := len(goals) - 2; i >= 0; i-- {
		term = NewComp(";", goals[i], term)
	}
	return term
}

// Goals splits a conjunction into its goals.
func Goals(term Term) []Term {
	var goals []Term
	for {
		c, ok := term.(*Comp)
		if !ok || c.Indicator() != (Indicator{",", 2}) {
			return append(goals, term)
		}
		goals = append(goals, Goals(c.Args[0])...)
		term = c.Args[1]
	}
}

// ---- Expansion

// Expand returns the canonical complex form of an abstract term. Other terms
// are returned unchanged.
//
//	[a, b|T]       => '.'(a, '.'(b, T))
//	tuple (a, b)   => '$tuple'(a, b)
//	set {a, b}     => '$set'([a, b])
//	t{k: v}        => '$dict'(t, [k-v])
func Expand(term Term) Term {
	switch t := term.(type) {
	case *List:
		return NewComp(ListFunctor, t.Terms[0], t.Slice(1))
	case *Tuple:
		return NewComp(TupleFunctor, t.Terms...)
	case *Set:
		return NewComp(SetFunctor, NewList(t.Terms...))
	case *Assoc:
		return NewComp(":", t.Key, t.Val)
	case *Dict:
		pairs := make([]Term, len(t.Assocs))
		for i, assoc := range t.Assocs {
			pairs[i] = NewComp(PairFunctor, assoc.Key, assoc.Val)
		}
		return NewComp(DictFunctor, t.Tag, NewList(pairs...))
	}
	return term
}

// ---- vars()

// Vars returns a set with all term variables, in insertion order.
func Vars(term Term) []Var {
	if !term.hasVar() {
		return nil
	}
	return term.vars(make(map[Var]struct{}), nil)
}

func (t Atom) vars(seen map[Var]struct{}, xs []Var) []Var  { return xs }
func (t Int) vars(seen map[Var]struct{}, xs []Var) []Var   { return xs }
func (t Float) vars(seen map[Var]struct{}, xs []Var) []Var { return xs }

func (t Var) vars(seen map[Var]struct{}, xs []Var) []Var {
	if _, ok := seen[t]; ok {
		return xs
	}
	seen[t] = struct{}{}
	return append(xs, t)
}

func termsVars(terms []Term, seen map[Var]struct{}, xs []Var) []Var {
	for _, term := range terms {
		xs = term.vars(seen, xs)
	}
	return xs
}

func (t *Comp) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	return termsVars(t.Args, seen, xs)
}

func (t *List) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	xs = termsVars(t.Terms, seen, xs)
	return t.Tail.vars(seen, xs)
}

func (t *Tuple) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	return termsVars(t.Terms, seen, xs)
}

func (t *Set) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	return termsVars(t.Terms, seen, xs)
}

func (t *Assoc) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	xs = t.Key.vars(seen, xs)
	return t.Val.vars(seen, xs)
}

func (t *Dict) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	xs = t.Tag.vars(seen, xs)
	for _, assoc := range t.Assocs {
		xs = assoc.vars(seen, xs)
	}
	return xs
}

// Vars returns a set with all variables, in insertion order.
func (c *Clause) Vars() []Var {
	if !c.hasVar_ {
		return nil
	}
	seen := make(map[Var]struct{})
	xs := c.Head.vars(seen, nil)
	return termsVars(c.Body, seen, xs)
}

// ---- hasVar()

func (t Atom) hasVar() bool   { return false }
func (t Int) hasVar() bool    { return false }
func (t Float) hasVar() bool  { return false }
func (t Var) hasVar() bool    { return true }
func (t *Comp) hasVar() bool  { return t.hasVar_ }
func (t *List) hasVar() bool  { return t.hasVar_ }
func (t *Tuple) hasVar() bool { return t.hasVar_ }
func (t *Set) hasVar() bool   { return t.hasVar_ }
func (t *Assoc) hasVar() bool { return t.hasVar_ }
func (t *Dict) hasVar() bool  { return t.hasVar_ }

// IsGround returns whether term has no variables.
func IsGround(term Term) bool {
	return !term.hasVar()
}

// ---- String()

func (t Atom) String() string {
	return FormatAtom(t.Name)
}

func (t Int) String() string {
	return strconv.Itoa(t.Value)
}

func (t Float) String() string {
	s := strconv.FormatFloat(t.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

func (t Var) String() string {
	if t.suffix > 0 {
		return fmt.Sprintf("%s_%d_", t.Name, t.suffix)
	}
	return t.Name
}

func joinTerms(terms []Term) string {
	xs := make([]string, len(terms))
	for i, term := range terms {
		xs[i] = term.String()
	}
	return strings.Join(xs, ", ")
}

func (t *Comp) String() string {
	return fmt.Sprintf("%s(%s)", FormatAtom(t.Functor), joinTerms(t.Args))
}

func (t *List) String() string {
	if s, ok := t.asString(); ok {
		return s
	}
	xs := joinTerms(t.Terms)
	if t.Tail == EmptyList {
		return fmt.Sprintf("[%s]", xs)
	}
	return fmt.Sprintf("[%s|%v]", xs, t.Tail)
}

func (t *Tuple) String() string {
	return fmt.Sprintf("(%s)", joinTerms(t.Terms))
}

func (t *Set) String() string {
	return fmt.Sprintf("{%s}", joinTerms(t.Terms))
}

func (t *Assoc) String() string {
	return fmt.Sprintf("%v:%v", t.Key, t.Val)
}

func (t *Dict) String() string {
	assocs := make([]string, len(t.Assocs))
	for i, assoc := range t.Assocs {
		assocs[i] = assoc.String()
	}
	return fmt.Sprintf("%v{%s}", t.Tag, strings.Join(assocs, ", "))
}

func (c *Clause) String() string {
	head := c.Head.String()
	if len(c.Body) == 0 {
		return head + "."
	}
	body := make([]string, len(c.Body))
	for i, comp := range c.Body {
		body[i] = comp.String()
	}
	return fmt.Sprintf("%s :-\n  %s.", head, strings.Join(body, ",\n  "))
}

// ---- short()

func (t Atom) short() string  { return t.String() }
func (t Int) short() string   { return t.String() }
func (t Float) short() string { return t.String() }
func (t Var) short() string   { return t.String() }

func (t *Comp) short() string {
	return fmt.Sprintf("%s/%d", t.Functor, len(t.Args))
}

func (t *List) short() string {
	if t.Tail == EmptyList {
		return fmt.Sprintf("[,%d]", len(t.Terms))
	}
	return fmt.Sprintf("[,%d|%s]", len(t.Terms), t.Tail.short())
}

func (t *Tuple) short() string { return fmt.Sprintf("(,%d)", len(t.Terms)) }
func (t *Set) short() string   { return fmt.Sprintf("{,%d}", len(t.Terms)) }

func (t *Assoc) short() string {
	return fmt.Sprintf("%s:%s", t.Key.short(), t.Val.short())
}

func (t *Dict) short() string {
	return fmt.Sprintf("%s{,%d}", t.Tag.short(), len(t.Assocs))
}

// Short returns a compact description of term, used in error messages.
func Short(term Term) string {
	return term.short()
}
