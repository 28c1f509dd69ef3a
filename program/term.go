package program

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/logic"
)

// Functors with a special meaning when used as the single key of a mapping.
const (
	listKey  = "$list"
	tupleKey = "$tuple"
	setKey   = "$set"
	dictKey  = "$dict"
)

// DecodeTerm converts a YAML node into a term.
//
//	a, 'A', "x y"        atoms (quoted scalars are always atoms)
//	X, _, _Acc           vars
//	1, -2, 1.5           numbers
//	[a, b]               list
//	{f: [a, X]}          compound term f(a, X)
//	{f: a}               compound term f(a)
//	{f: []}              atom f
//	{$list: [[a], T]}    incomplete list [a|T]
//	{$tuple: [a, b]}     tuple (a, b)
//	{$set: [a, b]}       set {a, b}
//	{$dict: [t, {k: v}]} dict t{k: v}
func DecodeTerm(node *yaml.Node) (logic.Term, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) != 1 {
			return nil, errors.New("line %d: expected a single term", node.Line)
		}
		return DecodeTerm(node.Content[0])
	case yaml.AliasNode:
		return nil, errors.New("line %d: aliases are not supported", node.Line)
	case yaml.ScalarNode:
		return decodeScalar(node)
	case yaml.SequenceNode:
		terms, err := decodeTerms(node.Content)
		if err != nil {
			return nil, err
		}
		return logic.NewList(terms...), nil
	case yaml.MappingNode:
		return decodeMapping(node)
	}
	return nil, errors.New("line %d: unexpected node kind %v", node.Line, node.Kind)
}

func decodeTerms(nodes []*yaml.Node) ([]logic.Term, error) {
	terms := make([]logic.Term, len(nodes))
	for i, node := range nodes {
		term, err := DecodeTerm(node)
		if err != nil {
			return nil, err
		}
		terms[i] = term
	}
	return terms, nil
}

func decodeScalar(node *yaml.Node) (logic.Term, error) {
	if node.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
		return logic.Atom{Name: node.Value}, nil
	}
	switch node.ShortTag() {
	case "!!int":
		var n int
		if err := node.Decode(&n); err != nil {
			return nil, errors.New("line %d: %v", node.Line, err)
		}
		return logic.Int{Value: n}, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, errors.New("line %d: %v", node.Line, err)
		}
		return logic.Float{Value: f}, nil
	case "!!null":
		return nil, errors.New("line %d: null is not a term", node.Line)
	}
	if logic.IsVar(node.Value) {
		return logic.NewVar(node.Value), nil
	}
	return logic.Atom{Name: node.Value}, nil
}

func decodeMapping(node *yaml.Node) (logic.Term, error) {
	if len(node.Content) != 2 {
		return nil, errors.New("line %d: compound term must have a single key, got %d", node.Line, len(node.Content)/2)
	}
	key, value := node.Content[0], node.Content[1]
	if key.Kind != yaml.ScalarNode {
		return nil, errors.New("line %d: functor must be a scalar", key.Line)
	}
	if key.Value == dictKey {
		return decodeDict(value)
	}
	var args []logic.Term
	if value.Kind == yaml.SequenceNode {
		var err error
		if args, err = decodeTerms(value.Content); err != nil {
			return nil, err
		}
	} else {
		arg, err := DecodeTerm(value)
		if err != nil {
			return nil, err
		}
		args = []logic.Term{arg}
	}
	switch key.Value {
	case listKey:
		return decodeIncompleteList(key, args)
	case tupleKey:
		return logic.NewTuple(args...), nil
	case setKey:
		return logic.NewSet(args...), nil
	}
	if len(args) == 0 {
		return logic.Atom{Name: key.Value}, nil
	}
	return logic.NewComp(key.Value, args...), nil
}

func decodeIncompleteList(key *yaml.Node, args []logic.Term) (logic.Term, error) {
	if len(args) != 2 {
		return nil, errors.New("line %d: %s expects [elements, tail]", key.Line, listKey)
	}
	elems, ok := logic.ListTerms(args[0])
	if !ok || len(elems) == 0 {
		return nil, errors.New("line %d: %s expects a non-empty list of elements", key.Line, listKey)
	}
	return logic.NewIncompleteList(elems, args[1]), nil
}

func decodeDict(value *yaml.Node) (logic.Term, error) {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 2 || value.Content[1].Kind != yaml.MappingNode {
		return nil, errors.New("line %d: %s expects [tag, {key: value, ...}]", value.Line, dictKey)
	}
	tag, err := DecodeTerm(value.Content[0])
	if err != nil {
		return nil, err
	}
	pairs := value.Content[1].Content
	assocs := make([]*logic.Assoc, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, err := DecodeTerm(pairs[i])
		if err != nil {
			return nil, err
		}
		v, err := DecodeTerm(pairs[i+1])
		if err != nil {
			return nil, err
		}
		assocs = append(assocs, logic.NewAssoc(k, v))
	}
	set, err := logic.NewAssocSet(assocs)
	if err != nil {
		return nil, errors.New("line %d: %v", value.Line, err)
	}
	return logic.NewDict(tag, set...), nil
}

// ParseTerm decodes a term from YAML text, like "{color: [X]}".
func ParseTerm(text string) (logic.Term, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, err
	}
	if node.Kind == 0 {
		return nil, errors.New("empty term")
	}
	return DecodeTerm(&node)
}

// ParseQuery decodes a conjunction of goals from YAML text. A sequence is read as the list
// of goals, and any other node as a single goal.
func ParseQuery(text string) ([]logic.Term, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, err
	}
	if node.Kind == 0 {
		return nil, errors.New("empty query")
	}
	return decodeGoals(node.Content[0])
}

func decodeGoals(node *yaml.Node) ([]logic.Term, error) {
	if node.Kind != yaml.SequenceNode {
		goal, err := DecodeTerm(node)
		if err != nil {
			return nil, err
		}
		return []logic.Term{goal}, nil
	}
	return decodeTerms(node.Content)
}

// ParseIndicator parses "name/arity".
func ParseIndicator(text string) (logic.Indicator, error) {
	i := strings.LastIndex(text, "/")
	if i <= 0 {
		return logic.Indicator{}, errors.New("invalid indicator %q: expected name/arity", text)
	}
	arity, err := strconv.Atoi(text[i+1:])
	if err != nil || arity < 0 {
		return logic.Indicator{}, errors.New("invalid indicator %q: arity must be a non-negative integer", text)
	}
	return logic.Indicator{Name: text[:i], Arity: arity}, nil
}
