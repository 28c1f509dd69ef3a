// Package program decodes logic programs written as YAML documents.
//
// A program has a list of modules, each with its declarations and clauses, and a list of
// queries. Clauses at the top level belong to the default module.
//
//	modules:
//	  - name: lists
//	    exports: [member/2]
//	    clauses:
//	      - {member: [X, {$list: [[X], _]}]}
//	      - head: {member: [X, {$list: [[_], T]}]}
//	        body:
//	          - {member: [X, T]}
//	  - name: user
//	    imports: [lists]
//	    dynamic: [seen/1]
//	queries:
//	  - [{member: [X, [a, b]]}]
//
// A clause is either a term, read as a fact, or a mapping with exactly the keys "head" and
// "body". Terms are decoded by DecodeTerm.
package program

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
)

// Program is a decoded YAML program.
type Program struct {
	Modules []*Module
	Queries []*Query
}

// Module has the declarations and clauses of a module.
type Module struct {
	Name    string
	Imports []string
	Exports []logic.Indicator
	Dynamic []logic.Indicator
	// Inline predicates may be expanded into their callers.
	Inline []logic.Indicator
	// Variadic predicates receive extra call args as a list in their last param.
	Variadic []logic.Indicator
	Clauses  []*logic.Clause
}

// Query is a conjunction of goals to be run within a module.
type Query struct {
	Module string
	Goals  []logic.Term
}

type rawProgram struct {
	Modules []rawModule `yaml:"modules"`
	Clauses []yaml.Node `yaml:"clauses"`
	Queries []yaml.Node `yaml:"queries"`
}

type rawModule struct {
	Name     string      `yaml:"name"`
	Imports  []string    `yaml:"imports"`
	Exports  []string    `yaml:"exports"`
	Dynamic  []string    `yaml:"dynamic"`
	Inline   []string    `yaml:"inline"`
	Variadic []string    `yaml:"variadic"`
	Clauses  []yaml.Node `yaml:"clauses"`
}

// Load reads and decodes a program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Decode(data)
	if err != nil {
		return nil, errors.New("%s: %v", path, err)
	}
	return p, nil
}

// Decode decodes a program from YAML. Unknown fields are an error.
func Decode(data []byte) (*Program, error) {
	var raw rawProgram
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}
	p := new(Program)
	if len(raw.Clauses) > 0 {
		clauses, err := decodeClauses(raw.Clauses)
		if err != nil {
			return nil, err
		}
		p.Modules = append(p.Modules, &Module{Name: kb.DefaultModule, Clauses: clauses})
	}
	for _, rm := range raw.Modules {
		m, err := decodeModule(rm)
		if err != nil {
			return nil, err
		}
		p.Modules = append(p.Modules, m)
	}
	for i := range raw.Queries {
		q, err := decodeQuery(&raw.Queries[i])
		if err != nil {
			return nil, err
		}
		p.Queries = append(p.Queries, q)
	}
	return p, nil
}

func decodeModule(rm rawModule) (*Module, error) {
	m := &Module{Name: rm.Name, Imports: rm.Imports}
	if m.Name == "" {
		m.Name = kb.DefaultModule
	}
	var err error
	if m.Exports, err = parseIndicators(rm.Exports); err != nil {
		return nil, errors.New("module %s: exports: %v", m.Name, err)
	}
	if m.Dynamic, err = parseIndicators(rm.Dynamic); err != nil {
		return nil, errors.New("module %s: dynamic: %v", m.Name, err)
	}
	if m.Inline, err = parseIndicators(rm.Inline); err != nil {
		return nil, errors.New("module %s: inline: %v", m.Name, err)
	}
	if m.Variadic, err = parseIndicators(rm.Variadic); err != nil {
		return nil, errors.New("module %s: variadic: %v", m.Name, err)
	}
	for _, ind := range m.Variadic {
		if ind.Arity == 0 {
			return nil, errors.New("module %s: variadic: %v must have a param for the rest args", m.Name, ind)
		}
	}
	if m.Clauses, err = decodeClauses(rm.Clauses); err != nil {
		return nil, errors.New("module %s: %v", m.Name, err)
	}
	return m, nil
}

func parseIndicators(texts []string) ([]logic.Indicator, error) {
	inds := make([]logic.Indicator, 0, len(texts))
	for _, text := range texts {
		ind, err := ParseIndicator(text)
		if err != nil {
			return nil, err
		}
		inds = append(inds, ind)
	}
	return inds, nil
}

func decodeClauses(nodes []yaml.Node) ([]*logic.Clause, error) {
	clauses := make([]*logic.Clause, len(nodes))
	for i := range nodes {
		c, err := DecodeClause(&nodes[i])
		if err != nil {
			return nil, err
		}
		clauses[i] = c
	}
	return clauses, nil
}

// DecodeClause decodes a fact term, or a rule with "head" and "body" keys.
func DecodeClause(node *yaml.Node) (*logic.Clause, error) {
	if head, body, ok := ruleNodes(node); ok {
		h, err := DecodeTerm(head)
		if err != nil {
			return nil, err
		}
		goals, err := decodeGoals(body)
		if err != nil {
			return nil, err
		}
		return checkClause(logic.NewClause(h, goals...))
	}
	h, err := DecodeTerm(node)
	if err != nil {
		return nil, err
	}
	return checkClause(logic.NewClause(h))
}

// ruleNodes returns the head and body of a rule mapping.
func ruleNodes(node *yaml.Node) (head, body *yaml.Node, ok bool) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 4 {
		return nil, nil, false
	}
	for i := 0; i < 4; i += 2 {
		switch node.Content[i].Value {
		case "head":
			head = node.Content[i+1]
		case "body":
			body = node.Content[i+1]
		}
	}
	return head, body, head != nil && body != nil
}

func checkClause(c *logic.Clause) (*logic.Clause, error) {
	norm, err := c.Normalize()
	if err != nil {
		return nil, errors.Errorf(errors.InvalidClause, c, err)
	}
	return norm, nil
}

func decodeQuery(node *yaml.Node) (*Query, error) {
	if node.Kind != yaml.MappingNode || !hasKey(node, "goals") {
		goals, err := decodeGoals(node)
		if err != nil {
			return nil, err
		}
		return &Query{Goals: goals}, nil
	}
	q := new(Query)
	for i := 0; i < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "module":
			if err := value.Decode(&q.Module); err != nil {
				return nil, err
			}
		case "goals":
			goals, err := decodeGoals(value)
			if err != nil {
				return nil, err
			}
			q.Goals = goals
		default:
			return nil, errors.New("line %d: field %s not found in query", key.Line, key.Value)
		}
	}
	return q, nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
