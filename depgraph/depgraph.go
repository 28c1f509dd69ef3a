// Package depgraph builds the call graph between predicate signatures of a knowledge base,
// and finds which of them are part of a cycle.
//
// Nodes are kept in an arena and refer to each other by NodeID, so that cycles between
// predicates don't become cycles between pointers.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/logic"
)

// NodeID is the index of a node within its graph.
type NodeID int

// Node is a predicate family and its call edges.
type Node struct {
	ID           NodeID
	Signature    kb.Signature
	Clauses      []*kb.Predicate
	Dependencies []NodeID
	Dependents   []NodeID
	// IsCyclical is set when the node can reach itself through its dependencies.
	IsCyclical bool
	// IsInlined is set when the node's clauses were inlined into their callers.
	IsInlined bool
}

// Graph is the dependency graph of a knowledge base at a given generation.
type Graph struct {
	kb         *kb.KnowledgeBase
	nodes      []*Node
	index      map[kb.Signature]NodeID
	generation uint64
	logger     *zap.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger for rebuild summaries.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// New builds the dependency graph of base.
func New(base *kb.KnowledgeBase, opts ...Option) *Graph {
	g := &Graph{kb: base, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	g.Rebuild()
	return g
}

// Rebuild recreates every node from the current knowledge base.
func (g *Graph) Rebuild() {
	g.nodes = nil
	g.index = make(map[kb.Signature]NodeID)
	g.generation = g.kb.Generation()
	for _, sig := range g.kb.Signatures() {
		id := NodeID(len(g.nodes))
		g.nodes = append(g.nodes, &Node{ID: id, Signature: sig, Clauses: g.kb.Clauses(sig)})
		g.index[sig] = id
	}
	var numEdges int
	for _, node := range g.nodes {
		deps := make(map[NodeID]bool)
		for _, p := range node.Clauses {
			for _, sig := range g.CalculateDependencies(p) {
				if id, ok := g.index[sig]; ok {
					deps[id] = true
				}
			}
		}
		node.Dependencies = sortedIDs(deps)
		numEdges += len(node.Dependencies)
		for _, dep := range node.Dependencies {
			g.nodes[dep].Dependents = append(g.nodes[dep].Dependents, node.ID)
		}
	}
	var numCyclical int
	for _, node := range g.nodes {
		g.markCycle(node)
		if node.IsCyclical {
			numCyclical++
		}
	}
	g.logger.Debug("dependency graph rebuilt",
		zap.Uint64("generation", g.generation),
		zap.Int("nodes", len(g.nodes)),
		zap.Int("edges", numEdges),
		zap.Int("cyclical", numCyclical),
		zap.Int("roots", len(g.RootNodes())),
		zap.Int("leaves", len(g.LeafNodes())))
}

func sortedIDs(set map[NodeID]bool) []NodeID {
	ids := make([]NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// markCycle runs a DFS from root, with its own visited set, and marks root as cyclical if it
// reaches itself.
func (g *Graph) markCycle(root *Node) {
	visited := make(map[NodeID]bool)
	stack := append([]NodeID(nil), root.Dependencies...)
	for len(stack) > 0 {
		n := len(stack)
		id := stack[n-1]
		stack = stack[:n-1]
		if id == root.ID {
			root.IsCyclical = true
			return
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, g.nodes[id].Dependencies...)
	}
}

// Stale returns whether the knowledge base changed since the last rebuild.
func (g *Graph) Stale() bool {
	return g.generation != g.kb.Generation()
}

// Generation returns the knowledge base generation the graph was built from.
func (g *Graph) Generation() uint64 {
	return g.generation
}

// ---- Dependencies

// CalculateDependencies returns the signatures called by the body of p, looking into
// control constructs and meta-calls with known goals. An unqualified call depends on every
// visible module that defines it.
func (g *Graph) CalculateDependencies(p *kb.Predicate) []kb.Signature {
	scope := g.kb.Scope(p.Module)
	seen := make(map[kb.Signature]bool)
	var sigs []kb.Signature
	for _, goal := range p.Clause.Body {
		for _, call := range Calls(goal) {
			found, _ := g.kb.Lookup(call, scope)
			for _, sig := range found {
				if !seen[sig] {
					seen[sig] = true
					sigs = append(sigs, sig)
				}
			}
		}
	}
	return sigs
}

// Calls returns the goals called from within a body goal, unwrapping control constructs
// and meta-calls. Goals under a module qualification keep it.
func Calls(goal logic.Term) []logic.Term {
	return calls(goal, "", nil)
}

func qualify(module string, goal logic.Term) logic.Term {
	if module == "" {
		return goal
	}
	return logic.NewComp(":", logic.Atom{Name: module}, goal)
}

func calls(goal logic.Term, module string, acc []logic.Term) []logic.Term {
	if m, inner := kb.Unqualify(goal); m != "" {
		return calls(inner, m, acc)
	}
	c, ok := goal.(*logic.Comp)
	if !ok {
		if _, ok := goal.(logic.Atom); ok {
			return append(acc, qualify(module, goal))
		}
		// Vars and other terms are not known until runtime.
		return acc
	}
	switch c.Indicator() {
	case logic.Indicator{Name: ",", Arity: 2}, logic.Indicator{Name: ";", Arity: 2},
		logic.Indicator{Name: "->", Arity: 2}, logic.Indicator{Name: "forall", Arity: 2}:
		acc = calls(c.Args[0], module, acc)
		return calls(c.Args[1], module, acc)
	case logic.Indicator{Name: "\\+", Arity: 1}, logic.Indicator{Name: "not", Arity: 1},
		logic.Indicator{Name: "once", Arity: 1}, logic.Indicator{Name: "ignore", Arity: 1}:
		return calls(c.Args[0], module, acc)
	case logic.Indicator{Name: "findall", Arity: 3}:
		return calls(c.Args[1], module, acc)
	}
	if c.Functor == "call" && len(c.Args) > 0 {
		if inner, ok := AddArgs(c.Args[0], c.Args[1:]...); ok {
			return calls(inner, module, acc)
		}
		return acc
	}
	return append(acc, qualify(module, goal))
}

// AddArgs appends args to a callable goal, as in call(Goal, Args...).
func AddArgs(goal logic.Term, args ...logic.Term) (logic.Term, bool) {
	if m, inner := kb.Unqualify(goal); m != "" {
		inner, ok := AddArgs(inner, args...)
		return qualify(m, inner), ok
	}
	switch g := goal.(type) {
	case logic.Atom:
		if len(args) == 0 {
			return g, true
		}
		return logic.NewComp(g.Name, args...), true
	case *logic.Comp:
		if len(args) == 0 {
			return g, true
		}
		all := make([]logic.Term, 0, len(g.Args)+len(args))
		all = append(append(all, g.Args...), args...)
		return logic.NewComp(g.Functor, all...), true
	}
	return nil, false
}

// ---- Access

// Node returns the node for sig.
func (g *Graph) Node(sig kb.Signature) (*Node, bool) {
	id, ok := g.index[sig]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// NodeByID returns the node with id.
func (g *Graph) NodeByID(id NodeID) *Node {
	return g.nodes[id]
}

// Nodes returns every node, ordered by signature.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// RootNodes returns the nodes that are not called by any other node.
func (g *Graph) RootNodes() []*Node {
	var roots []*Node
	for _, node := range g.nodes {
		if len(node.Dependents) == 0 {
			roots = append(roots, node)
		}
	}
	return roots
}

// LeafNodes returns the nodes that don't call any other node.
func (g *Graph) LeafNodes() []*Node {
	var leaves []*Node
	for _, node := range g.nodes {
		if len(node.Dependencies) == 0 {
			leaves = append(leaves, node)
		}
	}
	return leaves
}

func (g *Graph) String() string {
	var b strings.Builder
	for _, node := range g.nodes {
		fmt.Fprintf(&b, "%v (%d clauses)", node.Signature, len(node.Clauses))
		if node.IsCyclical {
			b.WriteString(" cyclical")
		}
		if node.IsInlined {
			b.WriteString(" inlined")
		}
		b.WriteString("\n")
		for _, dep := range node.Dependencies {
			fmt.Fprintf(&b, "  -> %v\n", g.nodes[dep].Signature)
		}
	}
	return b.String()
}
