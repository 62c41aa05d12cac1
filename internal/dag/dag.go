// Package dag provides the bipartite graph view of a flow: dataset nodes
// and recipe nodes, with dataset->recipe edges for reads and
// recipe->dataset edges for writes. It supports topological sorting,
// cycle detection, disconnected-component analysis, and path queries.
//
// A Graph is a snapshot derived from a Flow; if the Flow changes, rebuild
// the graph rather than patching it.
package dag

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapflow/internal/flow"
)

// NodeKind distinguishes the two node families.
type NodeKind string

const (
	NodeDataset NodeKind = "dataset"
	NodeRecipe  NodeKind = "recipe"
)

// Node is one graph node: a (name, kind) pair.
type Node struct {
	Name string
	Kind NodeKind
}

func (n Node) id() string {
	return string(n.Kind) + ":" + n.Name
}

// CycleError reports the cycles that prevented a topological sort.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	if len(e.Cycles) == 0 {
		return "cycle detected"
	}
	return "cycle detected: " + strings.Join(e.Cycles[0], " -> ")
}

// Graph is a directed graph with insertion-ordered nodes and edges, so
// every traversal is deterministic.
type Graph struct {
	nodes []Node
	index map[string]int
	succ  map[string][]string
	pred  map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
	}
}

// Build derives the graph for a flow: all datasets, then all recipes,
// then one edge per recipe input and output, in declaration order.
func Build(f *flow.Flow) *Graph {
	g := NewGraph()
	for _, d := range f.Datasets {
		g.AddNode(Node{Name: d.Name, Kind: NodeDataset})
	}
	for _, r := range f.Recipes {
		g.AddNode(Node{Name: r.Name, Kind: NodeRecipe})
	}
	for _, r := range f.Recipes {
		rn := Node{Name: r.Name, Kind: NodeRecipe}
		for _, in := range r.Inputs {
			_ = g.AddEdge(Node{Name: in, Kind: NodeDataset}, rn)
		}
		for _, out := range r.Outputs {
			_ = g.AddEdge(rn, Node{Name: out, Kind: NodeDataset})
		}
	}
	return g
}

// AddNode adds a node; adding an existing node is a no-op.
func (g *Graph) AddNode(n Node) {
	id := n.id()
	if _, exists := g.index[id]; exists {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.succ[id] = []string{}
	g.pred[id] = []string{}
}

// AddEdge adds a directed edge. Both endpoints must exist; self-loops are
// rejected. Duplicate edges are ignored, preserving first-insertion order
// for path tie-breaking.
func (g *Graph) AddEdge(from, to Node) error {
	fid, tid := from.id(), to.id()
	if _, ok := g.index[fid]; !ok {
		return fmt.Errorf("node %q does not exist", from.Name)
	}
	if _, ok := g.index[tid]; !ok {
		return fmt.Errorf("node %q does not exist", to.Name)
	}
	if fid == tid {
		return fmt.Errorf("self-loop on %q", from.Name)
	}
	if !contains(g.succ[fid], tid) {
		g.succ[fid] = append(g.succ[fid], tid)
	}
	if !contains(g.pred[tid], fid) {
		g.pred[tid] = append(g.pred[tid], fid)
	}
	return nil
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.succ {
		count += len(children)
	}
	return count
}

func (g *Graph) nodeByID(id string) Node {
	return g.nodes[g.index[id]]
}

// TopologicalSort returns the nodes in dependency order using Kahn's
// algorithm. On a cycle it fails with a *CycleError rather than returning
// a partial order.
func (g *Graph) TopologicalSort() ([]Node, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n.id()] = len(g.pred[n.id()])
	}

	var queue []string
	for _, n := range g.nodes {
		if indegree[n.id()] == 0 {
			queue = append(queue, n.id())
		}
	}

	var order []Node
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, g.nodeByID(id))
		for _, child := range g.succ[id] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, &CycleError{Cycles: g.DetectCycles()}
	}
	return order, nil
}

// DetectCycles finds every distinct cycle using three-color DFS and
// returns each as an ordered list of node names, closed with the starting
// name. An acyclic graph yields an empty result.
func (g *Graph) DetectCycles() [][]string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycles [][]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range g.succ[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				// Back edge: the cycle is the stack segment from the
				// child to the current node.
				start := 0
				for i, s := range stack {
					if s == child {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(stack)-start+1)
				for _, s := range stack[start:] {
					cycle = append(cycle, g.nodeByID(s).Name)
				}
				cycle = append(cycle, g.nodeByID(child).Name)
				cycles = append(cycles, cycle)
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, n := range g.nodes {
		if color[n.id()] == white {
			dfs(n.id())
		}
	}
	return cycles
}

// Components returns the connected components, treating edges as
// undirected. A dataset feeding nothing, or a recipe island, is its own
// component. Components and their members follow insertion order.
func (g *Graph) Components() [][]Node {
	visited := make(map[string]bool, len(g.nodes))
	var components [][]Node

	for _, n := range g.nodes {
		if visited[n.id()] {
			continue
		}
		var comp []Node
		queue := []string{n.id()}
		visited[n.id()] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			comp = append(comp, g.nodeByID(id))
			for _, next := range append(append([]string{}, g.succ[id]...), g.pred[id]...) {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

// Path returns the shortest directed path between two nodes, found by
// BFS. Ties are broken by edge insertion order, so results are stable.
// It returns nil when no path exists.
func (g *Graph) Path(from, to Node) []Node {
	fid, tid := from.id(), to.id()
	if _, ok := g.index[fid]; !ok {
		return nil
	}
	if _, ok := g.index[tid]; !ok {
		return nil
	}
	if fid == tid {
		return []Node{g.nodeByID(fid)}
	}

	parent := map[string]string{fid: ""}
	queue := []string{fid}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range g.succ[id] {
			if _, seen := parent[child]; seen {
				continue
			}
			parent[child] = id
			if child == tid {
				return g.reconstruct(parent, tid)
			}
			queue = append(queue, child)
		}
	}
	return nil
}

func (g *Graph) reconstruct(parent map[string]string, tid string) []Node {
	var ids []string
	for id := tid; id != ""; id = parent[id] {
		ids = append(ids, id)
	}
	path := make([]Node, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		path = append(path, g.nodeByID(ids[i]))
	}
	return path
}

// Roots returns nodes with no incoming edges, in insertion order.
func (g *Graph) Roots() []Node {
	var roots []Node
	for _, n := range g.nodes {
		if len(g.pred[n.id()]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Leaves returns nodes with no outgoing edges, in insertion order.
func (g *Graph) Leaves() []Node {
	var leaves []Node
	for _, n := range g.nodes {
		if len(g.succ[n.id()]) == 0 {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
