package dag

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapflow/internal/flow"
)

func ds(name string) Node {
	return Node{Name: name, Kind: NodeDataset}
}

func rc(name string) Node {
	return Node{Name: name, Kind: NodeRecipe}
}

// buildLinear wires a -> r1 -> b -> r2 -> c.
func buildLinear(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range []Node{ds("a"), rc("r1"), ds("b"), rc("r2"), ds("c")} {
		g.AddNode(n)
	}
	edges := [][2]Node{
		{ds("a"), rc("r1")},
		{rc("r1"), ds("b")},
		{ds("b"), rc("r2")},
		{rc("r2"), ds("c")},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%v, %v): %v", e[0], e[1], err)
		}
	}
	return g
}

func TestGraph_BuildFromFlow(t *testing.T) {
	f := flow.New("test")
	f.AddDataset(&flow.Dataset{Name: "in", Role: flow.RoleInput})
	f.AddRecipe(&flow.Recipe{
		Name: "compute_out_1", Kind: flow.RecipePrepare,
		Inputs: []string{"in"}, Outputs: []string{"out"},
	})

	g := Build(f)

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("sorted %d nodes, want 3", len(order))
	}
	if order[0].Name != "in" || order[1].Name != "compute_out_1" || order[2].Name != "out" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode(ds("a"))

	if err := g.AddEdge(ds("a"), rc("missing")); err == nil {
		t.Error("expected error for nonexistent target node")
	}
	if err := g.AddEdge(rc("missing"), ds("a")); err == nil {
		t.Error("expected error for nonexistent source node")
	}
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	g := NewGraph()
	g.AddNode(ds("a"))

	if err := g.AddEdge(ds("a"), ds("a")); err == nil {
		t.Error("expected error for self-loop")
	}
}

func TestGraph_TopologicalSort_Deterministic(t *testing.T) {
	g := buildLinear(t)
	first, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	second, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("order differs at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestGraph_CycleDetection(t *testing.T) {
	// A recipe whose output feeds back into its own input.
	g := NewGraph()
	g.AddNode(ds("a"))
	g.AddNode(rc("r"))
	if err := g.AddEdge(ds("a"), rc("r")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(rc("r"), ds("a")); err != nil {
		t.Fatal(err)
	}

	cycles := g.DetectCycles()
	if len(cycles) != 1 {
		t.Fatalf("DetectCycles found %d cycles, want 1: %v", len(cycles), cycles)
	}
	cycle := cycles[0]
	if !containsName(cycle, "a") || !containsName(cycle, "r") {
		t.Errorf("cycle %v should contain both a and r", cycle)
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle %v should close on its starting node", cycle)
	}

	_, err := g.TopologicalSort()
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("TopologicalSort error = %v, want *CycleError", err)
	}
	if len(cerr.Cycles) != 1 {
		t.Errorf("CycleError carries %d cycles, want 1", len(cerr.Cycles))
	}
}

func TestGraph_DetectCycles_Acyclic(t *testing.T) {
	g := buildLinear(t)
	if cycles := g.DetectCycles(); len(cycles) != 0 {
		t.Errorf("DetectCycles = %v, want none", cycles)
	}
}

func TestGraph_Components(t *testing.T) {
	g := buildLinear(t)
	// An island dataset nothing references.
	g.AddNode(ds("orphan"))

	comps := g.Components()
	if len(comps) != 2 {
		t.Fatalf("Components found %d, want 2", len(comps))
	}
	if len(comps[0]) != 5 {
		t.Errorf("main component has %d nodes, want 5", len(comps[0]))
	}
	if len(comps[1]) != 1 || comps[1][0].Name != "orphan" {
		t.Errorf("island component = %v, want [orphan]", comps[1])
	}
}

func TestGraph_Path(t *testing.T) {
	g := buildLinear(t)

	path := g.Path(ds("a"), ds("c"))
	if len(path) != 5 {
		t.Fatalf("path length %d, want 5: %v", len(path), path)
	}
	want := []string{"a", "r1", "b", "r2", "c"}
	for i, n := range path {
		if n.Name != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, n.Name, want[i])
		}
	}

	if p := g.Path(ds("c"), ds("a")); p != nil {
		t.Errorf("reverse path should not exist, got %v", p)
	}
}

func TestGraph_Path_TieBreakByInsertionOrder(t *testing.T) {
	// Two equal-length routes from a to z; the first-inserted edge wins.
	g := NewGraph()
	for _, n := range []Node{ds("a"), rc("r1"), rc("r2"), ds("z")} {
		g.AddNode(n)
	}
	mustEdge := func(from, to Node) {
		t.Helper()
		if err := g.AddEdge(from, to); err != nil {
			t.Fatal(err)
		}
	}
	mustEdge(ds("a"), rc("r1"))
	mustEdge(ds("a"), rc("r2"))
	mustEdge(rc("r1"), ds("z"))
	mustEdge(rc("r2"), ds("z"))

	path := g.Path(ds("a"), ds("z"))
	if len(path) != 3 {
		t.Fatalf("path length %d, want 3", len(path))
	}
	if path[1].Name != "r1" {
		t.Errorf("tie should resolve to first-inserted edge r1, got %s", path[1].Name)
	}
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := buildLinear(t)
	roots := g.Roots()
	if len(roots) != 1 || roots[0].Name != "a" {
		t.Errorf("Roots = %v, want [a]", roots)
	}
	leaves := g.Leaves()
	if len(leaves) != 1 || leaves[0].Name != "c" {
		t.Errorf("Leaves = %v, want [c]", leaves)
	}
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
