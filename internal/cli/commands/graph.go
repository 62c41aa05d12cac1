package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/dag"
	"github.com/leapstack-labs/leapflow/internal/flow"
	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	var (
		from string
		to   string
	)

	cmd := &cobra.Command{
		Use:   "graph <script>",
		Short: "Show the flow graph of a converted script",
		Long: `Convert a script and display its flow graph: execution order,
connected components, and entry and terminal datasets.

With --from and --to, shows the path between two datasets instead.`,
		Example: `  # Show execution order
  leapflow graph etl/sales.py

  # Show the path between two datasets
  leapflow graph etl/sales.py --from sales --to summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], from, to)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Path start dataset")
	cmd.Flags().StringVar(&to, "to", "", "Path end dataset")
	cmd.MarkFlagsRequiredTogether("from", "to")

	return cmd
}

func runGraph(cmd *cobra.Command, script, from, to string) error {
	cfg := config.FromContext(cmd.Context())

	f, err := buildFlow(script, "", cfg.Optimize)
	if err != nil {
		return err
	}
	g := dag.Build(f)

	if from != "" {
		return graphPath(cmd, f, g, from, to)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return fmt.Errorf("flow graph is not executable: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.OutputFormat == "json" {
		type nodeOut struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		}
		payload := struct {
			Flow       string    `json:"flow"`
			Order      []nodeOut `json:"order"`
			Components int       `json:"components"`
			Roots      []string  `json:"roots"`
			Leaves     []string  `json:"leaves"`
		}{Flow: f.Name, Components: len(g.Components())}
		for _, n := range order {
			payload.Order = append(payload.Order, nodeOut{Name: n.Name, Kind: string(n.Kind)})
		}
		for _, n := range g.Roots() {
			payload.Roots = append(payload.Roots, n.Name)
		}
		for _, n := range g.Leaves() {
			payload.Leaves = append(payload.Leaves, n.Name)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Fprintf(out, "flow %s: %d nodes, %d edges, %d component(s)\n",
		f.Name, g.NodeCount(), g.EdgeCount(), len(g.Components()))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Node", "Kind"})
	for i, n := range order {
		t.AppendRow(table.Row{i + 1, n.Name, n.Kind})
	}
	t.Render()

	fmt.Fprintf(out, "roots:  %s\n", joinNodeNames(g.Roots()))
	fmt.Fprintf(out, "leaves: %s\n", joinNodeNames(g.Leaves()))
	return nil
}

func graphPath(cmd *cobra.Command, f *flow.Flow, g *dag.Graph, from, to string) error {
	for _, name := range []string{from, to} {
		if f.Dataset(name) == nil {
			return fmt.Errorf("dataset %q not found in flow", name)
		}
	}
	path := g.Path(
		dag.Node{Name: from, Kind: dag.NodeDataset},
		dag.Node{Name: to, Kind: dag.NodeDataset},
	)
	out := cmd.OutOrStdout()
	if path == nil {
		fmt.Fprintf(out, "no path from %s to %s\n", from, to)
		return nil
	}
	names := make([]string, 0, len(path))
	for _, n := range path {
		names = append(names, n.Name)
	}
	fmt.Fprintln(out, strings.Join(names, " -> "))
	return nil
}

func joinNodeNames(nodes []dag.Node) string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
