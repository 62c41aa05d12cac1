package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/lineage"
	"github.com/spf13/cobra"
)

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	var dataset string

	cmd := &cobra.Command{
		Use:   "lineage <script> <column>",
		Short: "Trace a column back to its origin",
		Long: `Convert a script and trace one column backward through the
resulting flow, from a final dataset to the dataset and column it
originated from.

Without --dataset the trace starts at the last output dataset.`,
		Example: `  # Trace the total column from the script's final output
  leapflow lineage etl/sales.py total

  # Trace from a specific dataset
  leapflow lineage etl/sales.py amount --dataset sales_prepared`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], args[1], dataset)
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset to start the trace from (default: last output)")

	return cmd
}

func runLineage(cmd *cobra.Command, script, column, dataset string) error {
	cfg := config.FromContext(cmd.Context())

	f, err := buildFlow(script, "", cfg.Optimize)
	if err != nil {
		return err
	}
	trace, err := lineage.Trace(f, column, dataset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.OutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(trace)
	}

	fmt.Fprintf(out, "column %s in %s originates from %s.%s\n",
		trace.Column, trace.FinalDataset, trace.OriginDataset, trace.OriginColumn)
	if len(trace.Transformations) == 0 {
		fmt.Fprintln(out, "no transformations touch this column")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Recipe", "Kind", "Description"})
	for i, entry := range trace.Transformations {
		t.AppendRow(table.Row{i + 1, entry.Recipe, entry.Kind, entry.Description})
	}
	t.Render()
	return nil
}
