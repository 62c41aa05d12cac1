package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past conversions",
		Long: `List conversions recorded in the history database, newest first.

History is only collected when a history path is configured (the
--history flag, the LEAPFLOW_HISTORY_PATH variable, or history_path in
leapflow.yaml).`,
		Example: `  # Show the last 20 conversions
  leapflow --history .leapflow/history.db history

  # Show everything
  leapflow --history .leapflow/history.db history --limit 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cfg := config.FromContext(cmd.Context())
	if cfg.HistoryPath == "" {
		return fmt.Errorf("no history path configured (set --history or history_path)")
	}

	store, err := state.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	conversions, err := store.ListConversions(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.OutputFormat == "json" {
		type entry struct {
			ID        string    `json:"id"`
			Script    string    `json:"script"`
			Flow      string    `json:"flow"`
			Datasets  int       `json:"datasets"`
			Recipes   int       `json:"recipes"`
			Status    string    `json:"status"`
			Error     string    `json:"error,omitempty"`
			CreatedAt time.Time `json:"created_at"`
		}
		entries := make([]entry, 0, len(conversions))
		for _, c := range conversions {
			entries = append(entries, entry{
				ID: c.ID, Script: c.ScriptPath, Flow: c.FlowName,
				Datasets: c.DatasetCount, Recipes: c.RecipeCount,
				Status: c.Status, Error: c.Error, CreatedAt: c.CreatedAt,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(conversions) == 0 {
		fmt.Fprintln(out, "no conversions recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"When", "Script", "Flow", "Datasets", "Recipes", "Status"})
	for _, c := range conversions {
		t.AppendRow(table.Row{
			c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			c.ScriptPath, c.FlowName, c.DatasetCount, c.RecipeCount, c.Status,
		})
	}
	t.Render()
	return nil
}
