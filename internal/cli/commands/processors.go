package commands

import (
	"encoding/json"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapflow/internal/catalog"
	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/spf13/cobra"
)

// NewProcessorsCommand creates the processors command.
func NewProcessorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processors",
		Short: "List supported prepare steps and recipe kinds",
		Long: `List the processor vocabulary of the target platform: every step
type a prepare recipe can contain, and every recipe kind a flow can use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcessors(cmd)
		},
	}
	return cmd
}

func runProcessors(cmd *cobra.Command) error {
	cfg := config.FromContext(cmd.Context())
	out := cmd.OutOrStdout()

	if cfg.OutputFormat == "json" {
		type processorOut struct {
			Type        string   `json:"type"`
			Description string   `json:"description"`
			Params      []string `json:"params"`
		}
		type kindOut struct {
			Kind        string   `json:"kind"`
			Description string   `json:"description"`
			Settings    []string `json:"settings"`
		}
		payload := struct {
			Processors  []processorOut `json:"processors"`
			RecipeKinds []kindOut      `json:"recipe_kinds"`
		}{}
		for _, p := range catalog.Processors() {
			payload.Processors = append(payload.Processors, processorOut(p))
		}
		for _, r := range catalog.RecipeKinds() {
			payload.RecipeKinds = append(payload.RecipeKinds, kindOut(r))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Prepare Steps")
	t.AppendHeader(table.Row{"Type", "Description", "Params"})
	for _, p := range catalog.Processors() {
		t.AppendRow(table.Row{p.Type, p.Description, strings.Join(p.Params, ", ")})
	}
	t.Render()

	t = table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Recipe Kinds")
	t.AppendHeader(table.Row{"Kind", "Description", "Settings"})
	for _, r := range catalog.RecipeKinds() {
		t.AppendRow(table.Row{r.Kind, r.Description, strings.Join(r.Settings, ", ")})
	}
	t.Render()
	return nil
}
