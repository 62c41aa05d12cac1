package commands

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/dag"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script>...",
		Short: "Check that scripts convert into well-formed flows",
		Long: `Convert each script and validate the resulting flow graph.

Structural problems (duplicate names, dangling references, cycles) and
warnings (disconnected components, unused outputs) are reported; only
scripts that fail to parse make the command exit non-zero.`,
		Example: `  # Validate a single script
  leapflow validate etl/sales.py

  # Validate everything in a directory
  leapflow validate etl/*.py`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, scripts []string) error {
	cfg := config.FromContext(cmd.Context())
	out := cmd.OutOrStdout()

	type report struct {
		Script string               `json:"script"`
		Result dag.ValidationResult `json:"result"`
	}
	var (
		reports []report
		failed  int
	)
	for _, script := range scripts {
		f, err := buildFlow(script, "", cfg.Optimize)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s: %v\n", script, err)
			failed++
			continue
		}
		reports = append(reports, report{Script: script, Result: dag.Validate(f)})
	}

	if cfg.OutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			status := "ok"
			if !r.Result.Valid {
				status = "invalid"
			}
			fmt.Fprintf(out, "%s: %s\n", r.Script, status)
			for _, e := range r.Result.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			for _, w := range r.Result.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
		}
	}

	// Structural invalidity is a finding, not a failure; only scripts
	// that could not be converted at all fail the command.
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts could not be converted", failed, len(scripts))
	}
	return nil
}
