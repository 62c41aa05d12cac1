package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/state"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// convertWorkers caps how many scripts are converted concurrently.
const convertWorkers = 4

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	var (
		flowName string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "convert <script>...",
		Short: "Convert pandas scripts to visual ETL flows",
		Long: `Convert one or more pandas scripts into visual ETL flow definitions.

Each script is analyzed, lowered into datasets and recipes, and written
in the configured output format. Operations the analyzer cannot map are
preserved as code recipes with a stub to fill in manually.`,
		Example: `  # Convert a script to stdout
  leapflow convert etl/sales.py

  # Convert several scripts into a directory
  leapflow convert etl/*.py --output-dir flows/

  # Re-convert whenever a script changes
  leapflow convert etl/sales.py --output-dir flows/ --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, flowName, watch)
		},
	}

	cmd.Flags().StringVar(&flowName, "name", "", "Flow name (single script only; default: script basename)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-convert when a script changes")

	return cmd
}

func runConvert(cmd *cobra.Command, scripts []string, flowName string, watch bool) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := config.LoggerFrom(ctx)

	if flowName != "" && len(scripts) > 1 {
		return fmt.Errorf("--name can only be used with a single script")
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	var store *state.Store
	if cfg.HistoryPath != "" {
		if dir := filepath.Dir(cfg.HistoryPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create history directory: %w", err)
			}
		}
		var err error
		store, err = state.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	if watch {
		return watchAndConvert(cmd, cfg, logger, store, scripts, flowName)
	}
	return convertOnce(cmd, cfg, logger, store, scripts, flowName)
}

type convertResult struct {
	script string
	name   string
	data   []byte
	// counts for the history record
	datasets int
	recipes  int
	err      error
}

// convertOnce converts every script, in parallel, and emits the results
// in argument order.
func convertOnce(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger,
	store *state.Store, scripts []string, flowName string) error {

	results := make([]convertResult, len(scripts))

	eg, _ := errgroup.WithContext(cmd.Context())
	eg.SetLimit(convertWorkers)
	for i, script := range scripts {
		eg.Go(func() error {
			res := convertResult{script: script, name: flowName}
			f, err := buildFlow(script, flowName, cfg.Optimize)
			if err != nil {
				res.err = err
				results[i] = res
				return nil
			}
			res.name = f.Name
			res.datasets = len(f.Datasets)
			res.recipes = len(f.Recipes)
			res.data, res.err = renderFlow(f, cfg.OutputFormat)
			results[i] = res
			return nil
		})
	}
	_ = eg.Wait()

	var failed int
	for _, res := range results {
		recordHistory(store, logger, res)
		if res.err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s: %v\n", res.script, res.err)
			failed++
			continue
		}
		if cfg.OutputDir != "" {
			path := filepath.Join(cfg.OutputDir, res.name+outputExtension(cfg.OutputFormat))
			if err := os.WriteFile(path, res.data, 0o644); err != nil {
				return fmt.Errorf("write flow: %w", err)
			}
			logger.Info("flow written", "script", res.script, "path", path,
				"datasets", res.datasets, "recipes", res.recipes)
		} else {
			_, _ = cmd.OutOrStdout().Write(res.data)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed to convert", failed, len(scripts))
	}
	return nil
}

// watchAndConvert converts once up front, then re-converts a script on
// every write to it until interrupted.
func watchAndConvert(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger,
	store *state.Store, scripts []string, flowName string) error {

	if err := convertOnce(cmd, cfg, logger, store, scripts, flowName); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch parent directories: editors often replace files on save,
	// which drops watches placed on the file itself.
	watched := map[string]string{}
	dirs := map[string]bool{}
	for _, script := range scripts {
		abs, err := filepath.Abs(script)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", script, err)
		}
		watched[abs] = script
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching for changes", "scripts", len(scripts))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			script, ok := watched[abs]
			if !ok {
				continue
			}
			logger.Info("script changed", "script", script)
			if err := convertOnce(cmd, cfg, logger, store, []string{script}, flowName); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)
		}
	}
}

// recordHistory appends one conversion record; failures to record are
// logged, never fatal.
func recordHistory(store *state.Store, logger *slog.Logger, res convertResult) {
	if store == nil {
		return
	}
	c := state.Conversion{
		ScriptPath:   res.script,
		FlowName:     res.name,
		DatasetCount: res.datasets,
		RecipeCount:  res.recipes,
		Status:       state.StatusCompleted,
	}
	if res.err != nil {
		c.Status = state.StatusFailed
		c.Error = res.err.Error()
	}
	if _, err := store.RecordConversion(c); err != nil {
		logger.Error("failed to record conversion", "script", res.script, "error", err)
	}
}
