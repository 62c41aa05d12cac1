// Package commands implements the leapflow subcommands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapflow/internal/analyzer"
	"github.com/leapstack-labs/leapflow/internal/flow"
	"github.com/leapstack-labs/leapflow/internal/synth"
)

// buildFlow runs the full conversion pipeline on one script file.
func buildFlow(path, flowName string, optimize bool) (*flow.Flow, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	ts, err := analyzer.Analyze(string(src))
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	if flowName == "" {
		flowName = flowNameFor(path)
	}
	return synth.Generate(ts, flowName, optimize), nil
}

// flowNameFor derives a flow name from the script filename.
func flowNameFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// renderFlow serializes a flow in the requested output format.
func renderFlow(f *flow.Flow, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return f.YAML()
	case "text":
		return []byte(f.Text()), nil
	default:
		data, err := f.JSON()
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// outputExtension maps a format to its file extension.
func outputExtension(format string) string {
	switch format {
	case "yaml":
		return ".yaml"
	case "text":
		return ".txt"
	default:
		return ".json"
	}
}
