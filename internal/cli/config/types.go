// Package config provides configuration management for the leapflow CLI.
//
// Values are layered with koanf: built-in defaults, then an optional
// leapflow.yaml, then LEAPFLOW_ environment variables, then explicitly
// set command-line flags.
package config

import (
	"context"
	"fmt"
	"log/slog"
)

// Config holds all CLI configuration options.
type Config struct {
	OutputFormat string `koanf:"output"`       // json, yaml, or text
	OutputDir    string `koanf:"output_dir"`   // empty writes to stdout
	Optimize     bool   `koanf:"optimize"`     // run the optimizer pass
	HistoryPath  string `koanf:"history_path"` // empty disables conversion history
	Verbose      bool   `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultOutput = "json"
)

// Validate checks for values the CLI cannot work with.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "json", "yaml", "text":
		return nil
	default:
		return fmt.Errorf("config: unknown output format %q (want json, yaml, or text)", c.OutputFormat)
	}
}

type configKey struct{}
type loggerKey struct{}

// NewContext stores the config in a context.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from a context, falling back to
// defaults when absent.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return &Config{OutputFormat: DefaultOutput, Optimize: true}
}

// WithLogger stores a logger in a context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom retrieves the logger from a context, falling back to a
// discard logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
