// Package config defines the root configuration object and its YAML loader.
// Every component takes its own sub-config; nothing here is global state.
package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pauloribeiro16/D3fendGraph/internal/embedder"
	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/llm"
	"github.com/pauloribeiro16/D3fendGraph/internal/ontology"
	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// Config is the root configuration for all components.
type Config struct {
	Graph     graph.BackendConfig    `yaml:"graph"`
	Embedder  embedder.Config        `yaml:"embedder"`
	Generator llm.Config             `yaml:"generator"`
	Fetcher   ontology.FetcherConfig `yaml:"fetcher"`
	Logging   LoggingConfig          `yaml:"logging"`
	Sources   []ontology.Source      `yaml:"sources"`
}

// DefaultConfig returns a configuration with every component at its defaults
// and no ingestion sources.
func DefaultConfig() *Config {
	return &Config{
		Graph:     graph.DefaultBackendConfig(),
		Embedder:  embedder.DefaultConfig(),
		Generator: llm.DefaultConfig(),
		Fetcher:   ontology.DefaultFetcherConfig(),
		Logging:   DefaultLoggingConfig(),
	}
}

// Validate checks every sub-config and all declared sources.
func (c *Config) Validate() error {
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Embedder.Validate(); err != nil {
		return err
	}
	if err := c.Generator.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Fetcher.BaseURL == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "fetcher base_url is required")
	}
	for i, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("source %d is invalid", i), err)
		}
	}
	return nil
}

// LoggingConfig controls the slog handler every component logs through.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format selects the handler: "text" or "json".
	Format string `yaml:"format"`
}

// DefaultLoggingConfig returns text logging at info level.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate checks if the configuration is valid.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown log level %q", c.Level))
	}
	switch c.Format {
	case "text", "json":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown log format %q (expected text or json)", c.Format))
	}
	return nil
}

// NewLogger builds a slog.Logger writing to w per the configured level and
// format. An invalid configuration falls back to text at info level.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
