package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pauloribeiro16/D3fendGraph/internal/config"
	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "d3fendgraph",
	Short: "Cybersecurity knowledge graph with retrieval-augmented answering",
	Long: `d3fendgraph maintains a canonical knowledge graph over the D3FEND,
ATT&CK, CWE, CAPEC, and ATLAS taxonomies and answers questions against it.

Load taxonomy sources with 'ingest', compute node embeddings with 'embed',
run structured pattern queries with 'query', and ask natural-language
questions with 'ask'.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration before any command runs. A missing config file
// yields the defaults; commands that need more fail with context.
func setup(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "help", "version", "completion":
		return nil
	}

	loaded, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger = cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return nil
}

// connectGraph builds the configured graph client and connects it. Callers
// own the returned client and must Close it.
func connectGraph(ctx context.Context) (graph.GraphClient, error) {
	client, err := graph.NewClient(cfg.Graph)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		"d3fendgraph.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v",
		false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(fetchCWECmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
}
