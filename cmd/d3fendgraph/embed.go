package main

import (
	"github.com/spf13/cobra"

	"github.com/pauloribeiro16/D3fendGraph/internal/embedder"
	"github.com/pauloribeiro16/D3fendGraph/internal/index"
)

var embedParallelism int

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute embeddings for nodes that do not have one yet",
	Long: `Scans the graph for nodes without an embedding, computes a vector
for each with the configured embedding provider, and writes the vectors
back. Already-embedded nodes are left alone, so re-running only picks up
new nodes.`,
	RunE: runEmbed,
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := connectGraph(ctx)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return err
	}

	report, err := index.Pass(ctx, client, emb, embedParallelism, logger)
	if err != nil {
		return err
	}

	cmd.Printf("embedded %d, skipped %d, failed %d\n",
		report.Embedded, report.Skipped, report.Failed)
	return nil
}

func init() {
	embedCmd.Flags().IntVarP(&embedParallelism, "parallelism", "p",
		4, "Number of nodes embedded concurrently")
}
