package index

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pauloribeiro16/D3fendGraph/internal/embedder"
	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
)

// EmbeddingText builds the canonical text embedded for a node: the ID, label,
// description, and mitigations joined with a field separator. Empty fields
// stay in place so the same node always embeds the same text.
func EmbeddingText(n *graph.Node) string {
	return strings.Join([]string{n.ID, n.Label, n.Description, n.Mitigations}, " | ")
}

// PassReport summarizes one embedding pass.
type PassReport struct {
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Pass embeds every node in the graph that does not yet carry an embedding
// and writes the vectors back. Nodes without a label are skipped. Up to
// parallelism nodes embed concurrently; a failing node is counted and logged
// but does not abort the pass.
func Pass(ctx context.Context, client graph.GraphClient, emb embedder.Embedder, parallelism int, logger *slog.Logger) (PassReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if parallelism <= 0 {
		parallelism = 4
	}

	nodes, err := client.ScanUnembedded(ctx)
	if err != nil {
		return PassReport{}, err
	}

	var report PassReport
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, node := range nodes {
		if node.Label == "" {
			report.Skipped++
			continue
		}
		node := node
		g.Go(func() error {
			vector, err := emb.Embed(gctx, EmbeddingText(node))
			if err != nil {
				logger.Warn("embedding failed",
					"node", node.ID,
					"error", err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			if err := client.SetEmbedding(gctx, node.ID, vector); err != nil {
				logger.Warn("storing embedding failed",
					"node", node.ID,
					"error", err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Embedded++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	logger.Info("embedding pass complete",
		"embedded", report.Embedded,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}
