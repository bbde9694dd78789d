// Package index provides brute-force semantic search over embedded graph
// nodes. The corpus is small enough (a few thousand taxonomy entries) that
// exact scan beats an approximate index and keeps ranking fully
// deterministic.
package index

import (
	"math"
	"sort"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
)

// Match is one scored node from a similarity search.
type Match struct {
	Node  *graph.Node `json:"node"`
	Score float64     `json:"score"`
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths or
// a zero-norm operand yield 0 rather than an error: a node with a degenerate
// embedding simply never ranks.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK scores every candidate against the query vector and returns the k
// best matches, highest score first. Score ties break on ascending node ID so
// results are stable across runs. Fewer than k candidates return what exists;
// the result is never padded.
func TopK(query []float64, candidates []*graph.Node, k int) []Match {
	if k <= 0 {
		return nil
	}
	matches := make([]Match, 0, len(candidates))
	for _, n := range candidates {
		if n == nil || len(n.Embedding) == 0 {
			continue
		}
		matches = append(matches, Match{Node: n, Score: Cosine(query, n.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Node.ID < matches[j].Node.ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
