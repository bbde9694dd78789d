package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero norm left", []float64{0, 0}, []float64{1, 1}, 0},
		{"zero norm right", []float64{1, 1}, []float64{0, 0}, 0},
		{"mismatched length", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float64{0.3, -0.7, 0.2}
	scaled := []float64{3, -7, 2}
	assert.InDelta(t, 1, Cosine(a, scaled), 1e-9)
}

func embeddedNode(id string, vec ...float64) *graph.Node {
	n := graph.NewNode(id, "Node "+id, graph.FrameworkATTACK)
	n.Embedding = vec
	return n
}

func TestTopKRanksByScore(t *testing.T) {
	query := []float64{1, 0}
	candidates := []*graph.Node{
		embeddedNode("far", -1, 0),
		embeddedNode("close", 0.9, 0.1),
		embeddedNode("exact", 1, 0),
	}

	matches := TopK(query, candidates, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Node.ID)
	assert.Equal(t, "close", matches[1].Node.ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestTopKTiesBreakByID(t *testing.T) {
	query := []float64{1, 0}
	candidates := []*graph.Node{
		embeddedNode("zeta", 2, 0),
		embeddedNode("alpha", 5, 0),
	}

	matches := TopK(query, candidates, 2)
	require.Len(t, matches, 2)
	assert.InDelta(t, matches[0].Score, matches[1].Score, 1e-9)
	assert.Equal(t, "alpha", matches[0].Node.ID, "equal scores order by ascending id")
	assert.Equal(t, "zeta", matches[1].Node.ID)
}

func TestTopKNeverPads(t *testing.T) {
	matches := TopK([]float64{1}, []*graph.Node{embeddedNode("only", 1)}, 10)
	assert.Len(t, matches, 1)
}

func TestTopKSkipsUnembedded(t *testing.T) {
	bare := graph.NewNode("bare", "No Vector", graph.FrameworkCWE)
	matches := TopK([]float64{1}, []*graph.Node{bare, embeddedNode("ok", 1)}, 10)
	require.Len(t, matches, 1)
	assert.Equal(t, "ok", matches[0].Node.ID)
}

func TestTopKZeroK(t *testing.T) {
	assert.Nil(t, TopK([]float64{1}, []*graph.Node{embeddedNode("x", 1)}, 0))
}

func TestEmbeddingText(t *testing.T) {
	n := graph.NewNode("CWE-79", "Cross-site Scripting", graph.FrameworkCWE).
		WithDescription("Improper neutralization.").
		WithMitigations("Encode output.")

	assert.Equal(t,
		"CWE-79 | Cross-site Scripting | Improper neutralization. | Encode output.",
		EmbeddingText(n))

	bare := graph.NewNode("T1055", "Process Injection", graph.FrameworkATTACK)
	assert.Equal(t, "T1055 | Process Injection |  | ", EmbeddingText(bare),
		"empty fields keep their positions")
}
