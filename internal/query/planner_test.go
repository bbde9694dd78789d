package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		name   string
		intent graph.Intent
		want   int
	}{
		{"default", graph.Intent{Pattern: graph.PatternCountermeasures}, DefaultLimit},
		{"overview default", graph.Intent{Pattern: graph.PatternTacticOverview}, OverviewLimit},
		{"explicit in range", graph.Intent{Pattern: graph.PatternFrameworkSearch, Limit: 75}, 75},
		{"small explicit limit honored", graph.Intent{Pattern: graph.PatternFrameworkSearch, Limit: 5}, 5},
		{"above maximum clamps", graph.Intent{Pattern: graph.PatternFrameworkSearch, Limit: 10000}, MaxLimit},
		{"negative resolves to default", graph.Intent{Pattern: graph.PatternFrameworkSearch, Limit: -1}, DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveLimit(tt.intent))
		})
	}
}

func seedPlannerGraph(t *testing.T) *graph.MemoryClient {
	t.Helper()
	ctx := context.Background()
	m := graph.NewMemoryClient()

	nodes := []*graph.Node{
		graph.NewNode("d3f:B", "Boundary Hardening", graph.FrameworkD3FEND),
		graph.NewNode("d3f:A", "Access Mediation", graph.FrameworkD3FEND),
		graph.NewNode("T2", "Zebra Technique", graph.FrameworkATTACK),
		graph.NewNode("T1", "Alpha Technique", graph.FrameworkATTACK),
	}
	for _, n := range nodes {
		require.NoError(t, m.UpsertNode(ctx, n))
	}
	for _, e := range []graph.Edge{
		{Source: "d3f:B", Type: graph.RelationCounters, Target: "T2"},
		{Source: "d3f:B", Type: graph.RelationCounters, Target: "T1"},
		{Source: "d3f:A", Type: graph.RelationCounters, Target: "T1"},
	} {
		require.NoError(t, m.UpsertEdge(ctx, e))
	}
	return m
}

func TestPlannerOrdersCountermeasures(t *testing.T) {
	p := NewPlanner(seedPlannerGraph(t), nil)

	rows, err := p.Execute(context.Background(), graph.Intent{Pattern: graph.PatternCountermeasures})
	require.NoError(t, err)

	require.Len(t, rows.Records, 3)
	assert.Equal(t, "Alpha Technique", rows.Records[0]["attackLabel"])
	assert.Equal(t, "Access Mediation", rows.Records[0]["defensiveLabel"])
	assert.Equal(t, "Alpha Technique", rows.Records[1]["attackLabel"])
	assert.Equal(t, "Boundary Hardening", rows.Records[1]["defensiveLabel"])
	assert.Equal(t, "Zebra Technique", rows.Records[2]["attackLabel"])
}

func TestPlannerOrdersCoverageRankingWithTies(t *testing.T) {
	p := NewPlanner(seedPlannerGraph(t), nil)

	rows, err := p.Execute(context.Background(), graph.Intent{Pattern: graph.PatternCoverageRanking})
	require.NoError(t, err)

	require.Len(t, rows.Records, 2)
	assert.Equal(t, "Boundary Hardening", rows.Records[0]["techniqueLabel"])
	assert.Equal(t, 2, rows.Records[0]["attacksCovered"])
	assert.Equal(t, "Access Mediation", rows.Records[1]["techniqueLabel"])
}

func TestPlannerOrdersTacticOverview(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMemoryClient()
	require.NoError(t, m.UpsertNode(ctx, graph.NewNode("d3f:X", "X", graph.FrameworkD3FEND)))
	require.NoError(t, m.UpsertEdge(ctx, graph.Edge{Source: "d3f:X", Type: graph.RelationEnables, Target: "Isolate"}))

	p := NewPlanner(m, nil)
	rows, err := p.Execute(ctx, graph.Intent{Pattern: graph.PatternTacticOverview})
	require.NoError(t, err)

	require.Len(t, rows.Records, 5)
	assert.Equal(t, "Isolate", rows.Records[0]["tacticLabel"], "highest count first")
	// Zero-count tactics tie and fall back to label order.
	assert.Equal(t, "Deceive", rows.Records[1]["tacticLabel"])
	assert.Equal(t, "Detect", rows.Records[2]["tacticLabel"])
	assert.Equal(t, "Evict", rows.Records[3]["tacticLabel"])
	assert.Equal(t, "Harden", rows.Records[4]["tacticLabel"])
}

func TestPlannerCapsRows(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMemoryClient()
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("CWE-%03d", i)
		require.NoError(t, m.UpsertNode(ctx,
			graph.NewNode(id, "Weakness "+id, graph.FrameworkCWE)))
	}

	p := NewPlanner(m, nil)
	rows, err := p.Execute(ctx, graph.Intent{Pattern: graph.PatternFrameworkSearch, Limit: 25})
	require.NoError(t, err)

	require.Len(t, rows.Records, 25, "excess rows truncate, never error")
	assert.Equal(t, "CWE-000", rows.Records[0]["id"], "cap applies after ordering")
	assert.Equal(t, "CWE-024", rows.Records[24]["id"])
}

func TestPlannerHonorsSmallExplicitLimit(t *testing.T) {
	ctx := context.Background()
	m := graph.NewMemoryClient()
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("CWE-%03d", i)
		require.NoError(t, m.UpsertNode(ctx,
			graph.NewNode(id, "Weakness "+id, graph.FrameworkCWE)))
	}

	p := NewPlanner(m, nil)
	rows, err := p.Execute(ctx, graph.Intent{Pattern: graph.PatternFrameworkSearch, Limit: 5})
	require.NoError(t, err)

	require.Len(t, rows.Records, 5, "an explicit limit below the default is never raised")
	assert.Equal(t, "CWE-000", rows.Records[0]["id"])
}

func TestPlannerEmptyResultIsNotError(t *testing.T) {
	p := NewPlanner(graph.NewMemoryClient(), nil)

	rows, err := p.Execute(context.Background(), graph.Intent{
		Pattern: graph.PatternFrameworkSearch,
		Filters: []string{"nothing matches this"},
	})
	require.NoError(t, err)
	assert.Empty(t, rows.Records)
	assert.NotEmpty(t, rows.Columns)
}

func TestPlannerRejectsUnknownPattern(t *testing.T) {
	p := NewPlanner(graph.NewMemoryClient(), nil)

	_, err := p.Execute(context.Background(), graph.Intent{Pattern: "kill-chain"})
	require.Error(t, err)
	assert.Equal(t, types.UNKNOWN_PATTERN, types.CodeOf(err))
}
