package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

func TestBuildCypherCountermeasures(t *testing.T) {
	stmt, params, err := BuildCypher(Intent{
		Pattern: PatternCountermeasures,
		Filters: []string{"Injection"},
	})
	require.NoError(t, err)

	assert.Contains(t, stmt, "MATCH (d:D3FEND)-[:counters]->(a)")
	assert.Contains(t, stmt, "toLower(a.label) CONTAINS $f0")
	assert.Contains(t, stmt, "toLower(d.label) CONTAINS $f0")
	assert.Contains(t, stmt, "ORDER BY attackLabel, defensiveLabel")
	assert.NotContains(t, stmt, "OPTIONAL MATCH", "parent join only on request")
	assert.Equal(t, "injection", params["f0"], "filter terms lowercase")
}

func TestBuildCypherCountermeasuresWithParent(t *testing.T) {
	stmt, _, err := BuildCypher(Intent{Pattern: PatternCountermeasures, IncludeParent: true})
	require.NoError(t, err)

	assert.Contains(t, stmt, "OPTIONAL MATCH (d)-[:subClassOf|childOf|memberOf]->(p)")
	assert.Contains(t, stmt, "min(p.label) AS parentLabel")
	assert.NotContains(t, stmt, "DISTINCT", "min() groups the rows on its own")
}

func TestBuildCypherFilterModes(t *testing.T) {
	any, _, err := BuildCypher(Intent{
		Pattern: PatternCoverageRanking,
		Filters: []string{"network", "file"},
	})
	require.NoError(t, err)
	assert.Contains(t, any, ") OR (")

	all, _, err := BuildCypher(Intent{
		Pattern: PatternCoverageRanking,
		Filters: []string{"network", "file"},
		Mode:    FilterModeAll,
	})
	require.NoError(t, err)
	assert.Contains(t, all, ") AND (")
}

func TestBuildCypherTechniquesUnderTacticClosure(t *testing.T) {
	oneOrMore, params, err := BuildCypher(Intent{
		Pattern: PatternTechniquesUnderTactic,
		Tactic:  TacticDetect,
	})
	require.NoError(t, err)
	assert.Contains(t, oneOrMore, "subClassOf|childOf|memberOf*1..")
	assert.Equal(t, "Detect", params["tactic"])

	zeroOrMore, _, err := BuildCypher(Intent{
		Pattern: PatternTechniquesUnderTactic,
		Tactic:  TacticDetect,
		Closure: ClosureZeroOrMore,
	})
	require.NoError(t, err)
	assert.Contains(t, zeroOrMore, "subClassOf|childOf|memberOf*0..")
}

func TestBuildCypherTacticOverview(t *testing.T) {
	stmt, params, err := BuildCypher(Intent{Pattern: PatternTacticOverview})
	require.NoError(t, err)

	assert.Contains(t, stmt, "count(DISTINCT tech) AS techniqueCount")
	assert.Contains(t, stmt, "ORDER BY techniqueCount DESC, tacticLabel")
	assert.Equal(t, []string{"Harden", "Detect", "Isolate", "Deceive", "Evict"}, params["tactics"])
}

func TestBuildCypherLimit(t *testing.T) {
	capped, _, err := BuildCypher(Intent{Pattern: PatternFrameworkSearch, Limit: 50})
	require.NoError(t, err)
	assert.Contains(t, capped, "LIMIT 50")

	uncapped, _, err := BuildCypher(Intent{Pattern: PatternFrameworkSearch})
	require.NoError(t, err)
	assert.NotContains(t, uncapped, "LIMIT")
}

func TestBuildCypherRejectsInvalidIntent(t *testing.T) {
	_, _, err := BuildCypher(Intent{Pattern: "kill-chain"})
	require.Error(t, err)
	assert.Equal(t, types.UNKNOWN_PATTERN, types.CodeOf(err))
}
