package graph

import (
	"fmt"
	"strings"
)

// hierarchyRelPattern is the Cypher alternation over hierarchical relations.
const hierarchyRelPattern = "subClassOf|childOf|memberOf"

// BuildCypher translates a normalized Intent into a Cypher statement and its
// parameter map. The statement carries the pattern's declared ordering and a
// LIMIT when the intent caps rows, so remote execution stays bounded; the
// planner re-applies both to keep the contract backend-independent.
func BuildCypher(intent Intent) (string, map[string]any, error) {
	if err := intent.Normalize(); err != nil {
		return "", nil, err
	}
	params := make(map[string]any)

	var b strings.Builder
	switch intent.Pattern {
	case PatternCountermeasures:
		b.WriteString("MATCH (d:D3FEND)-[:counters]->(a)\n")
		b.WriteString("WHERE d.label IS NOT NULL AND a.label IS NOT NULL")
		writeCypherFilters(&b, params, intent, "a.label", "d.label")
		b.WriteString("\n")
		if intent.IncludeParent {
			// min() groups the rows; DISTINCT alongside an aggregation is
			// rejected by some servers.
			b.WriteString("OPTIONAL MATCH (d)-[:" + hierarchyRelPattern + "]->(p)\n")
			b.WriteString("RETURN a.label AS attackLabel, d.label AS defensiveLabel,\n")
			b.WriteString("  coalesce(d.`d3fend-id`, d.id) AS defensiveID, min(p.label) AS parentLabel\n")
		} else {
			b.WriteString("RETURN DISTINCT a.label AS attackLabel, d.label AS defensiveLabel,\n")
			b.WriteString("  coalesce(d.`d3fend-id`, d.id) AS defensiveID\n")
		}
		b.WriteString("ORDER BY attackLabel, defensiveLabel")

	case PatternTacticOverview:
		params["tactics"] = tacticIDs()
		b.WriteString("MATCH (tech)-[:enables]->(t:Tactic)\n")
		b.WriteString("WHERE t.id IN $tactics\n")
		b.WriteString("RETURN t.label AS tacticLabel, count(DISTINCT tech) AS techniqueCount\n")
		b.WriteString("ORDER BY techniqueCount DESC, tacticLabel")

	case PatternTechniquesUnderTactic:
		params["tactic"] = string(intent.Tactic)
		hops := "*1.."
		if intent.Closure == ClosureZeroOrMore {
			hops = "*0.."
		}
		b.WriteString("MATCH (n)-[:" + hierarchyRelPattern + hops + "]->(t {id: $tactic})\n")
		b.WriteString("WHERE n.label IS NOT NULL")
		writeCypherFilters(&b, params, intent, "n.label")
		b.WriteString("\n")
		b.WriteString("RETURN DISTINCT n.id AS techniqueID, n.label AS techniqueLabel, n.description AS definition\n")
		b.WriteString("ORDER BY techniqueLabel, techniqueID")

	case PatternCoverageRanking:
		b.WriteString("MATCH (d:D3FEND)-[:counters]->(a)\n")
		b.WriteString("WHERE d.label IS NOT NULL")
		writeCypherFilters(&b, params, intent, "d.label")
		b.WriteString("\n")
		b.WriteString("RETURN d.label AS techniqueLabel, coalesce(d.`d3fend-id`, d.id) AS techniqueID,\n")
		b.WriteString("  count(DISTINCT a) AS attacksCovered\n")
		b.WriteString("ORDER BY attacksCovered DESC, techniqueLabel")

	case PatternFrameworkSearch:
		params["frameworks"] = taxonomyFrameworks()
		b.WriteString("MATCH (n)\n")
		b.WriteString("WHERE n.label IS NOT NULL")
		writeCypherFilters(&b, params, intent, "n.label")
		b.WriteString("\n")
		b.WriteString("UNWIND labels(n) AS framework\n")
		b.WriteString("WITH framework, n WHERE framework IN $frameworks\n")
		b.WriteString("RETURN framework, n.id AS id, n.label AS label\n")
		b.WriteString("ORDER BY framework, id")
	}

	if intent.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d", intent.Limit)
	}
	return b.String(), params, nil
}

// writeCypherFilters appends the label-filter predicate for the intent,
// parameterized as $f0, $f1, ... Filters combine with OR in any mode and
// AND in all mode; each term tests every candidate label expression.
func writeCypherFilters(b *strings.Builder, params map[string]any, intent Intent, labelExprs ...string) {
	if len(intent.Filters) == 0 {
		return
	}
	joiner := " OR "
	if intent.Mode == FilterModeAll {
		joiner = " AND "
	}
	terms := make([]string, 0, len(intent.Filters))
	for i, f := range intent.Filters {
		key := fmt.Sprintf("f%d", i)
		params[key] = f
		tests := make([]string, 0, len(labelExprs))
		for _, expr := range labelExprs {
			tests = append(tests, fmt.Sprintf("toLower(%s) CONTAINS $%s", expr, key))
		}
		terms = append(terms, "("+strings.Join(tests, " OR ")+")")
	}
	b.WriteString(" AND (" + strings.Join(terms, joiner) + ")")
}

func tacticIDs() []string {
	ts := Tactics()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

func taxonomyFrameworks() []string {
	return []string{
		string(FrameworkD3FEND), string(FrameworkATTACK), string(FrameworkCWE),
		string(FrameworkCAPEC), string(FrameworkATLAS),
	}
}
