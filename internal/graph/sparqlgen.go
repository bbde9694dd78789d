package graph

import (
	"fmt"
	"net/url"
	"strings"
)

// RDF vocabulary used by the triple-store projection of the canonical model.
const (
	schemaPrefix = "http://d3fendgraph.org/schema#"
	nodePrefix   = "http://d3fendgraph.org/node/"
)

// NodeURI returns the RDF subject URI for a canonical node ID.
func NodeURI(id string) string {
	return nodePrefix + url.PathEscape(id)
}

// hierarchyPathExpr is the SPARQL property-path alternation over
// hierarchical relations.
const hierarchyPathExpr = "(dg:subClassOf|dg:childOf|dg:memberOf)"

// BuildSPARQL translates a normalized Intent into a SPARQL SELECT query.
// The query carries the pattern's declared ordering and a LIMIT when the
// intent caps rows; the planner re-applies both after execution.
func BuildSPARQL(intent Intent) (string, error) {
	if err := intent.Normalize(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("PREFIX dg: <" + schemaPrefix + ">\n\n")

	switch intent.Pattern {
	case PatternCountermeasures:
		b.WriteString("SELECT DISTINCT ?attackLabel ?defensiveLabel ?defensiveID")
		if intent.IncludeParent {
			b.WriteString(" ?parentLabel")
		}
		b.WriteString("\nWHERE {\n")
		b.WriteString("  ?d dg:framework \"D3FEND\" ;\n")
		b.WriteString("     dg:label ?defensiveLabel ;\n")
		b.WriteString("     dg:counters ?a .\n")
		b.WriteString("  ?a dg:label ?attackLabel .\n")
		b.WriteString("  OPTIONAL { ?d dg:id ?defensiveID . }\n")
		if intent.IncludeParent {
			b.WriteString("  OPTIONAL { ?d " + hierarchyPathExpr + " ?p . ?p dg:label ?parentLabel . }\n")
		}
		writeSPARQLFilters(&b, intent, "?attackLabel", "?defensiveLabel")
		b.WriteString("}\nORDER BY ?attackLabel ?defensiveLabel")

	case PatternTacticOverview:
		b.WriteString("SELECT ?tacticLabel (COUNT(DISTINCT ?tech) AS ?techniqueCount)\n")
		b.WriteString("WHERE {\n  VALUES ?tactic { ")
		for _, t := range Tactics() {
			b.WriteString("<" + NodeURI(string(t)) + "> ")
		}
		b.WriteString("}\n")
		b.WriteString("  ?tactic dg:label ?tacticLabel .\n")
		b.WriteString("  ?tech dg:enables ?tactic .\n")
		b.WriteString("}\nGROUP BY ?tacticLabel\nORDER BY DESC(?techniqueCount) ?tacticLabel")

	case PatternTechniquesUnderTactic:
		path := hierarchyPathExpr + "+"
		if intent.Closure == ClosureZeroOrMore {
			path = hierarchyPathExpr + "*"
		}
		b.WriteString("SELECT DISTINCT ?techniqueID ?techniqueLabel ?definition\nWHERE {\n")
		fmt.Fprintf(&b, "  ?n %s <%s> ;\n", path, NodeURI(string(intent.Tactic)))
		b.WriteString("     dg:id ?techniqueID ;\n")
		b.WriteString("     dg:label ?techniqueLabel .\n")
		b.WriteString("  OPTIONAL { ?n dg:description ?definition . }\n")
		writeSPARQLFilters(&b, intent, "?techniqueLabel")
		b.WriteString("}\nORDER BY ?techniqueLabel ?techniqueID")

	case PatternCoverageRanking:
		b.WriteString("SELECT ?techniqueLabel ?techniqueID (COUNT(DISTINCT ?a) AS ?attacksCovered)\n")
		b.WriteString("WHERE {\n")
		b.WriteString("  ?d dg:framework \"D3FEND\" ;\n")
		b.WriteString("     dg:id ?techniqueID ;\n")
		b.WriteString("     dg:label ?techniqueLabel ;\n")
		b.WriteString("     dg:counters ?a .\n")
		writeSPARQLFilters(&b, intent, "?techniqueLabel")
		b.WriteString("}\nGROUP BY ?techniqueLabel ?techniqueID\n")
		b.WriteString("ORDER BY DESC(?attacksCovered) ?techniqueLabel")

	case PatternFrameworkSearch:
		b.WriteString("SELECT ?framework ?id ?label\nWHERE {\n  VALUES ?framework { ")
		for _, fw := range taxonomyFrameworks() {
			b.WriteString("\"" + fw + "\" ")
		}
		b.WriteString("}\n")
		b.WriteString("  ?n dg:framework ?framework ;\n")
		b.WriteString("     dg:id ?id ;\n")
		b.WriteString("     dg:label ?label .\n")
		writeSPARQLFilters(&b, intent, "?label")
		b.WriteString("}\nORDER BY ?framework ?id")
	}

	if intent.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d", intent.Limit)
	}
	return b.String(), nil
}

// writeSPARQLFilters appends the FILTER clause for the intent's label
// filters. OR in any mode, AND in all mode; each term tests every variable.
func writeSPARQLFilters(b *strings.Builder, intent Intent, vars ...string) {
	if len(intent.Filters) == 0 {
		return
	}
	joiner := " || "
	if intent.Mode == FilterModeAll {
		joiner = " && "
	}
	terms := make([]string, 0, len(intent.Filters))
	for _, f := range intent.Filters {
		tests := make([]string, 0, len(vars))
		for _, v := range vars {
			tests = append(tests, fmt.Sprintf("CONTAINS(LCASE(%s), %s)", v, sparqlLiteral(f)))
		}
		terms = append(terms, "("+strings.Join(tests, " || ")+")")
	}
	b.WriteString("  FILTER(" + strings.Join(terms, joiner) + ")\n")
}

// sparqlLiteral renders a string as a quoted SPARQL literal.
func sparqlLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}

// NodeTriples serializes a canonical node as N-Triples for bulk upload.
// Triples have set semantics in an RDF store, so re-uploading the same node
// is a natural upsert.
func NodeTriples(n *Node) []string {
	subject := "<" + NodeURI(n.ID) + ">"
	triples := []string{
		fmt.Sprintf("%s <%sid> %s .", subject, schemaPrefix, sparqlLiteral(n.ID)),
	}
	for _, fw := range n.Frameworks {
		triples = append(triples,
			fmt.Sprintf("%s <%sframework> %s .", subject, schemaPrefix, sparqlLiteral(string(fw))))
	}
	if n.Label != "" {
		triples = append(triples,
			fmt.Sprintf("%s <%slabel> %s .", subject, schemaPrefix, sparqlLiteral(n.Label)))
	}
	if n.Description != "" {
		triples = append(triples,
			fmt.Sprintf("%s <%sdescription> %s .", subject, schemaPrefix, sparqlLiteral(n.Description)))
	}
	if n.Mitigations != "" {
		triples = append(triples,
			fmt.Sprintf("%s <%smitigations> %s .", subject, schemaPrefix, sparqlLiteral(n.Mitigations)))
	}
	return triples
}

// EdgeTriple serializes a canonical edge as one N-Triple.
func EdgeTriple(e Edge) string {
	return fmt.Sprintf("<%s> <%s%s> <%s> .",
		NodeURI(e.Source), schemaPrefix, e.Type, NodeURI(e.Target))
}
