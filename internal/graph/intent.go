package graph

import (
	"fmt"
	"strings"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// Pattern names a structured retrieval template. Each pattern corresponds to
// one traversal shape over the canonical model; backends translate the same
// Intent into their native query form.
type Pattern string

const (
	// PatternCountermeasures joins defensive techniques to the attack
	// techniques they counter, optionally attaching the hierarchy parent of
	// each defensive technique (left-outer: rows without a parent survive).
	PatternCountermeasures Pattern = "countermeasures"

	// PatternTacticOverview counts distinct techniques enabling each of the
	// five defensive tactic categories.
	PatternTacticOverview Pattern = "tactic-overview"

	// PatternTechniquesUnderTactic lists techniques in the hierarchy closure
	// of a tactic. The Closure field selects one-or-more vs zero-or-more
	// steps; the two are distinct and never conflated.
	PatternTechniquesUnderTactic Pattern = "techniques-under-tactic"

	// PatternCoverageRanking ranks defensive techniques by the number of
	// distinct attack techniques they counter.
	PatternCoverageRanking Pattern = "coverage-ranking"

	// PatternFrameworkSearch searches node labels across all taxonomies.
	PatternFrameworkSearch Pattern = "framework-search"
)

// String returns the string representation of Pattern.
func (p Pattern) String() string {
	return string(p)
}

// IsValid checks if the Pattern is a recognized template.
func (p Pattern) IsValid() bool {
	switch p {
	case PatternCountermeasures, PatternTacticOverview,
		PatternTechniquesUnderTactic, PatternCoverageRanking,
		PatternFrameworkSearch:
		return true
	default:
		return false
	}
}

// ParsePattern resolves a pattern name, accepting the canonical hyphenated
// form case-insensitively.
func ParsePattern(name string) (Pattern, error) {
	p := Pattern(strings.ToLower(strings.TrimSpace(name)))
	if !p.IsValid() {
		return "", types.NewError(types.UNKNOWN_PATTERN,
			fmt.Sprintf("unknown query pattern %q", name))
	}
	return p, nil
}

// Closure selects the reachability variant for hierarchy traversals.
type Closure string

const (
	// ClosureOneOrMore requires at least one hierarchical edge between the
	// node and the anchor: the anchor itself is excluded.
	ClosureOneOrMore Closure = "one-or-more"

	// ClosureZeroOrMore permits zero hops: the anchor node is included.
	ClosureZeroOrMore Closure = "zero-or-more"
)

// IsValid checks if the Closure is a recognized variant.
func (c Closure) IsValid() bool {
	return c == ClosureOneOrMore || c == ClosureZeroOrMore
}

// FilterMode selects how multiple label filters combine.
type FilterMode string

const (
	// FilterModeAny matches rows whose label contains any filter term
	// (OR-combined, the form used by the observed query templates).
	FilterModeAny FilterMode = "any"

	// FilterModeAll matches rows whose label contains every filter term.
	FilterModeAll FilterMode = "all"
)

// IsValid checks if the FilterMode is a recognized value.
func (m FilterMode) IsValid() bool {
	return m == FilterModeAny || m == FilterModeAll
}

// Intent is a structured retrieval request against the canonical graph
// model. It carries no backend-specific syntax; each GraphClient translates
// it into its own query language.
type Intent struct {
	Pattern Pattern `json:"pattern"`

	// Filters are case-insensitive substring tests against node labels.
	// Mode selects OR vs AND combination; empty Mode defaults to any.
	Filters []string   `json:"filters,omitempty"`
	Mode    FilterMode `json:"mode,omitempty"`

	// Tactic restricts tactic-scoped patterns to one category.
	Tactic Tactic `json:"tactic,omitempty"`

	// Closure selects the hierarchy reachability variant for
	// techniques-under-tactic. Empty defaults to one-or-more.
	Closure Closure `json:"closure,omitempty"`

	// IncludeParent attaches a parentLabel column to countermeasure rows
	// without filtering out rows lacking a parent.
	IncludeParent bool `json:"include_parent,omitempty"`

	// Limit caps the number of returned rows. Zero means the planner's
	// default cap for the pattern. Exceeding rows truncate, never error.
	Limit int `json:"limit,omitempty"`
}

// Normalize fills defaulted fields and validates the intent. An unresolvable
// pattern, tactic, closure, or filter mode yields UNKNOWN_PATTERN.
func (in *Intent) Normalize() error {
	if !in.Pattern.IsValid() {
		return types.NewError(types.UNKNOWN_PATTERN,
			fmt.Sprintf("unknown query pattern %q", in.Pattern))
	}
	if in.Mode == "" {
		in.Mode = FilterModeAny
	}
	if !in.Mode.IsValid() {
		return types.NewError(types.UNKNOWN_PATTERN,
			fmt.Sprintf("unknown filter mode %q", in.Mode))
	}
	if in.Closure == "" {
		in.Closure = ClosureOneOrMore
	}
	if !in.Closure.IsValid() {
		return types.NewError(types.UNKNOWN_PATTERN,
			fmt.Sprintf("unknown closure variant %q", in.Closure))
	}
	if in.Pattern == PatternTechniquesUnderTactic {
		if in.Tactic == "" {
			return types.NewError(types.UNKNOWN_PATTERN,
				"techniques-under-tactic requires a tactic")
		}
		if _, ok := ParseTactic(string(in.Tactic)); !ok {
			return types.NewError(types.UNKNOWN_PATTERN,
				fmt.Sprintf("unknown tactic %q", in.Tactic))
		}
	}
	if in.Limit < 0 {
		return types.NewError(types.UNKNOWN_PATTERN,
			fmt.Sprintf("negative limit %d", in.Limit))
	}
	for i, f := range in.Filters {
		in.Filters[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return nil
}

// Rows is the result of a structured pattern query: named columns and
// records of bound variables. Missing optional bindings are absent from the
// record map rather than bound to empty values.
type Rows struct {
	Columns []string         `json:"columns"`
	Records []map[string]any `json:"records"`
}

// Len returns the number of records.
func (r Rows) Len() int {
	return len(r.Records)
}

// Column names bound by each pattern, in declared order.
var patternColumns = map[Pattern][]string{
	PatternCountermeasures:       {"attackLabel", "defensiveLabel", "defensiveID", "parentLabel"},
	PatternTacticOverview:        {"tacticLabel", "techniqueCount"},
	PatternTechniquesUnderTactic: {"techniqueID", "techniqueLabel", "definition"},
	PatternCoverageRanking:       {"techniqueLabel", "techniqueID", "attacksCovered"},
	PatternFrameworkSearch:       {"framework", "id", "label"},
}

// ColumnsFor returns the declared column set for a pattern.
func ColumnsFor(p Pattern) []string {
	cols := patternColumns[p]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}
