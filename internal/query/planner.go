// Package query plans structured retrieval over the canonical graph model.
// The planner owns the result contract: whatever ordering or row caps a
// backend applied remotely, the planner re-applies them here so every backend
// returns identical rows for the same intent.
package query

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
)

// Row caps. A zero intent limit resolves to the pattern's default; explicit
// limits are honored up to the supported maximum.
const (
	MaxLimit      = 200
	DefaultLimit  = 200
	OverviewLimit = 20
)

// Planner executes pattern intents against a graph backend and enforces the
// backend-independent result contract: deterministic ordering and row caps.
type Planner struct {
	client graph.GraphClient
	logger *slog.Logger
}

// NewPlanner creates a Planner over the given backend.
func NewPlanner(client graph.GraphClient, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{client: client, logger: logger}
}

// EffectiveLimit resolves the row cap for an intent: the pattern default when
// unset, otherwise the requested limit capped at MaxLimit.
func EffectiveLimit(intent graph.Intent) int {
	if intent.Limit <= 0 {
		if intent.Pattern == graph.PatternTacticOverview {
			return OverviewLimit
		}
		return DefaultLimit
	}
	if intent.Limit > MaxLimit {
		return MaxLimit
	}
	return intent.Limit
}

// Execute runs the intent and returns rows in the pattern's declared order,
// capped at the effective limit. Zero rows is a valid result, never an error.
func (p *Planner) Execute(ctx context.Context, intent graph.Intent) (graph.Rows, error) {
	if err := intent.Normalize(); err != nil {
		return graph.Rows{}, err
	}
	limit := EffectiveLimit(intent)
	intent.Limit = limit

	start := time.Now()
	rows, err := p.client.QueryPattern(ctx, intent)
	if err != nil {
		p.logger.Error("pattern query failed",
			"pattern", intent.Pattern,
			"error", err)
		return graph.Rows{}, err
	}

	sortRows(intent.Pattern, &rows)
	if len(rows.Records) > limit {
		rows.Records = rows.Records[:limit]
	}

	p.logger.Debug("pattern query executed",
		"pattern", intent.Pattern,
		"rows", len(rows.Records),
		"elapsed", time.Since(start))
	return rows, nil
}

// sortRows applies the pattern's declared ordering. Count columns sort
// descending; every ordering ends on ascending text keys so ties break
// deterministically.
func sortRows(pattern graph.Pattern, rows *graph.Rows) {
	var less func(a, b map[string]any) bool
	switch pattern {
	case graph.PatternCountermeasures:
		less = byStrings("attackLabel", "defensiveLabel", "defensiveID")
	case graph.PatternTacticOverview:
		less = byCountThenStrings("techniqueCount", "tacticLabel")
	case graph.PatternTechniquesUnderTactic:
		less = byStrings("techniqueLabel", "techniqueID")
	case graph.PatternCoverageRanking:
		less = byCountThenStrings("attacksCovered", "techniqueLabel")
	case graph.PatternFrameworkSearch:
		less = byStrings("framework", "id")
	default:
		return
	}
	sort.SliceStable(rows.Records, func(i, j int) bool {
		return less(rows.Records[i], rows.Records[j])
	})
}

func byStrings(keys ...string) func(a, b map[string]any) bool {
	return func(a, b map[string]any) bool {
		for _, k := range keys {
			av, bv := stringAt(a, k), stringAt(b, k)
			if av != bv {
				return av < bv
			}
		}
		return false
	}
}

func byCountThenStrings(countKey string, keys ...string) func(a, b map[string]any) bool {
	tie := byStrings(keys...)
	return func(a, b map[string]any) bool {
		ac, bc := intAt(a, countKey), intAt(b, countKey)
		if ac != bc {
			return ac > bc
		}
		return tie(a, b)
	}
}

func stringAt(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

// intAt reads a count column. Backends disagree on the numeric type: the
// memory backend binds int, the bolt driver int64, JSON decoding float64.
func intAt(rec map[string]any, key string) int {
	switch v := rec[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
