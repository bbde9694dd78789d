package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// MemoryClient is an in-process GraphClient holding the canonical model in
// maps. It is the reference implementation of the pattern semantics (the
// remote backends translate the same Intent into their query languages) and
// doubles as the test backend and a zero-dependency local mode.
type MemoryClient struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string]Edge
}

// NewMemoryClient creates an empty in-memory graph client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		nodes: make(map[string]*Node),
		edges: make(map[string]Edge),
	}
}

// Connect is a no-op for the in-memory client.
func (m *MemoryClient) Connect(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory client.
func (m *MemoryClient) Close(ctx context.Context) error { return nil }

// Health always reports healthy.
func (m *MemoryClient) Health(ctx context.Context) types.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.Healthy(fmt.Sprintf("in-memory graph: %d nodes, %d edges", len(m.nodes), len(m.edges)))
}

// UpsertNode creates or merges a node by ID.
func (m *MemoryClient) UpsertNode(ctx context.Context, node *Node) error {
	if node == nil || node.ID == "" {
		return types.NewError(types.UPSERT_FAILED, "node must have a non-empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.nodes[node.ID]; ok {
		existing.Merge(node)
		return nil
	}
	m.nodes[node.ID] = node.Clone()
	return nil
}

// UpsertEdge records an edge, collapsing duplicate triples.
func (m *MemoryClient) UpsertEdge(ctx context.Context, edge Edge) error {
	if edge.Source == "" || edge.Target == "" {
		return types.NewError(types.UPSERT_FAILED, "edge endpoints must be non-empty")
	}
	if !edge.Type.IsValid() {
		return types.NewError(types.UPSERT_FAILED,
			fmt.Sprintf("unknown relation type %q", edge.Type))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edge.Key()] = edge
	return nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryClient) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// EdgeCount returns the number of stored edges.
func (m *MemoryClient) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}

// GetNode returns a copy of the node with the given ID, or nil.
func (m *MemoryClient) GetNode(id string) *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.nodes[id]; ok {
		return n.Clone()
	}
	return nil
}

// ScanEmbedded returns all nodes carrying an embedding.
func (m *MemoryClient) ScanEmbedded(ctx context.Context) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Node
	for _, n := range m.nodes {
		if len(n.Embedding) > 0 {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// ScanUnembedded returns all nodes not yet carrying an embedding.
func (m *MemoryClient) ScanUnembedded(ctx context.Context) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Node
	for _, n := range m.nodes {
		if len(n.Embedding) == 0 {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// SetEmbedding attaches an embedding vector to a node.
func (m *MemoryClient) SetEmbedding(ctx context.Context, nodeID string, vector []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return types.NewError(types.UPSERT_FAILED,
			fmt.Sprintf("node %s not found", nodeID))
	}
	n.Embedding = append([]float64(nil), vector...)
	return nil
}

// QueryPattern resolves an Intent against the in-memory graph.
func (m *MemoryClient) QueryPattern(ctx context.Context, intent Intent) (Rows, error) {
	if err := intent.Normalize(); err != nil {
		return Rows{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch intent.Pattern {
	case PatternCountermeasures:
		return m.countermeasures(intent)
	case PatternTacticOverview:
		return m.tacticOverview()
	case PatternTechniquesUnderTactic:
		return m.techniquesUnderTactic(intent)
	case PatternCoverageRanking:
		return m.coverageRanking(intent)
	case PatternFrameworkSearch:
		return m.frameworkSearch(intent)
	default:
		return Rows{}, types.NewError(types.UNKNOWN_PATTERN,
			fmt.Sprintf("unknown query pattern %q", intent.Pattern))
	}
}

// matchFilters applies the intent's case-insensitive substring filters to
// one or more candidate labels. With no filters every row matches. In any
// mode a single term contained in any label suffices; in all mode every
// term must be contained in at least one label.
func matchFilters(intent Intent, labels ...string) bool {
	if len(intent.Filters) == 0 {
		return true
	}
	lowered := make([]string, len(labels))
	for i, l := range labels {
		lowered[i] = strings.ToLower(l)
	}
	contains := func(term string) bool {
		for _, l := range lowered {
			if strings.Contains(l, term) {
				return true
			}
		}
		return false
	}
	if intent.Mode == FilterModeAll {
		for _, term := range intent.Filters {
			if !contains(term) {
				return false
			}
		}
		return true
	}
	for _, term := range intent.Filters {
		if contains(term) {
			return true
		}
	}
	return false
}

// hierarchyParents returns labels of direct hierarchy parents of a node.
func (m *MemoryClient) hierarchyParents(id string) []string {
	var out []string
	for _, e := range m.edges {
		if e.Source != id || !e.Type.IsHierarchical() {
			continue
		}
		if p, ok := m.nodes[e.Target]; ok && p.Label != "" {
			out = append(out, p.Label)
		}
	}
	return out
}

func (m *MemoryClient) countermeasures(intent Intent) (Rows, error) {
	cols := []string{"attackLabel", "defensiveLabel", "defensiveID"}
	if intent.IncludeParent {
		cols = append(cols, "parentLabel")
	}
	rows := Rows{Columns: cols}

	for _, e := range m.edges {
		if e.Type != RelationCounters {
			continue
		}
		def, ok := m.nodes[e.Source]
		if !ok || def.Label == "" || !def.HasFramework(FrameworkD3FEND) {
			continue
		}
		atk, ok := m.nodes[e.Target]
		if !ok || atk.Label == "" {
			continue
		}
		if !matchFilters(intent, atk.Label, def.Label) {
			continue
		}
		rec := map[string]any{
			"attackLabel":    atk.Label,
			"defensiveLabel": def.Label,
			"defensiveID":    defensiveID(def),
		}
		if intent.IncludeParent {
			// Left-outer: rows without a parent keep the binding absent.
			if parents := m.hierarchyParents(def.ID); len(parents) > 0 {
				rec["parentLabel"] = minString(parents)
			}
		}
		rows.Records = append(rows.Records, rec)
	}
	return rows, nil
}

func (m *MemoryClient) tacticOverview() (Rows, error) {
	rows := Rows{Columns: ColumnsFor(PatternTacticOverview)}
	for _, tactic := range Tactics() {
		distinct := make(map[string]bool)
		for _, e := range m.edges {
			if e.Type == RelationEnables && e.Target == string(tactic) {
				distinct[e.Source] = true
			}
		}
		rows.Records = append(rows.Records, map[string]any{
			"tacticLabel":    string(tactic),
			"techniqueCount": len(distinct),
		})
	}
	return rows, nil
}

func (m *MemoryClient) techniquesUnderTactic(intent Intent) (Rows, error) {
	anchor := string(intent.Tactic)
	if _, ok := m.nodes[anchor]; !ok {
		// A loaded graph without the tactic anchor yields zero rows, which
		// is a valid empty result rather than a failure.
		return Rows{Columns: ColumnsFor(PatternTechniquesUnderTactic)}, nil
	}

	descendants, err := m.hierarchyDescendants(anchor)
	if err != nil {
		return Rows{}, err
	}

	rows := Rows{Columns: ColumnsFor(PatternTechniquesUnderTactic)}
	emit := func(n *Node) {
		if n.Label == "" || !matchFilters(intent, n.Label) {
			return
		}
		rec := map[string]any{
			"techniqueID":    n.ID,
			"techniqueLabel": n.Label,
		}
		if n.Description != "" {
			rec["definition"] = n.Description
		}
		rows.Records = append(rows.Records, rec)
	}

	if intent.Closure == ClosureZeroOrMore {
		emit(m.nodes[anchor])
	}
	for id := range descendants {
		emit(m.nodes[id])
	}
	return rows, nil
}

// hierarchyDescendants computes the set of nodes reaching the anchor through
// one or more hierarchical edges. Hierarchical edges must form a DAG; a
// cycle is detected during traversal and reported as HIERARCHY_CYCLE.
func (m *MemoryClient) hierarchyDescendants(anchor string) (map[string]bool, error) {
	// Reverse adjacency: parent -> children over hierarchical edges.
	children := make(map[string][]string)
	for _, e := range m.edges {
		if e.Type.IsHierarchical() {
			children[e.Target] = append(children[e.Target], e.Source)
		}
	}

	result := make(map[string]bool)
	onStack := map[string]bool{anchor: true}

	var visit func(id string) error
	visit = func(id string) error {
		for _, child := range children[id] {
			if onStack[child] {
				return types.NewError(types.HIERARCHY_CYCLE,
					fmt.Sprintf("hierarchy cycle detected through %s", child))
			}
			if result[child] {
				continue
			}
			result[child] = true
			onStack[child] = true
			if err := visit(child); err != nil {
				return err
			}
			onStack[child] = false
		}
		return nil
	}
	if err := visit(anchor); err != nil {
		return nil, err
	}
	delete(result, anchor)
	return result, nil
}

func (m *MemoryClient) coverageRanking(intent Intent) (Rows, error) {
	covered := make(map[string]map[string]bool)
	for _, e := range m.edges {
		if e.Type != RelationCounters {
			continue
		}
		def, ok := m.nodes[e.Source]
		if !ok || def.Label == "" || !def.HasFramework(FrameworkD3FEND) {
			continue
		}
		if !matchFilters(intent, def.Label) {
			continue
		}
		if covered[e.Source] == nil {
			covered[e.Source] = make(map[string]bool)
		}
		covered[e.Source][e.Target] = true
	}

	rows := Rows{Columns: ColumnsFor(PatternCoverageRanking)}
	for id, targets := range covered {
		def := m.nodes[id]
		rows.Records = append(rows.Records, map[string]any{
			"techniqueLabel": def.Label,
			"techniqueID":    defensiveID(def),
			"attacksCovered": len(targets),
		})
	}
	return rows, nil
}

func (m *MemoryClient) frameworkSearch(intent Intent) (Rows, error) {
	rows := Rows{Columns: ColumnsFor(PatternFrameworkSearch)}
	for _, n := range m.nodes {
		if n.Label == "" || !matchFilters(intent, n.Label) {
			continue
		}
		for _, fw := range n.Frameworks {
			switch fw {
			case FrameworkD3FEND, FrameworkATTACK, FrameworkCWE, FrameworkCAPEC, FrameworkATLAS:
				rows.Records = append(rows.Records, map[string]any{
					"framework": string(fw),
					"id":        n.ID,
					"label":     n.Label,
				})
			}
		}
	}
	return rows, nil
}

// defensiveID prefers the d3fend-id property, falling back to the node ID.
func defensiveID(n *Node) string {
	if v, ok := n.Properties["d3fend-id"].(string); ok && v != "" {
		return v
	}
	return n.ID
}

func minString(ss []string) string {
	min := ss[0]
	for _, s := range ss[1:] {
		if s < min {
			min = s
		}
	}
	return min
}
