package graph

import (
	"sort"
	"strings"
)

// Framework identifies the taxonomy a node belongs to. A node may carry
// several framework tags at once (e.g., a D3FEND technique that is also a
// tactic anchor), so nodes hold a set of frameworks rather than a single one.
type Framework string

const (
	FrameworkD3FEND Framework = "D3FEND"
	FrameworkATTACK Framework = "ATTACK"
	FrameworkCWE    Framework = "CWE"
	FrameworkCAPEC  Framework = "CAPEC"
	FrameworkATLAS  Framework = "ATLAS"

	// Structural tags used alongside the taxonomy tags.
	FrameworkTactic      Framework = "Tactic"
	FrameworkCWECategory Framework = "CWECategory"
)

// String returns the string representation of Framework.
func (f Framework) String() string {
	return string(f)
}

// IsValid checks if the Framework is a recognized value.
func (f Framework) IsValid() bool {
	switch f {
	case FrameworkD3FEND, FrameworkATTACK, FrameworkCWE, FrameworkCAPEC,
		FrameworkATLAS, FrameworkTactic, FrameworkCWECategory:
		return true
	default:
		return false
	}
}

// Tactic is one of the five top-level D3FEND defensive tactic categories.
type Tactic string

const (
	TacticHarden  Tactic = "Harden"
	TacticDetect  Tactic = "Detect"
	TacticIsolate Tactic = "Isolate"
	TacticDeceive Tactic = "Deceive"
	TacticEvict   Tactic = "Evict"
)

// Tactics lists all defensive tactic categories in canonical order.
func Tactics() []Tactic {
	return []Tactic{TacticHarden, TacticDetect, TacticIsolate, TacticDeceive, TacticEvict}
}

// ParseTactic resolves a case-insensitive tactic name.
// Returns false when the name is not one of the five tactic categories.
func ParseTactic(name string) (Tactic, bool) {
	for _, t := range Tactics() {
		if strings.EqualFold(string(t), name) {
			return t, true
		}
	}
	return "", false
}

// String returns the string representation of Tactic.
func (t Tactic) String() string {
	return string(t)
}

// RelationType represents the type of a directed edge between two nodes.
// The set is closed: hierarchical relations within a taxonomy, defensive
// semantics from D3FEND, and cross-taxonomy links.
type RelationType string

const (
	// Hierarchical relations. These must form a DAG per taxonomy.
	RelationSubClassOf RelationType = "subClassOf"
	RelationChildOf    RelationType = "childOf"
	RelationMemberOf   RelationType = "memberOf"

	// Defensive-semantic relations.
	RelationCounters RelationType = "counters"
	RelationEnables  RelationType = "enables"
	RelationAnalyzes RelationType = "analyzes"
	RelationMonitors RelationType = "monitors"
	RelationFilters  RelationType = "filters"
	RelationBlocks   RelationType = "blocks"

	// Cross-taxonomy relations.
	RelationRelatedTo RelationType = "relatedTo"
	RelationExplores  RelationType = "explores"
	RelationMapsTo    RelationType = "mapsTo"
)

// String returns the string representation of RelationType.
func (rt RelationType) String() string {
	return string(rt)
}

// IsValid checks if the RelationType is a member of the closed set.
func (rt RelationType) IsValid() bool {
	switch rt {
	case RelationSubClassOf, RelationChildOf, RelationMemberOf,
		RelationCounters, RelationEnables, RelationAnalyzes,
		RelationMonitors, RelationFilters, RelationBlocks,
		RelationRelatedTo, RelationExplores, RelationMapsTo:
		return true
	default:
		return false
	}
}

// IsHierarchical reports whether the relation participates in transitive
// hierarchy closures.
func (rt RelationType) IsHierarchical() bool {
	switch rt {
	case RelationSubClassOf, RelationChildOf, RelationMemberOf:
		return true
	default:
		return false
	}
}

// Node is a taxonomy entity in the canonical graph model. The ID is the
// stable merge key: re-ingesting the same source data upserts by ID and
// never creates duplicates.
type Node struct {
	ID          string      `json:"id"`
	Frameworks  []Framework `json:"frameworks"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	Mitigations string      `json:"mitigations,omitempty"`

	// Embedding is present only after the embedding pass has run.
	// Absence means "not yet embedded", not an error.
	Embedding []float64 `json:"embedding,omitempty"`

	// Properties holds taxonomy-specific attributes that have no canonical
	// field (d3fend-id, abstraction, platforms, ...).
	Properties map[string]any `json:"properties,omitempty"`
}

// NewNode creates a Node with the given ID, label, and framework tags.
func NewNode(id, label string, frameworks ...Framework) *Node {
	return &Node{
		ID:         id,
		Frameworks: frameworks,
		Label:      label,
		Properties: make(map[string]any),
	}
}

// HasFramework checks whether the node carries the given framework tag.
func (n *Node) HasFramework(f Framework) bool {
	for _, fw := range n.Frameworks {
		if fw == f {
			return true
		}
	}
	return false
}

// WithProperty sets a taxonomy-specific property on the node.
// Returns the node for method chaining.
func (n *Node) WithProperty(key string, value any) *Node {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = value
	return n
}

// WithDescription sets the description.
// Returns the node for method chaining.
func (n *Node) WithDescription(desc string) *Node {
	n.Description = desc
	return n
}

// WithMitigations sets the mitigations text.
// Returns the node for method chaining.
func (n *Node) WithMitigations(m string) *Node {
	n.Mitigations = m
	return n
}

// Merge folds another node with the same ID into this one, implementing the
// upsert semantics of the canonical model: framework tags union (sorted for
// determinism), non-empty incoming scalar fields win, an existing embedding
// survives unless the incoming node carries one, and properties merge by key.
func (n *Node) Merge(other *Node) {
	seen := make(map[Framework]bool, len(n.Frameworks))
	for _, f := range n.Frameworks {
		seen[f] = true
	}
	for _, f := range other.Frameworks {
		if !seen[f] {
			n.Frameworks = append(n.Frameworks, f)
			seen[f] = true
		}
	}
	sort.Slice(n.Frameworks, func(i, j int) bool { return n.Frameworks[i] < n.Frameworks[j] })

	if other.Label != "" {
		n.Label = other.Label
	}
	if other.Description != "" {
		n.Description = other.Description
	}
	if other.Mitigations != "" {
		n.Mitigations = other.Mitigations
	}
	if len(other.Embedding) > 0 {
		n.Embedding = other.Embedding
	}
	for k, v := range other.Properties {
		n.WithProperty(k, v)
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Frameworks = append([]Framework(nil), n.Frameworks...)
	cp.Embedding = append([]float64(nil), n.Embedding...)
	if n.Properties != nil {
		cp.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}

// Edge is a typed, directed relation between two nodes, identified by the
// (Source, Type, Target) triple. Duplicate edges of the same triple collapse
// to one on upsert; different types between the same pair coexist.
type Edge struct {
	Source string       `json:"source"`
	Type   RelationType `json:"type"`
	Target string       `json:"target"`
}

// Key returns the merge key for the edge triple.
func (e Edge) Key() string {
	return e.Source + "\x00" + string(e.Type) + "\x00" + e.Target
}
