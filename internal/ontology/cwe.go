package ontology

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// WeaknessRecord is one parsed CWE weakness in the cached record format
// produced by the fetcher.
type WeaknessRecord struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Abstraction         string            `json:"abstraction"`
	Status              string            `json:"status"`
	Description         string            `json:"description"`
	ExtendedDescription string            `json:"extended_description"`
	Likelihood          string            `json:"likelihood"`
	Platforms           []string          `json:"platforms"`
	Consequences        []Consequence     `json:"consequences"`
	Mitigations         []Mitigation      `json:"mitigations"`
	Detection           []DetectionMethod `json:"detection"`
	IntroPhases         []string          `json:"intro_phases"`
	Taxonomy            []TaxonomyMapping `json:"taxonomy"`
	ObservedExamples    []ObservedExample `json:"observed_examples"`
	Parents             []string          `json:"parents"`
	MemberOf            []MemberRef       `json:"member_of"`
}

// Consequence is one common consequence of a weakness.
type Consequence struct {
	Scope  string `json:"scope"`
	Impact string `json:"impact"`
	Note   string `json:"note,omitempty"`
}

// Mitigation is one potential mitigation of a weakness.
type Mitigation struct {
	Phases      []string `json:"phases"`
	Description string   `json:"description"`
}

// DetectionMethod is one way of detecting a weakness.
type DetectionMethod struct {
	Method        string `json:"method"`
	Description   string `json:"description"`
	Effectiveness string `json:"effectiveness"`
}

// TaxonomyMapping links a weakness to an entry in another taxonomy.
type TaxonomyMapping struct {
	Taxonomy string `json:"taxonomy"`
	ID       string `json:"id"`
	Name     string `json:"name"`
}

// ObservedExample is a real-world occurrence of a weakness.
type ObservedExample struct {
	Reference   string `json:"reference"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// MemberRef links a weakness to a category within a view.
type MemberRef struct {
	CategoryID string `json:"category_id"`
	ViewID     string `json:"view_id"`
}

// CategoryRecord is one CWE category (from the view-699 walk).
type CategoryRecord struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Summary string   `json:"summary"`
	ViewIDs []string `json:"view_ids"`
	Members []string `json:"members"`
}

// MitigationsText joins a weakness's mitigations into one text block, each
// entry prefixed with its lifecycle phases. The joined text feeds both the
// canonical Mitigations field and the embedding pass.
func (w WeaknessRecord) MitigationsText() string {
	parts := make([]string, 0, len(w.Mitigations))
	for _, m := range w.Mitigations {
		desc := strings.TrimSpace(m.Description)
		if desc == "" && len(m.Phases) == 0 {
			continue
		}
		if len(m.Phases) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(m.Phases, ", "), desc))
		} else {
			parts = append(parts, desc)
		}
	}
	return strings.Join(parts, "\n")
}

// NormalizeWeakness converts a weakness record into a canonical node plus
// its hierarchy edges: childOf toward each parent weakness and memberOf
// toward each category.
func NormalizeWeakness(w WeaknessRecord) (Batch, error) {
	if w.ID == "" {
		return Batch{}, types.NewError(types.MALFORMED_RECORD, "weakness record has no id")
	}

	node := graph.NewNode(w.ID, w.Name, graph.FrameworkCWE).
		WithDescription(w.Description).
		WithMitigations(w.MitigationsText())
	setIfNotEmpty(node, "abstraction", w.Abstraction)
	setIfNotEmpty(node, "status", w.Status)
	setIfNotEmpty(node, "likelihood", w.Likelihood)
	setIfNotEmpty(node, "extended_description", w.ExtendedDescription)
	if len(w.Platforms) > 0 {
		node.WithProperty("platforms", strings.Join(w.Platforms, ", "))
	}
	if len(w.IntroPhases) > 0 {
		node.WithProperty("intro_phases", strings.Join(w.IntroPhases, ", "))
	}
	if len(w.Detection) > 0 {
		methods := make([]string, len(w.Detection))
		for i, d := range w.Detection {
			methods[i] = d.Method
		}
		node.WithProperty("detection_methods", strings.Join(methods, ", "))
	}

	batch := Batch{Nodes: []*graph.Node{node}}
	for _, parent := range w.Parents {
		if parent == "" || parent == w.ID {
			batch.Skipped++
			continue
		}
		batch.Edges = append(batch.Edges, graph.Edge{
			Source: w.ID,
			Type:   graph.RelationChildOf,
			Target: parent,
		})
	}
	for _, ref := range w.MemberOf {
		if ref.CategoryID == "" {
			batch.Skipped++
			continue
		}
		batch.Edges = append(batch.Edges, graph.Edge{
			Source: w.ID,
			Type:   graph.RelationMemberOf,
			Target: ref.CategoryID,
		})
	}
	return batch, nil
}

// NormalizeCategory converts a category record into a CWECategory node plus
// memberOf edges from each member weakness.
func NormalizeCategory(c CategoryRecord) (Batch, error) {
	if c.ID == "" {
		return Batch{}, types.NewError(types.MALFORMED_RECORD, "category record has no id")
	}

	node := graph.NewNode(c.ID, c.Name, graph.FrameworkCWE, graph.FrameworkCWECategory).
		WithDescription(c.Summary)
	if len(c.ViewIDs) > 0 {
		node.WithProperty("view_ids", strings.Join(c.ViewIDs, ", "))
	}

	batch := Batch{Nodes: []*graph.Node{node}}
	for _, member := range c.Members {
		if member == "" {
			batch.Skipped++
			continue
		}
		batch.Edges = append(batch.Edges, graph.Edge{
			Source: member,
			Type:   graph.RelationMemberOf,
			Target: c.ID,
		})
	}
	return batch, nil
}

// ParseWeaknessFile normalizes a JSON array of weakness records. Individual
// malformed records are skipped and counted; only an unparseable document
// fails.
func ParseWeaknessFile(data []byte) (Batch, error) {
	var records []WeaknessRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Batch{}, types.WrapError(types.MALFORMED_RECORD,
			"failed to parse weakness records", err)
	}
	var batch Batch
	for _, w := range records {
		b, err := NormalizeWeakness(w)
		if err != nil {
			batch.Skipped++
			continue
		}
		batch.Nodes = append(batch.Nodes, b.Nodes...)
		batch.Edges = append(batch.Edges, b.Edges...)
		batch.Skipped += b.Skipped
	}
	return batch, nil
}

// ParseCategoryFile normalizes a JSON array of category records.
func ParseCategoryFile(data []byte) (Batch, error) {
	var records []CategoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Batch{}, types.WrapError(types.MALFORMED_RECORD,
			"failed to parse category records", err)
	}
	var batch Batch
	for _, c := range records {
		b, err := NormalizeCategory(c)
		if err != nil {
			batch.Skipped++
			continue
		}
		batch.Nodes = append(batch.Nodes, b.Nodes...)
		batch.Edges = append(batch.Edges, b.Edges...)
		batch.Skipped += b.Skipped
	}
	return batch, nil
}

func setIfNotEmpty(n *graph.Node, key, value string) {
	if value != "" {
		n.WithProperty(key, value)
	}
}
