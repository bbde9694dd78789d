// Package ontology normalizes external taxonomy formats into the canonical
// graph model: STIX-like bundles for ATT&CK, CAPEC, and ATLAS, weakness
// records for CWE, plus the ingester that loads them and a fetcher for the
// CWE REST API.
package ontology

import (
	"encoding/json"
	"strings"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// Batch is the normalized output of one source document.
type Batch struct {
	Nodes []*graph.Node
	Edges []graph.Edge

	// Skipped counts malformed or unresolvable records dropped from the
	// batch. Skips are local: they never fail the batch.
	Skipped int
}

// stixBundle is the top-level envelope of a STIX-like bundle.
type stixBundle struct {
	Objects []stixObject `json:"objects"`
}

// stixObject is one object in a bundle. Only the fields the normalizer
// consumes are decoded.
type stixObject struct {
	Type               string        `json:"type"`
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	SourceRef          string        `json:"source_ref"`
	TargetRef          string        `json:"target_ref"`
	RelationshipType   string        `json:"relationship_type"`
	ExternalReferences []externalRef `json:"external_references"`
	XMitrePlatforms    []string      `json:"x_mitre_platforms"`
}

type externalRef struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id"`
}

// entityTypes are the STIX object kinds that become graph nodes. Everything
// else (markings, identities, sightings) is dropped without counting as
// malformed.
var entityTypes = map[string]bool{
	"attack-pattern":   true,
	"course-of-action": true,
	"intrusion-set":    true,
	"malware":          true,
	"tool":             true,
	"x-mitre-tactic":   true,
	"campaign":         true,
	"grouping":         true,
}

// ParseSTIXBundle normalizes a STIX-like bundle into canonical nodes and
// edges tagged with the given framework. Nodes key on their first external
// reference ID when present, falling back to the STIX ID. Relationship refs
// resolve through the in-pass ID map; a relationship whose endpoint never
// resolves is skipped, not fatal.
func ParseSTIXBundle(data []byte, framework graph.Framework) (Batch, error) {
	var bundle stixBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return Batch{}, types.WrapError(types.MALFORMED_RECORD,
			"failed to parse STIX bundle", err)
	}

	var batch Batch

	// First pass: entities and the STIX-ID to external-ID map.
	idMap := make(map[string]string)
	for _, obj := range bundle.Objects {
		if !entityTypes[obj.Type] {
			continue
		}
		if obj.ID == "" {
			batch.Skipped++
			continue
		}
		extID := obj.ID
		if len(obj.ExternalReferences) > 0 && obj.ExternalReferences[0].ExternalID != "" {
			extID = obj.ExternalReferences[0].ExternalID
		}
		idMap[obj.ID] = extID

		node := graph.NewNode(extID, obj.Name, framework).
			WithDescription(obj.Description).
			WithProperty("stix_id", obj.ID).
			WithProperty("stix_type", obj.Type)
		if len(obj.XMitrePlatforms) > 0 {
			node.WithProperty("platforms", strings.Join(obj.XMitrePlatforms, ", "))
		}
		batch.Nodes = append(batch.Nodes, node)
	}

	// Second pass: relationship objects, endpoints resolved via the ID map.
	for _, obj := range bundle.Objects {
		if obj.Type != "relationship" {
			continue
		}
		src, srcOK := idMap[obj.SourceRef]
		tgt, tgtOK := idMap[obj.TargetRef]
		if !srcOK || !tgtOK || src == tgt {
			batch.Skipped++
			continue
		}
		batch.Edges = append(batch.Edges, graph.Edge{
			Source: src,
			Type:   mapSTIXRelationship(obj.RelationshipType),
			Target: tgt,
		})
	}

	// Third pass: cross-taxonomy references carried on entities.
	for _, obj := range bundle.Objects {
		if !entityTypes[obj.Type] {
			continue
		}
		extID := idMap[obj.ID]
		if extID == "" {
			continue
		}
		for _, ref := range obj.ExternalReferences {
			if ref.ExternalID == "" || ref.ExternalID == extID {
				continue
			}
			relType, ok := crossRefRelation(ref.SourceName)
			if !ok {
				continue
			}
			batch.Edges = append(batch.Edges, graph.Edge{
				Source: extID,
				Type:   relType,
				Target: ref.ExternalID,
			})
		}
	}

	return batch, nil
}

// mapSTIXRelationship folds STIX relationship types onto the canonical
// closed relation set. Unknown types become relatedTo rather than failing.
func mapSTIXRelationship(relType string) graph.RelationType {
	switch strings.ToLower(relType) {
	case "subtechnique-of":
		return graph.RelationChildOf
	case "mitigates":
		return graph.RelationCounters
	default:
		return graph.RelationRelatedTo
	}
}

// crossRefRelation maps an external-reference source name to the canonical
// cross-taxonomy relation.
func crossRefRelation(sourceName string) (graph.RelationType, bool) {
	name := strings.ToLower(sourceName)
	switch {
	case name == "cwe":
		return graph.RelationExplores, true
	case name == "capec":
		return graph.RelationRelatedTo, true
	case strings.Contains(name, "attack"):
		return graph.RelationMapsTo, true
	default:
		return "", false
	}
}
