package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// Neo4jClient implements GraphClient against a Neo4j property-graph store.
// Nodes carry their framework tags as Neo4j labels and the canonical fields
// as properties; edges use the relation type as the relationship type.
type Neo4jClient struct {
	config ClientConfig
	driver neo4j.DriverWithContext
}

// NewNeo4jClient creates a new Neo4j client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jClient(config ClientConfig) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Neo4jClient{config: config}, nil
}

// Connect establishes a connection to the Neo4j database with exponential
// backoff on transient failures.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	driverConfig := func(cfg *neo4j.Config) {
		if c.config.MaxConnectionPoolSize > 0 {
			cfg.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		}
		cfg.ConnectionAcquisitionTimeout = time.Duration(c.config.Timeout)
	}

	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				c.driver = driver
				return nil
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(types.BACKEND_UNAVAILABLE,
				"connection attempt cancelled", ctx.Err())
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > time.Duration(c.config.Timeout) {
			delay = time.Duration(c.config.Timeout)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.WrapError(types.BACKEND_UNAVAILABLE,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapRetryableError(types.BACKEND_UNAVAILABLE,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close releases all resources and closes the database connection.
func (c *Neo4jClient) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	if err := c.driver.Close(ctx); err != nil {
		return types.WrapError(types.BACKEND_UNAVAILABLE, "failed to close driver", err)
	}
	c.driver = nil
	return nil
}

// Health returns the current health status of the Neo4j connection.
func (c *Neo4jClient) Health(ctx context.Context) types.HealthStatus {
	if c.driver == nil {
		return types.Unhealthy("driver not initialized")
	}
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}
	return types.Healthy("connected to Neo4j")
}

// UpsertNode merges a node by its canonical ID. Framework labels are added
// to the Neo4j node (labels are additive, so tags union across sources) and
// non-empty fields overwrite existing properties.
func (c *Neo4jClient) UpsertNode(ctx context.Context, node *Node) error {
	if node == nil || node.ID == "" {
		return types.NewError(types.UPSERT_FAILED, "node must have a non-empty id")
	}
	labels, err := frameworkLabels(node.Frameworks)
	if err != nil {
		return err
	}

	props := map[string]any{"id": node.ID}
	if node.Label != "" {
		props["label"] = node.Label
	}
	if node.Description != "" {
		props["description"] = node.Description
	}
	if node.Mitigations != "" {
		props["mitigations"] = node.Mitigations
	}
	if len(node.Embedding) > 0 {
		props["embedding"] = node.Embedding
	}
	for k, v := range node.Properties {
		props[k] = v
	}

	cypher := fmt.Sprintf("MERGE (n {id: $id}) SET n += $props SET n%s", labels)
	_, err = c.write(ctx, cypher, map[string]any{"id": node.ID, "props": props})
	if err != nil {
		return types.WrapError(types.UPSERT_FAILED,
			fmt.Sprintf("failed to upsert node %s", node.ID), err)
	}
	return nil
}

// UpsertEdge merges an edge by its (source, type, target) triple.
func (c *Neo4jClient) UpsertEdge(ctx context.Context, edge Edge) error {
	if !edge.Type.IsValid() {
		return types.NewError(types.UPSERT_FAILED,
			fmt.Sprintf("unknown relation type %q", edge.Type))
	}
	cypher := fmt.Sprintf(`
		MATCH (s {id: $source})
		MATCH (t {id: $target})
		MERGE (s)-[:%s]->(t)`, edge.Type)
	_, err := c.write(ctx, cypher, map[string]any{
		"source": edge.Source,
		"target": edge.Target,
	})
	if err != nil {
		return types.WrapError(types.UPSERT_FAILED,
			fmt.Sprintf("failed to upsert edge %s-[%s]->%s", edge.Source, edge.Type, edge.Target), err)
	}
	return nil
}

// QueryPattern translates the intent to Cypher and executes it.
func (c *Neo4jClient) QueryPattern(ctx context.Context, intent Intent) (Rows, error) {
	cypher, params, err := BuildCypher(intent)
	if err != nil {
		return Rows{}, err
	}
	records, err := c.read(ctx, cypher, params)
	if err != nil {
		return Rows{}, err
	}
	rows := Rows{Columns: intentColumns(intent)}
	rows.Records = records
	return rows, nil
}

// ScanEmbedded returns all nodes carrying an embedding.
func (c *Neo4jClient) ScanEmbedded(ctx context.Context) ([]*Node, error) {
	return c.scanNodes(ctx, "WHERE n.embedding IS NOT NULL")
}

// ScanUnembedded returns all nodes not yet carrying an embedding.
func (c *Neo4jClient) ScanUnembedded(ctx context.Context) ([]*Node, error) {
	return c.scanNodes(ctx, "WHERE n.embedding IS NULL AND n.label IS NOT NULL")
}

func (c *Neo4jClient) scanNodes(ctx context.Context, where string) ([]*Node, error) {
	cypher := fmt.Sprintf(`
		MATCH (n) %s
		RETURN labels(n) AS labels, n.id AS id, n.label AS label,
		       coalesce(n.description, '') AS description,
		       coalesce(n.mitigations, '') AS mitigations,
		       n.embedding AS embedding`, where)
	records, err := c.read(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		id, _ := rec["id"].(string)
		if id == "" {
			continue
		}
		n := &Node{ID: id}
		n.Label, _ = rec["label"].(string)
		n.Description, _ = rec["description"].(string)
		n.Mitigations, _ = rec["mitigations"].(string)
		if raw, ok := rec["labels"].([]any); ok {
			for _, l := range raw {
				if s, ok := l.(string); ok {
					fw := Framework(s)
					if fw.IsValid() {
						n.Frameworks = append(n.Frameworks, fw)
					}
				}
			}
		}
		if raw, ok := rec["embedding"].([]any); ok {
			n.Embedding = make([]float64, 0, len(raw))
			for _, v := range raw {
				if f, ok := v.(float64); ok {
					n.Embedding = append(n.Embedding, f)
				}
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// SetEmbedding attaches a computed embedding vector to a node.
func (c *Neo4jClient) SetEmbedding(ctx context.Context, nodeID string, vector []float64) error {
	_, err := c.write(ctx, "MATCH (n {id: $id}) SET n.embedding = $vec",
		map[string]any{"id": nodeID, "vec": vector})
	if err != nil {
		return types.WrapError(types.UPSERT_FAILED,
			fmt.Sprintf("failed to set embedding on %s", nodeID), err)
	}
	return nil
}

func (c *Neo4jClient) read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return c.run(ctx, cypher, params, neo4j.AccessModeRead)
}

func (c *Neo4jClient) write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return c.run(ctx, cypher, params, neo4j.AccessModeWrite)
}

func (c *Neo4jClient) run(ctx context.Context, cypher string, params map[string]any, mode neo4j.AccessMode) ([]map[string]any, error) {
	if c.driver == nil {
		return nil, types.NewError(types.BACKEND_UNAVAILABLE, "driver not connected")
	}

	runCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(c.config.Timeout))
		defer cancel()
	}

	session := c.driver.NewSession(runCtx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.config.Database,
	})
	defer session.Close(runCtx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(runCtx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(runCtx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			row := make(map[string]any, len(rec.Keys))
			for _, key := range rec.Keys {
				if v, ok := rec.Get(key); ok && v != nil {
					row[key] = v
				}
			}
			out = append(out, row)
		}
		return out, nil
	}

	var result any
	var err error
	if mode == neo4j.AccessModeRead {
		result, err = session.ExecuteRead(runCtx, work)
	} else {
		result, err = session.ExecuteWrite(runCtx, work)
	}
	if err != nil {
		return nil, translateNeo4jError(err)
	}
	return result.([]map[string]any), nil
}

// translateNeo4jError maps driver failures onto the error taxonomy:
// deadline expiry is TIMEOUT, everything else from the transport is
// QUERY_FAILED with the cause preserved.
func translateNeo4jError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapRetryableError(types.TIMEOUT, "neo4j query timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return types.WrapError(types.QUERY_FAILED, "neo4j query cancelled", err)
	}
	return types.WrapError(types.QUERY_FAILED, "neo4j query failed", err)
}

// frameworkLabels renders validated framework tags as a Cypher label chain.
// Tags come from the closed Framework enum, never from user input.
func frameworkLabels(frameworks []Framework) (string, error) {
	var b strings.Builder
	for _, fw := range frameworks {
		if !fw.IsValid() {
			return "", types.NewError(types.UPSERT_FAILED,
				fmt.Sprintf("unknown framework tag %q", fw))
		}
		b.WriteString(":" + string(fw))
	}
	if b.Len() == 0 {
		return "", types.NewError(types.UPSERT_FAILED, "node must carry at least one framework tag")
	}
	return b.String(), nil
}

// intentColumns returns the effective column set for an intent.
func intentColumns(intent Intent) []string {
	cols := ColumnsFor(intent.Pattern)
	if intent.Pattern == PatternCountermeasures && !intent.IncludeParent {
		cols = cols[:3]
	}
	return cols
}
