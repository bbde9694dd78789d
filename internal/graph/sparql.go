package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// SPARQLClient implements GraphClient against a triple-pattern store
// speaking the SPARQL protocol over HTTP (e.g., a GraphDB repository).
// Queries go out as URL-encoded GET requests expecting
// application/sparql-results+json; ingestion POSTs N-Triples to the
// repository's /statements endpoint.
type SPARQLClient struct {
	config ClientConfig
	http   *http.Client
}

// NewSPARQLClient creates a new SPARQL client for the repository at
// config.URI (e.g., "http://localhost:7200/repositories/d3fend").
func NewSPARQLClient(config ClientConfig) (*SPARQLClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SPARQLClient{
		config: config,
		http:   &http.Client{Timeout: time.Duration(config.Timeout)},
	}, nil
}

// Connect verifies the repository is reachable with a trivial query.
func (c *SPARQLClient) Connect(ctx context.Context) error {
	_, err := c.selectQuery(ctx, "SELECT ?s WHERE { ?s ?p ?o } LIMIT 1")
	if err != nil {
		return types.WrapRetryableError(types.BACKEND_UNAVAILABLE,
			fmt.Sprintf("sparql repository %s not reachable", c.config.URI), err)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no per-connection state.
func (c *SPARQLClient) Close(ctx context.Context) error { return nil }

// Health probes the repository with a trivial query.
func (c *SPARQLClient) Health(ctx context.Context) types.HealthStatus {
	if err := c.Connect(ctx); err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy("sparql repository reachable")
}

// UpsertNode uploads the node's triples. RDF triples have set semantics, so
// re-uploading identical data never duplicates.
func (c *SPARQLClient) UpsertNode(ctx context.Context, node *Node) error {
	if node == nil || node.ID == "" {
		return types.NewError(types.UPSERT_FAILED, "node must have a non-empty id")
	}
	doc := strings.Join(NodeTriples(node), "\n")
	if err := c.uploadTriples(ctx, doc); err != nil {
		return types.WrapError(types.UPSERT_FAILED,
			fmt.Sprintf("failed to upsert node %s", node.ID), err)
	}
	return nil
}

// UpsertEdge uploads the edge triple.
func (c *SPARQLClient) UpsertEdge(ctx context.Context, edge Edge) error {
	if !edge.Type.IsValid() {
		return types.NewError(types.UPSERT_FAILED,
			fmt.Sprintf("unknown relation type %q", edge.Type))
	}
	if err := c.uploadTriples(ctx, EdgeTriple(edge)); err != nil {
		return types.WrapError(types.UPSERT_FAILED,
			fmt.Sprintf("failed to upsert edge %s-[%s]->%s", edge.Source, edge.Type, edge.Target), err)
	}
	return nil
}

// QueryPattern translates the intent to SPARQL and executes it.
func (c *SPARQLClient) QueryPattern(ctx context.Context, intent Intent) (Rows, error) {
	query, err := BuildSPARQL(intent)
	if err != nil {
		return Rows{}, err
	}
	bindings, err := c.selectQuery(ctx, query)
	if err != nil {
		return Rows{}, err
	}

	rows := Rows{Columns: intentColumns(intent)}
	for _, binding := range bindings {
		rec := make(map[string]any, len(binding))
		for name, term := range binding {
			// Aggregate counts come back as plain literals.
			if i, err := strconv.Atoi(term.Value); err == nil && isCountColumn(name) {
				rec[name] = i
				continue
			}
			rec[name] = term.Value
		}
		rows.Records = append(rows.Records, rec)
	}
	return rows, nil
}

// ScanEmbedded returns all nodes carrying an embedding.
func (c *SPARQLClient) ScanEmbedded(ctx context.Context) ([]*Node, error) {
	return c.scanNodes(ctx, true)
}

// ScanUnembedded returns all labeled nodes not yet carrying an embedding.
func (c *SPARQLClient) ScanUnembedded(ctx context.Context) ([]*Node, error) {
	return c.scanNodes(ctx, false)
}

func (c *SPARQLClient) scanNodes(ctx context.Context, embedded bool) ([]*Node, error) {
	var clause string
	if embedded {
		clause = "?n dg:embedding ?embedding ."
	} else {
		clause = "FILTER NOT EXISTS { ?n dg:embedding ?e }"
	}
	query := fmt.Sprintf(`PREFIX dg: <%s>
SELECT ?id ?label ?description ?mitigations ?embedding
WHERE {
  ?n dg:id ?id ; dg:label ?label .
  OPTIONAL { ?n dg:description ?description . }
  OPTIONAL { ?n dg:mitigations ?mitigations . }
  %s
}`, schemaPrefix, clause)

	bindings, err := c.selectQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(bindings))
	for _, b := range bindings {
		id := b["id"].Value
		if id == "" {
			continue
		}
		n := &Node{
			ID:          id,
			Label:       b["label"].Value,
			Description: b["description"].Value,
			Mitigations: b["mitigations"].Value,
		}
		if raw := b["embedding"].Value; raw != "" {
			if err := json.Unmarshal([]byte(raw), &n.Embedding); err != nil {
				continue
			}
		}
		fws, err := c.frameworksOf(ctx, id)
		if err != nil {
			return nil, err
		}
		n.Frameworks = fws
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *SPARQLClient) frameworksOf(ctx context.Context, id string) ([]Framework, error) {
	query := fmt.Sprintf(`PREFIX dg: <%s>
SELECT ?framework WHERE { <%s> dg:framework ?framework . } ORDER BY ?framework`,
		schemaPrefix, NodeURI(id))
	bindings, err := c.selectQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	var out []Framework
	for _, b := range bindings {
		fw := Framework(b["framework"].Value)
		if fw.IsValid() {
			out = append(out, fw)
		}
	}
	return out, nil
}

// SetEmbedding replaces the node's embedding triple via SPARQL UPDATE.
// The vector is stored as a JSON array literal.
func (c *SPARQLClient) SetEmbedding(ctx context.Context, nodeID string, vector []float64) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return types.WrapError(types.UPSERT_FAILED, "failed to encode embedding", err)
	}
	update := fmt.Sprintf(`PREFIX dg: <%s>
DELETE WHERE { <%s> dg:embedding ?old . };
INSERT DATA { <%s> dg:embedding %s . }`,
		schemaPrefix, NodeURI(nodeID), NodeURI(nodeID), sparqlLiteral(string(encoded)))

	if err := c.post(ctx, c.statementsURL(), "application/sparql-update", update); err != nil {
		return types.WrapError(types.UPSERT_FAILED,
			fmt.Sprintf("failed to set embedding on %s", nodeID), err)
	}
	return nil
}

// UploadDocument bulk-loads a serialized triple document (N-Triples or
// Turtle, identified by contentType) into the repository.
func (c *SPARQLClient) UploadDocument(ctx context.Context, contentType, doc string) error {
	if err := c.post(ctx, c.statementsURL(), contentType, doc); err != nil {
		return types.WrapError(types.UPSERT_FAILED, "bulk upload failed", err)
	}
	return nil
}

func (c *SPARQLClient) uploadTriples(ctx context.Context, doc string) error {
	return c.post(ctx, c.statementsURL(), "application/n-triples", doc)
}

func (c *SPARQLClient) statementsURL() string {
	return strings.TrimRight(c.config.URI, "/") + "/statements"
}

// sparqlTerm is one variable binding in a SPARQL JSON result.
type sparqlTerm struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// sparqlResponse is the application/sparql-results+json envelope.
type sparqlResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]sparqlTerm `json:"bindings"`
	} `json:"results"`
}

func (c *SPARQLClient) selectQuery(ctx context.Context, query string) ([]map[string]sparqlTerm, error) {
	endpoint := c.config.URI + "?" + url.Values{"query": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.WrapError(types.QUERY_FAILED, "failed to build sparql request", err)
	}
	req.Header.Set("Accept", "application/sparql-results+json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, translateHTTPError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.WrapError(types.QUERY_FAILED, "failed to read sparql response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.WrapError(types.QUERY_FAILED,
			fmt.Sprintf("sparql endpoint returned HTTP %d: %.200s", resp.StatusCode, body), nil)
	}

	var parsed sparqlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, types.WrapError(types.QUERY_FAILED, "failed to parse sparql results", err)
	}
	return parsed.Results.Bindings, nil
}

func (c *SPARQLClient) post(ctx context.Context, endpoint, contentType, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return translateHTTPError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("sparql endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *SPARQLClient) setAuth(req *http.Request) {
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
}

// translateHTTPError maps transport failures onto the error taxonomy,
// keeping timeouts distinct from connectivity failures.
func translateHTTPError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapRetryableError(types.TIMEOUT, "sparql request timed out", err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return types.WrapRetryableError(types.TIMEOUT, "sparql request timed out", err)
	}
	return types.WrapRetryableError(types.BACKEND_UNAVAILABLE, "sparql endpoint unreachable", err)
}

func isCountColumn(name string) bool {
	return name == "techniqueCount" || name == "attacksCovered"
}
