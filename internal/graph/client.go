package graph

import (
	"context"
	"time"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// GraphClient is the capability set the retrieval layer requires from any
// graph backend. Both the triple-pattern store and the property-graph store
// are projections of the canonical model behind this interface; no component
// above it may depend on backend-specific query syntax.
//
// Implementations must be safe for concurrent readers. Ingestion assumes a
// single logical writer per load window; individual upserts are idempotent
// and commutative with themselves, so at-least-once retries are safe.
type GraphClient interface {
	// Connect establishes a connection to the graph backend.
	Connect(ctx context.Context) error

	// Close releases all resources held by the client.
	Close(ctx context.Context) error

	// Health returns the current health status of the backend connection.
	Health(ctx context.Context) types.HealthStatus

	// UpsertNode creates or merges a node by its canonical ID.
	// Framework tags union; non-empty incoming fields win.
	UpsertNode(ctx context.Context, node *Node) error

	// UpsertEdge creates an edge, collapsing duplicates of the same
	// (source, type, target) triple to one.
	UpsertEdge(ctx context.Context, edge Edge) error

	// QueryPattern resolves a structured Intent into rows of bound
	// variables. Zero rows is a valid result, distinct from an error.
	QueryPattern(ctx context.Context, intent Intent) (Rows, error)

	// ScanEmbedded iterates all nodes carrying an embedding.
	ScanEmbedded(ctx context.Context) ([]*Node, error)

	// ScanUnembedded iterates all nodes not yet carrying an embedding.
	ScanUnembedded(ctx context.Context) ([]*Node, error)

	// SetEmbedding attaches a computed embedding vector to a node.
	SetEmbedding(ctx context.Context, nodeID string, vector []float64) error
}

// DocumentUploader is implemented by backends that bulk-load serialized
// triple documents, such as the D3FEND Turtle ontology.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, contentType, doc string) error
}

// ClientConfig contains configuration shared by graph backend clients.
type ClientConfig struct {
	// URI is the backend endpoint. For Neo4j a bolt:// or neo4j:// URI;
	// for a SPARQL store the repository base URL.
	URI string `yaml:"uri"`

	// Username and Password are the basic-auth credentials.
	// Empty values disable authentication where the backend allows it.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database selects the database for backends that support several.
	Database string `yaml:"database"`

	// Timeout bounds every round-trip to the backend.
	Timeout types.Duration `yaml:"timeout"`

	// MaxConnectionPoolSize limits pooled connections where applicable.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size"`
}

// DefaultClientConfig returns a ClientConfig with sensible defaults for a
// local Neo4j instance.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URI:                   "bolt://localhost:7687",
		Username:              "neo4j",
		Password:              "password",
		Timeout:               types.Duration(30 * time.Second),
		MaxConnectionPoolSize: 50,
	}
}

// Validate checks if the configuration is valid.
func (c ClientConfig) Validate() error {
	if c.URI == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph URI cannot be empty")
	}
	if c.Timeout <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "graph timeout must be positive")
	}
	return nil
}
