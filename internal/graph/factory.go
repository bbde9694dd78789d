package graph

import (
	"fmt"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// BackendConfig selects and configures a graph backend.
type BackendConfig struct {
	// Provider selects the backend implementation.
	// Options: "neo4j", "sparql", "memory".
	Provider string `yaml:"provider"`

	Client ClientConfig `yaml:",inline"`
}

// DefaultBackendConfig returns a configuration for a local Neo4j backend.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Provider: "neo4j",
		Client:   DefaultClientConfig(),
	}
}

// Validate checks if the configuration is valid.
func (c BackendConfig) Validate() error {
	switch c.Provider {
	case "neo4j", "sparql":
		return c.Client.Validate()
	case "memory":
		return nil
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown graph provider %q (expected neo4j, sparql, or memory)", c.Provider))
	}
}

// NewClient creates a GraphClient for the configured backend. The returned
// client must still be connected via Connect().
func NewClient(config BackendConfig) (GraphClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Provider {
	case "neo4j":
		return NewNeo4jClient(config.Client)
	case "sparql":
		return NewSPARQLClient(config.Client)
	case "memory":
		return NewMemoryClient(), nil
	default:
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown graph provider %q", config.Provider))
	}
}
