package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

func TestNewClientSelectsBackend(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantType any
	}{
		{"memory", "memory", &MemoryClient{}},
		{"neo4j", "neo4j", &Neo4jClient{}},
		{"sparql", "sparql", &SPARQLClient{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBackendConfig()
			cfg.Provider = tt.provider
			if tt.provider == "sparql" {
				cfg.Client.URI = "http://localhost:7200/repositories/d3fend"
			}

			client, err := NewClient(cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
		})
	}
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	cfg := DefaultBackendConfig()
	cfg.Provider = "dgraph"

	_, err := NewClient(cfg)
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
}
