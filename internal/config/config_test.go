package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloribeiro16/D3fendGraph/internal/ontology"
	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
graph:
  provider: memory
embedder:
  model: all-minilm
generator:
  timeout: 45s
logging:
  level: debug
  format: json
sources:
  - path: /data/attack.json
    kind: stix
    framework: ATTACK
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Graph.Provider)
	assert.Equal(t, "all-minilm", cfg.Embedder.Model)
	assert.Equal(t, types.Duration(45*time.Second), cfg.Generator.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched fields keep their defaults.
	assert.Equal(t, "ollama", cfg.Embedder.Provider)
	assert.Equal(t, ontology.DefaultFetcherConfig().BaseURL, cfg.Fetcher.BaseURL)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, ontology.SourceSTIX, cfg.Sources[0].Kind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("graph: [unclosed"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_PARSE_FAILED, types.CodeOf(err))
}

func TestParseEmptyFileYieldsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown graph provider", "graph:\n  provider: dgraph"},
		{"unknown log level", "logging:\n  level: loud"},
		{"unknown log format", "logging:\n  format: xml"},
		{"source without path", "sources:\n  - kind: cwe"},
		{"stix source without framework", "sources:\n  - path: /data/x.json\n    kind: stix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

func TestEnvInterpolation(t *testing.T) {
	t.Setenv("TEST_GRAPH_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(`
graph:
  provider: neo4j
  password: ${TEST_GRAPH_PASSWORD}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Graph.Client.Password)
}

func TestEnvInterpolationLeavesUnsetReferences(t *testing.T) {
	t.Setenv("TEST_UNSET_VAR", "")
	assert.Equal(t, "${TEST_UNSET_VAR}", interpolateEnv("${TEST_UNSET_VAR}"))
	assert.Equal(t, "plain", interpolateEnv("plain"))
}

func TestDurationStrings(t *testing.T) {
	cfg, err := Parse([]byte(`
embedder:
  timeout: 90s
fetcher:
  backoff: 250ms
  delay: 1s
`))
	require.NoError(t, err)
	assert.Equal(t, types.Duration(90*time.Second), cfg.Embedder.Timeout)
	assert.Equal(t, types.Duration(250*time.Millisecond), cfg.Fetcher.Backoff)
	assert.Equal(t, types.Duration(time.Second), cfg.Fetcher.Delay)
}

func TestDurationIntegerNanoseconds(t *testing.T) {
	cfg, err := Parse([]byte("graph:\n  timeout: 30000000000\n"))
	require.NoError(t, err)
	assert.Equal(t, types.Duration(30*time.Second), cfg.Graph.Client.Timeout)
}

func TestDurationGarbageIsParseFailure(t *testing.T) {
	_, err := Parse([]byte("embedder:\n  timeout: soon\n"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_PARSE_FAILED, types.CodeOf(err))
}

func TestLoggingConfigNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}
