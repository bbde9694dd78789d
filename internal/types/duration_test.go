package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"seconds", "t: 30s", 30 * time.Second},
		{"milliseconds", "t: 250ms", 250 * time.Millisecond},
		{"compound", "t: 1m30s", 90 * time.Second},
		{"integer nanoseconds", "t: 30000000000", 30 * time.Second},
		{"zero", "t: 0s", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				T Duration `yaml:"t"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.yaml), &out))
			assert.Equal(t, Duration(tt.want), out.T)
		})
	}
}

func TestDurationUnmarshalYAMLRejectsGarbage(t *testing.T) {
	var out struct {
		T Duration `yaml:"t"`
	}
	err := yaml.Unmarshal([]byte("t: soon"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	raw, err := yaml.Marshal(struct {
		T Duration `yaml:"t"`
	}{T: Duration(45 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "t: 45s\n", string(raw))
}
