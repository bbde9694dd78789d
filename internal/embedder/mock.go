package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// MockEmbedder is a deterministic Embedder for tests. Vectors derive from a
// hash of the input text, so equal texts always embed identically and
// distinct texts almost never collide.
type MockEmbedder struct {
	mu sync.Mutex

	// Dim is the vector dimensionality. Defaults to 8.
	Dim int

	// Err, when set, is returned by every call.
	Err error

	// Calls records every embedded text in order.
	Calls []string
}

// NewMockEmbedder creates a deterministic mock with the default dimension.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: 8}
}

// Name returns the provider name.
func (m *MockEmbedder) Name() string { return "mock" }

// Embed returns a deterministic vector for the text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns deterministic vectors for the texts.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		m.Calls = append(m.Calls, text)
		out[i] = m.vectorFor(text)
	}
	return out, nil
}

func (m *MockEmbedder) vectorFor(text string) []float64 {
	dim := m.Dim
	if dim <= 0 {
		dim = 8
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float64, dim)
	for i := range vec {
		word := binary.BigEndian.Uint32(sum[(i*4)%28:])
		vec[i] = float64(word%2000)/1000 - 1
		sum = sha256.Sum256(sum[:])
	}
	return vec
}

// Health always reports healthy unless Err is set.
func (m *MockEmbedder) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Unhealthy(m.Err.Error())
	}
	return types.Healthy("mock embedder")
}
