package llm

import (
	"context"
	"sync"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// MockGenerator is a scripted Generator for tests.
type MockGenerator struct {
	mu sync.Mutex

	// Response is returned by every Generate call when Err is nil.
	Response string

	// Err, when set, is returned by every call.
	Err error

	// Requests records every request in order.
	Requests []Request
}

// Name returns the provider name.
func (m *MockGenerator) Name() string { return "mock" }

// Generate returns the scripted response or error.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Health reports healthy unless Err is set.
func (m *MockGenerator) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Unhealthy(m.Err.Error())
	}
	return types.Healthy("mock generator")
}
