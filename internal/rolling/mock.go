package rolling

import (
	"context"
	"sync"
)

// MockBalancer is a test double for Balancer.
type MockBalancer struct {
	mu  sync.Mutex
	Err error

	// Track calls
	Calls []bool
}

func (m *MockBalancer) SetEnabled(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, enabled)
	return m.Err
}

// MockDrainer is a test double for Drainer.
type MockDrainer struct {
	mu sync.Mutex
	// Errors makes unload or load fail for a host; the key is "unload@host".
	Errors map[string]error

	// Track calls
	Unloaded []string
	Loaded   []string
}

func (m *MockDrainer) Unload(_ context.Context, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unloaded = append(m.Unloaded, host)
	return m.Errors["unload@"+host]
}

func (m *MockDrainer) Load(_ context.Context, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loaded = append(m.Loaded, host)
	return m.Errors["load@"+host]
}
