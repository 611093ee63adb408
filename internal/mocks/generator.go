package mocks

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator returns a fixed response and records prompts
type MockGenerator struct {
	Response string
	Err      error
	// GenerateFunc overrides Response/Err when set
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return "test summary", nil
	}
	return m.Response, nil
}

func (m *MockGenerator) Name() string {
	return "mock"
}

// Prompts returns a copy of all prompts received so far
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of Generate calls
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// CallsContaining counts prompts containing substr
func (m *MockGenerator) CallsContaining(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}
