package mocks

import (
	"context"
	"sync"
)

// MockAIClient implements generation.Client for testing.
type MockAIClient struct {
	// ChatFn allows test cases to mock the Chat behavior
	ChatFn func(ctx context.Context, modelID, prompt string) (string, error)

	// Default response values
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
}

// Chat implements generation.Client
func (m *MockAIClient) Chat(ctx context.Context, modelID, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.ChatFn != nil {
		return m.ChatFn(ctx, modelID, prompt)
	}
	return m.Reply, m.Err
}

// Calls returns the number of Chat calls.
func (m *MockAIClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns the prompts passed to Chat, in call order.
func (m *MockAIClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
