package mocks

import (
	"context"
	"sync"
)

// MockLimiter implements ratelimit.Limiter for testing.
type MockLimiter struct {
	AllowFn func(ctx context.Context, key string) error
	Err     error

	mu   sync.Mutex
	keys []string
}

// Allow implements ratelimit.Limiter
func (m *MockLimiter) Allow(ctx context.Context, key string) error {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()

	if m.AllowFn != nil {
		return m.AllowFn(ctx, key)
	}
	return m.Err
}

// Keys returns the keys passed to Allow.
func (m *MockLimiter) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}
