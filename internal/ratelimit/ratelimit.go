// Package ratelimit decides whether a caller may start another chart
// generation. Limits are counted per key, typically "genChart_" + owner ID.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// KeyPrefix namespaces generation limits per owner.
const KeyPrefix = "genChart_"

// Defaults used by the constructors for a non-positive limit or window.
const (
	DefaultLimit  = 2
	DefaultWindow = time.Second
)

// ErrRateLimited is returned when a key has exhausted its quota for the current window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter admits or rejects one request for a key.
type Limiter interface {
	// Allow returns nil when the request is admitted and ErrRateLimited when
	// it is not. Any other error means the decision could not be made.
	Allow(ctx context.Context, key string) error
}

// GenerationKey returns the limiter key for an owner's generation requests.
func GenerationKey(ownerID string) string {
	return KeyPrefix + ownerID
}

func withDefaults(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return limit, window
}
