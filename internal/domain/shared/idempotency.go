package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers recently seen event dedupe keys so duplicate
// webhook deliveries and re-fetched pages are suppressed inside a bounded
// window.
type IdempotencyStore interface {
	// MarkProcessed marks a key as seen with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key is inside the window
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for the dedupe window
type IdempotencyConfig struct {
	// TTL bounds the window. After this duration the same key passes
	// again; the orchestrator's fingerprint comparison makes the replay
	// a no-op. Default: 24 hours.
	TTL time.Duration

	// Enabled determines whether dedupe checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default dedupe window configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
