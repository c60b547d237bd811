package health

import "context"

// StoreProber reports hybrid store readiness and backend selection.
type StoreProber interface {
	Ready() bool
	HasPrimary() bool
	PrimaryActive() bool
	ActiveBackend() string
	Count(ctx context.Context) int
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
