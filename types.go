package promptdex

import (
	"context"
	"time"
)

// Document is one unit of searchable content. Vector may be empty when an
// Embedder is configured; it is then computed from Content on upsert.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult is a single ranked hit. Higher scores are closer.
type SearchResult struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]string
}

// Embedder converts text to vector embeddings. Required for text queries and
// for documents upserted without a precomputed vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// batch upserts will use it for significantly better throughput.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// CacheStats describes the query-result cache.
type CacheStats struct {
	Size       int
	MaxEntries int
	TTL        time.Duration
}

// Stats is a point-in-time view of the hybrid store.
type Stats struct {
	Backend       string // backend currently serving reads
	PrimaryActive bool
	Documents     int
	Cache         CacheStats
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status        string            // "ok", "degraded", "error"
	Ready         bool              // at least one backend can serve
	ActiveBackend string            // backend currently serving reads
	Checks        map[string]string // component → "ok"/"error"
}
