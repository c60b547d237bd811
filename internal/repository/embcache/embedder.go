// Package embcache decorates an Embedder with an in-process text → vector
// cache. Repeated queries and seed-file reloads embed the same texts over
// and over; caching them shields the provider from duplicate paid calls.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/domain"
)

// CachedEmbedder caches embeddings keyed by a hash of the input text.
// Safe for concurrent use.
type CachedEmbedder struct {
	inner      domain.Embedder
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu         sync.Mutex
	vectors    map[string][]float32
	maxEntries int
	warnedFull bool
}

// New creates a caching decorator holding up to maxEntries vectors.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed
// explicitly; nil means no metrics. maxEntries < 1 disables caching.
func New(
	inner domain.Embedder,
	maxEntries int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		cacheTotal: cacheTotal,
		logger:     logger,
		vectors:    make(map[string][]float32),
		maxEntries: maxEntries,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey(text)

	if vec, ok := c.get(key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.put(key, result.Embedding)
	return result, nil
}

// BatchEmbed resolves each text against the cache and embeds only the
// misses in one inner call. Vectors come back in input order; token usage
// covers only the texts that actually reached the provider.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.get(cacheKey(text)); ok {
			c.incCache("hit")
			out[i] = vec
			continue
		}
		c.incCache("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missIdx) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	result, err := c.embedInner(ctx, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(result.Embeddings) != len(missIdx) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedder returned %d vectors for %d texts", len(result.Embeddings), len(missIdx))
	}

	for j, i := range missIdx {
		out[i] = result.Embeddings[j]
		c.put(cacheKey(texts[i]), result.Embeddings[j])
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: result.PromptTokens,
		TotalTokens:  result.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) embedInner(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := c.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, c.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed fallback: %w", err)
	}
	return res, nil
}

func (c *CachedEmbedder) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.vectors[key]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), vec...), true
}

func (c *CachedEmbedder) put(key string, vec []float32) {
	if c.maxEntries < 1 || len(vec) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.vectors[key]; !exists && len(c.vectors) >= c.maxEntries {
		if !c.warnedFull {
			c.warnedFull = true
			c.logger.Warn("embedding cache full, evicting",
				zap.Int("max_entries", c.maxEntries))
		}
		// Evict an arbitrary entry. The embedding cache is a cost shield;
		// nothing depends on which vector leaves.
		for victim := range c.vectors {
			delete(c.vectors, victim)
			break
		}
	}
	c.vectors[key] = append([]float32(nil), vec...)
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vectors)
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
