package promptdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/backend"
	"github.com/reach-cloud/promptdex/internal/backend/memvec"
	"github.com/reach-cloud/promptdex/internal/backend/redisvec"
	"github.com/reach-cloud/promptdex/internal/backend/sqlitevec"
	"github.com/reach-cloud/promptdex/internal/domain"
	"github.com/reach-cloud/promptdex/internal/repository/querycache"
	healthuc "github.com/reach-cloud/promptdex/internal/usecase/health"
	hybriduc "github.com/reach-cloud/promptdex/internal/usecase/hybrid"
)

const (
	defaultDimensions   = 1536
	defaultCacheEntries = 100
	defaultCacheTTL     = 5 * time.Minute
	defaultMaxHotDocs   = 1000
)

// Client is the promptdex entry point: an embedded hybrid vector store.
// Safe for concurrent use.
type Client struct {
	store    *hybriduc.Service
	health   *healthuc.Service
	embedder Embedder
	obs      *observer

	closers []func() error
	cancel  context.CancelFunc
}

// New creates a Client and initializes its backends. Without a WithRedis or
// WithSQLite option the client runs memory-only. A durable backend that is
// unreachable does not fail New; the client starts degraded and serves from
// the in-memory fallback. The context bounds backend initialization.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dimensions:   defaultDimensions,
		cacheEntries: defaultCacheEntries,
		cacheTTL:     defaultCacheTTL,
		maxHotDocs:   defaultMaxHotDocs,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	stackLog := cfg.logger
	if stackLog == nil {
		stackLog = zap.NewNop()
	}

	c := &Client{obs: obs, embedder: cfg.embedder}

	primary, err := c.createPrimary(cfg, stackLog)
	if err != nil {
		return nil, err
	}

	fallback := memvec.New(cfg.maxHotDocs, stackLog)
	cache := querycache.New(cfg.cacheEntries, cfg.cacheTTL, nil, stackLog)

	store := hybriduc.New(primary, fallback, cache, stackLog)
	if cfg.opTimeout > 0 {
		store.WithOpTimeout(cfg.opTimeout)
	}
	if err := store.Init(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("promptdex: init backends: %w", err)
	}

	if cfg.reprobeInterval > 0 {
		rctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		store.StartReprobe(rctx, cfg.reprobeInterval)
	}

	c.store = store
	c.health = healthuc.New(store, nil)
	return c, nil
}

// createPrimary builds the durable backend for the configured driver. A nil
// return with no error means memory-only operation.
func (c *Client) createPrimary(cfg *clientConfig, log *zap.Logger) (backend.Backend, error) {
	switch cfg.driver {
	case "":
		return nil, nil
	case "redis":
		s := redisvec.New(redisvec.Config{
			Addrs:           cfg.addrs,
			Password:        cfg.password,
			Dim:             cfg.dimensions,
			HNSWM:           cfg.hnswM,
			HNSWEFConstruct: cfg.hnswEFConstruct,
		}, log)
		c.closers = append(c.closers, func() error {
			s.Close()
			return nil
		})
		return s, nil
	case "sqlite":
		s := sqlitevec.New(cfg.path, log)
		c.closers = append(c.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("promptdex: unknown driver %q", cfg.driver)
	}
}

// Close stops the re-probe loop and releases backend resources.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Search embeds the query text and returns up to topK ranked results. An
// empty result set is a valid answer, never an error.
func (c *Client) Search(ctx context.Context, query string, topK int) (res []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	if c.embedder == nil {
		return nil, errors.New("promptdex: embedder not configured (use WithEmbedder for text queries)")
	}

	emb, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := c.store.Search(ctx, emb.Embedding, topK)
	if err != nil {
		return nil, err
	}
	return fromHits(hits), nil
}

// SearchVector returns up to topK ranked results for a precomputed query
// vector. An empty result set is a valid answer, never an error.
func (c *Client) SearchVector(ctx context.Context, vector []float32, topK int) (res []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_vector", start, err) }()

	hits, err := c.store.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	return fromHits(hits), nil
}

// Upsert writes documents to every ready backend and returns the stored
// count. Missing IDs are generated; missing vectors are embedded from
// Content when an embedder is configured. Backend failures degrade the
// count, they do not error.
func (c *Client) Upsert(ctx context.Context, docs []Document) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upsert", start, err) }()

	internal := make([]domain.Document, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		internal[i] = domain.Document{
			ID:       id,
			Content:  d.Content,
			Vector:   d.Vector,
			Metadata: d.Metadata,
		}
	}

	if err = c.embedMissing(ctx, internal); err != nil {
		return 0, err
	}
	return c.store.Upsert(ctx, internal), nil
}

// Count reports the document count of the backend currently serving reads.
func (c *Client) Count(ctx context.Context) int {
	start := time.Now()
	defer func() { c.obs.observe("count", start, nil) }()
	return c.store.Count(ctx)
}

// Ready reports whether at least one backend can serve requests.
func (c *Client) Ready() bool {
	return c.store.Ready()
}

// Health reports aggregated component health.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:        string(report.Status),
		Ready:         report.Ready,
		ActiveBackend: report.ActiveBackend,
		Checks:        checks,
	}
}

// Stats reports the active backend, document count and cache occupancy.
func (c *Client) Stats(ctx context.Context) Stats {
	cs := c.store.CacheStats()
	return Stats{
		Backend:       c.store.ActiveBackend(),
		PrimaryActive: c.store.PrimaryActive(),
		Documents:     c.store.Count(ctx),
		Cache: CacheStats{
			Size:       cs.Size,
			MaxEntries: cs.MaxSize,
			TTL:        cs.TTL,
		},
	}
}

// FlushCache drops every cached query result.
func (c *Client) FlushCache() {
	c.store.ClearCache()
}

// embedMissing fills vectors for documents that arrived without one, using
// one batch call when the embedder supports it.
func (c *Client) embedMissing(ctx context.Context, docs []domain.Document) error {
	var idx []int
	var texts []string
	for i := range docs {
		if len(docs[i].Vector) == 0 {
			idx = append(idx, i)
			texts = append(texts, docs[i].Content)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	if c.embedder == nil {
		return fmt.Errorf("promptdex: %d documents need embedding but no embedder is configured", len(idx))
	}

	if be, ok := c.embedder.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed documents: %w", err)
		}
		if len(res.Embeddings) != len(idx) {
			return fmt.Errorf("promptdex: embedder returned %d vectors for %d texts",
				len(res.Embeddings), len(idx))
		}
		for j, i := range idx {
			docs[i].Vector = res.Embeddings[j]
		}
		return nil
	}

	for j, i := range idx {
		res, err := c.embedder.Embed(ctx, texts[j])
		if err != nil {
			return fmt.Errorf("embed document %q: %w", docs[i].ID, err)
		}
		docs[i].Vector = res.Embedding
	}
	return nil
}

func fromHits(hits []domain.SearchHit) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{
			ID:       h.ID,
			Score:    h.Score,
			Content:  h.Content,
			Metadata: h.Metadata,
		}
	}
	return out
}
