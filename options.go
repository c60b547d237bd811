package promptdex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "redis", "sqlite" or "" for memory-only
	addrs    []string
	password string
	path     string

	embedder Embedder

	dimensions      int
	hnswM           int
	hnswEFConstruct int
	maxHotDocs      int

	cacheEntries int
	cacheTTL     time.Duration

	opTimeout       time.Duration
	reprobeInterval time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithRedis uses a Redis search index as the durable primary backend.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSQLite uses a SQLite database file as the durable primary backend.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.path = path
	})
}

// WithEmbedder sets the text embedding provider.
// Required for text queries and vectorless upserts.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithVectorDimensions sets the vector dimension enforced by the durable
// backend. Defaults to 1536 (text-embedding-3-small).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithHNSW configures HNSW index parameters for the Redis backend
// (M and EF construction). Zero values keep a FLAT index.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithCache sizes the query-result cache. maxEntries below 1 disables
// caching. Defaults: 100 entries, 5 minute TTL.
func WithCache(maxEntries int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheEntries = maxEntries
		c.cacheTTL = ttl
	})
}

// WithOpTimeout bounds every backend call with its own deadline.
// Zero (the default) leaves calls bounded only by the caller's context.
func WithOpTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.opTimeout = d
	})
}

// WithReprobe re-probes a demoted primary at the given interval and promotes
// it back on success. Disabled by default: a primary that fails at startup
// stays demoted for the client's lifetime.
func WithReprobe(interval time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.reprobeInterval = interval
	})
}

// WithMaxHotDocs sets the advisory document budget for the in-memory
// fallback. Exceeding it logs a warning; nothing is rejected or evicted.
// Default: 1000.
func WithMaxHotDocs(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxHotDocs = n
	})
}

// WithLogger enables structured logging for the embedded stack, including
// backend degradation and recovery events. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
