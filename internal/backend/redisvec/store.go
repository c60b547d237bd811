// Package redisvec implements the durable indexed backend on Redis 8+ /
// Redis Stack via rueidis. Documents are hashes under a common key prefix;
// an FT index over the vector field serves KNN queries.
package redisvec

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/backend"
)

// Name identifies this backend in logs, stats and health output.
const Name = "redis"

const (
	defaultIndex     = "promptdex:docs:idx"
	defaultKeyPrefix = "promptdex:docs:"
)

// Config holds connection and index parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int

	Index     string // FT index name, defaults to promptdex:docs:idx
	KeyPrefix string // document key prefix, defaults to promptdex:docs:
	Dim       int    // vector dimension, required

	// HNSW index parameters. Zero means a FLAT index.
	HNSWM           int
	HNSWEFConstruct int
}

// Store is the Redis-backed vector store. The rueidis client is created
// lazily in Init so an unreachable Redis surfaces as an init failure the
// orchestrator can fall back from, not a construction error.
type Store struct {
	cfg    Config
	client rueidis.Client
	ready  atomic.Bool
	log    *zap.Logger
}

// New creates an unconnected store. Init establishes the connection.
func New(cfg Config, log *zap.Logger) *Store {
	if cfg.Index == "" {
		cfg.Index = defaultIndex
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{cfg: cfg, log: log}
}

// Init connects, verifies the server with PING and ensures the FT index.
// Safe to call again after a failure: an existing connection is re-pinged
// instead of re-dialed.
func (s *Store) Init(ctx context.Context) error {
	if len(s.cfg.Addrs) == 0 {
		return backend.NewInitError(Name, fmt.Errorf("no addresses configured"))
	}
	if s.cfg.Dim <= 0 {
		return backend.NewInitError(Name, fmt.Errorf("vector dimension must be positive"))
	}

	if s.client == nil {
		client, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress:  s.cfg.Addrs,
			Username:     s.cfg.Username,
			Password:     s.cfg.Password,
			SelectDB:     s.cfg.DB,
			DisableCache: true,
			AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
		})
		if err != nil {
			return backend.NewInitError(Name, fmt.Errorf("connect: %w", err))
		}
		s.client = client
	}

	if err := s.ping(ctx); err != nil {
		return backend.NewInitError(Name, err)
	}
	if err := s.ensureIndex(ctx); err != nil {
		return backend.NewInitError(Name, err)
	}

	s.ready.Store(true)
	s.log.Info("redis backend initialized",
		zap.String("index", s.cfg.Index), zap.Int("dim", s.cfg.Dim))
	return nil
}

func (s *Store) ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ensureIndex creates the FT index; an already existing index is fine.
func (s *Store) ensureIndex(ctx context.Context) error {
	cmd := s.b().Arbitrary("FT.CREATE").Args(s.indexArgs()...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index %s: %w", s.cfg.Index, err)
	}
	return nil
}

func (s *Store) indexArgs() []string {
	args := []string{
		s.cfg.Index,
		"ON", "HASH",
		"PREFIX", "1", s.cfg.KeyPrefix,
		"SCHEMA",
		fieldContent, "TEXT",
	}

	algo := "FLAT"
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.cfg.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	if s.cfg.HNSWM > 0 {
		algo = "HNSW"
		attrs = append(attrs, "M", strconv.Itoa(s.cfg.HNSWM))
		if s.cfg.HNSWEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(s.cfg.HNSWEFConstruct))
		}
	}

	args = append(args, fieldVector, "AS", "vector", "VECTOR", algo, strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}

// Ready reports whether Init has completed successfully.
func (s *Store) Ready() bool { return s.ready.Load() }

// Name returns the backend name.
func (s *Store) Name() string { return Name }

// Close shuts down the client.
func (s *Store) Close() {
	s.ready.Store(false)
	if s.client != nil {
		s.client.Close()
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

func (s *Store) docKey(id string) string {
	return s.cfg.KeyPrefix + id
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func containsIgnoreCase(s, substr string) bool {
	ls := len(s)
	lsub := len(substr)
	if lsub > ls {
		return false
	}
	for i := 0; i <= ls-lsub; i++ {
		match := true
		for j := 0; j < lsub; j++ {
			sc := s[i+j]
			tc := substr[j]
			if sc >= 'A' && sc <= 'Z' {
				sc += 'a' - 'A'
			}
			if tc >= 'A' && tc <= 'Z' {
				tc += 'a' - 'A'
			}
			if sc != tc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
