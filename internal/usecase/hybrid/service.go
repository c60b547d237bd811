package hybrid

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/backend"
	"github.com/reach-cloud/promptdex/internal/domain"
	"github.com/reach-cloud/promptdex/internal/repository/querycache"
)

// Service routes reads and writes across a durable primary backend and an
// in-memory fallback, with a query-result cache in front of both.
//
// Reads try the cache, then the primary (when it initialized successfully),
// then the fallback; the first non-empty result set wins and is cached.
// Writes go through to every ready backend and flush the whole cache.
// Backend failures after startup are logged and degraded around, never
// surfaced to the caller.
type Service struct {
	primary  backend.Backend
	fallback backend.Backend
	cache    ResultCache
	log      *zap.Logger

	opTimeout time.Duration

	// usePrimary is decided once by Init from the primary's init outcome.
	// Only an explicit re-probe (StartReprobe) flips it back on.
	usePrimary atomic.Bool
	ready      atomic.Bool
}

// New creates the orchestrator. primary may be nil for fallback-only setups;
// fallback and cache are required.
func New(primary, fallback backend.Backend, cache ResultCache, log *zap.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		cache:    cache,
		log:      log,
	}
}

// WithOpTimeout bounds every backend call with its own deadline. Zero leaves
// calls bounded only by the caller's context.
func (s *Service) WithOpTimeout(d time.Duration) *Service {
	if d > 0 {
		s.opTimeout = d
	}
	return s
}

// Init attempts to initialize both backends. A primary failure demotes the
// orchestrator to fallback-only mode for its lifetime; a fallback failure is
// logged but does not block startup. The orchestrator is ready once both
// attempts have completed, whatever their outcome.
func (s *Service) Init(ctx context.Context) error {
	if s.primary != nil {
		pctx, cancel := s.opCtx(ctx)
		err := s.primary.Init(pctx)
		cancel()
		if err != nil {
			s.log.Warn("primary backend unavailable, serving from fallback",
				zap.String("backend", s.primary.Name()), zap.Error(err))
		} else {
			s.usePrimary.Store(true)
		}
	}

	fctx, cancel := s.opCtx(ctx)
	err := s.fallback.Init(fctx)
	cancel()
	if err != nil {
		s.log.Error("fallback backend init failed",
			zap.String("backend", s.fallback.Name()), zap.Error(err))
	}

	s.ready.Store(true)
	return ctx.Err()
}

// Search returns up to topK ranked results for the query vector. An empty
// result set is a valid answer, never an error; backend failures are logged
// and the next tier is tried. Only caller contract violations (malformed
// query) surface as errors.
func (s *Service) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchHit, error) {
	if len(vector) == 0 {
		return nil, domain.ErrEmptyVector
	}
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	fp := querycache.Fingerprint(vector, topK)
	if cached, ok := s.cache.Get(fp); ok {
		return cached, nil
	}

	var results []domain.SearchHit

	if s.usePrimary.Load() && s.primary.Ready() {
		hits, err := s.searchBackend(ctx, s.primary, vector, topK)
		switch {
		case err == nil:
			results = hits
		case callerFault(err):
			return nil, err
		default:
			s.log.Warn("primary search failed, trying fallback",
				zap.String("backend", s.primary.Name()), zap.Error(err))
		}
	}

	if len(results) == 0 && s.fallback.Ready() {
		hits, err := s.searchBackend(ctx, s.fallback, vector, topK)
		switch {
		case err == nil:
			results = hits
		case callerFault(err):
			return nil, err
		default:
			s.log.Warn("fallback search failed",
				zap.String("backend", s.fallback.Name()), zap.Error(err))
		}
	}

	if len(results) > 0 {
		s.cache.Put(fp, topK, results)
	}
	if results == nil {
		results = []domain.SearchHit{}
	}
	return results, nil
}

// Upsert writes docs through to every ready backend and reports the best
// available written count, preferring the primary's. Failures are logged and
// non-fatal. The query cache is flushed unconditionally, even when both
// writes fail.
func (s *Service) Upsert(ctx context.Context, docs []domain.Document) int {
	defer s.cache.Clear()

	written := 0

	if s.usePrimary.Load() && s.primary.Ready() {
		n, err := s.upsertBackend(ctx, s.primary, docs)
		if err != nil {
			s.log.Error("primary upsert failed",
				zap.String("backend", s.primary.Name()), zap.Int("written", n), zap.Error(err))
		} else {
			written = n
		}
	}

	if s.fallback.Ready() {
		n, err := s.upsertBackend(ctx, s.fallback, docs)
		if err != nil {
			s.log.Error("fallback upsert failed",
				zap.String("backend", s.fallback.Name()), zap.Int("written", n), zap.Error(err))
		} else if written == 0 {
			written = n
		}
	}

	return written
}

// Count reports the document count of the backend currently serving reads.
// Errors are logged and reported as zero.
func (s *Service) Count(ctx context.Context) int {
	b := s.activeBackend()
	if !b.Ready() {
		return 0
	}

	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := b.Count(cctx)
	if err != nil {
		s.log.Warn("count failed", zap.String("backend", b.Name()), zap.Error(err))
		return 0
	}
	return n
}

// Ready reports whether initialization has completed and at least one
// backend can serve requests.
func (s *Service) Ready() bool {
	if !s.ready.Load() {
		return false
	}
	if s.primary != nil && s.primary.Ready() {
		return true
	}
	return s.fallback.Ready()
}

// PrimaryActive reports whether the primary backend is the preferred
// read/write target.
func (s *Service) PrimaryActive() bool {
	return s.usePrimary.Load()
}

// HasPrimary reports whether a primary backend is configured at all.
func (s *Service) HasPrimary() bool {
	return s.primary != nil
}

// ActiveBackend names the backend currently authoritative for reads.
func (s *Service) ActiveBackend() string {
	return s.activeBackend().Name()
}

// ClearCache flushes the query-result cache.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// CacheStats reports the cache's size, capacity, and TTL.
func (s *Service) CacheStats() querycache.Stats {
	return s.cache.Stats()
}

func (s *Service) activeBackend() backend.Backend {
	if s.usePrimary.Load() && s.primary.Ready() {
		return s.primary
	}
	return s.fallback
}

func (s *Service) searchBackend(ctx context.Context, b backend.Backend, vector []float32, topK int) ([]domain.SearchHit, error) {
	bctx, cancel := s.opCtx(ctx)
	defer cancel()
	return b.Search(bctx, vector, topK)
}

func (s *Service) upsertBackend(ctx context.Context, b backend.Backend, docs []domain.Document) (int, error) {
	bctx, cancel := s.opCtx(ctx)
	defer cancel()
	return b.Upsert(bctx, docs)
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// callerFault reports whether err is a violation of the search contract by
// the caller rather than an operational backend failure. Such errors
// propagate untouched instead of feeding the fallback path.
func callerFault(err error) bool {
	return errors.Is(err, domain.ErrEmptyVector) ||
		errors.Is(err, domain.ErrInvalidTopK) ||
		errors.Is(err, domain.ErrVectorDimMismatch)
}
