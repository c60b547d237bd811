// Package memvec implements the in-memory fallback backend: a mutex-guarded
// document map searched by brute-force cosine scan. It favors availability
// over scale; it is always initializable and serves reads when the durable
// store is down.
package memvec

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/backend"
	"github.com/reach-cloud/promptdex/internal/domain"
)

// Name identifies this backend in logs, stats and health output.
const Name = "memory"

// Store is an in-memory vector store. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
	dim  int // fixed by the first stored document

	maxHotDocs int // advisory budget, never enforced
	warned     bool

	ready atomic.Bool
	log   *zap.Logger
}

// New creates an empty store. maxHotDocs is an advisory budget: exceeding it
// logs a warning once but nothing is rejected or evicted.
func New(maxHotDocs int, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		docs:       make(map[string]domain.Document),
		maxHotDocs: maxHotDocs,
		log:        log,
	}
}

// Init marks the store ready. It cannot fail beyond context cancellation.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return backend.NewError(Name, backend.OpInit, err)
	}
	s.ready.Store(true)
	return nil
}

// Upsert stores or replaces documents by id. Vectors are copied so later
// caller mutations cannot corrupt the index. Returns the number written;
// an invalid document stops the batch and reports the partial count.
func (s *Store) Upsert(_ context.Context, docs []domain.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, doc := range docs {
		if err := doc.Validate(s.dim); err != nil {
			return written, err
		}
		stored := doc
		stored.Vector = append([]float32(nil), doc.Vector...)
		if s.dim == 0 {
			s.dim = len(stored.Vector)
		}
		s.docs[stored.ID] = stored
		written++
	}

	if s.maxHotDocs > 0 && len(s.docs) > s.maxHotDocs && !s.warned {
		s.warned = true
		s.log.Warn("hot document budget exceeded",
			zap.Int("docs", len(s.docs)),
			zap.Int("max_hot_docs", s.maxHotDocs))
	}
	return written, nil
}

// Search scans all documents and returns up to topK hits ordered by
// descending cosine similarity. An empty store yields an empty result,
// not an error.
func (s *Store) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchHit, error) {
	if len(vector) == 0 {
		return nil, domain.ErrEmptyVector
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim > 0 && len(vector) != s.dim {
		return nil, domain.ErrVectorDimMismatch
	}
	if topK <= 0 || len(s.docs) == 0 {
		return []domain.SearchHit{}, nil
	}

	hits := make([]domain.SearchHit, 0, len(s.docs))
	for _, doc := range s.docs {
		hits = append(hits, domain.SearchHit{
			ID:       doc.ID,
			Score:    backend.RoundScore(backend.Cosine(vector, doc.Vector)),
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Ready reports whether Init has completed.
func (s *Store) Ready() bool { return s.ready.Load() }

// Name returns the backend name.
func (s *Store) Name() string { return Name }
