// Package querycache holds search results keyed by query fingerprint in a
// bounded in-process map. Entries expire by age and are evicted by a
// frequency-first, age-second policy: reuse protects an entry, mere recency
// does not.
package querycache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/domain"
)

// Event label values for the injected counter vec.
const (
	EventHit   = "hit"
	EventMiss  = "miss"
	EventEvict = "evict"
	EventClear = "clear"
)

// Stats describes cache occupancy and configuration.
type Stats struct {
	Size    int
	MaxSize int
	TTL     time.Duration
}

type entry struct {
	results   []domain.SearchHit
	topK      int
	createdAt time.Time // set once at insertion, never refreshed
	hits      int       // only increases
}

// Store is the bounded query-result cache. A single mutex guards the map;
// the entry count is small enough that striping would buy nothing.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	maxEntries int
	ttl        time.Duration

	now    func() time.Time
	events *prometheus.CounterVec // label "event": hit/miss/evict/clear, may be nil
	logger *zap.Logger
}

// New creates a cache holding up to maxEntries results for ttl each.
// events is a counter vec with label "event", passed explicitly; nil means
// no metrics. maxEntries < 1 disables caching entirely: every lookup
// misses and nothing is stored.
func New(maxEntries int, ttl time.Duration, events *prometheus.CounterVec, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		events:     events,
		logger:     logger,
	}
}

// Get returns the cached results for fp when present and younger than the
// TTL. A hit increments the entry's hit count and never refreshes its
// creation time. An expired entry counts as a miss but is left in place:
// it will be overwritten on re-insert or removed by an eviction pass.
func (s *Store) Get(fp string) ([]domain.SearchHit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fp]
	if !ok || s.now().Sub(e.createdAt) >= s.ttl {
		s.inc(EventMiss)
		return nil, false
	}
	e.hits++
	s.inc(EventHit)
	return e.results, true
}

// Put stores non-empty results under fp. Empty result sets are never
// cached, so a transient "nothing found" cannot outlive the data becoming
// available. Inserting a new fingerprint at capacity evicts exactly one
// entry first; re-inserting an existing fingerprint overwrites in place.
func (s *Store) Put(fp string, topK int, results []domain.SearchHit) {
	if len(results) == 0 || s.maxEntries < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[fp]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOne()
	}
	s.entries[fp] = &entry{
		results:   results,
		topK:      topK,
		createdAt: s.now(),
	}
}

// evictOne removes the entry with the lowest hit count, breaking ties by
// earliest creation time. Caller holds the lock.
func (s *Store) evictOne() {
	var victimFP string
	var victim *entry
	for fp, e := range s.entries {
		if victim == nil ||
			e.hits < victim.hits ||
			(e.hits == victim.hits && e.createdAt.Before(victim.createdAt)) {
			victimFP, victim = fp, e
		}
	}
	if victim == nil {
		return
	}
	delete(s.entries, victimFP)
	s.inc(EventEvict)
	s.logger.Debug("evicted cache entry",
		zap.String("fingerprint", victimFP),
		zap.Int("hits", victim.hits))
}

// Clear drops every entry. Every write path calls this unconditionally:
// the cache cannot tell which queries a document change affects, so it
// trades hit rate for correctness.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return
	}
	s.entries = make(map[string]*entry)
	s.inc(EventClear)
}

// Stats reports current occupancy and the configured bounds.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Size: len(s.entries), MaxSize: s.maxEntries, TTL: s.ttl}
}

func (s *Store) inc(event string) {
	if s.events != nil {
		s.events.WithLabelValues(event).Inc()
	}
}
