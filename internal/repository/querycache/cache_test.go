package querycache

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/domain"
)

const testTTL = 60 * time.Second

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time               { return c.t }
func (c *fakeClock) Advance(d time.Duration)      { c.t = c.t.Add(d) }
func newFakeClock() *fakeClock                    { return &fakeClock{t: time.Unix(1700000000, 0)} }
func hits(ids ...string) []domain.SearchHit {
	out := make([]domain.SearchHit, len(ids))
	for i, id := range ids {
		out[i] = domain.SearchHit{ID: id, Score: 0.9}
	}
	return out
}

func newTestCache(t *testing.T, maxEntries int) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := New(maxEntries, testTTL, nil, zap.NewNop())
	s.now = clock.Now
	return s, clock
}

func TestGetHitWithinTTL(t *testing.T) {
	s, clock := newTestCache(t, 10)
	fp := Fingerprint([]float32{0.1, 0.2}, 5)

	s.Put(fp, 5, hits("a", "b"))
	clock.Advance(testTTL - time.Millisecond)

	got, ok := s.Get(fp)
	if !ok {
		t.Fatal("expected hit within TTL")
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("results = %+v, want the stored sequence", got)
	}
	if s.entries[fp].hits != 1 {
		t.Fatalf("hits = %d, want 1", s.entries[fp].hits)
	}

	clock.Advance(time.Millisecond)
	if _, ok := s.Get(fp); ok {
		t.Fatal("entry aged past TTL must miss") // the first Get must not refresh createdAt
	}
}

func TestGetMissAfterTTL(t *testing.T) {
	s, clock := newTestCache(t, 10)
	fp := Fingerprint([]float32{0.1}, 3)

	s.Put(fp, 3, hits("a"))
	clock.Advance(testTTL)

	if _, ok := s.Get(fp); ok {
		t.Fatal("expected miss at exactly TTL")
	}
	if len(s.entries) != 1 {
		t.Fatal("expired entry must not be deleted by lookup")
	}
}

func TestHitCountOnlyIncreases(t *testing.T) {
	s, _ := newTestCache(t, 10)
	fp := Fingerprint([]float32{0.5}, 2)

	s.Put(fp, 2, hits("a"))
	for i := 1; i <= 3; i++ {
		if _, ok := s.Get(fp); !ok {
			t.Fatalf("Get %d: expected hit", i)
		}
		if got := s.entries[fp].hits; got != i {
			t.Fatalf("hits after Get %d = %d, want %d", i, got, i)
		}
	}
}

func TestPutOverwritesSameFingerprint(t *testing.T) {
	s, clock := newTestCache(t, 10)
	fp := Fingerprint([]float32{0.1}, 5)

	s.Put(fp, 5, hits("old"))
	s.Get(fp)
	clock.Advance(testTTL - time.Millisecond)

	s.Put(fp, 5, hits("new"))

	got, ok := s.Get(fp)
	if !ok || got[0].ID != "new" {
		t.Fatalf("Get = %+v, %v; want the overwritten results", got, ok)
	}
	if s.entries[fp].hits != 1 {
		t.Fatalf("hits = %d, want 1 (overwrite starts fresh)", s.entries[fp].hits)
	}

	// Overwriting reset createdAt, so the entry survives past the old deadline.
	clock.Advance(testTTL - time.Millisecond)
	if _, ok := s.Get(fp); !ok {
		t.Fatal("overwritten entry must live a full TTL from its re-insertion")
	}
}

func TestEvictionPrefersLowHitCount(t *testing.T) {
	s, clock := newTestCache(t, 2)
	fpA := Fingerprint([]float32{1}, 5)
	fpB := Fingerprint([]float32{2}, 5)
	fpC := Fingerprint([]float32{3}, 5)

	s.Put(fpA, 5, hits("a"))
	for i := 0; i < 3; i++ {
		s.Get(fpA)
	}
	clock.Advance(time.Second)
	s.Put(fpB, 5, hits("b")) // newer than A but never hit

	s.Put(fpC, 5, hits("c"))

	if len(s.entries) != 2 {
		t.Fatalf("size = %d, want 2 (exactly one eviction)", len(s.entries))
	}
	if _, ok := s.entries[fpB]; ok {
		t.Fatal("B (0 hits) must be evicted, not A (3 hits)")
	}
	if _, ok := s.entries[fpA]; !ok {
		t.Fatal("A must survive eviction")
	}
	if _, ok := s.entries[fpC]; !ok {
		t.Fatal("C must be inserted")
	}
}

func TestEvictionTieBreaksOldest(t *testing.T) {
	s, clock := newTestCache(t, 2)
	fpA := Fingerprint([]float32{1}, 5)
	fpB := Fingerprint([]float32{2}, 5)
	fpC := Fingerprint([]float32{3}, 5)

	s.Put(fpA, 5, hits("a"))
	clock.Advance(time.Second)
	s.Put(fpB, 5, hits("b")) // same hit count as A, created later

	s.Put(fpC, 5, hits("c"))

	if _, ok := s.entries[fpA]; ok {
		t.Fatal("A (oldest of the tied entries) must be evicted")
	}
	if _, ok := s.entries[fpB]; !ok {
		t.Fatal("B must survive the tie-break")
	}
}

func TestEmptyResultsNeverCached(t *testing.T) {
	s, _ := newTestCache(t, 10)
	fp := Fingerprint([]float32{0.1, 0.2}, 5)

	s.Put(fp, 5, nil)
	s.Put(fp, 5, []domain.SearchHit{})

	if len(s.entries) != 0 {
		t.Fatalf("size = %d, want 0 (empty results are not cached)", len(s.entries))
	}
}

func TestClear(t *testing.T) {
	s, _ := newTestCache(t, 10)
	s.Put(Fingerprint([]float32{1}, 5), 5, hits("a"))
	s.Put(Fingerprint([]float32{2}, 5), 5, hits("b"))

	s.Clear()

	if got := s.Stats().Size; got != 0 {
		t.Fatalf("size after Clear = %d, want 0", got)
	}
	if _, ok := s.Get(Fingerprint([]float32{1}, 5)); ok {
		t.Fatal("cleared entry must miss")
	}
}

func TestDisabledCache(t *testing.T) {
	s, _ := newTestCache(t, 0)
	fp := Fingerprint([]float32{1}, 5)

	s.Put(fp, 5, hits("a"))
	if _, ok := s.Get(fp); ok {
		t.Fatal("disabled cache must never hit")
	}
	if s.Stats().Size != 0 {
		t.Fatal("disabled cache must store nothing")
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestCache(t, 7)
	s.Put(Fingerprint([]float32{1}, 5), 5, hits("a"))

	got := s.Stats()
	if got.Size != 1 || got.MaxSize != 7 || got.TTL != testTTL {
		t.Fatalf("Stats = %+v, want {1 7 %v}", got, testTTL)
	}
}
