package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/reach-cloud/promptdex/internal/domain"
)

type stubBackend struct {
	searchErr error
}

func (s *stubBackend) Init(_ context.Context) error { return nil }

func (s *stubBackend) Upsert(_ context.Context, docs []domain.Document) (int, error) {
	return len(docs), nil
}

func (s *stubBackend) Search(_ context.Context, _ []float32, _ int) ([]domain.SearchHit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return []domain.SearchHit{{ID: "a", Score: 1}}, nil
}

func (s *stubBackend) Count(_ context.Context) (int, error) { return 1, nil }
func (s *stubBackend) Ready() bool                          { return true }
func (s *stubBackend) Name() string                         { return "stub" }

func newTestCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_backend_requests_total"},
		[]string{"backend", "op", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_backend_duration_seconds"},
		[]string{"backend", "op"},
	)
	return requests, duration
}

func TestInstrument_CountsByOpAndStatus(t *testing.T) {
	requests, duration := newTestCollectors()
	b := Instrument(&stubBackend{}, requests, duration)
	ctx := context.Background()

	if err := b.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := b.Search(ctx, []float32{1}, 5); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := b.Upsert(ctx, make([]domain.Document, 2)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := b.Count(ctx); err != nil {
		t.Fatalf("Count: %v", err)
	}

	for _, op := range []string{OpInit, OpSearch, OpUpsert, OpCount} {
		if got := testutil.ToFloat64(requests.WithLabelValues("stub", op, "ok")); got != 1 {
			t.Errorf("requests{op=%q,status=ok} = %f, want 1", op, got)
		}
	}
	if got := testutil.CollectAndCount(duration); got != 4 {
		t.Errorf("expected 4 duration series, got %d", got)
	}
}

func TestInstrument_ErrorStatus(t *testing.T) {
	requests, duration := newTestCollectors()
	b := Instrument(&stubBackend{searchErr: errors.New("down")}, requests, duration)

	if _, err := b.Search(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error passed through")
	}
	if got := testutil.ToFloat64(requests.WithLabelValues("stub", OpSearch, "error")); got != 1 {
		t.Errorf("requests{op=search,status=error} = %f, want 1", got)
	}
}

func TestInstrument_NilCollectorsDelegate(t *testing.T) {
	b := Instrument(&stubBackend{}, nil, nil)

	hits, err := b.Search(context.Background(), []float32{1}, 5)
	if err != nil || len(hits) != 1 {
		t.Fatalf("expected delegation, got %v, %v", hits, err)
	}
	if b.Name() != "stub" || !b.Ready() {
		t.Error("Name and Ready must delegate")
	}
}
