package memvec

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(0, zap.NewNop())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestReadyLifecycle(t *testing.T) {
	s := New(0, zap.NewNop())
	if s.Ready() {
		t.Fatal("store must not be ready before Init")
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !s.Ready() {
		t.Fatal("store must be ready after Init")
	}
}

func TestUpsertAndSearchRanking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Upsert(ctx, []domain.Document{
		{ID: "a", Content: "north", Vector: []float32{1, 0}},
		{ID: "b", Content: "east", Vector: []float32{0, 1}},
		{ID: "c", Content: "northeast", Vector: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 3 {
		t.Fatalf("Upsert wrote %d, want 3", n)
	}

	hits, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "c" {
		t.Fatalf("ranking = [%s %s], want [a c]", hits[0].ID, hits[1].ID)
	}
	if hits[0].Score != 1 {
		t.Errorf("exact match score = %v, want 1", hits[0].Score)
	}
	if hits[0].Content != "north" {
		t.Errorf("hit content = %q, want north", hits[0].Content)
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := []domain.Document{{ID: "a", Content: "v1", Vector: []float32{1, 0}}}
	if _, err := s.Upsert(ctx, docs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	docs[0].Content = "v2"
	if _, err := s.Upsert(ctx, docs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
	hits, err := s.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].Content != "v2" {
		t.Fatalf("content = %q, want v2", hits[0].Content)
	}
}

func TestUpsertDimMismatchStopsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Upsert(ctx, []domain.Document{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "bad", Vector: []float32{1, 0, 0}},
		{ID: "c", Vector: []float32{0, 1}},
	})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("err = %v, want ErrVectorDimMismatch", err)
	}
	if n != 1 {
		t.Fatalf("partial count = %d, want 1", n)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := newTestStore(t)

	hits, err := s.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits from empty store, want 0", len(hits))
	}
}

func TestSearchQueryValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, []domain.Document{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if _, err := s.Search(ctx, nil, 5); !errors.Is(err, domain.ErrEmptyVector) {
		t.Fatalf("empty vector err = %v, want ErrEmptyVector", err)
	}
	if _, err := s.Search(ctx, []float32{1, 0, 0}, 5); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("dim mismatch err = %v, want ErrVectorDimMismatch", err)
	}
}

func TestAdvisoryBudgetDoesNotReject(t *testing.T) {
	s := New(1, zap.NewNop())
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	n, err := s.Upsert(ctx, []domain.Document{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 2 {
		t.Fatalf("wrote %d, want 2 (budget is advisory)", n)
	}
	if c, _ := s.Count(ctx); c != 2 {
		t.Fatalf("Count = %d, want 2", c)
	}
}

func TestSearchDoesNotShareVectorStorage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := []float32{1, 0}
	if _, err := s.Upsert(ctx, []domain.Document{{ID: "a", Vector: vec}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	vec[0] = -1 // caller mutates its slice after the write

	hits, err := s.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].Score != 1 {
		t.Fatalf("score = %v, want 1 (stored vector must be a copy)", hits[0].Score)
	}
}
