package ingest

import (
	"context"

	"github.com/reach-cloud/promptdex/internal/domain"
)

// DocumentWriter accepts document batches for storage. The count reports how
// many documents were written; failures are the writer's concern.
type DocumentWriter interface {
	Upsert(ctx context.Context, docs []domain.Document) int
}

// BatchEmbedder vectorizes multiple texts in a single provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
