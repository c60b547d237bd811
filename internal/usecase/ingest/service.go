package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/domain"
)

const (
	defaultBatchSize      = 64
	defaultEmbedBatchSize = 32
)

// Service loads prompt seed files into the hybrid store, embedding records
// that ship without a vector.
type Service struct {
	store DocumentWriter
	embed BatchEmbedder
	log   *zap.Logger

	batchSize      int
	embedBatchSize int
}

// New creates an ingest service. embed can be nil when every seed record
// carries a precomputed vector.
func New(store DocumentWriter, embed BatchEmbedder, log *zap.Logger) *Service {
	return &Service{
		store: store, embed: embed, log: log,
		batchSize:      defaultBatchSize,
		embedBatchSize: defaultEmbedBatchSize,
	}
}

// WithBatchSize configures how many documents go into one store upsert.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithEmbedBatchSize configures how many texts go into one provider call.
func (s *Service) WithEmbedBatchSize(n int) *Service {
	if n > 0 {
		s.embedBatchSize = n
	}
	return s
}

// Result summarizes one ingest run.
type Result struct {
	Total    int
	Written  int
	Embedded int
	Skipped  int
	Tokens   int
	Duration time.Duration
}

// Run loads every prompt in the seed file into the store. An embedding
// failure aborts the run; store failures are absorbed by the writer and show
// up only as a lower written count.
func (s *Service) Run(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	records, err := ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(records)}

	docs := make([]domain.Document, 0, len(records))
	for i := range records {
		if strings.TrimSpace(records[i].Content) == "" {
			res.Skipped++
			s.log.Warn("skipping prompt without content",
				zap.Int("index", i), zap.String("id", records[i].ID))
			continue
		}
		docs = append(docs, toDocument(records[i]))
	}

	embedded, tokens, err := s.embedMissing(ctx, docs)
	res.Embedded = embedded
	res.Tokens = tokens
	if err != nil {
		return res, fmt.Errorf("embed prompts: %w", err)
	}

	for i := 0; i < len(docs); i += s.batchSize {
		end := i + s.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		res.Written += s.store.Upsert(ctx, docs[i:end])

		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	res.Duration = time.Since(start)
	s.log.Info("ingest complete",
		zap.Int("total", res.Total),
		zap.Int("written", res.Written),
		zap.Int("embedded", res.Embedded),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", res.Duration))
	return res, nil
}

// embedMissing fills vectors for documents that arrived without one, in
// provider-sized batches. Returns how many were embedded and the token usage.
func (s *Service) embedMissing(ctx context.Context, docs []domain.Document) (int, int, error) {
	missing := make([]int, 0, len(docs))
	for i := range docs {
		if len(docs[i].Vector) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return 0, 0, nil
	}
	if s.embed == nil {
		return 0, 0, fmt.Errorf("%d prompts need embedding but no provider is configured", len(missing))
	}

	var embedded, tokens int
	for i := 0; i < len(missing); i += s.embedBatchSize {
		end := i + s.embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[i:end]

		texts := make([]string, len(chunk))
		for j, idx := range chunk {
			texts[j] = docs[idx].Content
		}

		result, err := s.embed.BatchEmbed(ctx, texts)
		if err != nil {
			return embedded, tokens, err
		}
		if len(result.Embeddings) != len(chunk) {
			return embedded, tokens, fmt.Errorf(
				"provider returned %d embeddings for %d texts", len(result.Embeddings), len(chunk))
		}

		for j, idx := range chunk {
			docs[idx].Vector = result.Embeddings[j]
		}
		embedded += len(chunk)
		tokens += result.TotalTokens
	}
	return embedded, tokens, nil
}

// toDocument converts a seed record into a store document, folding title and
// tags into metadata.
func toDocument(rec PromptRecord) domain.Document {
	meta := make(map[string]string)
	if rec.Title != "" {
		meta["title"] = rec.Title
	}
	if len(rec.Tags) > 0 {
		meta["tags"] = strings.Join(rec.Tags, ",")
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	return domain.Document{
		ID:       id,
		Content:  rec.Content,
		Vector:   rec.Vector,
		Metadata: meta,
	}
}
