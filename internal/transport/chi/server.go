package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chiv5 "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/domain"
	healthuc "github.com/reach-cloud/promptdex/internal/usecase/health"
	hybriduc "github.com/reach-cloud/promptdex/internal/usecase/hybrid"
	ingestuc "github.com/reach-cloud/promptdex/internal/usecase/ingest"
	usageuc "github.com/reach-cloud/promptdex/internal/usecase/usage"
	"github.com/reach-cloud/promptdex/internal/version"
)

const (
	serviceName  = "promptdex"
	maxBatchSize = 100
	maxTopK      = 100
	defaultTopK  = 10
)

// Embedder vectorizes free-text queries and documents that arrive without a
// precomputed vector. Optional; without one both are rejected.
type Embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the hybrid store over HTTP.
type Server struct {
	store         *hybriduc.Service
	health        *healthuc.Service
	ingest        *ingestuc.Service
	usage         *usageuc.Service
	seedFile      string
	embedder      Embedder
	docEmbedder   Embedder
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server over the hybrid store.
func NewServer(store *hybriduc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		store:  store,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyVector, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidTopK, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrDocumentInvalid, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, CodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, CodeEmbeddingProviderError),
	}
	return s
}

// WithEmbedder enables text queries and vectorless document writes.
func (s *Server) WithEmbedder(e Embedder) *Server {
	s.embedder = e
	return s
}

// WithDocumentEmbedder routes document embedding through a separate
// embedder. Instruction-tuned models prefix queries and documents
// differently; without this option documents use the query embedder.
func (s *Server) WithDocumentEmbedder(e Embedder) *Server {
	s.docEmbedder = e
	return s
}

// WithIngest enables POST /v1/reload from the given seed file.
func (s *Server) WithIngest(svc *ingestuc.Service, seedFile string) *Server {
	s.ingest = svc
	s.seedFile = seedFile
	return s
}

// WithUsage enables GET /v1/usage budget reporting.
func (s *Server) WithUsage(svc *usageuc.Service) *Server {
	s.usage = svc
	return s
}

// Register mounts all routes on the given router.
func (s *Server) Register(r chiv5.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chiv5.Router) {
		r.Post("/search", s.SearchDocuments)
		r.Post("/documents", s.UpsertDocuments)
		r.Post("/reload", s.Reload)
		r.Post("/cache/flush", s.FlushCache)
		r.Get("/stats", s.Stats)
		r.Get("/usage", s.Usage)
	})
}

// SearchDocuments handles POST /v1/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := defaultTopK
	if req.TopK != nil {
		if *req.TopK <= 0 || *req.TopK > maxTopK {
			writeError(w, http.StatusBadRequest, CodeValidationFailed,
				fmt.Sprintf("top_k must be between 1 and %d", maxTopK))
			return
		}
		topK = *req.TopK
	}

	vector := req.Vector
	tokens := 0
	switch {
	case len(vector) > 0 && req.Query != "":
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "provide either query or vector, not both")
		return
	case len(vector) == 0 && req.Query == "":
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query or vector is required")
		return
	case req.Query != "":
		if s.embedder == nil {
			writeError(w, http.StatusNotImplemented, CodeNotImplemented,
				"text queries require an embedding provider")
			return
		}
		res, err := s.embedder.Embed(r.Context(), req.Query)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		vector = res.Embedding
		tokens = res.TotalTokens
	}

	hits, err := s.store.Search(r.Context(), vector, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SearchResultItem, len(hits))
	for i, h := range hits {
		items[i] = SearchResultItem{
			ID:       h.ID,
			Score:    h.Score,
			Content:  h.Content,
			Metadata: h.Metadata,
		}
	}

	setEmbeddingHeader(w, tokens)
	writeJSON(w, http.StatusOK, SearchResponse{
		Items:   items,
		Total:   len(items),
		Backend: s.store.ActiveBackend(),
	})
}

// UpsertDocuments handles POST /v1/documents.
func (s *Server) UpsertDocuments(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", maxBatchSize))
		return
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for i, item := range req.Documents {
		doc, err := documentFromItem(item)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed,
				fmt.Sprintf("document %d: %v", i, err))
			return
		}
		docs = append(docs, doc)
	}

	tokens, err := s.embedMissing(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	written := s.store.Upsert(r.Context(), docs)

	setEmbeddingHeader(w, tokens)
	writeJSON(w, http.StatusOK, UpsertResponse{
		Written: written,
		Total:   len(docs),
	})
}

// Reload handles POST /v1/reload.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil || s.seedFile == "" {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "no seed file configured")
		return
	}

	res, err := s.ingest.Run(r.Context(), s.seedFile)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReloadResponse{
		Total:      res.Total,
		Written:    res.Written,
		Embedded:   res.Embedded,
		Skipped:    res.Skipped,
		Tokens:     res.Tokens,
		DurationMs: res.Duration.Milliseconds(),
	})
}

// FlushCache handles POST /v1/cache/flush.
func (s *Server) FlushCache(w http.ResponseWriter, r *http.Request) {
	s.store.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	cs := s.store.CacheStats()
	writeJSON(w, http.StatusOK, StatsResponse{
		Backend:       s.store.ActiveBackend(),
		PrimaryActive: s.store.PrimaryActive(),
		Documents:     s.store.Count(r.Context()),
		Cache: CacheStatsResponse{
			Size:       cs.Size,
			MaxEntries: cs.MaxSize,
			TTLMs:      cs.TTL.Milliseconds(),
		},
	})
}

// Usage handles GET /v1/usage.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "usage reporting is not configured")
		return
	}

	report := s.usage.Report(r.Context())
	writeJSON(w, http.StatusOK, UsageResponse{
		Provider:    report.Provider,
		Model:       report.Model,
		GeneratedAt: report.GeneratedAt.UnixMilli(),
		Daily:       usageWindow(report.Daily),
		Monthly:     usageWindow(report.Monthly),
	})
}

func usageWindow(w usageuc.Window) UsageWindowResponse {
	return UsageWindowResponse{
		LimitTokens:     w.Limit,
		UsedTokens:      w.Used,
		RemainingTokens: w.Remaining,
		Exhausted:       w.Exhausted,
		ResetsAtMs:      w.ResetsAt.UnixMilli(),
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:        string(report.Status),
		Service:       serviceName,
		Version:       version.Version,
		Ready:         report.Ready,
		Documents:     report.Documents,
		ActiveBackend: report.ActiveBackend,
		Checks:        checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// embedMissing fills vectors for documents that arrived without one. Returns
// the token count spent on embedding.
func (s *Server) embedMissing(ctx context.Context, docs []domain.Document) (int, error) {
	var idx []int
	var texts []string
	for i := range docs {
		if len(docs[i].Vector) == 0 {
			idx = append(idx, i)
			texts = append(texts, docs[i].Content)
		}
	}
	if len(idx) == 0 {
		return 0, nil
	}
	embedder := s.docEmbedder
	if embedder == nil {
		embedder = s.embedder
	}
	if embedder == nil {
		return 0, fmt.Errorf("%w: %d documents have no vector and no embedding provider is configured",
			domain.ErrDocumentInvalid, len(idx))
	}

	res, err := embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed documents: %w", err)
	}
	if len(res.Embeddings) != len(idx) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d documents",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(idx))
	}

	for j, i := range idx {
		docs[i].Vector = res.Embeddings[j]
	}
	return res.TotalTokens, nil
}

func documentFromItem(item DocumentItem) (domain.Document, error) {
	if item.Content == "" {
		return domain.Document{}, errors.New("content is required")
	}
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.Document{
		ID:       id,
		Content:  item.Content,
		Vector:   item.Vector,
		Metadata: item.Metadata,
	}, nil
}

func setEmbeddingHeader(w http.ResponseWriter, tokens int) {
	if tokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyVector,
		domain.ErrInvalidTopK,
		domain.ErrVectorDimMismatch,
		domain.ErrDocumentInvalid,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
