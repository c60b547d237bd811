package chi

// ErrorCode identifies an error category in API responses.
type ErrorCode string

const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeNotImplemented         ErrorCode = "not_implemented"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest carries either a free-text query or a precomputed vector.
type SearchRequest struct {
	Query  string    `json:"query,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
	TopK   *int      `json:"top_k,omitempty"`
}

// SearchResultItem is one ranked hit.
type SearchResultItem struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResponse lists ranked hits and names the backend that served them.
type SearchResponse struct {
	Items   []SearchResultItem `json:"items"`
	Total   int                `json:"total"`
	Backend string             `json:"backend"`
}

// DocumentItem is one document in an upsert request. ID and Vector are
// optional; a missing ID is generated, a missing vector is embedded from
// Content when a provider is configured.
type DocumentItem struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Vector   []float32         `json:"vector,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UpsertRequest carries a batch of documents to write.
type UpsertRequest struct {
	Documents []DocumentItem `json:"documents"`
}

// UpsertResponse reports how many documents were written.
type UpsertResponse struct {
	Written int `json:"written"`
	Total   int `json:"total"`
}

// ReloadResponse reports the outcome of a seed-file reload.
type ReloadResponse struct {
	Total      int   `json:"total"`
	Written    int   `json:"written"`
	Embedded   int   `json:"embedded"`
	Skipped    int   `json:"skipped"`
	Tokens     int   `json:"tokens"`
	DurationMs int64 `json:"duration_ms"`
}

// CacheStatsResponse describes the query-result cache.
type CacheStatsResponse struct {
	Size       int   `json:"size"`
	MaxEntries int   `json:"max_entries"`
	TTLMs      int64 `json:"ttl_ms"`
}

// StatsResponse is the GET /v1/stats body.
type StatsResponse struct {
	Backend       string             `json:"backend"`
	PrimaryActive bool               `json:"primary_active"`
	Documents     int                `json:"documents"`
	Cache         CacheStatsResponse `json:"cache"`
}

// UsageWindowResponse describes one budget window. remaining_tokens is -1
// when the window has no limit.
type UsageWindowResponse struct {
	LimitTokens     int64 `json:"limit_tokens"`
	UsedTokens      int64 `json:"used_tokens"`
	RemainingTokens int64 `json:"remaining_tokens"`
	Exhausted       bool  `json:"exhausted"`
	ResetsAtMs      int64 `json:"resets_at_ms"`
}

// UsageResponse is the GET /v1/usage body.
type UsageResponse struct {
	Provider    string              `json:"provider"`
	Model       string              `json:"model"`
	GeneratedAt int64               `json:"generated_at_ms"`
	Daily       UsageWindowResponse `json:"daily"`
	Monthly     UsageWindowResponse `json:"monthly"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	Version       string            `json:"version"`
	Ready         bool              `json:"ready"`
	Documents     int               `json:"documents"`
	ActiveBackend string            `json:"active_backend,omitempty"`
	Checks        map[string]string `json:"checks"`
}
