package domain

import "errors"

var (
	// ErrVectorDimMismatch signals a query or document vector of the wrong dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyVector signals an empty query vector.
	ErrEmptyVector = errors.New("empty query vector")
	// ErrInvalidTopK signals a requested result count outside the allowed range.
	ErrInvalidTopK = errors.New("invalid topK")
	// ErrDocumentInvalid signals a document that cannot be stored.
	ErrDocumentInvalid = errors.New("invalid document")
	// ErrNotReady signals that no backend is ready to serve requests.
	ErrNotReady = errors.New("no backend ready")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)
