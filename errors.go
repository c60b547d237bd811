package promptdex

import "github.com/reach-cloud/promptdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyVector            = domain.ErrEmptyVector
	ErrInvalidTopK            = domain.ErrInvalidTopK
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrDocumentInvalid        = domain.ErrDocumentInvalid
	ErrNotReady               = domain.ErrNotReady
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
