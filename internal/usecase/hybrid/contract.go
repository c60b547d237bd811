package hybrid

import (
	"github.com/reach-cloud/promptdex/internal/domain"
	"github.com/reach-cloud/promptdex/internal/repository/querycache"
)

// ResultCache is the query-result cache contract consumed by the orchestrator.
// Keys are fingerprints computed by the orchestrator, not raw vectors.
type ResultCache interface {
	Get(fingerprint string) ([]domain.SearchHit, bool)
	Put(fingerprint string, topK int, results []domain.SearchHit)
	Clear()
	Stats() querycache.Stats
}
