// Package backend defines the contract every vector store must satisfy and
// the shared helpers (error wrapping, vector codec, similarity) its
// implementations build on. The orchestrator only ever talks to a Backend;
// concrete drivers live in the subpackages redisvec, sqlitevec and memvec.
package backend

import (
	"context"

	"github.com/reach-cloud/promptdex/internal/domain"
)

// Backend is the capability set required of both the durable and the
// in-memory store. Implementations must be safe for concurrent use.
type Backend interface {
	// Init performs backend-specific setup (connections, schema, index).
	// A failure wraps ErrInit. Init is called once per process.
	Init(ctx context.Context) error

	// Upsert stores or updates a batch of documents and returns the number
	// actually written. Operational failures return a *Error; partial
	// writes report the partial count alongside the error.
	Upsert(ctx context.Context, docs []domain.Document) (int, error)

	// Search returns up to topK hits ordered by descending similarity.
	// An empty result is a valid outcome, never an error; a *Error means
	// the backend itself failed.
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchHit, error)

	// Count returns the current number of stored documents.
	Count(ctx context.Context) (int, error)

	// Ready is a cheap, non-blocking readiness probe. It reflects the
	// outcome of Init, not a live connection check.
	Ready() bool

	// Name identifies the backend in logs, stats and health output.
	Name() string
}
