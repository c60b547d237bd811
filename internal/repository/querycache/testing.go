package querycache

import (
	"time"

	"go.uber.org/zap"
)

// NewStoreForTest creates a Store with an injected clock and no metrics (test-only).
func NewStoreForTest(maxEntries int, ttl time.Duration, now func() time.Time) *Store {
	s := New(maxEntries, ttl, nil, zap.NewNop())
	if now != nil {
		s.now = now
	}
	return s
}
