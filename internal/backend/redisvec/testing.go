package redisvec

import (
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
// The store is marked ready so operation tests skip Init.
func NewStoreForTest(c rueidis.Client, dim int) *Store {
	s := &Store{
		cfg: Config{
			Index:     defaultIndex,
			KeyPrefix: defaultKeyPrefix,
			Dim:       dim,
		},
		client: c,
		log:    zap.NewNop(),
	}
	s.ready.Store(true)
	return s
}
