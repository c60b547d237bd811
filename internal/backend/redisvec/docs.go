package redisvec

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/reach-cloud/promptdex/internal/backend"
	"github.com/reach-cloud/promptdex/internal/domain"
)

// Reserved hash field names. Metadata is stored flat next to them, so
// metadata keys starting with "__" are rejected at the mapping layer.
const (
	fieldContent = "__content"
	fieldVector  = "__vector"
)

// Upsert stores documents as hashes in one DoMulti round-trip. Returns the
// number of hashes written; a failed command stops counting but the
// remaining results are still drained.
func (s *Store) Upsert(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	for i := range docs {
		if err := docs[i].Validate(s.cfg.Dim); err != nil {
			return 0, err
		}
	}

	cmds := make([]rueidis.Completed, len(docs))
	for i, doc := range docs {
		cmd := s.b().Hset().Key(s.docKey(doc.ID)).FieldValue()
		for k, v := range buildHashFields(&doc) {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	written := 0
	var firstErr error
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			if firstErr == nil {
				firstErr = backend.NewError(Name, backend.OpUpsert,
					fmt.Errorf("key %s: %w", s.docKey(docs[i].ID), err))
			}
			continue
		}
		written++
	}
	return written, firstErr
}

// Count returns the number of indexed documents via a zero-window FT.SEARCH.
func (s *Store) Count(ctx context.Context) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(s.cfg.Index, "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, backend.NewError(Name, backend.OpCount, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, backend.NewError(Name, backend.OpCount, fmt.Errorf("parse total: %w", err))
	}
	return int(total), nil
}

// buildHashFields flattens a document into hash fields: reserved __content
// and __vector plus the metadata entries.
func buildHashFields(doc *domain.Document) map[string]string {
	m := make(map[string]string, 2+len(doc.Metadata))
	m[fieldContent] = doc.Content
	m[fieldVector] = string(backend.EncodeVector(doc.Vector))
	for k, v := range doc.Metadata {
		if strings.HasPrefix(k, "__") {
			continue
		}
		m[k] = v
	}
	return m
}
