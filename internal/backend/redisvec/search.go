package redisvec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/reach-cloud/promptdex/internal/backend"
	"github.com/reach-cloud/promptdex/internal/domain"
)

// scoreField is the KNN distance field FT.SEARCH adds to each entry,
// derived from the vector field alias.
const scoreField = "__vector_score"

// Search runs a KNN query and maps the reply to ranked hits. The engine
// reports cosine distance; the score exposed to callers is 1 − distance.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchHit, error) {
	if len(vector) == 0 {
		return nil, domain.ErrEmptyVector
	}
	if s.cfg.Dim > 0 && len(vector) != s.cfg.Dim {
		return nil, domain.ErrVectorDimMismatch
	}
	if topK <= 0 {
		return []domain.SearchHit{}, nil
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", topK)
	args := []string{
		s.cfg.Index, queryStr,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(topK),
		"PARAMS", "2", "BLOB", string(backend.EncodeVector(vector)),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, backend.NewError(Name, backend.OpSearch, err)
	}
	return s.parseKNNResult(raw)
}

// parseKNNResult maps the RESP2 reply [total, key1, fields1, ...] to hits.
func (s *Store) parseKNNResult(raw []rueidis.RedisMessage) ([]domain.SearchHit, error) {
	if len(raw) == 0 {
		return []domain.SearchHit{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, backend.NewError(Name, backend.OpSearch, fmt.Errorf("parse total: %w", err))
	}
	if total == 0 {
		return []domain.SearchHit{}, nil
	}

	hits := make([]domain.SearchHit, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		hits = append(hits, s.parseHit(key, fields))
	}
	return hits, nil
}

func (s *Store) parseHit(key string, fields []rueidis.RedisMessage) domain.SearchHit {
	hit := domain.SearchHit{ID: strings.TrimPrefix(key, s.cfg.KeyPrefix)}

	var meta map[string]string
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		switch name {
		case fieldContent:
			hit.Content = value
		case fieldVector:
			// raw embedding, not returned to callers
		case scoreField:
			if dist, err := strconv.ParseFloat(value, 64); err == nil {
				hit.Score = backend.RoundScore(1.0 - dist)
			}
		default:
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[name] = value
		}
	}
	hit.Metadata = meta
	return hit
}
