// Package sqlitevec implements the embedded durable backend on SQLite via
// the CGo-free modernc driver. Documents live in a single table with the
// vector stored as a little-endian float32 blob; similarity is computed in
// process over the scanned rows.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/reach-cloud/promptdex/internal/backend"
	"github.com/reach-cloud/promptdex/internal/domain"
)

// Name identifies this backend in logs, stats and health output.
const Name = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id        TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	metadata  TEXT NOT NULL DEFAULT '{}',
	embedding BLOB NOT NULL
);`

// Store is a durable vector store backed by a single SQLite file.
// Safe for concurrent use through the database/sql pool.
type Store struct {
	path string
	log  *zap.Logger

	db    *sql.DB
	ready atomic.Bool

	mu  sync.Mutex
	dim int // fixed by the first stored document, recovered from disk at Init
}

// New creates a store for the given database file. Init opens it.
func New(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Init opens the database, applies the WAL pragmas, ensures the schema and
// recovers the stored vector dimension. Safe to call again: an already open
// store is re-pinged instead of re-opened.
func (s *Store) Init(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return backend.NewInitError(Name, err)
		}
		s.ready.Store(true)
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return backend.NewInitError(Name, fmt.Errorf("open %q: %w", s.path, err))
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	if _, err := db.ExecContext(ctx,
		`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return backend.NewInitError(Name, fmt.Errorf("apply pragmas: %w", err))
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return backend.NewInitError(Name, fmt.Errorf("ensure schema: %w", err))
	}

	var blobLen sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT length(embedding) FROM documents LIMIT 1`).Scan(&blobLen)
	if err != nil && err != sql.ErrNoRows {
		db.Close()
		return backend.NewInitError(Name, fmt.Errorf("probe dimension: %w", err))
	}
	if blobLen.Valid {
		s.dim = int(blobLen.Int64) / 4
	}

	s.db = db
	s.ready.Store(true)
	s.log.Info("sqlite backend initialized",
		zap.String("path", s.path), zap.Int("dim", s.dim))
	return nil
}

// Upsert writes the batch in one transaction: all documents or none.
func (s *Store) Upsert(ctx context.Context, docs []domain.Document) (int, error) {
	if s.db == nil {
		return 0, backend.NewError(Name, backend.OpUpsert, backend.ErrInit)
	}

	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()
	for i := range docs {
		if err := docs[i].Validate(dim); err != nil {
			return 0, err
		}
		if dim == 0 {
			dim = len(docs[i].Vector)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, backend.NewError(Name, backend.OpUpsert, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents (id, content, metadata, embedding) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	content = excluded.content,
	metadata = excluded.metadata,
	embedding = excluded.embedding`)
	if err != nil {
		return 0, backend.NewError(Name, backend.OpUpsert, err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		meta, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return 0, backend.NewError(Name, backend.OpUpsert, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Content, meta,
			backend.EncodeVector(doc.Vector)); err != nil {
			return 0, backend.NewError(Name, backend.OpUpsert, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, backend.NewError(Name, backend.OpUpsert, err)
	}

	s.mu.Lock()
	if s.dim == 0 {
		s.dim = dim
	}
	s.mu.Unlock()
	return len(docs), nil
}

// Search scans every row, scores it by cosine similarity and returns the
// topK best. Ordering ties break by id for determinism.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchHit, error) {
	if len(vector) == 0 {
		return nil, domain.ErrEmptyVector
	}
	if s.db == nil {
		return nil, backend.NewError(Name, backend.OpSearch, backend.ErrInit)
	}

	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()
	if dim > 0 && len(vector) != dim {
		return nil, domain.ErrVectorDimMismatch
	}
	if topK <= 0 {
		return []domain.SearchHit{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding FROM documents`)
	if err != nil {
		return nil, backend.NewError(Name, backend.OpSearch, err)
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var (
			id, content string
			meta        string
			blob        []byte
		)
		if err := rows.Scan(&id, &content, &meta, &blob); err != nil {
			return nil, backend.NewError(Name, backend.OpSearch, err)
		}
		vec, err := backend.DecodeVector(blob)
		if err != nil {
			return nil, backend.NewError(Name, backend.OpSearch,
				fmt.Errorf("document %q: %w", id, err))
		}
		hits = append(hits, domain.SearchHit{
			ID:       id,
			Score:    backend.RoundScore(backend.Cosine(vector, vec)),
			Content:  content,
			Metadata: decodeMetadata(meta),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, backend.NewError(Name, backend.OpSearch, err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	return hits, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, backend.NewError(Name, backend.OpCount, backend.ErrInit)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, backend.NewError(Name, backend.OpCount, err)
	}
	return n, nil
}

// Ready reports whether Init has completed successfully.
func (s *Store) Ready() bool { return s.ready.Load() }

// Name returns the backend name.
func (s *Store) Name() string { return Name }

// Close releases the database handle.
func (s *Store) Close() error {
	s.ready.Store(false)
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
