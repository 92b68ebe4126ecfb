// Package memory is an in-process index store using brute-force scoring.
// It backs local runs and tests; nothing is persisted.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/domain/similarity"
)

// Compile-time checks.
var (
	_ db.Store   = (*Store)(nil)
	_ db.KVStore = (*Store)(nil)
)

type index struct {
	def  db.IndexDefinition
	dim  int
	ids  []string // insertion order
	docs map[string]db.Doc
}

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store keeps indexes and key-value entries in memory.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*index
	kv      map[string]kvEntry
	now     func() time.Time
}

// NewStore creates an empty memory store.
func NewStore() *Store {
	return &Store{
		indexes: make(map[string]*index),
		kv:      make(map[string]kvEntry),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// CreateIndex registers an index. The vector field dimension becomes fixed.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	vf, _ := def.VectorField()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	s.indexes[def.Name] = &index{
		def:  *def,
		dim:  vf.VectorDim,
		docs: make(map[string]db.Doc),
	}
	return nil
}

// DropIndex removes an index and its documents.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	return nil
}

// IndexExists reports whether an index was created.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// CountDocuments returns the number of documents in an index.
func (s *Store) CountDocuments(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return 0, db.ErrIndexNotFound
	}
	return len(idx.docs), nil
}

// BulkIndex upserts documents by ID. All vectors must match the index dimension;
// on mismatch nothing from the call is stored.
func (s *Store) BulkIndex(_ context.Context, name, _ string, docs []db.Doc) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return 0, db.ErrIndexNotFound
	}

	for i := range docs {
		if docs[i].ID == "" {
			return 0, fmt.Errorf("document [%d] has no id: %w", i, db.ErrInvalidQuery)
		}
		if len(docs[i].Vector) != idx.dim {
			return 0, fmt.Errorf("document %s: dimension %d, index expects %d: %w",
				docs[i].ID, len(docs[i].Vector), idx.dim, similarity.ErrDimensionMismatch)
		}
	}

	for _, d := range docs {
		if _, seen := idx.docs[d.ID]; !seen {
			idx.ids = append(idx.ids, d.ID)
		}
		idx.docs[d.ID] = db.Doc{
			ID:     d.ID,
			Fields: copyFields(d.Fields),
			Vector: append([]float32(nil), d.Vector...),
		}
	}
	return len(docs), nil
}

// ScoreSearch scores every document with similarity.Score and returns the top Size.
func (s *Store) ScoreSearch(_ context.Context, q *db.ScoreQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[q.Index]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}

	entries := make([]db.SearchEntry, 0, len(idx.ids))
	for _, id := range idx.ids {
		d := idx.docs[id]
		score, err := similarity.Score(q.Vector, d.Vector)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		entries = append(entries, db.SearchEntry{
			Key:    id,
			Score:  score,
			Fields: project(d.Fields, q.ReturnFields),
		})
	}

	// ties keep insertion order
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	total := len(entries)
	if len(entries) > q.Size {
		entries = entries[:q.Size]
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.kv[key]
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value without expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: append([]byte(nil), value...)}
	return nil
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: append([]byte(nil), value...), expiresAt: s.now().Add(ttl)}
	return nil
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// project returns only the requested fields; an empty list returns all fields.
func project(fields map[string]string, keep []string) map[string]string {
	if len(keep) == 0 {
		return copyFields(fields)
	}
	out := make(map[string]string, len(keep))
	for _, k := range keep {
		if v, ok := fields[k]; ok {
			out[k] = v
		}
	}
	return out
}
