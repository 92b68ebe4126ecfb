package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/document"
)

// store is the consumer interface for index lifecycle (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CountDocuments(ctx context.Context, name string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Stats describes an index.
type Stats struct {
	Name      string
	Exists    bool
	Documents int
}

// Repo manages the search index schema.
type Repo struct {
	store store
	algo  db.VectorAlgorithm
	hnsw  HNSWConfig
}

// New creates an index repository. Vectors are indexed with FLAT, so every
// document is scored exactly on each query.
func New(s store) *Repo {
	return &Repo{store: s, algo: db.VectorFlat, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW switches the vector field to approximate HNSW search with the given parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.algo = db.VectorHNSW
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Ensure creates the index for vectors of dim unless it already exists.
// Returns true when the index was created.
func (r *Repo) Ensure(ctx context.Context, name string, dim int) (bool, error) {
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	def, err := r.Definition(name, dim)
	if err != nil {
		return false, err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", name, err)
	}
	return true, nil
}

// Recreate drops the index with its documents (if any) and creates it empty.
func (r *Repo) Recreate(ctx context.Context, name string, dim int) error {
	if err := r.Drop(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return err
	}
	def, err := r.Definition(name, dim)
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// Drop removes the index and its documents.
func (r *Repo) Drop(ctx context.Context, name string) error {
	if err := r.store.DropIndex(ctx, name); err != nil {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return nil
}

// Stats reports whether the index exists and how many documents it holds.
func (r *Repo) Stats(ctx context.Context, name string) (Stats, error) {
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return Stats{}, fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		return Stats{Name: name}, nil
	}
	n, err := r.store.CountDocuments(ctx, name)
	if err != nil {
		return Stats{}, fmt.Errorf("count documents %s: %w", name, err)
	}
	return Stats{Name: name, Exists: true, Documents: n}, nil
}

// Definition builds the schema: filterable identity tags plus one cosine vector field.
func (r *Repo) Definition(name string, dim int) (*db.IndexDefinition, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d: %w", dim, domain.ErrVectorDimMismatch)
	}
	b := db.NewIndex(name).
		Prefix(db.DocKeyPrefix(name)).
		Tag(document.FieldTerm).
		Tag(document.FieldRelease).
		TagWithOpts(document.FieldLink, "|", true)
	if r.algo == db.VectorHNSW {
		b = b.VectorHNSW(domain.VectorField, dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct)
	} else {
		b = b.VectorFlat(domain.VectorField, dim, db.DistanceCosine, 0)
	}
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", name, err)
	}
	return def, nil
}
