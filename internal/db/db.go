package db

import (
	"context"
	"time"
)

// Store is the index store facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	IndexManager
	BulkIndexer
	Scorer
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CountDocuments(ctx context.Context, name string) (int, error)
}

// Doc is one indexable document: flat string fields plus its dense vector.
type Doc struct {
	ID     string
	Fields map[string]string
	Vector []float32
}

// BulkIndexer writes documents into an existing index.
type BulkIndexer interface {
	// BulkIndex stores docs under index, vectors under vectorField.
	// Returns the number of documents the store accepted.
	BulkIndex(ctx context.Context, index, vectorField string, docs []Doc) (int, error)
}

// Scorer ranks every document of an index against a query vector.
type Scorer interface {
	ScoreSearch(ctx context.Context, q *ScoreQuery) (*SearchResult, error)
}

// KVStore provides simple key-value operations. Only key-value capable
// drivers implement it; callers discover it with a type assertion.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
