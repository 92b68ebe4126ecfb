package search

import (
	"context"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/search/result"
)

// Repository defines the storage contract for similarity queries.
type Repository interface {
	Score(ctx context.Context, index string, vector []float32, topK int, fields []string) ([]result.Result, int, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Mode() domain.Mode
	BatchEmbed(ctx context.Context, inputs []domain.Input) (domain.BatchEmbeddingResult, error)
}
