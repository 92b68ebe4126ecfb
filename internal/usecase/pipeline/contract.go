package pipeline

import (
	"context"

	"github.com/kailas-cloud/gradsearch/internal/domain"
)

// Embedder vectorizes a batch of inputs in one provider call.
type Embedder interface {
	Mode() domain.Mode
	BatchEmbed(ctx context.Context, inputs []domain.Input) (domain.BatchEmbeddingResult, error)
}
