package ingest

import (
	"context"

	"github.com/kailas-cloud/gradsearch/internal/bulk"
)

// IndexManager prepares the target index.
type IndexManager interface {
	Ensure(ctx context.Context, name string, dim int) (bool, error)
	Recreate(ctx context.Context, name string, dim int) error
}

// LineSaver stores a chunk of bulk lines.
type LineSaver interface {
	SaveLines(ctx context.Context, index string, lines []bulk.Line) (int, error)
}
