// Package ingest loads a bulk file into the index store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/bulk"
	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/metrics"
)

// DefaultChunkSize is the number of documents per store bulk request.
const DefaultChunkSize = 500

// ErrMixedIndexes is returned when a bulk file targets more than one index and no override is set.
var ErrMixedIndexes = errors.New("bulk file targets more than one index")

// Options controls a load.
type Options struct {
	// Index overrides the _index of every line when non-empty.
	Index string
	// Recreate drops and recreates the index before loading.
	Recreate bool
}

// Summary describes a finished load.
type Summary struct {
	Index      string
	Documents  int
	Chunks     int
	Dimensions int
	Created    bool
}

// Service streams bulk lines into the store in chunks.
type Service struct {
	indexes   IndexManager
	saver     LineSaver
	chunkSize int
	logger    *zap.Logger
}

// New creates an ingest service.
func New(indexes IndexManager, saver LineSaver, logger *zap.Logger) *Service {
	return &Service{indexes: indexes, saver: saver, chunkSize: DefaultChunkSize, logger: logger}
}

// WithChunkSize configures the store bulk request size.
func (s *Service) WithChunkSize(n int) *Service {
	if n > 0 {
		s.chunkSize = n
	}
	return s
}

// Load reads every line from r and stores it. The index is prepared from the first
// line's vector length; later lines of a different length fail the load.
func (s *Service) Load(ctx context.Context, r io.Reader, opts Options) (Summary, error) {
	reader := bulk.NewReader(r)
	sum := Summary{Index: strings.TrimSpace(opts.Index)}
	chunk := make([]bulk.Line, 0, s.chunkSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := s.saver.SaveLines(ctx, sum.Index, chunk)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", sum.Chunks, err)
		}
		sum.Documents += n
		sum.Chunks++
		metrics.PipelineDocumentsTotal.WithLabelValues("loaded").Add(float64(n))
		s.logger.Debug("Bulk chunk stored",
			zap.String("index", sum.Index),
			zap.Int("chunk", sum.Chunks),
			zap.Int("documents", n),
		)
		chunk = chunk[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("load cancelled: %w", err)
		}
		line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, err
		}

		if err := s.admit(ctx, &sum, &line, opts); err != nil {
			return sum, err
		}
		chunk = append(chunk, line)
		if len(chunk) >= s.chunkSize {
			if err := flush(); err != nil {
				return sum, err
			}
		}
	}
	if err := flush(); err != nil {
		return sum, err
	}

	s.logger.Info("Bulk load completed",
		zap.String("index", sum.Index),
		zap.Int("documents", sum.Documents),
		zap.Int("chunks", sum.Chunks),
		zap.Bool("created", sum.Created),
	)
	return sum, nil
}

// admit checks one line against the load and prepares the index on the first line.
func (s *Service) admit(ctx context.Context, sum *Summary, line *bulk.Line, opts Options) error {
	if sum.Dimensions == 0 {
		if sum.Index == "" {
			sum.Index = line.Index
		}
		sum.Dimensions = len(line.Vector)
		if err := s.prepare(ctx, sum, opts); err != nil {
			return err
		}
	}

	if opts.Index == "" && line.Index != sum.Index {
		return fmt.Errorf("%w: %q and %q", ErrMixedIndexes, sum.Index, line.Index)
	}
	line.Index = sum.Index

	if len(line.Vector) != sum.Dimensions {
		return fmt.Errorf("document %q has %d dimensions, index has %d: %w",
			line.Thema, len(line.Vector), sum.Dimensions, domain.ErrVectorDimMismatch)
	}
	return nil
}

func (s *Service) prepare(ctx context.Context, sum *Summary, opts Options) error {
	if opts.Recreate {
		if err := s.indexes.Recreate(ctx, sum.Index, sum.Dimensions); err != nil {
			return fmt.Errorf("recreate index: %w", err)
		}
		sum.Created = true
		return nil
	}
	created, err := s.indexes.Ensure(ctx, sum.Index, sum.Dimensions)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	sum.Created = created
	return nil
}
