// Package pipeline turns normalized documents into embedded bulk files.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/gradsearch/internal/bulk"
	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/document"
	"github.com/kailas-cloud/gradsearch/internal/domain/record"
	"github.com/kailas-cloud/gradsearch/internal/metrics"
)

// Embedded pairs a document with its vector.
type Embedded struct {
	Doc    document.Document
	Vector []float32
}

// Summary describes a finished run.
type Summary struct {
	Documents  int
	Batches    int
	Dimensions int
	Tokens     int
	Output     string
}

// Service runs the batch embedding pipeline.
type Service struct {
	embed      Embedder
	batchSize  int
	workers    int
	dimensions int
	logger     *zap.Logger
}

// New creates a pipeline service with domain.DefaultBatchSize and one worker.
func New(embed Embedder, logger *zap.Logger) *Service {
	return &Service{
		embed:     embed,
		batchSize: domain.DefaultBatchSize,
		workers:   1,
		logger:    logger,
	}
}

// WithBatchSize configures the number of documents per provider call.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// WithWorkers configures how many batches are embedded concurrently.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithDimensions fixes the expected vector length. Zero takes the first vector's length.
func (s *Service) WithDimensions(dim int) *Service {
	if dim >= 0 {
		s.dimensions = dim
	}
	return s
}

// Mode reports the provider's text mode.
func (s *Service) Mode() domain.Mode { return s.embed.Mode() }

// Normalize converts raw records into documents for the provider's mode.
// The first invalid record aborts with its 1-based row number.
func (s *Service) Normalize(recs []record.Record) ([]document.Document, error) {
	mode := s.embed.Mode()
	docs := make([]document.Document, 0, len(recs))
	for i, rec := range recs {
		doc, err := document.Normalize(rec, mode)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Embed embeds docs in contiguous batches and returns one vector per document, in order.
// Empty input makes no provider calls. Any failing batch aborts the run with
// domain.EmbeddingBatchFailedError carrying its index.
func (s *Service) Embed(ctx context.Context, docs []document.Document) ([]Embedded, error) {
	out, _, err := s.embedAll(ctx, docs)
	return out, err
}

func (s *Service) embedAll(ctx context.Context, docs []document.Document) ([]Embedded, int, error) {
	if len(docs) == 0 {
		return []Embedded{}, 0, nil
	}

	batches := (len(docs) + s.batchSize - 1) / s.batchSize
	vectors := make([][][]float32, batches)
	tokens := make([]int, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for b := 0; b < batches; b++ {
		start := b * s.batchSize
		end := min(start+s.batchSize, len(docs))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // cancellation surfaces as-is
			}
			vecs, used, err := s.embedBatch(gctx, b, docs[start:end])
			if err != nil {
				return err
			}
			vectors[b] = vecs
			tokens[b] = used
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]Embedded, 0, len(docs))
	dim := s.dimensions
	total := 0
	for b, vecs := range vectors {
		total += tokens[b]
		for i, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				err := fmt.Errorf("vector %d has %d dimensions, want %d: %w",
					i, len(v), dim, domain.ErrVectorDimMismatch)
				return nil, 0, domain.NewEmbeddingBatchFailed(b, err)
			}
			out = append(out, Embedded{Doc: docs[len(out)], Vector: v})
		}
	}

	metrics.PipelineDocumentsTotal.WithLabelValues("embedded").Add(float64(len(out)))
	return out, total, nil
}

func (s *Service) embedBatch(ctx context.Context, index int, docs []document.Document) ([][]float32, int, error) {
	inputs := make([]domain.Input, len(docs))
	for i, d := range docs {
		inputs[i] = d.Input()
	}

	start := time.Now()
	res, err := s.embed.BatchEmbed(ctx, inputs)
	if err == nil {
		err = domain.CheckCardinality(len(inputs), res)
	}
	metrics.PipelineBatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PipelineBatchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Embedding batch failed",
			zap.Int("batch", index),
			zap.Int("size", len(docs)),
			zap.Error(err),
		)
		return nil, 0, domain.NewEmbeddingBatchFailed(index, err)
	}

	metrics.PipelineBatchesTotal.WithLabelValues("success").Inc()
	s.logger.Debug("Embedding batch completed",
		zap.Int("batch", index),
		zap.Int("size", len(docs)),
		zap.Int("total_tokens", res.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return res.Embeddings, res.TotalTokens, nil
}

// Run embeds docs and writes the bulk file at outPath for index.
// Lines go to a temporary file in the same directory, renamed over outPath only
// after every line was written, so failed or cancelled runs leave no partial file.
func (s *Service) Run(ctx context.Context, docs []document.Document, outPath, index string) (Summary, error) {
	embedded, tokens, err := s.embedAll(ctx, docs)
	if err != nil {
		return Summary{}, err
	}

	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outPath)+".*.tmp")
	if err != nil {
		return Summary{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	emitter := bulk.NewEmitter(s.dimensions)
	w := bulk.NewWriter(tmp, emitter, index)
	for _, e := range embedded {
		if err := ctx.Err(); err != nil {
			return Summary{}, fmt.Errorf("run cancelled: %w", err)
		}
		if err := w.Write(e.Doc, e.Vector); err != nil {
			return Summary{}, fmt.Errorf("emit: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return Summary{}, err
	}
	if err := tmp.Sync(); err != nil {
		return Summary{}, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Summary{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		return Summary{}, fmt.Errorf("rename output: %w", err)
	}
	committed = true

	metrics.PipelineDocumentsTotal.WithLabelValues("emitted").Add(float64(w.Lines()))

	sum := Summary{
		Documents:  w.Lines(),
		Batches:    (len(docs) + s.batchSize - 1) / s.batchSize,
		Dimensions: emitter.Dimension(),
		Tokens:     tokens,
		Output:     outPath,
	}
	s.logger.Info("Pipeline run completed",
		zap.String("index", index),
		zap.String("output", outPath),
		zap.Int("documents", sum.Documents),
		zap.Int("batches", sum.Batches),
		zap.Int("dimensions", sum.Dimensions),
		zap.Int("total_tokens", sum.Tokens),
	)
	return sum, nil
}
