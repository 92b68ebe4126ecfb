package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/document"
	"github.com/kailas-cloud/gradsearch/internal/domain/search/query"
	"github.com/kailas-cloud/gradsearch/internal/domain/search/result"
	"github.com/kailas-cloud/gradsearch/internal/metrics"
)

// Response is a ranked result list.
type Response struct {
	Results []result.Result
	// Total is the number of documents the store scored.
	Total int
}

// Service answers similarity queries against one index.
type Service struct {
	repo    Repository
	embed   Embedder
	index   string
	timeout time.Duration
}

// New creates a search service for index.
func New(repo Repository, embed Embedder, index string) *Service {
	return &Service{repo: repo, embed: embed, index: index}
}

// WithTimeout bounds the store call. Zero disables the bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Index returns the index the service queries.
func (s *Service) Index() string { return s.index }

// Search embeds q as a single-element batch, scores every document by cosine + 1.0
// and returns at most q.TopK() results in descending score order.
func (s *Service) Search(ctx context.Context, q query.Query) (Response, error) {
	resp, err := s.search(ctx, q)
	metrics.SearchRequestsTotal.WithLabelValues(outcome(err)).Inc()
	return resp, err
}

// SearchText validates text and searches with the default returned fields.
func (s *Service) SearchText(ctx context.Context, text string, topK int) (Response, error) {
	q, err := query.New(text, topK, nil)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(outcome(err)).Inc()
		return Response{}, fmt.Errorf("build query: %w", err)
	}
	return s.Search(ctx, q)
}

func (s *Service) search(ctx context.Context, q query.Query) (Response, error) {
	if strings.TrimSpace(q.Text()) == "" {
		return Response{}, domain.ErrEmptyQuery
	}
	in, err := s.queryInput(q.Text())
	if err != nil {
		return Response{}, err
	}

	// Token usage is recorded on the request context by the instrumented embedder.
	vec, _, err := domain.EmbedOne(ctx, s.embed, in)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", domain.ErrQueryEmbeddingFailed, err)
	}

	sctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, total, err := s.repo.Score(sctx, s.index, vec, q.TopK(), q.Fields())
	if err != nil {
		// wrong-length query vector: embedded by a different model than the index
		if errors.Is(err, domain.ErrVectorDimMismatch) {
			return Response{}, fmt.Errorf("%w: %w", domain.ErrQueryEmbeddingFailed, err)
		}
		return Response{}, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}

	result.SortByScore(results)
	if len(results) > q.TopK() {
		results = results[:q.TopK()]
	}
	return Response{Results: results, Total: total}, nil
}

// queryInput shapes the query for the provider's mode. Tokenized providers get the
// query split the same way doc_tokens cells are parsed.
func (s *Service) queryInput(text string) (domain.Input, error) {
	if s.embed.Mode() != domain.ModeTokenized {
		return domain.TextInput(text), nil
	}
	tokens, err := document.ParseTokens(text)
	if err != nil {
		return domain.Input{}, fmt.Errorf("%w: %w", domain.ErrQueryEmbeddingFailed, err)
	}
	if len(tokens) == 0 {
		return domain.Input{}, domain.ErrEmptyQuery
	}
	return domain.TokenInput(tokens), nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, domain.ErrQueryEmbeddingFailed):
		return "embedding_failed"
	case errors.Is(err, domain.ErrIndexUnavailable):
		return "index_unavailable"
	default:
		return "error"
	}
}
