package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/domain"
)

type mockEmbedder struct {
	mode       domain.Mode
	vec        []float32
	tokens     int
	batchErr   error
	batchCalls int
	lastBatch  []domain.Input
}

func (m *mockEmbedder) Mode() domain.Mode {
	if m.mode == "" {
		return domain.ModeRaw
	}
	return m.mode
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, inputs []domain.Input) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.lastBatch = inputs
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(inputs))
	for i := range inputs {
		embeddings[i] = m.vec
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.tokens * len(inputs),
		TotalTokens:  m.tokens * len(inputs),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, 0)
	}
	return nil
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder, ttl time.Duration) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, Model{Provider: "openai", Name: "test-model"}, ttl, nil, zap.NewNop())
	return ce, ms
}
