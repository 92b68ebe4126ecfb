package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/db/memory"
	"github.com/kailas-cloud/gradsearch/internal/domain"
)

func TestBatchEmbed_AllMiss(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{0.1, 0.2, 0.3}, tokens: 5}
	ce, ms := newTestCachedEmbedder(t, inner, 0)

	var puts int
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		puts++
		if !strings.HasPrefix(key, "gradsearch:emb_cache:") || !strings.Contains(key, ":raw:") {
			t.Errorf("unexpected cache key %q", key)
		}
		if ttl != 0 {
			t.Errorf("expected no ttl, got %v", ttl)
		}
		return nil
	}

	res, err := ce.BatchEmbed(context.Background(), []domain.Input{
		domain.TextInput("a"), domain.TextInput("b"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.Embeddings[0][0] != 0.1 {
		t.Fatalf("unexpected vectors: %v", res.Embeddings)
	}
	if res.TotalTokens != 10 {
		t.Errorf("expected TotalTokens=10, got %d", res.TotalTokens)
	}
	if puts != 2 {
		t.Errorf("expected 2 cache puts, got %d", puts)
	}
}

func TestBatchEmbed_PartialHit(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{0.9}, tokens: 3}
	ce, ms := newTestCachedEmbedder(t, inner, time.Hour)

	hitKey := ce.cacheKey(domain.TextInput("cached"))
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if key == hitKey {
			return vectorToCacheBytes([]float32{0.4}), nil
		}
		return nil, db.ErrKeyNotFound
	}
	var gotTTL time.Duration
	ms.setFn = func(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
		gotTTL = ttl
		return nil
	}

	res, err := ce.BatchEmbed(context.Background(), []domain.Input{
		domain.TextInput("fresh-1"), domain.TextInput("cached"), domain.TextInput("fresh-2"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 || len(inner.lastBatch) != 2 {
		t.Fatalf("expected one inner call with 2 misses, got %d calls, %d inputs", inner.batchCalls, len(inner.lastBatch))
	}
	want := []float32{0.9, 0.4, 0.9}
	for i, w := range want {
		if res.Embeddings[i][0] != w {
			t.Errorf("embedding[%d] = %v, want %v", i, res.Embeddings[i][0], w)
		}
	}
	if res.TotalTokens != 6 {
		t.Errorf("expected tokens for misses only (6), got %d", res.TotalTokens)
	}
	if gotTTL != time.Hour {
		t.Errorf("expected ttl 1h, got %v", gotTTL)
	}
}

func TestBatchEmbed_AllHit(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{0.1}}
	ce, ms := newTestCachedEmbedder(t, inner, 0)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return vectorToCacheBytes([]float32{0.7, 0.8}), nil
	}

	res, err := ce.BatchEmbed(context.Background(), []domain.Input{domain.TextInput("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 0 {
		t.Errorf("expected no inner calls, got %d", inner.batchCalls)
	}
	if res.TotalTokens != 0 || res.Embeddings[0][1] != 0.8 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestBatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: domain.ErrProviderUnavailable}
	ce, _ := newTestCachedEmbedder(t, inner, 0)

	_, err := ce.BatchEmbed(context.Background(), []domain.Input{domain.TextInput("x")})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestBatchEmbed_StoreErrorsAreNotFatal(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{0.5}}
	ce, ms := newTestCachedEmbedder(t, inner, 0)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection reset")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection reset")
	}

	res, err := ce.BatchEmbed(context.Background(), []domain.Input{domain.TextInput("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings[0][0] != 0.5 {
		t.Errorf("unexpected vector %v", res.Embeddings[0])
	}
}

func TestBatchEmbed_CorruptCacheEntry(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{0.5}}
	ce, ms := newTestCachedEmbedder(t, inner, 0)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	if _, err := ce.BatchEmbed(context.Background(), []domain.Input{domain.TextInput("x")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 {
		t.Errorf("corrupt entry must be treated as a miss")
	}
}

func TestCacheKey_ModeSeparation(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{}, 0)
	raw := ce.cacheKey(domain.TextInput("word"))
	tok := ce.cacheKey(domain.TokenInput([]string{"word"}))
	if raw == tok {
		t.Fatal("raw and tokenized inputs must not share a cache key")
	}
	if raw != ce.cacheKey(domain.TextInput("word")) {
		t.Fatal("cache key must be deterministic")
	}
}

func TestBatchEmbed_MemoryStore(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{1, 2}}
	ce := New(inner, memory.NewStore(), Model{Provider: "openai", Name: "test-model"}, 0, nil, zap.NewNop())

	in := []domain.Input{domain.TextInput("same")}
	if _, err := ce.BatchEmbed(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if _, err := ce.BatchEmbed(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if inner.batchCalls != 1 {
		t.Errorf("second call should be served from cache, inner calls = %d", inner.batchCalls)
	}
}

func TestBatchEmbed_ModelsDoNotShareEntries(t *testing.T) {
	kv := memory.NewStore()
	innerA := &mockEmbedder{vec: []float32{1, 1, 1}}
	innerB := &mockEmbedder{vec: []float32{2, 2, 2}}
	a := New(innerA, kv, Model{Provider: "openai", Name: "model-a", Dimensions: 3}, 0, nil, zap.NewNop())
	b := New(innerB, kv, Model{Provider: "openai", Name: "model-b", Dimensions: 3}, 0, nil, zap.NewNop())

	in := []domain.Input{domain.TextInput("thesis")}
	if _, err := a.BatchEmbed(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	res, err := b.BatchEmbed(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Embeddings[0][0] != 2 || innerB.batchCalls != 1 {
		t.Errorf("model b got %v with %d inner calls", res.Embeddings[0], innerB.batchCalls)
	}

	res, err = a.BatchEmbed(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Embeddings[0][0] != 1 || innerA.batchCalls != 1 {
		t.Errorf("model a got %v with %d inner calls", res.Embeddings[0], innerA.batchCalls)
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for misaligned data")
	}
}
