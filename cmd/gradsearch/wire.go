package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/config"
	"github.com/kailas-cloud/gradsearch/internal/db"
	dbElastic "github.com/kailas-cloud/gradsearch/internal/db/elastic"
	dbMemory "github.com/kailas-cloud/gradsearch/internal/db/memory"
	dbValkey "github.com/kailas-cloud/gradsearch/internal/db/valkey"
	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/metrics"
	"github.com/kailas-cloud/gradsearch/internal/repository/embcache"
	bertEmb "github.com/kailas-cloud/gradsearch/internal/transport/bertserving"
	geminiEmb "github.com/kailas-cloud/gradsearch/internal/transport/gemini"
	openaiEmb "github.com/kailas-cloud/gradsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/gradsearch/internal/usecase/embedding"
)

// openStore creates the index store for the configured driver and waits until it answers.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	case "elastic":
		store, err = dbElastic.NewStore(dbElastic.Config{
			Addresses: cfg.Addrs,
			Username:  cfg.Username,
			Password:  cfg.Password,
			APIKey:    cfg.APIKey,
			Refresh:   true,
		})
	case "memory":
		store = dbMemory.NewStore()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s store not ready: %w", cfg.Driver, err)
	}
	logger.Info("Connected to index store",
		zap.String("driver", cfg.Driver),
		zap.Strings("addrs", cfg.Addrs),
	)
	return store, nil
}

// newEmbedderSession assembles the decorator chain behind a lazily connected session:
// provider -> Cached -> Instrumented.
// store may be nil; the cache is only used when the store supports key-value operations.
// batchSize is the pipeline batch size, so every pipeline batch reaches the provider as one request.
func newEmbedderSession(
	cfg config.EmbeddingConfig, mode domain.Mode, batchSize int, store db.Store, logger *zap.Logger,
) *embeddinguc.Session {
	metrics.RegisterEmbeddingMetrics()

	connect := func(ctx context.Context) (domain.Embedder, error) {
		base, err := newProvider(ctx, cfg, mode, logger)
		if err != nil {
			return nil, err
		}

		var embedder domain.Embedder = base
		if kv, ok := store.(db.KVStore); ok && cfg.CacheTTLSec >= 0 {
			ttl := time.Duration(cfg.CacheTTLSec) * time.Second
			model := embcache.Model{
				Provider:   cfg.Provider,
				Name:       cfg.Model,
				Dimensions: cfg.Dimensions,
				TaskType:   cfg.TaskType,
			}
			embedder = embcache.New(base, kv, model, ttl, metrics.EmbeddingCacheTotal, logger)
		}

		return instrument(embedder, cfg, batchSize, logger), nil
	}

	logger.Info("Embedder configured",
		zap.String("provider", cfg.Provider),
		zap.String("mode", string(mode)),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
	)
	return embeddinguc.NewSession(connect, mode, logger)
}

func instrument(
	inner domain.Embedder, cfg config.EmbeddingConfig, batchSize int, logger *zap.Logger,
) *embeddinguc.InstrumentedEmbedder {
	return embeddinguc.NewInstrumentedEmbedder(
		inner, cfg.Provider, cfg.Model, logger,
		embeddinguc.WithTimeout(time.Duration(cfg.TimeoutSec)*time.Second),
		embeddinguc.WithMaxBatchSize(batchSize),
	)
}

func newProvider(ctx context.Context, cfg config.EmbeddingConfig, mode domain.Mode, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	case "bertserving":
		e, err := bertEmb.NewEmbedder(&bertEmb.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Mode:    mode,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bert-serving embedder: %w", err)
		}
		return e, nil
	case "gemini":
		e, err := geminiEmb.NewEmbedder(ctx, &geminiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			TaskType:   cfg.TaskType,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
