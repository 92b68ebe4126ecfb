package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/metrics"
	"github.com/kailas-cloud/gradsearch/internal/source"
	"github.com/kailas-cloud/gradsearch/internal/usecase/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed records and write a bulk NDJSON file",
	Long: `Reads thesis records from a CSV or Parquet file, embeds them in batches with the
configured provider and writes one bulk index line per record.`,
	RunE: runBuild,
}

var (
	buildData      string
	buildSave      string
	buildIndexName string
	buildNoCache   bool
)

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildData, "data", "", "Input records (.csv or .parquet)")
	buildCmd.Flags().StringVar(&buildSave, "save", "documents.jsonl", "Output bulk file")
	buildCmd.Flags().StringVar(&buildIndexName, "index-name", "", "Index name written to every line (default: index.name)")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Do not use the embedding cache")
	_ = buildCmd.MarkFlagRequired("data")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, logger := globalConfig, globalLogger
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index := buildIndexName
	if index == "" {
		index = cfg.Index.Name
	}

	recs, err := source.Load(buildData)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	logger.Info("Records loaded", zap.String("path", buildData), zap.Int("records", len(recs)))

	var store db.Store
	if !buildNoCache && cfg.Embedding.CacheTTLSec >= 0 && cfg.Database.Driver == "valkey" {
		store, err = openStore(ctx, cfg.Database, logger)
		if err != nil {
			logger.Warn("Embedding cache disabled", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}

	session := newEmbedderSession(cfg.Embedding, cfg.TextMode(), cfg.Pipeline.BatchSize, store, logger)
	defer func() { _ = session.Close() }()
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect embedder: %w", err)
	}

	metrics.RegisterPipelineMetrics()
	svc := pipeline.New(session, logger).
		WithBatchSize(cfg.Pipeline.BatchSize).
		WithWorkers(cfg.Pipeline.Workers).
		WithDimensions(cfg.Embedding.Dimensions)

	docs, err := svc.Normalize(recs)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	sum, err := svc.Run(ctx, docs, buildSave, index)
	if err != nil {
		return fmt.Errorf("build %s: %w", buildSave, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d documents (%d-dim) to %s for index %s\n",
		sum.Documents, sum.Dimensions, sum.Output, index)
	return nil
}

