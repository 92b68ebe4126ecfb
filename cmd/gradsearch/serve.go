package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/metrics"
	searchrepo "github.com/kailas-cloud/gradsearch/internal/repository/search"
	chiTransport "github.com/kailas-cloud/gradsearch/internal/transport/chi"
	healthuc "github.com/kailas-cloud/gradsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/gradsearch/internal/usecase/search"
	"github.com/kailas-cloud/gradsearch/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve GET /search over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger := globalConfig, globalLogger

	logger.Info("Starting gradsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", globalEnv),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index", cfg.Index.Name),
	)

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()
	session := newEmbedderSession(cfg.Embedding, cfg.TextMode(), cfg.Pipeline.BatchSize, store, logger)
	defer func() { _ = session.Close() }()
	if err := session.Connect(ctx); err != nil {
		// Queries reconnect on demand; /health reports the provider until then.
		logger.Warn("Embedding provider not reachable at startup", zap.Error(err))
	}

	searchSvc := searchuc.New(searchrepo.New(store), session, cfg.Index.Name).
		WithTimeout(time.Duration(cfg.Search.TimeoutSec) * time.Second)
	healthSvc := healthuc.New(store, store, session, cfg.Index.Name)

	server := chiTransport.NewServer(searchSvc, healthSvc, cfg.Search.Size, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
