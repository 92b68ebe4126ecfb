package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	documentrepo "github.com/kailas-cloud/gradsearch/internal/repository/document"
	indexrepo "github.com/kailas-cloud/gradsearch/internal/repository/index"
	"github.com/kailas-cloud/gradsearch/internal/usecase/ingest"
)

var loadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Load a bulk NDJSON file into the index store",
	Long: `Streams bulk index lines into the configured store, creating the vector index
from the first line's dimension when it does not exist yet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

var (
	loadIndexName string
	loadRecreate  bool
)

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVar(&loadIndexName, "index-name", "", "Override the _index of every line")
	loadCmd.Flags().BoolVar(&loadRecreate, "recreate", false, "Drop and recreate the index before loading")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, logger := globalConfig, globalLogger
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := "documents.jsonl"
	if len(args) == 1 {
		path = args[0]
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	indexes := indexrepo.New(store)
	if cfg.Index.Algorithm == "hnsw" {
		indexes = indexes.WithHNSW(indexrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
	}
	svc := ingest.New(indexes, documentrepo.New(store), logger).WithChunkSize(cfg.Index.LoadChunkSize)

	sum, err := svc.Load(ctx, f, ingest.Options{Index: loadIndexName, Recreate: loadRecreate})
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d documents into %s (%d chunks, created=%t)\n",
		sum.Documents, sum.Index, sum.Chunks, sum.Created)
	return nil
}
