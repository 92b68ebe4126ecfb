package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/gradsearch/internal/metrics"
	searchrepo "github.com/kailas-cloud/gradsearch/internal/repository/search"
	searchuc "github.com/kailas-cloud/gradsearch/internal/usecase/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one similarity query against the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var (
	searchSize int
	searchJSON bool
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchSize, "size", 0, "Number of results (default: search.size)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger := globalConfig, globalLogger
	ctx := cmd.Context()

	size := searchSize
	if size <= 0 {
		size = cfg.Search.Size
	}

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics.RegisterPipelineMetrics()
	session := newEmbedderSession(cfg.Embedding, cfg.TextMode(), cfg.Pipeline.BatchSize, store, logger)
	defer func() { _ = session.Close() }()

	svc := searchuc.New(searchrepo.New(store), session, cfg.Index.Name).
		WithTimeout(time.Duration(cfg.Search.TimeoutSec) * time.Second)

	resp, err := svc.SearchText(ctx, strings.Join(args, " "), size)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		items := make([]map[string]any, len(resp.Results))
		for i := range resp.Results {
			r := &resp.Results[i]
			items[i] = map[string]any{
				"thema":        r.Field("thema"),
				"student_name": r.Field("student_name"),
				"link":         r.Field("link"),
				"score":        r.Score(),
			}
		}
		return enc.Encode(map[string]any{"items": items, "total": resp.Total})
	}

	for i := range resp.Results {
		r := &resp.Results[i]
		fmt.Fprintf(out, "%2d. %.4f  %s  (%s)  %s\n",
			i+1, r.Score(), r.Field("thema"), r.Field("student_name"), r.Field("link"))
	}
	return nil
}
