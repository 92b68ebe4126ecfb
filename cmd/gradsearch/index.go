package main

import (
	"fmt"

	"github.com/spf13/cobra"

	indexrepo "github.com/kailas-cloud/gradsearch/internal/repository/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect or drop the vector index",
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show whether the index exists and how many documents it holds",
	RunE:  runIndexStats,
}

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the index and its documents",
	RunE:  runIndexDrop,
}

var indexName string

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexDropCmd)
	indexCmd.PersistentFlags().StringVar(&indexName, "index-name", "", "Index name (default: index.name)")
}

func openIndexRepo(cmd *cobra.Command) (*indexrepo.Repo, func(), string, error) {
	name := indexName
	if name == "" {
		name = globalConfig.Index.Name
	}
	store, err := openStore(cmd.Context(), globalConfig.Database, globalLogger)
	if err != nil {
		return nil, nil, "", err
	}
	return indexrepo.New(store), store.Close, name, nil
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	repo, closeFn, name, err := openIndexRepo(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	st, err := repo.Stats(cmd.Context(), name)
	if err != nil {
		return err
	}
	if !st.Exists {
		fmt.Fprintf(cmd.OutOrStdout(), "index %s does not exist\n", st.Name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "index %s: %d documents\n", st.Name, st.Documents)
	return nil
}

func runIndexDrop(cmd *cobra.Command, _ []string) error {
	repo, closeFn, name, err := openIndexRepo(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := repo.Drop(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dropped index %s\n", name)
	return nil
}
