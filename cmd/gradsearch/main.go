package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/config"
	logpkg "github.com/kailas-cloud/gradsearch/internal/logger"
	"github.com/kailas-cloud/gradsearch/internal/version"
)

var (
	globalConfig config.Config
	globalLogger *zap.Logger
	globalEnv    string
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:   "gradsearch",
	Short: "Semantic search over graduation theses",
	Long: `gradsearch embeds thesis records into dense vectors, emits them as a bulk
NDJSON file, loads that file into a vector index and answers similarity queries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		// .env is optional; real environment variables win.
		_ = godotenv.Load()

		globalEnv = config.GetEnv()
		var err error
		if configPath != "" {
			globalConfig, err = config.LoadFile(configPath)
		} else {
			globalConfig, err = config.Load(globalEnv)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		loggerEnv := globalEnv
		if loggerEnv == "test" {
			loggerEnv = "dev"
		}
		globalLogger, err = logpkg.NewLogger(loggerEnv, globalConfig.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if globalLogger != nil {
			_ = globalLogger.Sync()
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to YAML config (default: config/<ENV>.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
