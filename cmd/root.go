// Package cmd defines the docrag command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/docrag/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Documentation ingestion and retrieval",
	Long: `docrag crawls a documentation site from its sitemap, splits the pages into
boundary-aware chunks, enriches them with titles, summaries and embeddings,
and stores them in Postgres with pgvector.

The stored documentation is served back through MCP tools and a chat API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// requireAPIKey fails fast when no Gemini credential is present, before any
// expensive setup runs.
func requireAPIKey() error {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return errMissingAPIKey
	}
	return nil
}
