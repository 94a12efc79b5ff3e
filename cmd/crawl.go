package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/docrag/internal/app"
	"github.com/koopa0/docrag/internal/config"
	"github.com/koopa0/docrag/internal/crawler"
)

var errMissingAPIKey = errors.New("GEMINI_API_KEY (or GOOGLE_API_KEY) is not set")

var (
	crawlUpdateExisting bool
	crawlMaxConcurrent  int
	crawlSitemap        string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the documentation sitemap into the store",
	Long: `Crawl discovers page URLs from the configured sitemap, fetches them with
bounded concurrency, and stores enriched chunks keyed by (url, chunk_number).

Already-stored chunks are skipped unless --update-existing is set, so
re-running a crawl is cheap and idempotent.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCrawl(cmd.Context())
	},
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlUpdateExisting, "update-existing", false,
		"replace chunks that already exist instead of skipping them")
	crawlCmd.Flags().IntVar(&crawlMaxConcurrent, "max-concurrent", 5,
		"maximum pages fetched and processed at once")
	crawlCmd.Flags().StringVar(&crawlSitemap, "sitemap", "",
		"sitemap URL (overrides the configured one)")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(parent context.Context) error {
	if err := requireAPIKey(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if crawlSitemap != "" {
		cfg.SitemapURL = crawlSitemap
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	urls, err := crawler.ResolveURLs(ctx, cfg.SitemapURL)
	if err != nil {
		return fmt.Errorf("discovering sitemap: %w", err)
	}
	if len(urls) == 0 {
		return fmt.Errorf("sitemap %s lists no pages", cfg.SitemapURL)
	}
	logger.Info("sitemap discovered", "sitemap", cfg.SitemapURL, "pages", len(urls))

	cr := a.NewCrawler(crawlUpdateExisting, crawlMaxConcurrent)
	stats, err := cr.Run(ctx, urls)
	if err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}

	fmt.Printf("Crawled %d pages (%d failed)\n", stats.PagesCrawled, stats.PagesFailed)
	fmt.Printf("Chunks: %d inserted, %d updated, %d skipped, %d failed\n",
		stats.ChunksInsert, stats.ChunksUpdate, stats.ChunksSkipped, stats.ChunksFailed)

	if stats.PagesCrawled == 0 {
		return errors.New("no pages were stored")
	}
	return nil
}
