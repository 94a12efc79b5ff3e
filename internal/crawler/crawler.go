// Package crawler drives ingestion: it discovers page URLs from a sitemap,
// fetches them over a shared collector with bounded parallelism, and pushes
// extracted content through enrichment into storage.
//
// Failure isolation follows the page boundary. A page that cannot be fetched
// or extracted is counted and logged; the crawl continues. Within a page,
// chunk upserts fail independently.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/koopa0/docrag/internal/chunk"
	"github.com/koopa0/docrag/internal/log"
	"github.com/koopa0/docrag/internal/store"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "docrag/1.0 (+https://github.com/koopa0/docrag)"

	// sessionKey tags every request of one crawl run in the collector
	// context, so all pages of a run share the same logical session.
	sessionKey = "session"
)

// Enricher turns a raw text segment into a storable chunk.
type Enricher interface {
	Process(ctx context.Context, pageURL string, index int, content string) (store.Chunk, error)
}

// Upserter persists a chunk under its (url, chunk_number) key.
type Upserter interface {
	Upsert(ctx context.Context, c store.Chunk, updateExisting bool) (store.Outcome, error)
}

// Config tunes one crawl run.
type Config struct {
	// MaxConcurrent bounds how many pages are fetched and processed at once.
	MaxConcurrent int
	// ChunkSize is the segmentation window in bytes.
	ChunkSize int
	// UpdateExisting replaces already-stored chunks instead of skipping them.
	UpdateExisting bool
	Timeout        time.Duration
	UserAgent      string
}

// Stats aggregates the outcome of a crawl run.
type Stats struct {
	PagesCrawled  int
	PagesFailed   int
	ChunksTotal   int
	ChunksInsert  int
	ChunksUpdate  int
	ChunksSkipped int
	ChunksFailed  int
}

// Crawler fetches documentation pages and stores their enriched chunks.
type Crawler struct {
	enricher Enricher
	upserter Upserter
	cfg      Config
	logger   log.Logger

	mu    sync.Mutex
	stats Stats
}

func New(enricher Enricher, upserter Upserter, cfg Config, logger log.Logger) *Crawler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultMaxSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Crawler{enricher: enricher, upserter: upserter, cfg: cfg, logger: logger}
}

// Run crawls every URL in pageURLs and returns the aggregate stats. All pages
// go through one shared collector, so connection reuse and the parallelism
// bound apply across the whole run. Run blocks until every page has been
// fetched and processed or ctx is done.
func (cr *Crawler) Run(ctx context.Context, pageURLs []string) (Stats, error) {
	if len(pageURLs) == 0 {
		return Stats{}, nil
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
		colly.UserAgent(cr.cfg.UserAgent),
	)
	c.SetRequestTimeout(cr.cfg.Timeout)
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: cr.cfg.MaxConcurrent}); err != nil {
		return Stats{}, fmt.Errorf("configure collector limit: %w", err)
	}

	session := uuid.NewString()

	c.OnResponse(func(r *colly.Response) {
		if ctx.Err() != nil {
			return
		}
		cr.handlePage(ctx, r)
	})
	c.OnError(func(r *colly.Response, err error) {
		cr.logger.Warn("page fetch failed",
			"url", r.Request.URL.String(),
			"status", r.StatusCode,
			"session", r.Ctx.Get(sessionKey),
			"error", err,
		)
		cr.mu.Lock()
		cr.stats.PagesFailed++
		cr.mu.Unlock()
	})

	cr.logger.Info("crawl started", "pages", len(pageURLs), "session", session,
		"max_concurrent", cr.cfg.MaxConcurrent, "update_existing", cr.cfg.UpdateExisting)

	for _, u := range pageURLs {
		if ctx.Err() != nil {
			break
		}
		reqCtx := colly.NewContext()
		reqCtx.Put(sessionKey, session)
		if err := c.Request("GET", u, nil, reqCtx, nil); err != nil {
			cr.logger.Warn("page request rejected", "url", u, "error", err)
			cr.mu.Lock()
			cr.stats.PagesFailed++
			cr.mu.Unlock()
		}
	}
	c.Wait()

	cr.mu.Lock()
	stats := cr.stats
	cr.mu.Unlock()

	cr.logger.Info("crawl finished", "session", session,
		"pages_crawled", stats.PagesCrawled, "pages_failed", stats.PagesFailed,
		"chunks_inserted", stats.ChunksInsert, "chunks_updated", stats.ChunksUpdate,
		"chunks_skipped", stats.ChunksSkipped, "chunks_failed", stats.ChunksFailed)

	return stats, ctx.Err()
}

// handlePage extracts, segments, enriches and stores one fetched page. It
// runs on the collector's fetch goroutine, so page-level parallelism is the
// collector's limit.
func (cr *Crawler) handlePage(ctx context.Context, r *colly.Response) {
	pageURL := r.Request.URL.String()

	content, err := ExtractContent(r.Body, r.Request.URL)
	if err != nil || content == "" {
		cr.logger.Warn("page yielded no content", "url", pageURL, "error", err)
		cr.mu.Lock()
		cr.stats.PagesFailed++
		cr.mu.Unlock()
		return
	}

	segments := chunk.Split(content, cr.cfg.ChunkSize)
	chunks := make([]store.Chunk, len(segments))

	// Enrich every segment of the page concurrently. Process degrades
	// internally, so an error here means the context is gone.
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range segments {
		g.Go(func() error {
			c, err := cr.enricher.Process(gctx, pageURL, i, seg)
			if err != nil {
				return err
			}
			chunks[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cr.logger.Warn("page enrichment aborted", "url", pageURL, "error", err)
		cr.mu.Lock()
		cr.stats.PagesFailed++
		cr.mu.Unlock()
		return
	}

	outcomes := cr.storeChunks(ctx, chunks)

	cr.mu.Lock()
	cr.stats.PagesCrawled++
	cr.stats.ChunksTotal += len(chunks)
	cr.stats.ChunksInsert += outcomes[store.OutcomeInserted]
	cr.stats.ChunksUpdate += outcomes[store.OutcomeUpdated]
	cr.stats.ChunksSkipped += outcomes[store.OutcomeSkipped]
	cr.stats.ChunksFailed += len(chunks) - outcomes[store.OutcomeInserted] -
		outcomes[store.OutcomeUpdated] - outcomes[store.OutcomeSkipped]
	cr.mu.Unlock()

	cr.logger.Info("page stored", "url", pageURL, "chunks", len(chunks),
		"inserted", outcomes[store.OutcomeInserted],
		"updated", outcomes[store.OutcomeUpdated],
		"skipped", outcomes[store.OutcomeSkipped])
}

// storeChunks upserts all chunks of a page concurrently. A failed upsert is
// logged and leaves the other chunks untouched.
func (cr *Crawler) storeChunks(ctx context.Context, chunks []store.Chunk) map[store.Outcome]int {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	outcomes := make(map[store.Outcome]int)

	for _, c := range chunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := cr.upserter.Upsert(ctx, c, cr.cfg.UpdateExisting)
			if err != nil {
				cr.logger.Warn("chunk upsert failed",
					"url", c.URL, "chunk", c.ChunkNumber, "error", err)
				return
			}
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return outcomes
}

// ResolveURLs returns the crawl targets for a sitemap, validating that every
// entry parses as an absolute URL.
func ResolveURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	raw, err := DiscoverSitemap(ctx, nil, sitemapURL)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		parsed, err := url.Parse(u)
		if err != nil || !parsed.IsAbs() {
			continue
		}
		urls = append(urls, u)
	}
	return urls, nil
}
