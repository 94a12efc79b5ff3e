// Package app wires the application together: configuration, database pool,
// migrations, Genkit, and the ingestion and retrieval components built on
// top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"golang.org/x/time/rate"

	"github.com/koopa0/docrag/db"
	"github.com/koopa0/docrag/internal/agent"
	"github.com/koopa0/docrag/internal/config"
	"github.com/koopa0/docrag/internal/crawler"
	"github.com/koopa0/docrag/internal/enrich"
	"github.com/koopa0/docrag/internal/log"
	"github.com/koopa0/docrag/internal/retrieval"
	"github.com/koopa0/docrag/internal/store"
)

// App is the application container.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Pool      *pgxpool.Pool
	Store     *store.Store
	Retrieval *retrieval.Service
}

// Setup validates the configuration, runs migrations, connects the pool and
// initializes Genkit with the Google AI plugin. The returned App owns the
// pool; call Close when done.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		pool.Close()
		return nil, errors.New("initializing genkit")
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	st := store.New(store.NewPgxQuerier(pool), logger)
	svc := retrieval.New(st, embedder, cfg.EmbeddingDimension, cfg.SourceTag, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Genkit:    g,
		Embedder:  embedder,
		Pool:      pool,
		Store:     st,
		Retrieval: svc,
	}, nil
}

// NewCrawler builds an ingestion crawler bound to the app's store and
// enrichment stack.
func (a *App) NewCrawler(updateExisting bool, maxConcurrent int) *crawler.Crawler {
	var limiter *rate.Limiter
	if rps := a.Config.ProviderRPS; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}

	enricher := enrich.New(enrich.Config{
		Generator: enrich.NewGenkitGenerator(a.Genkit, a.Config.ModelName),
		Embedder:  a.Embedder,
		Dimension: a.Config.EmbeddingDimension,
		Limiter:   limiter,
		Source:    a.Config.SourceTag,
		Logger:    a.Logger,
	})

	return crawler.New(enricher, a.Store, crawler.Config{
		MaxConcurrent:  maxConcurrent,
		ChunkSize:      a.Config.ChunkSize,
		UpdateExisting: updateExisting,
	}, a.Logger)
}

// NewAgent builds the documentation question answerer.
func (a *App) NewAgent() *agent.Agent {
	return agent.New(a.Genkit, a.Config.ModelName, a.Retrieval, a.Logger)
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
}

// providePool runs migrations and opens a pgx pool with pgvector types
// registered on every connection.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
