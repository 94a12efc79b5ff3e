// Package store persists document chunks in Postgres and serves the reads the
// retrieval side needs: similarity search, page listing, ordered page fetch.
//
// Writes go through Upsert, which is idempotent on the (url, chunk_number)
// key. Whether an existing row is replaced or left alone is the caller's
// choice via updateExisting; the default crawl leaves existing rows untouched
// so re-runs are cheap.
package store

import (
	"context"
	"fmt"

	"github.com/koopa0/docrag/internal/log"
	"github.com/pgvector/pgvector-go"
)

// Store is the write/read gateway over the pages table.
type Store struct {
	q      Querier
	logger log.Logger
}

func New(q Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{q: q, logger: logger}
}

// Upsert writes c under its (url, chunk_number) key. A missing row is
// inserted; an existing row is replaced when updateExisting is true and
// skipped otherwise. Two concurrent upserts for the same key may race between
// the existence check and the insert; distinct keys never interfere.
func (s *Store) Upsert(ctx context.Context, c Chunk, updateExisting bool) (Outcome, error) {
	exists, err := s.q.ChunkExists(ctx, c.URL, c.ChunkNumber)
	if err != nil {
		return 0, fmt.Errorf("upsert %s#%d: %w", c.URL, c.ChunkNumber, err)
	}

	switch {
	case !exists:
		if err := s.q.InsertChunk(ctx, c); err != nil {
			return 0, fmt.Errorf("upsert %s#%d: %w", c.URL, c.ChunkNumber, err)
		}
		s.logger.Debug("chunk inserted", "url", c.URL, "chunk", c.ChunkNumber)
		return OutcomeInserted, nil
	case updateExisting:
		if err := s.q.UpdateChunk(ctx, c); err != nil {
			return 0, fmt.Errorf("upsert %s#%d: %w", c.URL, c.ChunkNumber, err)
		}
		s.logger.Debug("chunk updated", "url", c.URL, "chunk", c.ChunkNumber)
		return OutcomeUpdated, nil
	default:
		s.logger.Debug("chunk skipped", "url", c.URL, "chunk", c.ChunkNumber)
		return OutcomeSkipped, nil
	}
}

// Match returns up to count chunks nearest to embedding, most similar first,
// restricted to rows whose metadata contains filter.
func (s *Store) Match(ctx context.Context, embedding pgvector.Vector, count int, filter map[string]any) ([]Match, error) {
	if count <= 0 {
		count = 5
	}
	return s.q.MatchChunks(ctx, embedding, count, filter)
}

// ListURLs returns the distinct page URLs stored under source, sorted.
func (s *Store) ListURLs(ctx context.Context, source string) ([]string, error) {
	return s.q.ListURLs(ctx, source)
}

// PageChunks returns every chunk of a page in chunk-number order.
func (s *Store) PageChunks(ctx context.Context, url string) ([]Chunk, error) {
	return s.q.PageChunks(ctx, url)
}
