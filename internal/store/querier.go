package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Querier is the storage access the gateway needs. *PgxQuerier satisfies it
// in production; tests provide fakes.
type Querier interface {
	ChunkExists(ctx context.Context, url string, chunkNumber int) (bool, error)
	InsertChunk(ctx context.Context, c Chunk) error
	UpdateChunk(ctx context.Context, c Chunk) error
	MatchChunks(ctx context.Context, embedding pgvector.Vector, count int, filter map[string]any) ([]Match, error)
	ListURLs(ctx context.Context, source string) ([]string, error)
	PageChunks(ctx context.Context, url string) ([]Chunk, error)
}

// PgxQuerier runs the pages queries against a pgx connection pool. The pool
// must have pgvector types registered.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

const chunkExistsSQL = `
SELECT EXISTS (
    SELECT 1 FROM pages WHERE url = $1 AND chunk_number = $2
)`

func (q *PgxQuerier) ChunkExists(ctx context.Context, url string, chunkNumber int) (bool, error) {
	var exists bool
	err := q.pool.QueryRow(ctx, chunkExistsSQL, url, chunkNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chunk existence: %w", err)
	}
	return exists, nil
}

const insertChunkSQL = `
INSERT INTO pages (url, chunk_number, title, summary, content, metadata, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (q *PgxQuerier) InsertChunk(ctx context.Context, c Chunk) error {
	_, err := q.pool.Exec(ctx, insertChunkSQL,
		c.URL, c.ChunkNumber, c.Title, c.Summary, c.Content, c.Metadata, c.Embedding)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

const updateChunkSQL = `
UPDATE pages
SET title = $3, summary = $4, content = $5, metadata = $6, embedding = $7
WHERE url = $1 AND chunk_number = $2`

func (q *PgxQuerier) UpdateChunk(ctx context.Context, c Chunk) error {
	_, err := q.pool.Exec(ctx, updateChunkSQL,
		c.URL, c.ChunkNumber, c.Title, c.Summary, c.Content, c.Metadata, c.Embedding)
	if err != nil {
		return fmt.Errorf("update chunk: %w", err)
	}
	return nil
}

// matchChunksSQL orders by cosine distance; similarity is reported as
// 1 - distance. The filter parameter is matched by JSONB containment so the
// gin index applies.
const matchChunksSQL = `
SELECT url, chunk_number, title, summary, content, metadata,
       1 - (embedding <=> $1) AS similarity
FROM pages
WHERE metadata @> $2
ORDER BY embedding <=> $1
LIMIT $3`

func (q *PgxQuerier) MatchChunks(ctx context.Context, embedding pgvector.Vector, count int, filter map[string]any) ([]Match, error) {
	if filter == nil {
		filter = map[string]any{}
	}
	rows, err := q.pool.Query(ctx, matchChunksSQL, embedding, filter, count)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.URL, &m.ChunkNumber, &m.Title, &m.Summary,
			&m.Content, &m.Metadata, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	return matches, nil
}

const listURLsSQL = `
SELECT DISTINCT url
FROM pages
WHERE metadata->>'source' = $1
ORDER BY url`

func (q *PgxQuerier) ListURLs(ctx context.Context, source string) ([]string, error) {
	rows, err := q.pool.Query(ctx, listURLsSQL, source)
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	return urls, nil
}

const pageChunksSQL = `
SELECT url, chunk_number, title, summary, content, metadata
FROM pages
WHERE url = $1
ORDER BY chunk_number`

func (q *PgxQuerier) PageChunks(ctx context.Context, url string) ([]Chunk, error) {
	rows, err := q.pool.Query(ctx, pageChunksSQL, url)
	if err != nil {
		return nil, fmt.Errorf("page chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.URL, &c.ChunkNumber, &c.Title, &c.Summary,
			&c.Content, &c.Metadata); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("page chunks: %w", err)
	}
	return chunks, nil
}
