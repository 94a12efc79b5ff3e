// Package retrieval answers documentation queries from the chunk store. Its
// three operations mirror the tools exposed to agents: similarity search,
// page listing and full-page fetch.
//
// The operations return displayable text, never errors: a failure comes back
// as an "Error: ..." string and an empty result as a fixed sentinel, so a
// tool-calling model always receives something it can act on.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/koopa0/docrag/internal/log"
	"github.com/koopa0/docrag/internal/store"
)

// Sentinels returned instead of empty results.
const (
	NoResultsMessage  = "No relevant documentation found."
	noContentFormat   = "No content found for: %s"
	chunkSeparator    = "\n\n---\n\n"
	searchMatchCount  = 5
	contentPreviewLen = 1000
)

// Reader is the store access retrieval needs. *store.Store satisfies it.
type Reader interface {
	Match(ctx context.Context, embedding pgvector.Vector, count int, filter map[string]any) ([]store.Match, error)
	ListURLs(ctx context.Context, source string) ([]string, error)
	PageChunks(ctx context.Context, url string) ([]store.Chunk, error)
}

// Service serves retrieval queries over one documentation source.
type Service struct {
	reader   Reader
	embedder ai.Embedder
	dim      int32
	source   string
	logger   log.Logger
}

func New(reader Reader, embedder ai.Embedder, dim int32, source string, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{reader: reader, embedder: embedder, dim: dim, source: source, logger: logger}
}

// Search embeds the query and returns the most similar chunks as displayable
// text: title, source URL and a bounded content preview per chunk, separated
// by horizontal rules.
func (s *Service) Search(ctx context.Context, query string) string {
	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logger.Error("query embedding failed", "error", err)
		return fmt.Sprintf("Error: %v", err)
	}

	matches, err := s.reader.Match(ctx, embedding, searchMatchCount,
		map[string]any{store.MetaSource: s.source})
	if err != nil {
		s.logger.Error("similarity search failed", "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	if len(matches) == 0 {
		return NoResultsMessage
	}

	formatted := make([]string, len(matches))
	for i, m := range matches {
		preview := m.Content
		if len(preview) > contentPreviewLen {
			cut := contentPreviewLen
			for cut > 0 && !utf8.RuneStart(preview[cut]) {
				cut--
			}
			preview = preview[:cut]
		}
		formatted[i] = fmt.Sprintf("## %s\nSource: %s\n%s...", m.Title, m.URL, preview)
	}
	return strings.Join(formatted, chunkSeparator)
}

// ListPages returns the distinct page URLs of the source, sorted. Failures
// yield an empty list.
func (s *Service) ListPages(ctx context.Context) []string {
	urls, err := s.reader.ListURLs(ctx, s.source)
	if err != nil {
		s.logger.Error("page listing failed", "error", err)
		return nil
	}
	return urls
}

// GetPage reassembles a full page: the first chunk's title as a heading
// followed by every chunk's content in order.
func (s *Service) GetPage(ctx context.Context, url string) string {
	chunks, err := s.reader.PageChunks(ctx, url)
	if err != nil {
		s.logger.Error("page fetch failed", "url", url, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	if len(chunks) == 0 {
		return fmt.Sprintf(noContentFormat, url)
	}

	parts := make([]string, 0, len(chunks)+1)
	parts = append(parts, "# "+chunks[0].Title)
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Service) embedQuery(ctx context.Context, query string) (pgvector.Vector, error) {
	dim := s.dim
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(query, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embed query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("embed query: empty response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
