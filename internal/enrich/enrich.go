// Package enrich turns raw text segments into storable chunks: an LLM derives
// a title and summary, an embedding model produces the vector. Enrichment
// degrades instead of failing; a chunk always comes back usable, with
// placeholder text or a zero vector marking the parts that could not be
// derived.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/koopa0/docrag/internal/log"
	"github.com/koopa0/docrag/internal/store"
)

// Placeholder values written when derivation fails. Stored rows carrying them
// remain searchable by content.
const (
	TitleErrorPlaceholder   = "Error processing title"
	SummaryErrorPlaceholder = "Error processing summary"
)

// promptContextLimit bounds how much of the chunk the derivation prompt sees.
const promptContextLimit = 1000

const derivePrompt = `You are an AI that extracts titles and summaries from documentation chunks.
Return a JSON object with 'title' and 'summary' keys.
For the title: If this seems like the start of a document, extract its title. If it's a middle chunk, derive a descriptive title.
For the summary: Create a concise summary of the main points in this chunk.
Keep both title and summary concise but informative.

URL: %s

Content:
%s`

// Generator produces text from a prompt. *GenkitGenerator satisfies it in
// production.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenkitGenerator generates through a Genkit model reference.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string
}

func NewGenkitGenerator(g *genkit.Genkit, model string) *GenkitGenerator {
	return &GenkitGenerator{g: g, model: model}
}

func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Text(), nil
}

// Enricher derives titles, summaries and embeddings for chunks.
type Enricher struct {
	gen      Generator
	embedder ai.Embedder
	dim      int32
	limiter  *rate.Limiter
	source   string
	logger   log.Logger
}

// Config carries the enricher's dependencies. Limiter may be nil to disable
// provider pacing.
type Config struct {
	Generator Generator
	Embedder  ai.Embedder
	Dimension int32
	Limiter   *rate.Limiter
	Source    string
	Logger    log.Logger
}

func New(cfg Config) *Enricher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Enricher{
		gen:      cfg.Generator,
		embedder: cfg.Embedder,
		dim:      cfg.Dimension,
		limiter:  cfg.Limiter,
		source:   cfg.Source,
		logger:   logger,
	}
}

// Process enriches one text segment into a complete chunk. Title/summary
// derivation and embedding run concurrently. Provider failures are logged and
// replaced with placeholders or a zero vector; the returned error is non-nil
// only when ctx is done.
func (e *Enricher) Process(ctx context.Context, pageURL string, index int, content string) (store.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return store.Chunk{}, err
	}

	var (
		wg             sync.WaitGroup
		title, summary string
		embedding      pgvector.Vector
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		title, summary = e.deriveTitleSummary(ctx, pageURL, content)
	}()
	go func() {
		defer wg.Done()
		embedding = e.embed(ctx, content)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return store.Chunk{}, err
	}

	return store.Chunk{
		URL:         pageURL,
		ChunkNumber: index,
		Title:       title,
		Summary:     summary,
		Content:     content,
		Metadata: map[string]any{
			store.MetaSource:    e.source,
			store.MetaChunkSize: len(content),
			store.MetaCrawledAt: time.Now().UTC().Format(time.RFC3339),
			store.MetaURLPath:   urlPath(pageURL),
		},
		Embedding: embedding,
	}, nil
}

func (e *Enricher) deriveTitleSummary(ctx context.Context, pageURL, content string) (string, string) {
	if err := e.wait(ctx); err != nil {
		return TitleErrorPlaceholder, SummaryErrorPlaceholder
	}

	excerpt := content
	if len(excerpt) > promptContextLimit {
		cut := promptContextLimit
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut] + "..."
	}

	raw, err := e.gen.Generate(ctx, fmt.Sprintf(derivePrompt, pageURL, excerpt))
	if err != nil {
		e.logger.Warn("title/summary derivation failed", "url", pageURL, "error", err)
		return TitleErrorPlaceholder, SummaryErrorPlaceholder
	}

	var out struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		e.logger.Warn("title/summary response is not valid JSON", "url", pageURL, "error", err)
		return TitleErrorPlaceholder, SummaryErrorPlaceholder
	}
	if out.Title == "" {
		out.Title = TitleErrorPlaceholder
	}
	if out.Summary == "" {
		out.Summary = SummaryErrorPlaceholder
	}
	return out.Title, out.Summary
}

// embed returns the content embedding, or a zero vector of the configured
// width when the provider fails.
func (e *Enricher) embed(ctx context.Context, content string) pgvector.Vector {
	if err := e.wait(ctx); err != nil {
		return e.zeroVector()
	}

	dim := e.dim
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(content, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		e.logger.Warn("embedding failed", "error", err)
		return e.zeroVector()
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		e.logger.Warn("embedding response is empty")
		return e.zeroVector()
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding)
}

func (e *Enricher) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Enricher) zeroVector() pgvector.Vector {
	return pgvector.NewVector(make([]float32, e.dim))
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}

// stripCodeFences unwraps a fenced model response such as "```json\n{...}\n```"
// so it parses as plain JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
