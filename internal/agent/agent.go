// Package agent answers documentation questions with a tool-calling model.
// The model is given the same three retrieval tools the MCP surface exposes
// and decides itself when to search, list or fetch pages.
package agent

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/docrag/internal/log"
)

const systemPrompt = `You are an expert on the ingested documentation. You have access to the full
documentation through retrieval tools: search, page listing and page fetch.

Always follow these rules:
1. Start with a similarity search using search_documentation
2. If needed, use list_documentation_pages to explore available content
3. Use get_page_content for specific page retrieval
4. Always cite sources with exact URLs
5. Be transparent about missing information`

// maxToolTurns bounds the generate/tool-call loop per question.
const maxToolTurns = 5

// Retriever answers documentation queries. *retrieval.Service satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string) string
	ListPages(ctx context.Context) []string
	GetPage(ctx context.Context, url string) string
}

// Agent is a documentation question answerer.
type Agent struct {
	g         *genkit.Genkit
	model     string
	retriever Retriever
	tools     []ai.ToolRef
	logger    log.Logger
}

type searchInput struct {
	Query string `json:"query" jsonschema:"The question or topic to search the documentation for"`
}

type listPagesInput struct{}

type getPageInput struct {
	URL string `json:"url" jsonschema:"The exact documentation page URL to fetch"`
}

// New creates an agent and registers its retrieval tools on g.
func New(g *genkit.Genkit, model string, retriever Retriever, logger log.Logger) *Agent {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &Agent{g: g, model: model, retriever: retriever, logger: logger}

	searchTool := genkit.DefineTool(g, "search_documentation",
		"Search the documentation using semantic similarity. Returns the most relevant chunks with titles and source URLs.",
		func(ctx *ai.ToolContext, input searchInput) (string, error) {
			return a.retriever.Search(ctx, input.Query), nil
		})
	listTool := genkit.DefineTool(g, "list_documentation_pages",
		"List the URL of every available documentation page.",
		func(ctx *ai.ToolContext, _ listPagesInput) ([]string, error) {
			return a.retriever.ListPages(ctx), nil
		})
	getTool := genkit.DefineTool(g, "get_page_content",
		"Fetch the full content of one documentation page by URL.",
		func(ctx *ai.ToolContext, input getPageInput) (string, error) {
			return a.retriever.GetPage(ctx, input.URL), nil
		})

	a.tools = []ai.ToolRef{searchTool, listTool, getTool}
	return a
}

// Answer runs the tool-calling loop for one user message and returns the
// model's final text.
func (a *Agent) Answer(ctx context.Context, message string) (string, error) {
	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.model),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(message),
		ai.WithTools(a.tools...),
		ai.WithMaxTurns(maxToolTurns),
	)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return resp.Text(), nil
}
