// Package mcp exposes the retrieval operations as Model Context Protocol
// tools, so any MCP-capable agent can search and read the ingested
// documentation.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names as they appear to MCP clients.
const (
	ToolSearchDocumentation = "search_documentation"
	ToolListPages           = "list_documentation_pages"
	ToolGetPageContent      = "get_page_content"
)

// Retriever answers documentation queries. *retrieval.Service satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string) string
	ListPages(ctx context.Context) []string
	GetPage(ctx context.Context, url string) string
}

// Server wraps the MCP SDK server around a retrieval service.
type Server struct {
	mcpServer *mcp.Server
	retriever Retriever
}

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Retriever Retriever
}

// NewServer creates an MCP server with the three documentation tools
// registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		retriever: cfg.Retriever,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return s, nil
}

// Run serves MCP on the given transport. Blocking; returns when the
// transport closes or ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// SearchInput defines the input schema for search_documentation.
type SearchInput struct {
	Query string `json:"query" jsonschema:"The question or topic to search the documentation for"`
}

// ListPagesInput defines the (empty) input schema for list_documentation_pages.
type ListPagesInput struct{}

// GetPageInput defines the input schema for get_page_content.
type GetPageInput struct {
	URL string `json:"url" jsonschema:"The exact documentation page URL to fetch"`
}

func (s *Server) registerTools() error {
	searchSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolSearchDocumentation, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolSearchDocumentation,
		Description: "Search the ingested documentation using semantic similarity. " +
			"Returns the most relevant chunks with titles and source URLs.",
		InputSchema: searchSchema,
	}, s.SearchDocumentation)

	listSchema, err := jsonschema.For[ListPagesInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolListPages, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolListPages,
		Description: "List the URL of every documentation page available in the store, " +
			"one per line.",
		InputSchema: listSchema,
	}, s.ListDocumentationPages)

	getSchema, err := jsonschema.For[GetPageInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolGetPageContent, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolGetPageContent,
		Description: "Fetch the full content of one documentation page by URL, " +
			"with its chunks reassembled in order.",
		InputSchema: getSchema,
	}, s.GetPageContent)

	return nil
}

// SearchDocumentation handles the search_documentation tool call.
func (s *Server) SearchDocumentation(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	return textResult(s.retriever.Search(ctx, input.Query)), nil, nil
}

// ListDocumentationPages handles the list_documentation_pages tool call.
func (s *Server) ListDocumentationPages(ctx context.Context, _ *mcp.CallToolRequest, _ ListPagesInput) (*mcp.CallToolResult, any, error) {
	urls := s.retriever.ListPages(ctx)
	if len(urls) == 0 {
		return textResult("No documentation pages found."), nil, nil
	}
	return textResult(strings.Join(urls, "\n")), nil, nil
}

// GetPageContent handles the get_page_content tool call.
func (s *Server) GetPageContent(ctx context.Context, _ *mcp.CallToolRequest, input GetPageInput) (*mcp.CallToolResult, any, error) {
	return textResult(s.retriever.GetPage(ctx, input.URL)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
