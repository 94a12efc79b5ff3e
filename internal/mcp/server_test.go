package mcp

import (
	"context"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mockRetriever struct {
	searchResult string
	pages        []string
	pageContent  string
	lastQuery    string
	lastURL      string
}

func (m *mockRetriever) Search(_ context.Context, query string) string {
	m.lastQuery = query
	return m.searchResult
}

func (m *mockRetriever) ListPages(context.Context) []string {
	return m.pages
}

func (m *mockRetriever) GetPage(_ context.Context, url string) string {
	m.lastURL = url
	return m.pageContent
}

// connectServer creates a server around the retriever and an SDK client
// connected via in-memory transports. Both sessions are cleaned up via
// t.Cleanup.
func connectServer(t *testing.T, r Retriever) *mcp.ClientSession {
	t.Helper()

	server, err := NewServer(Config{Name: "docrag", Version: "test", Retriever: r})
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s) unexpected error: %v", name, err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("CallTool(%s) returned %d content items, want 1", name, len(result.Content))
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s) content type = %T, want TextContent", name, result.Content[0])
	}
	return text.Text
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(Config{Version: "1", Retriever: &mockRetriever{}}); err == nil {
		t.Error("NewServer() without name, want error")
	}
	if _, err := NewServer(Config{Name: "n", Retriever: &mockRetriever{}}); err == nil {
		t.Error("NewServer() without version, want error")
	}
	if _, err := NewServer(Config{Name: "n", Version: "1"}); err == nil {
		t.Error("NewServer() without retriever, want error")
	}
}

func TestListTools(t *testing.T) {
	session := connectServer(t, &mockRetriever{})

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() unexpected error: %v", err)
	}

	var names []string
	for _, tool := range result.Tools {
		if tool.Description == "" {
			t.Errorf("tool %q has empty description", tool.Name)
		}
		names = append(names, tool.Name)
	}
	sort.Strings(names)

	want := []string{ToolGetPageContent, ToolListPages, ToolSearchDocumentation}
	if len(names) != len(want) {
		t.Fatalf("ListTools() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestSearchDocumentationTool(t *testing.T) {
	r := &mockRetriever{searchResult: "## Title\nSource: https://d/p\ncontent..."}
	session := connectServer(t, r)

	got := callTool(t, session, ToolSearchDocumentation, map[string]any{"query": "how to install"})
	if got != r.searchResult {
		t.Errorf("search result = %q, want retriever output verbatim", got)
	}
	if r.lastQuery != "how to install" {
		t.Errorf("retriever received query %q", r.lastQuery)
	}
}

func TestListDocumentationPagesTool(t *testing.T) {
	session := connectServer(t, &mockRetriever{pages: []string{"https://d/a", "https://d/b"}})

	got := callTool(t, session, ToolListPages, map[string]any{})
	if got != "https://d/a\nhttps://d/b" {
		t.Errorf("list result = %q, want newline-joined URLs", got)
	}
}

func TestListDocumentationPagesToolEmpty(t *testing.T) {
	session := connectServer(t, &mockRetriever{})

	got := callTool(t, session, ToolListPages, map[string]any{})
	if got != "No documentation pages found." {
		t.Errorf("list result = %q", got)
	}
}

func TestGetPageContentTool(t *testing.T) {
	r := &mockRetriever{pageContent: "# Title\n\nbody"}
	session := connectServer(t, r)

	got := callTool(t, session, ToolGetPageContent, map[string]any{"url": "https://d/p"})
	if got != "# Title\n\nbody" {
		t.Errorf("page result = %q", got)
	}
	if r.lastURL != "https://d/p" {
		t.Errorf("retriever received url %q", r.lastURL)
	}
}
