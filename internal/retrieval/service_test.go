package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/pgvector/pgvector-go"

	"github.com/koopa0/docrag/internal/store"
)

type mockReader struct {
	matches    []store.Match
	matchErr   error
	urls       []string
	listErr    error
	chunks     []store.Chunk
	chunksErr  error
	lastFilter map[string]any
}

func (m *mockReader) Match(_ context.Context, _ pgvector.Vector, _ int, filter map[string]any) ([]store.Match, error) {
	m.lastFilter = filter
	return m.matches, m.matchErr
}

func (m *mockReader) ListURLs(context.Context, string) ([]string, error) {
	return m.urls, m.listErr
}

func (m *mockReader) PageChunks(context.Context, string) ([]store.Chunk, error) {
	return m.chunks, m.chunksErr
}

// mockEmbedder is a mock implementation of ai.Embedder for testing.
type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(context.Context, *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

func (m *mockEmbedder) Name() string { return "mockEmbedder" }

func (m *mockEmbedder) Register(api.Registry) {}

func match(title, url, content string) store.Match {
	return store.Match{
		Chunk:      store.Chunk{URL: url, Title: title, Content: content},
		Similarity: 0.9,
	}
}

func TestSearchFormatsMatches(t *testing.T) {
	reader := &mockReader{matches: []store.Match{
		match("Install", "https://d/install", "how to install"),
		match("Config", "https://d/config", "how to configure"),
	}}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)

	got := s.Search(context.Background(), "how do I install")

	if !strings.Contains(got, "## Install\nSource: https://d/install\nhow to install...") {
		t.Errorf("Search() missing first formatted chunk:\n%s", got)
	}
	if !strings.Contains(got, "\n\n---\n\n") {
		t.Errorf("Search() missing chunk separator:\n%s", got)
	}
	if reader.lastFilter[store.MetaSource] != "docs" {
		t.Errorf("Search() filter = %v, want source-scoped", reader.lastFilter)
	}
}

func TestSearchTruncatesPreview(t *testing.T) {
	long := strings.Repeat("x", 1500)
	reader := &mockReader{matches: []store.Match{match("T", "https://d/p", long)}}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)

	got := s.Search(context.Background(), "q")

	if strings.Contains(got, strings.Repeat("x", 1001)) {
		t.Error("Search() preview exceeds the 1000 byte bound")
	}
	if !strings.Contains(got, strings.Repeat("x", 1000)+"...") {
		t.Error("Search() preview should end with ellipsis")
	}
}

func TestSearchPreviewKeepsMultibyteRunesWhole(t *testing.T) {
	// 3-byte runes; the 1000 byte preview bound falls mid-rune.
	long := strings.Repeat("設定", 600)
	reader := &mockReader{matches: []store.Match{match("T", "https://d/p", long)}}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)

	got := s.Search(context.Background(), "q")

	if !utf8.ValidString(got) {
		t.Error("Search() output is not valid UTF-8 after preview truncation")
	}
	if !strings.Contains(got, "設...") {
		t.Error("Search() preview should end on a whole rune before the ellipsis")
	}
}

func TestSearchNoMatches(t *testing.T) {
	s := New(&mockReader{}, &mockEmbedder{}, 3, "docs", nil)
	if got := s.Search(context.Background(), "anything"); got != NoResultsMessage {
		t.Errorf("Search() = %q, want %q", got, NoResultsMessage)
	}
}

func TestSearchEmbeddingFailure(t *testing.T) {
	s := New(&mockReader{}, &mockEmbedder{err: errors.New("quota")}, 3, "docs", nil)
	got := s.Search(context.Background(), "anything")
	if !strings.HasPrefix(got, "Error: ") {
		t.Errorf("Search() = %q, want Error prefix", got)
	}
}

func TestSearchStoreFailure(t *testing.T) {
	reader := &mockReader{matchErr: errors.New("db down")}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)
	got := s.Search(context.Background(), "anything")
	if !strings.HasPrefix(got, "Error: ") {
		t.Errorf("Search() = %q, want Error prefix", got)
	}
}

func TestListPages(t *testing.T) {
	reader := &mockReader{urls: []string{"https://d/a", "https://d/b"}}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)

	got := s.ListPages(context.Background())
	if len(got) != 2 || got[0] != "https://d/a" {
		t.Errorf("ListPages() = %v", got)
	}
}

func TestListPagesFailureYieldsEmpty(t *testing.T) {
	reader := &mockReader{listErr: errors.New("db down")}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)

	if got := s.ListPages(context.Background()); len(got) != 0 {
		t.Errorf("ListPages() = %v, want empty on failure", got)
	}
}

func TestGetPageReassemblesChunks(t *testing.T) {
	reader := &mockReader{chunks: []store.Chunk{
		{URL: "https://d/p", ChunkNumber: 0, Title: "Page Title", Content: "first part"},
		{URL: "https://d/p", ChunkNumber: 1, Title: "Page Title (2)", Content: "second part"},
	}}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)

	got := s.GetPage(context.Background(), "https://d/p")
	want := "# Page Title\n\nfirst part\n\nsecond part"
	if got != want {
		t.Errorf("GetPage() = %q, want %q", got, want)
	}
}

func TestGetPageUnknownURL(t *testing.T) {
	s := New(&mockReader{}, &mockEmbedder{}, 3, "docs", nil)

	got := s.GetPage(context.Background(), "https://d/missing")
	want := fmt.Sprintf("No content found for: %s", "https://d/missing")
	if got != want {
		t.Errorf("GetPage() = %q, want %q", got, want)
	}
}

func TestGetPageStoreFailure(t *testing.T) {
	reader := &mockReader{chunksErr: errors.New("db down")}
	s := New(reader, &mockEmbedder{}, 3, "docs", nil)

	if got := s.GetPage(context.Background(), "https://d/p"); !strings.HasPrefix(got, "Error: ") {
		t.Errorf("GetPage() = %q, want Error prefix", got)
	}
}
