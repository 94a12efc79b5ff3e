package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/koopa0/docrag/internal/store"
)

func TestMain(m *testing.M) {
	// colly keeps idle transport connections around briefly.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const sitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://docs.example.com/intro</loc></url>
  <url><loc>https://docs.example.com/guide</loc></url>
  <url><loc> https://docs.example.com/api </loc></url>
</urlset>`

func TestDiscoverSitemap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sitemapXML)
	}))
	defer srv.Close()

	got, err := DiscoverSitemap(context.Background(), srv.Client(), srv.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("DiscoverSitemap() error = %v", err)
	}

	want := []string{
		"https://docs.example.com/intro",
		"https://docs.example.com/guide",
		"https://docs.example.com/api",
	}
	if len(got) != len(want) {
		t.Fatalf("DiscoverSitemap() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiscoverSitemapHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := DiscoverSitemap(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("DiscoverSitemap() error = nil, want status error")
	}
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>Configuration Guide</title></head><body>
<nav><a href="/">Home</a><a href="/docs">Docs</a></nav>
<article>
<h1>Configuration Guide</h1>
<p>This guide explains how to configure the service for production use. It
covers connection settings, credentials handling and tuning options in enough
depth to get a deployment running reliably.</p>
<h2>Connection settings</h2>
<p>The service reads its connection settings from the environment at startup.
Every setting has a default suitable for local development, and each one can
be overridden individually without touching the others.</p>
<pre>export DATABASE_URL=postgres://localhost:5432/app</pre>
<ul>
<li>host and port of the database server</li>
<li>credentials for the application role</li>
</ul>
</article>
<footer>Copyright</footer>
</body></html>`

func TestExtractContent(t *testing.T) {
	u, _ := url.Parse("https://docs.example.com/config")
	got, err := ExtractContent([]byte(articleHTML), u)
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}

	for _, want := range []string{
		"# Configuration Guide",
		"## Connection settings",
		"```\nexport DATABASE_URL=postgres://localhost:5432/app\n```",
		"- host and port of the database server",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ExtractContent() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Copyright") {
		t.Errorf("ExtractContent() kept boilerplate footer:\n%s", got)
	}
}

type mockEnricher struct {
	mu    sync.Mutex
	calls int
}

func (m *mockEnricher) Process(_ context.Context, pageURL string, index int, content string) (store.Chunk, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return store.Chunk{
		URL:         pageURL,
		ChunkNumber: index,
		Title:       "t",
		Summary:     "s",
		Content:     content,
		Metadata:    map[string]any{store.MetaSource: "docs"},
	}, nil
}

type mockUpserter struct {
	mu      sync.Mutex
	chunks  []store.Chunk
	outcome store.Outcome
	err     error
}

func (m *mockUpserter) Upsert(_ context.Context, c store.Chunk, _ bool) (store.Outcome, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, c)
	return m.outcome, nil
}

func docServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlerRun(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/a": articleHTML,
		"/b": articleHTML,
		"/c": articleHTML,
	})

	enricher := &mockEnricher{}
	upserter := &mockUpserter{outcome: store.OutcomeInserted}
	cr := New(enricher, upserter, Config{MaxConcurrent: 2, ChunkSize: 5000, Timeout: 5 * time.Second}, nil)

	stats, err := cr.Run(context.Background(),
		[]string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.PagesCrawled != 3 {
		t.Errorf("PagesCrawled = %d, want 3", stats.PagesCrawled)
	}
	if stats.PagesFailed != 0 {
		t.Errorf("PagesFailed = %d, want 0", stats.PagesFailed)
	}
	if stats.ChunksInsert != stats.ChunksTotal || stats.ChunksTotal == 0 {
		t.Errorf("ChunksInsert = %d of %d, want all inserted", stats.ChunksInsert, stats.ChunksTotal)
	}
	if len(upserter.chunks) != stats.ChunksTotal {
		t.Errorf("upserted %d chunks, stats say %d", len(upserter.chunks), stats.ChunksTotal)
	}

	// Chunk numbers per page are contiguous from zero.
	byURL := map[string][]bool{}
	for _, c := range upserter.chunks {
		for len(byURL[c.URL]) <= c.ChunkNumber {
			byURL[c.URL] = append(byURL[c.URL], false)
		}
		byURL[c.URL][c.ChunkNumber] = true
	}
	if len(byURL) != 3 {
		t.Fatalf("chunks cover %d pages, want 3", len(byURL))
	}
	for u, seen := range byURL {
		for i, ok := range seen {
			if !ok {
				t.Errorf("page %s missing chunk %d", u, i)
			}
		}
	}
}

func TestCrawlerRunPageFailureIsolated(t *testing.T) {
	srv := docServer(t, map[string]string{"/ok": articleHTML})

	upserter := &mockUpserter{outcome: store.OutcomeInserted}
	cr := New(&mockEnricher{}, upserter, Config{MaxConcurrent: 2, Timeout: 5 * time.Second}, nil)

	stats, err := cr.Run(context.Background(),
		[]string{srv.URL + "/ok", srv.URL + "/missing"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.PagesCrawled != 1 {
		t.Errorf("PagesCrawled = %d, want 1", stats.PagesCrawled)
	}
	if stats.PagesFailed != 1 {
		t.Errorf("PagesFailed = %d, want 1", stats.PagesFailed)
	}
	if len(upserter.chunks) == 0 {
		t.Error("healthy page should still be stored when a sibling fails")
	}
}

func TestCrawlerRunUpsertFailureCounted(t *testing.T) {
	srv := docServer(t, map[string]string{"/a": articleHTML})

	upserter := &mockUpserter{err: fmt.Errorf("connection reset")}
	cr := New(&mockEnricher{}, upserter, Config{MaxConcurrent: 1, Timeout: 5 * time.Second}, nil)

	stats, err := cr.Run(context.Background(), []string{srv.URL + "/a"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.PagesCrawled != 1 {
		t.Errorf("PagesCrawled = %d, want 1; storage failure is not a fetch failure", stats.PagesCrawled)
	}
	if stats.ChunksFailed != stats.ChunksTotal || stats.ChunksTotal == 0 {
		t.Errorf("ChunksFailed = %d of %d, want all failed", stats.ChunksFailed, stats.ChunksTotal)
	}
}

func TestCrawlerRunEmptyURLList(t *testing.T) {
	cr := New(&mockEnricher{}, &mockUpserter{}, Config{}, nil)
	stats, err := cr.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("Run(nil) stats = %+v, want zero", stats)
	}
}
