package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
)

// DiscoverSitemap fetches a sitemap XML document and returns the page URLs it
// lists, in document order. The local-name match tolerates both namespaced and
// plain sitemaps.
func DiscoverSitemap(ctx context.Context, client *http.Client, sitemapURL string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	doc, err := xmlquery.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	var urls []string
	for _, node := range xmlquery.Find(doc, "//*[local-name()='loc']") {
		if u := strings.TrimSpace(node.InnerText()); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}
