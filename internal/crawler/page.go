package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// ExtractContent reduces a fetched HTML page to markdown-flavoured plain
// text. Readability isolates the article body, then the block elements are
// rendered in order: headings keep their level as # prefixes, pre blocks
// become code fences, list items become dashes.
func ExtractContent(body []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return strings.TrimSpace(article.TextContent), nil
	}

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, pre, li").Each(func(_ int, s *goquery.Selection) {
		// A p inside a li already renders as part of the list item.
		if s.Is("p") && s.ParentsFiltered("li").Length() > 0 {
			return
		}

		switch node := s.Nodes[0]; node.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(node.Data[1] - '0')
			if text := collapseSpace(s.Text()); text != "" {
				blocks = append(blocks, strings.Repeat("#", level)+" "+text)
			}
		case "pre":
			if text := strings.Trim(s.Text(), "\n"); strings.TrimSpace(text) != "" {
				blocks = append(blocks, "```\n"+text+"\n```")
			}
		case "li":
			if text := collapseSpace(directText(s)); text != "" {
				blocks = append(blocks, "- "+text)
			}
		default:
			if text := collapseSpace(s.Text()); text != "" {
				blocks = append(blocks, text)
			}
		}
	})

	if len(blocks) == 0 {
		return strings.TrimSpace(article.TextContent), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

// directText returns the element's own text including inline children but
// excluding nested block lists, so a li with a sub-list renders once.
func directText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				continue
			}
			b.WriteString(nodeText(c))
		}
	}
	return b.String()
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
