// Package fetcher retrieves a URL and turns it into a bibliography payload.
// It sits upstream of the codec; nothing in the store performs network I/O.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pbaille/bib/internal/domain"
)

// Options configures a Fetcher.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Client       *http.Client
}

// Fetcher downloads pages and extracts readable text plus citation metadata
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// New creates a Fetcher
func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	f := &Fetcher{client: client, userAgent: opts.UserAgent, maxBody: opts.MaxBodyBytes}
	if f.userAgent == "" {
		f.userAgent = "bib/1.0 (annotated-bibliography)"
	}
	if f.maxBody <= 0 {
		f.maxBody = 5 * 1024 * 1024
	}
	return f
}

// Fetch retrieves URL content and returns it as a payload
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Payload, error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return domain.Payload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Payload{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return domain.Payload{}, fmt.Errorf("read body: %w", err)
	}

	p := domain.Payload{URL: u.String()}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		p.Content = strings.TrimSpace(string(body))
		return p, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Payload{}, fmt.Errorf("parse html: %w", err)
	}
	p.Title = firstMeta(doc, `meta[name="citation_title"]`, `meta[property="og:title"]`)
	if p.Title == "" {
		p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	p.Authors = citationAuthors(doc)
	p.Date = firstMeta(doc,
		`meta[name="citation_publication_date"]`,
		`meta[name="citation_date"]`,
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
	)
	if len(doc.Nodes) > 0 {
		p.Content = extractText(doc.Nodes[0])
	}
	if p.Content == "" {
		return domain.Payload{}, fmt.Errorf("no text content found")
	}
	return p, nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

func normalizeURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "www.") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}
	return u, nil
}

func firstMeta(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}

func citationAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find(`meta[name="citation_author"]`).Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.AttrOr("content", "")); name != "" {
			authors = append(authors, name)
		}
	})
	if len(authors) > 0 {
		return authors
	}
	if byline := firstMeta(doc, `meta[name="author"]`); byline != "" {
		for _, name := range strings.Split(byline, ",") {
			if name = strings.TrimSpace(name); name != "" {
				authors = append(authors, name)
			}
		}
	}
	return authors
}

// Tags to skip (non-content)
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true, "svg": true,
}

// extractText walks the HTML tree and returns readable text, one block
// element per line
func extractText(root *html.Node) string {
	var sb strings.Builder
	var extract func(*html.Node)

	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		// Add newlines after block elements
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title", "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "br", "tr", "blockquote", "pre":
				sb.WriteString("\n")
			}
		}
	}

	extract(root)

	// Clean up: collapse whitespace per line, drop empty lines
	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
