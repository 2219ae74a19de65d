// Package websearch verifies institution acronyms against the public web.
// Results feed curator reports only; they never influence clustering.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

// SearchResult is one parsed results page.
type SearchResult struct {
	Query    string    `json:"query"`
	Titles   []string  `json:"titles"`
	Snippets []string  `json:"snippets"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Client performs throttled, cached HTML searches.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	cache map[string]*SearchResult
	ttl   time.Duration
}

// NewClient creates a search client. maxPerMinute throttles outgoing
// queries; ttl bounds cache freshness.
func NewClient(maxPerMinute int, ttl time.Duration) *Client {
	if maxPerMinute <= 0 {
		maxPerMinute = 20
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), 1),
		cache:      make(map[string]*SearchResult),
		ttl:        ttl,
	}
}

// Search runs one query against the HTML results endpoint.
func (c *Client) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = sanitizeQuery(query)
	if query == "" {
		return nil, fmt.Errorf("empty query after sanitization")
	}

	c.mu.RLock()
	cached, ok := c.cache[query]
	c.mu.RUnlock()
	if ok && time.Since(cached.FetchedAt) <= c.ttl {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}

	searchURL := searchEndpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	result, err := parseResults(resp.Body, query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[query] = result
	c.mu.Unlock()
	return result, nil
}

func parseResults(body io.Reader, query string) (*SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	result := &SearchResult{Query: query, FetchedAt: time.Now()}
	doc.Find(".result__title").Each(func(_ int, sel *goquery.Selection) {
		if title := strings.TrimSpace(sel.Text()); title != "" {
			result.Titles = append(result.Titles, title)
		}
	})
	doc.Find(".result__snippet").Each(func(_ int, sel *goquery.Selection) {
		if snippet := strings.TrimSpace(sel.Text()); snippet != "" {
			result.Snippets = append(result.Snippets, snippet)
		}
	})

	// The results page markup changes now and then; when the selectors
	// come up empty, fall back to collecting anchor text.
	if len(result.Titles) == 0 {
		if nodes, err := doc.Html(); err == nil {
			result.Titles = anchorTexts(strings.NewReader(nodes))
		}
	}
	return result, nil
}

// anchorTexts walks raw HTML with the low-level tokenizer and returns the
// text content of every <a> element.
func anchorTexts(r io.Reader) []string {
	var texts []string
	tokenizer := html.NewTokenizer(r)
	depth := 0
	var current strings.Builder

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return texts
		case html.StartTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "a" {
				depth++
			}
		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "a" && depth > 0 {
				depth--
				if text := strings.TrimSpace(current.String()); text != "" {
					texts = append(texts, text)
				}
				current.Reset()
			}
		case html.TextToken:
			if depth > 0 {
				current.Write(tokenizer.Text())
			}
		}
	}
}

func sanitizeQuery(query string) string {
	query = strings.TrimSpace(query)
	query = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '\\':
			return -1
		}
		return r
	}, query)
	if len(query) > 200 {
		query = query[:200]
	}
	return query
}
