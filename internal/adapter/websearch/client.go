// Package websearch talks to the external search engine and the internal
// content-extraction (crawl) sidecar.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/berrihq/berri-api/pkg/config"
)

// SearchResult is one ranked hit from the search engine.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// CrawlResult is the extracted content of one URL.
type CrawlResult struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	ContentLength int    `json:"content_length"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

const (
	maxBatchURLs   = 10
	healthCacheKey = "external:healthy"
)

// Client wraps the two external collaborators behind bounded timeouts.
type Client struct {
	cfg          config.ExternalConfig
	searchClient *http.Client
	crawlClient  *http.Client
	cache        *redis.Client
}

// NewClient builds a client from external-tier configuration. cache may be
// nil; health probes then hit the sidecar every time.
func NewClient(cfg config.ExternalConfig, cache *redis.Client) *Client {
	return &Client{
		cfg:          cfg,
		searchClient: &http.Client{Timeout: cfg.SearchTimeout},
		crawlClient:  &http.Client{Timeout: cfg.CrawlTimeout},
		cache:        cache,
	}
}

// Enabled reports whether the external tier is configured at all.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.SearchURL != "" && c.cfg.CrawlURL != ""
}

// Healthy probes the crawl sidecar's health endpoint. The verdict is
// cached for HealthCacheTTL so every chat request does not pay a probe.
func (c *Client) Healthy(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, healthCacheKey).Result(); err == nil {
			return cached == "1"
		}
	}
	healthy := c.probeHealth(ctx)
	if c.cache != nil {
		verdict := "0"
		if healthy {
			verdict = "1"
		}
		// Cache write failures only cost an extra probe next time.
		c.cache.Set(ctx, healthCacheKey, verdict, c.cfg.HealthCacheTTL)
	}
	return healthy
}

func (c *Client) probeHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CrawlURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.searchClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

// Search queries the search engine and returns ranked results, capped at
// the configured maximum.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"q":     query,
		"limit": c.cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SearchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.SearchAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.SearchAPIKey)
	}

	resp, err := c.searchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var out struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.cfg.MaxContentBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if c.cfg.MaxResults > 0 && len(out.Results) > c.cfg.MaxResults {
		out.Results = out.Results[:c.cfg.MaxResults]
	}
	return out.Results, nil
}

// Crawl extracts content from up to ten URLs through the crawl sidecar.
// URLs pointing at private or loopback addresses are dropped before the
// request is made; per-URL failures are reported, not fatal.
func (c *Client) Crawl(ctx context.Context, urls []string) ([]CrawlResult, error) {
	safe := make([]string, 0, len(urls))
	for _, u := range urls {
		if IsSafeURL(u) {
			safe = append(safe, u)
		}
	}
	if len(safe) == 0 {
		return nil, nil
	}
	if len(safe) > maxBatchURLs {
		safe = safe[:maxBatchURLs]
	}

	payload, err := json.Marshal(map[string]interface{}{
		"urls":                 safe,
		"extract_main_content": true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode crawl request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CrawlURL+"/crawl/batch", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build crawl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.crawlClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crawl request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crawl returned status %d", resp.StatusCode)
	}

	var out struct {
		Results []CrawlResult `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.cfg.MaxContentBytes*maxBatchURLs)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode crawl response: %w", err)
	}
	return out.Results, nil
}
