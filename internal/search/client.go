// Package search implements the search collaborator over a
// SearxNG-compatible JSON endpoint. With no endpoint configured the
// client is disabled and every query succeeds with zero results.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
)

// Client queries an external search service. An empty result list is a
// successful outcome; only transport and decoding failures are errors.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a search client from configuration. An empty BaseURL
// yields a disabled client.
func NewClient(cfg *config.SearchConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// searxResponse is the subset of the SearxNG JSON response we consume.
type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs the query and maps results to domain.SearchResult.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, domain.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	observability.FromContext(ctx).Debug("search completed",
		observability.Int("results", len(results)))

	return results, nil
}
