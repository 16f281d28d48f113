package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/httpclient"
)

const defaultBaseURL = "https://api.tavily.com"

// Result is a single web search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Searcher performs a web search and returns ranked results.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Client is a Tavily search API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a search client for the Tavily API.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewInstrumentedClient(30 * time.Second),
	}
}

type searchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, errors.NewConfigurationError("search API key is not configured", "SEARCH_KEY_MISSING",
			"Set TAVILY_API_KEY or disable web search for this job.")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(searchRequest{
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	ctx = httpclient.WithProvider(ctx, "tavily")
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewProviderTransientError("search request failed", "SEARCH_REQUEST_FAILED", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewRateLimitError("search rate limit exceeded", "SEARCH_RATE_LIMITED",
			"Wait a moment before retrying web-enriched jobs.")
	}
	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, errors.NewProviderTransientError(
			fmt.Sprintf("search failed with status %d: %s", resp.StatusCode, string(raw)),
			"SEARCH_SERVER_ERROR", nil)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, errors.NewProviderPermanentError(
			fmt.Sprintf("search failed with status %d: %s", resp.StatusCode, string(raw)),
			"SEARCH_REQUEST_REJECTED", nil)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return result.Results, nil
}

// FormatResults flattens search results into a block of text suitable for
// a model prompt.
func FormatResults(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n", i+1, r.Title, r.Content)
		if r.URL != "" {
			fmt.Fprintf(&b, "Source: %s\n", r.URL)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
