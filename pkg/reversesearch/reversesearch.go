// Package reversesearch asks an external reverse image search service how many
// near-identical copies of an image already exist online.
package reversesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"DeForge/pkg/config"
)

// ErrDisabled is returned when no endpoint is configured
var ErrDisabled = errors.New("reverse search is not configured")

// Searcher counts online matches for an encoded image
type Searcher interface {
	CountMatches(ctx context.Context, data []byte) (int, error)
}

// Match is one result returned by the search service
type Match struct {
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
}

// response is the body returned by the search service
type response struct {
	Matches []Match `json:"matches"`
}

// maxResponseSize bounds the body read from the search service
const maxResponseSize = 4 << 20

// Client posts images to an HTTP reverse search endpoint
type Client struct {
	endpoint      string
	apiKey        string
	minSimilarity float64
	httpClient    *http.Client
}

// NewClient creates a client for cfg. It returns ErrDisabled when cfg has no endpoint.
func NewClient(cfg config.ReverseSearchConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:      cfg.Endpoint,
		apiKey:        cfg.APIKey,
		minSimilarity: cfg.MinSimilarity,
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

// CountMatches uploads data and counts the matches at or above the minimum similarity
func (c *Client) CountMatches(ctx context.Context, data []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build reverse search request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(data))
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("reverse search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("reverse search: bad status: %s", resp.Status)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode reverse search response: %w", err)
	}

	count := 0
	for _, m := range body.Matches {
		if m.Similarity >= c.minSimilarity {
			count++
		}
	}
	return count, nil
}
