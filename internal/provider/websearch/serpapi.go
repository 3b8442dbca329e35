// Package websearch adapts SerpAPI's search endpoint to the engine's
// provider.WebSearchProvider interface. SerpAPI has no official Go SDK in
// this project's dependency stack, so this is a plain net/http client in
// the same style as the engine's other direct-HTTP collaborators.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mailrelay.app/engine/internal/provider"
)

const searchEndpoint = "https://serpapi.com/search"

// SerpAPIProvider implements provider.WebSearchProvider over SerpAPI.
type SerpAPIProvider struct {
	apiKey string
	client *http.Client
}

// NewSerpAPIProvider builds a SerpAPIProvider using apiKey for every query.
// timeout bounds each search request; zero means no client-side bound.
func NewSerpAPIProvider(apiKey string, timeout time.Duration) *SerpAPIProvider {
	return &SerpAPIProvider{apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

func (p *SerpAPIProvider) Search(ctx context.Context, query string) ([]provider.WebResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("websearch: API key is required")
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("api_key", p.apiKey)
	q.Set("engine", "google")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: unexpected status %d", resp.StatusCode)
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("websearch: decode response: %w", err)
	}

	results := make([]provider.WebResult, 0, len(parsed.OrganicResults))
	for _, r := range parsed.OrganicResults {
		results = append(results, provider.WebResult{Title: r.Title, Snippet: r.Snippet, Link: r.Link})
	}
	return results, nil
}
