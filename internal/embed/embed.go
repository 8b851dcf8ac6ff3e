// Package embed defines the narrow client surface for the embedding
// substrate collaborator named by the config key embedding.service_url. No
// control-plane component calls it to actually embed content today (the
// embedding service itself is an out-of-scope external collaborator); it
// exists so that config key has a concrete consumer, exercised by the tools
// status diagnostic ping.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client embeds text against a configured embedding service.
type Client interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Ping(ctx context.Context) error
}

// HTTPClient posts to {url}/embed and expects {"embedding": [...]}.
type HTTPClient struct {
	URL        string
	httpClient *http.Client
}

// NewHTTPClient builds a Client against the given base URL.
func NewHTTPClient(url string) *HTTPClient {
	return &HTTPClient{URL: url, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: unexpected status %d", resp.StatusCode)
	}

	var parsed struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	return parsed.Embedding, nil
}

// Ping checks that the embedding service is reachable without requesting a
// real embedding, for the tools status diagnostic.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embed: ping failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("embed: unhealthy status %d", resp.StatusCode)
	}
	return nil
}
