// Package ollama provides a ModelService backed by a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/libraryai/recommender/internal/domain"
	"github.com/libraryai/recommender/internal/metrics"
)

// Client talks to the Ollama HTTP API. Embedding and generation may use
// different models on the same server.
type Client struct {
	baseURL       string
	embedModel    string
	generateModel string
	httpClient    *http.Client
}

// Config holds Ollama connection settings.
type Config struct {
	BaseURL       string
	EmbedModel    string
	GenerateModel string
	Timeout       time.Duration
}

// NewClient creates an Ollama model service client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		embedModel:    cfg.EmbedModel,
		generateModel: cfg.GenerateModel,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Embed implements domain.ModelService. All failures are wrapped with
// domain.ErrEmbeddingUnavailable for correct 502 mapping.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse

	start := time.Now()
	err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.embedModel, Prompt: text}, &resp)
	duration := time.Since(start)

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues("embed", c.embedModel, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues("embed", c.embedModel, "api_error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	if len(resp.Embedding) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues("embed", c.embedModel, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues("embed", c.embedModel, "empty_response").Inc()
		return nil, fmt.Errorf("%w: empty embedding response", domain.ErrEmbeddingUnavailable)
	}

	metrics.ModelRequestsTotal.WithLabelValues("embed", c.embedModel, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues("embed", c.embedModel).Observe(duration.Seconds())

	vector := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// Generate implements domain.ModelService. Streaming is disabled: the full
// completion comes back in a single response body.
func (c *Client) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	req := generateRequest{
		Model:  c.generateModel,
		Prompt: prompt,
		Stream: false,
	}
	if opts.MaxTokens > 0 {
		req.Options = &generateOptions{NumPredict: opts.MaxTokens}
	}

	var resp generateResponse

	start := time.Now()
	err := c.post(ctx, "/api/generate", req, &resp)
	duration := time.Since(start)

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues("generate", c.generateModel, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues("generate", c.generateModel, "api_error").Inc()
		return "", fmt.Errorf("generate: %w", err)
	}

	metrics.ModelRequestsTotal.WithLabelValues("generate", c.generateModel, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues("generate", c.generateModel).Observe(duration.Seconds())

	return resp.Response, nil
}

// HealthCheck verifies the server is reachable via /api/tags.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: decode response: %w", path, err)
	}
	return nil
}
