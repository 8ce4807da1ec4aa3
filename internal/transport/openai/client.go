// Package openai provides a ModelService backed by an OpenAI-compatible API.
// Useful when embeddings and completions are served by a hosted provider
// instead of a local Ollama instance.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/libraryai/recommender/internal/domain"
	"github.com/libraryai/recommender/internal/metrics"
)

// Client implements domain.ModelService via the OpenAI API.
type Client struct {
	client        *openai.Client
	embedModel    openai.EmbeddingModel
	generateModel string
}

// Config holds the OpenAI-compatible provider settings.
type Config struct {
	APIKey        string
	BaseURL       string
	EmbedModel    string
	GenerateModel string
}

// NewClient creates an OpenAI-compatible model service client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:        openai.NewClientWithConfig(clientCfg),
		embedModel:    openai.EmbeddingModel(cfg.EmbedModel),
		generateModel: cfg.GenerateModel,
	}
}

// Embed implements domain.ModelService. All failures are wrapped with
// domain.ErrEmbeddingUnavailable for correct 502 mapping.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.embedModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	model := string(c.embedModel)

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues("embed", model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues("embed", model, "api_error").Inc()
		return nil, parseAPIError("embedding", err, domain.ErrEmbeddingUnavailable)
	}

	if len(resp.Data) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues("embed", model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues("embed", model, "empty_response").Inc()
		return nil, fmt.Errorf("%w: empty embedding response", domain.ErrEmbeddingUnavailable)
	}

	metrics.ModelRequestsTotal.WithLabelValues("embed", model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues("embed", model).Observe(duration.Seconds())

	return resp.Data[0].Embedding, nil
}

// Generate implements domain.ModelService via chat completions.
func (c *Client) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.generateModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues("generate", c.generateModel, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues("generate", c.generateModel, "api_error").Inc()
		return "", parseAPIError("completion", err, nil)
	}

	if len(resp.Choices) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues("generate", c.generateModel, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues("generate", c.generateModel, "empty_response").Inc()
		return "", fmt.Errorf("empty completion response")
	}

	metrics.ModelRequestsTotal.WithLabelValues("generate", c.generateModel, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues("generate", c.generateModel).Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// When sentinel is non-nil the result wraps it for status mapping.
func parseAPIError(op string, err error, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		if sentinel != nil {
			return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, sentinel)
		}
		return fmt.Errorf("%s API error %d: %s", op, reqErr.HTTPStatusCode, detail)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if sentinel != nil {
			return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, sentinel)
		}
		return fmt.Errorf("%s API error %d: %s", op, apiErr.HTTPStatusCode, apiErr.Message)
	}

	if sentinel != nil {
		return fmt.Errorf("%s request failed: %w: %w", op, sentinel, err)
	}
	return fmt.Errorf("%s request failed: %w", op, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
