package domain

import "context"

// GenerateOptions bounds a single text generation call.
type GenerateOptions struct {
	MaxTokens int
}

// ModelService is the shared contract for the external embedding/generation
// service. Implementations must be safe for concurrent use; both calls are
// remote and may fail or time out.
type ModelService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// HealthChecker verifies model service availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
