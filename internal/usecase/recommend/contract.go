package recommend

import (
	"context"

	"github.com/libraryai/recommender/internal/domain"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces free-text completions for filter and reason prompts.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error)
}

// BookSearcher retrieves the stored books nearest to a query vector,
// ascending by distance.
type BookSearcher interface {
	TopKByDistance(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error)
}
