package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/libraryai/recommender/internal/domain"
	"github.com/libraryai/recommender/internal/logger"
	"github.com/libraryai/recommender/internal/metrics"
)

// fallbackReason is substituted when a per-item generation call fails,
// times out, or comes back empty.
const fallbackReason = "Excellent match based on semantic analysis."

// Explainer generates one short justification per recommended book. Items
// are explained concurrently; a failing item degrades to the fallback
// sentence without affecting its siblings.
type Explainer struct {
	gen            Generator
	reasonMaxChars int
	timeout        time.Duration
}

// NewExplainer creates a reason generator with a per-item call timeout.
func NewExplainer(gen Generator, reasonMaxChars int, timeout time.Duration) *Explainer {
	return &Explainer{gen: gen, reasonMaxChars: reasonMaxChars, timeout: timeout}
}

// Explain returns exactly one non-empty reason per item, in item order.
// Cancelling ctx cancels all in-flight calls.
func (e *Explainer) Explain(ctx context.Context, query string, items []domain.Candidate) []string {
	reasons := make([]string, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item domain.Candidate) {
			defer wg.Done()
			reasons[i] = e.explainOne(ctx, query, item)
		}(i, item)
	}
	wg.Wait()

	return reasons
}

func (e *Explainer) explainOne(ctx context.Context, query string, item domain.Candidate) string {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Given the user search: '%s', and the book: Title: '%s', Author: '%s', Genre: '%s', Summary: '%s', "+
			"write a %d-character reason why this book is a good recommendation for the user. "+
			"Only output the reason, no intro or extra text.",
		query, item.Title, item.Author, item.Genre, item.Summary, e.reasonMaxChars)

	text, err := e.gen.Generate(callCtx, prompt, domain.GenerateOptions{MaxTokens: e.reasonMaxChars})
	if err != nil {
		logger.FromContext(ctx).Warn("reason generation failed, using fallback",
			zap.String("title", item.Title),
			zap.Error(err),
		)
		metrics.ReasonFallbacksTotal.Inc()
		return fallbackReason
	}

	reason := strings.TrimSpace(text)
	if reason == "" {
		metrics.ReasonFallbacksTotal.Inc()
		return fallbackReason
	}
	return truncate(reason, e.reasonMaxChars)
}
