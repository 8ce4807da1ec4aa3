// Package recommend implements the query-time recommendation pipeline:
// embed the query, retrieve the nearest books, prune the set with a model
// call, and generate a short justification per surviving book.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/libraryai/recommender/internal/domain"
)

// Config holds the pipeline tuning constants.
type Config struct {
	TopK            int
	SelectN         int
	MinSelections   int
	SummaryMaxChars int
	ReasonMaxChars  int
	ExplainTimeout  time.Duration
}

// Service orchestrates Retrieve, Filter, and Explain into the end-to-end
// recommendation flow and owns the degradation policy between stages.
type Service struct {
	retriever *Retriever
	filter    *Filter
	explainer *Explainer
}

// New wires the pipeline stages from their shared dependencies.
func New(model domain.ModelService, books BookSearcher, cfg Config) *Service {
	return &Service{
		retriever: NewRetriever(model, books, cfg.TopK),
		filter:    NewFilter(model, cfg.SelectN, cfg.MinSelections, cfg.SummaryMaxChars),
		explainer: NewExplainer(model, cfg.ReasonMaxChars, cfg.ExplainTimeout),
	}
}

// Recommend runs the full pipeline for one query. Embedding and store
// failures are fatal; filter and reason degradations are absorbed, so a
// non-error result is always a fully populated ranked list.
func (s *Service) Recommend(ctx context.Context, query string) ([]domain.Recommendation, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidQuery
	}

	candidates, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(candidates) == 0 {
		return []domain.Recommendation{}, nil
	}

	selected := s.filter.Filter(ctx, query, candidates)
	reasons := s.explainer.Explain(ctx, query, selected)

	recs := make([]domain.Recommendation, len(selected))
	for i, c := range selected {
		recs[i] = domain.Recommendation{
			Title:   c.Title,
			Author:  c.Author,
			Genre:   c.Genre,
			Summary: c.Summary,
			Reason:  reasons[i],
		}
	}
	return recs, nil
}
