package recommend

import (
	"context"
	"fmt"

	"github.com/libraryai/recommender/internal/domain"
)

// Retriever turns free-text queries into candidate sets via embedding and
// nearest-neighbor search.
type Retriever struct {
	embed Embedder
	books BookSearcher
	topK  int
}

// NewRetriever creates a candidate retriever fetching topK nearest books.
func NewRetriever(embed Embedder, books BookSearcher, topK int) *Retriever {
	return &Retriever{embed: embed, books: books, topK: topK}
}

// Retrieve embeds the query and returns up to topK candidates ordered by
// ascending distance. Fewer stored books than topK is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.Candidate, error) {
	vector, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	candidates, err := r.books.TopKByDistance(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	return candidates, nil
}
