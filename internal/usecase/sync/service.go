// Package sync implements the periodic catalog ingestion job: fetch books
// from the source catalog, embed each one, upsert into the vector store,
// and purge stored books the catalog no longer has.
package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/libraryai/recommender/internal/domain"
	"github.com/libraryai/recommender/internal/logger"
	"github.com/libraryai/recommender/internal/metrics"
)

// CatalogReader fetches the full source catalog.
type CatalogReader interface {
	FetchBooks(ctx context.Context) ([]domain.Book, error)
}

// BookWriter maintains the vector store copy of the catalog.
type BookWriter interface {
	Upsert(ctx context.Context, b domain.Book, vector []float32) error
	Delete(ctx context.Context, id int) error
	IDs(ctx context.Context) ([]int, error)
}

// Embedder vectorizes book text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CycleResult summarizes one ingestion cycle.
type CycleResult struct {
	Synced  int
	Skipped int
	Purged  int
}

// Service runs ingestion cycles. A record whose embedding call fails is
// skipped and logged without aborting the batch.
type Service struct {
	catalog CatalogReader
	books   BookWriter
	embed   Embedder
}

// New creates an ingestion service.
func New(catalog CatalogReader, books BookWriter, embed Embedder) *Service {
	return &Service{catalog: catalog, books: books, embed: embed}
}

// RunCycle ingests the whole catalog once. Only catalog and store failures
// are errors; per-record embedding failures count as skips.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	log := logger.FromContext(ctx)

	books, err := s.catalog.FetchBooks(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fetch catalog: %w", err)
	}
	log.Info("fetched books from catalog", zap.Int("count", len(books)))

	var result CycleResult
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		vector, err := s.embed.Embed(ctx, book.EmbeddingText())
		if err != nil {
			log.Warn("embedding failed, skipping book",
				zap.Int("book_id", book.ID),
				zap.String("title", book.Title),
				zap.Error(err),
			)
			metrics.SyncBooksTotal.WithLabelValues("skipped").Inc()
			result.Skipped++
			continue
		}

		if err := s.books.Upsert(ctx, book, vector); err != nil {
			return result, fmt.Errorf("upsert book %d: %w", book.ID, err)
		}
		metrics.SyncBooksTotal.WithLabelValues("synced").Inc()
		result.Synced++
	}

	purged, err := s.purgeRemoved(ctx, books)
	if err != nil {
		return result, err
	}
	result.Purged = purged

	return result, nil
}

// purgeRemoved deletes stored books that are no longer in the catalog.
// Skipped books stay: their catalog rows still exist.
func (s *Service) purgeRemoved(ctx context.Context, books []domain.Book) (int, error) {
	log := logger.FromContext(ctx)

	stored, err := s.books.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored books: %w", err)
	}

	inCatalog := make(map[int]struct{}, len(books))
	for _, b := range books {
		inCatalog[b.ID] = struct{}{}
	}

	purged := 0
	for _, id := range stored {
		if _, ok := inCatalog[id]; ok {
			continue
		}
		if err := s.books.Delete(ctx, id); err != nil {
			return purged, fmt.Errorf("purge book %d: %w", id, err)
		}
		log.Info("purged book removed from catalog", zap.Int("book_id", id))
		metrics.SyncBooksTotal.WithLabelValues("purged").Inc()
		purged++
	}

	return purged, nil
}
