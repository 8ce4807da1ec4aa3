package book

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/libraryai/recommender/internal/db"
	"github.com/libraryai/recommender/internal/domain"
)

const (
	keyPrefix   = "books:"
	indexName   = "books:idx"
	vectorField = "embedding"
)

// returnFields are the hash fields fetched by TopKByDistance.
var returnFields = []string{fieldTitle, fieldAuthor, fieldGenre, fieldSummary}

// store is the consumer interface for book storage (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores books as Redis hashes under books:<id> with an FT vector index.
type Repo struct {
	store store
	dim   int
	hnsw  HNSWConfig
	now   func() time.Time
}

// New creates a book repository for vectors of the given dimension.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim, now: time.Now}
}

// WithHNSW overrides HNSW index build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the book vector index if it does not exist yet.
// Inner-product distance: ascending score means more similar.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{keyPrefix},
		Vector: db.VectorField{
			Name:        vectorField,
			Algo:        db.VectorHNSW,
			Dim:         r.dim,
			Distance:    db.DistanceIP,
			M:           r.hnsw.M,
			EFConstruct: r.hnsw.EFConstruct,
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", indexName, err)
	}
	return nil
}

// ResetIndex drops and recreates the vector index. Stored hashes survive;
// the search module reindexes them against the new definition.
func (r *Repo) ResetIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, indexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", indexName, err)
	}
	return r.EnsureIndex(ctx)
}

// Upsert writes a book and its embedding. Existing fields are overwritten.
func (r *Repo) Upsert(ctx context.Context, b domain.Book, vector []float32) error {
	if len(vector) != r.dim {
		return fmt.Errorf("book %d: vector dimension %d, want %d", b.ID, len(vector), r.dim)
	}

	fields := buildHashFields(b, vector, r.now().UTC())
	if err := r.store.HSet(ctx, bookKey(b.ID), fields); err != nil {
		return fmt.Errorf("%w: upsert book %d: %w", domain.ErrStoreUnavailable, b.ID, err)
	}
	return nil
}

// Get reads a single book by id. The read path applies no transformation:
// stored fields come back verbatim.
func (r *Repo) Get(ctx context.Context, id int) (domain.Book, error) {
	fields, err := r.store.HGetAll(ctx, bookKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("%w: get book %d: %w", domain.ErrStoreUnavailable, id, err)
	}
	return parseBook(id, fields), nil
}

// Delete removes a stored book. Deleting an absent id is a no-op.
func (r *Repo) Delete(ctx context.Context, id int) error {
	if err := r.store.Del(ctx, bookKey(id)); err != nil {
		return fmt.Errorf("%w: delete book %d: %w", domain.ErrStoreUnavailable, id, err)
	}
	return nil
}

// IDs lists the ids of all stored books. Keys that do not parse as
// books:<id> are ignored.
func (r *Repo) IDs(ctx context.Context) ([]int, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("%w: scan books: %w", domain.ErrStoreUnavailable, err)
	}

	ids := make([]int, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.Atoi(strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TopKByDistance returns the k stored books nearest to the query vector,
// ascending by distance. Fewer than k stored books is not an error.
func (r *Repo) TopKByDistance(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    indexName,
		VectorField:  vectorField,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: search knn: %w", domain.ErrStoreUnavailable, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	candidates := make([]domain.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id, err := strconv.Atoi(strings.TrimPrefix(entry.Key, keyPrefix))
		if err != nil {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Book:     parseBook(id, entry.Fields),
			Distance: entry.Distance,
		})
	}

	return candidates, nil
}

func bookKey(id int) string {
	return keyPrefix + strconv.Itoa(id)
}
