// Package catalog reads the book catalog from the library MySQL database.
// It is the source side of the sync pipeline; the vector store is the sink.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/libraryai/recommender/internal/domain"
)

// booksQuery joins books with their genre names. Genre and summary are
// nullable in the source schema.
const booksQuery = `
SELECT b.id, b.title, b.author, b.brief_summary, g.name AS genre
FROM tbl_books b
LEFT JOIN tbl_genres g ON b.genre = g.id`

// Repo fetches books from the catalog database.
type Repo struct {
	db *sql.DB
}

// Open connects to the catalog database and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	database, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	database.SetMaxOpenConns(4)
	database.SetConnMaxLifetime(5 * time.Minute)

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping catalog db: %w", err)
	}

	return &Repo{db: database}, nil
}

// FetchBooks returns every book in the catalog.
func (r *Repo) FetchBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := r.db.QueryContext(ctx, booksQuery)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var (
			b       domain.Book
			summary sql.NullString
			genre   sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &summary, &genre); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		b.Summary = summary.String
		b.Genre = genre.String
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}

	return books, nil
}

// Ping checks catalog database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (r *Repo) Close() error {
	return r.db.Close()
}
