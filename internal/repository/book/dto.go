package book

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/libraryai/recommender/internal/domain"
)

// Hash field names. The embedding is stored as binary float32 LE so the FT
// index can read it directly.
const (
	fieldTitle    = "title"
	fieldAuthor   = "author"
	fieldGenre    = "genre"
	fieldSummary  = "summary"
	fieldSyncedAt = "synced_at"
)

// buildHashFields converts a book and its embedding into a flat map for HSET.
func buildHashFields(b domain.Book, vector []float32, syncedAt time.Time) map[string]string {
	return map[string]string{
		fieldTitle:    b.Title,
		fieldAuthor:   b.Author,
		fieldGenre:    b.Genre,
		fieldSummary:  b.Summary,
		fieldSyncedAt: syncedAt.Format(time.RFC3339),
		vectorField:   vectorToBytes(vector),
	}
}

// parseBook converts a flat hash map back into a domain Book.
func parseBook(id int, fields map[string]string) domain.Book {
	return domain.Book{
		ID:      id,
		Title:   fields[fieldTitle],
		Author:  fields[fieldAuthor],
		Genre:   fields[fieldGenre],
		Summary: fields[fieldSummary],
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
