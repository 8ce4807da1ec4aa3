package domain

// Book is a catalog record held in the vector store. Created and updated by
// the sync job; immutable during a search request.
type Book struct {
	ID      int
	Title   string
	Author  string
	Genre   string // empty when the source catalog has no genre
	Summary string
}

// EmbeddingText is the text the sync job vectorizes for a book.
func (b Book) EmbeddingText() string {
	return b.Title + " " + b.Author + " " + b.Summary
}

// Candidate is a Book annotated with its distance from the query embedding
// at retrieval time. Lower distance means more similar.
type Candidate struct {
	Book
	Distance float64
}

// Recommendation is the final output unit returned to the caller.
// Reason is never empty: it is either model-generated or a fallback sentence.
type Recommendation struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Genre   string `json:"genre"`
	Summary string `json:"summary"`
	Reason  string `json:"reason"`
}
