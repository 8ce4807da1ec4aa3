package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or whitespace-only search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingUnavailable signals that the query embedding could not be
	// obtained. Fatal for the request: no retrieval is possible without it.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrStoreUnavailable signals a vector store failure.
	ErrStoreUnavailable = errors.New("vector store unavailable")
	// ErrBookNotFound signals a missing book.
	ErrBookNotFound = errors.New("book not found")
)
