package vectorstore

import "errors"

var (
	// ErrBackendRequired is returned when a nil backend is passed to NewStore.
	ErrBackendRequired = errors.New("vector backend is required")

	// ErrEmbedderRequired is returned when a nil embedder is passed to NewStore.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrEmptyQuery is returned when a search is attempted with empty query text.
	ErrEmptyQuery = errors.New("query text cannot be empty")
)
