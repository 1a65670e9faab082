package extraction

import "errors"

var (
	// ErrAIProviderRequired is returned when a nil provider is passed to
	// NewExtractor.
	ErrAIProviderRequired = errors.New("AI provider is required")

	// ErrNoChunks is returned when extraction is attempted with no chunks.
	ErrNoChunks = errors.New("no chunks to extract from")
)
