package pipeline

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a nil repository is
	// passed to NewOrchestrator.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrEmbedderRequired is returned when a nil embedder is passed to
	// NewOrchestrator.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrVectorStoreRequired is returned when a nil vector store is passed
	// to NewOrchestrator.
	ErrVectorStoreRequired = errors.New("vector store is required")

	// ErrExtractorRequired is returned when a nil extractor is passed to
	// NewOrchestrator.
	ErrExtractorRequired = errors.New("knowledge graph extractor is required")

	// ErrAlreadyProcessing indicates a processing run is in flight for the
	// document. Runs for the same document are non-reentrant.
	ErrAlreadyProcessing = errors.New("document is already being processed")

	// ErrContentUnavailable indicates the document has no inline content and
	// no readable source path.
	ErrContentUnavailable = errors.New("document content unavailable")

	// ErrInvalidMaxAttempts indicates an invalid retry attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")
)
