package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains embeddings in the same order as the
	// input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingProvider is an Embedder with an identity and a provider-specific
// input limit. The gateway truncates text to MaxTextLength before submission;
// callers must not assume a universal limit.
type EmbeddingProvider interface {
	Embedder

	// Name identifies the provider in logs and errors.
	Name() string

	// MaxTextLength is the maximum input size in characters accepted by the
	// provider. Zero means unlimited.
	MaxTextLength() int
}

// EntityExtractor detects named entities in text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities analyzes text and returns the entities it mentions.
	// Returns an empty slice if no entities are found; a malformed model
	// response also yields an empty slice rather than an error.
	ExtractEntities(ctx context.Context, text string) ([]ExtractedEntity, error)
}

// RelationshipExtractor discovers relationships between known entities.
// Implementations must be thread-safe for concurrent use.
type RelationshipExtractor interface {
	// ExtractRelationships asks for relationships among exactly the named
	// entities within the given text.
	ExtractRelationships(ctx context.Context, text string, entityNames []string) ([]ExtractedRelationship, error)

	// ProbeRelationship asks whether a meaningful relationship exists between
	// two entities given shared context gathered across chunks.
	ProbeRelationship(ctx context.Context, sourceName, targetName, context string) (RelationshipProbe, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages the embedder and extractor
// instances, ensuring they share configuration and resources.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// EntityExtractor returns the entity extraction service.
	EntityExtractor() EntityExtractor

	// RelationshipExtractor returns the relationship extraction service.
	RelationshipExtractor() RelationshipExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
