package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// IDFromContent generates a deterministic identifier from text content using
// BLAKE2b hashing. Identical content always produces the same identifier.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return fmt.Sprintf("%016x", binary.LittleEndian.Uint64(sum))
}

// ChunkType classifies the structural role of a chunk within a document.
type ChunkType string

const (
	ChunkTypeParagraph ChunkType = "paragraph"
	ChunkTypeSection   ChunkType = "section"
	ChunkTypeHeading   ChunkType = "heading"
	ChunkTypeCode      ChunkType = "code"
	ChunkTypeTable     ChunkType = "table"
	ChunkTypeList      ChunkType = "list"
	ChunkTypeQuote     ChunkType = "quote"
)

// Chunk is a contiguous, typed slice of document text. It is created by the
// chunking engine, enriched once with an embedding, and immutable thereafter.
type Chunk struct {
	Id            string
	Content       string
	Type          ChunkType
	Level         int // hierarchy depth, 0 = document root
	Embedding     []float32
	SemanticScore float64 // coherence with neighbouring chunks, 0..1
	StartIndex    int
	EndIndex      int
	Keywords      []string
	ParentChunkId string // empty unless produced by hybrid refinement
}

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypePlace        EntityType = "place"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeEvent        EntityType = "event"
	EntityTypeProduct      EntityType = "product"
	EntityTypeOther        EntityType = "other"
)

// Mention records a single occurrence of an entity within a chunk.
type Mention struct {
	ChunkId    string
	Position   int
	Context    string // surrounding text, roughly ±50 characters
	Confidence float64
}

// EntityRelationship is a lightweight edge reference stored on the entity
// itself, pointing at another entity in the same document's graph.
type EntityRelationship struct {
	TargetEntityId   string
	RelationshipType string
	Confidence       float64
}

// Entity is a named thing extracted from document text. Entities are owned by
// the document that produced them. The Mentions list is append-only during
// resolution: mentions are merged, never dropped.
type Entity struct {
	Id            string
	Name          string
	Type          EntityType
	Description   string
	Confidence    float64
	Aliases       []string
	Attributes    map[string]string
	Mentions      []Mention
	Relationships []EntityRelationship
}

// Relationship is a graph edge between two resolved entities.
// Deduplicated by the unordered pair of entity ids plus the type.
type Relationship struct {
	Id               string
	SourceEntityId   string
	TargetEntityId   string
	RelationshipType string
	Description      string
	Confidence       float64
	Evidence         []string
}

// Key returns the deduplication key for the relationship. The entity pair is
// unordered: reversed edges of the same type share a key.
func (r *Relationship) Key() string {
	a, b := r.SourceEntityId, r.TargetEntityId
	if b < a {
		a, b = b, a
	}
	return a + "-" + b + "-" + r.RelationshipType
}

// KnowledgeGraph is the result of a single extraction run over one document.
type KnowledgeGraph struct {
	Entities       []*Entity
	Relationships  []*Relationship
	Confidence     float64
	ProcessingTime time.Duration
}

// ProcessingStatus is the lifecycle state of a document as it moves through
// chunking, embedding and graph extraction.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// DocumentEmbeddings holds document-level embeddings derived during
// processing. Text is the embedding of the document's leading content and is
// empty when the embedding stage was unavailable.
type DocumentEmbeddings struct {
	Text []float32
}

// Document is the unit of ingestion. The pipeline reads Content, DocumentType,
// Title and Tags; it writes Chunks, Embeddings, GraphNodes, GraphEdges,
// Status, ProcessingErrors and LastProcessedAt.
type Document struct {
	Id               string
	OwnerId          string
	Title            string
	DocumentType     string
	Content          string
	SourcePath       string // resolved when Content is empty
	Tags             []string
	Chunks           []Chunk
	Embeddings       DocumentEmbeddings
	GraphNodes       []*Entity
	GraphEdges       []*Relationship
	Status           ProcessingStatus
	ProcessingErrors []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastProcessedAt  time.Time
}

// VectorMetadata is the metadata stored alongside each vector record.
type VectorMetadata struct {
	DocumentType  string
	ChunkType     string
	Title         string
	Tags          []string
	CreatedAt     time.Time
	Level         int
	SemanticScore float64
	Keywords      []string
}

// VectorRecord is one embedded chunk as persisted in a vector backend.
// Records are never shared across owners and are deleted en masse when the
// owning document is deleted.
type VectorRecord struct {
	Id         string // DocumentId + "_" + ChunkId
	OwnerId    string
	DocumentId string
	ChunkId    string
	Content    string
	Embedding  []float32
	Metadata   VectorMetadata
}

// RecordId builds the canonical vector record identifier for a chunk.
func RecordId(documentId, chunkId string) string {
	return documentId + "_" + chunkId
}

// SearchResult is a single vector search hit with a normalized score
// (higher is more similar, range approximately [0,1]; hybrid scores may
// exceed 1 when keyword and semantic signals combine).
type SearchResult struct {
	Id         string
	DocumentId string
	ChunkId    string
	Content    string
	Score      float64
	Metadata   VectorMetadata
}
