package storage

import (
	"context"

	"github.com/lexigraph/lexigraph/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing document records,
// keyed by (ownerId, documentId).
type DocumentRepository interface {
	Repository

	// CreateDocument adds a document to storage.
	// Generates an ID if the document has none, sets CreatedAt/UpdatedAt,
	// and defaults Status to pending.
	// Returns ErrDuplicateKey if a document with the same key exists.
	CreateDocument(ctx context.Context, document *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by owner and ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, ownerId, documentId string) (*core.Document, error)

	// UpdateDocument updates an existing document.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, document *core.Document) (*core.Document, error)

	// DeleteDocument removes a document by owner and ID.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, ownerId, documentId string) error

	// ListDocuments retrieves all documents for an owner.
	// Order is unspecified.
	ListDocuments(ctx context.Context, ownerId string) ([]*core.Document, error)

	// ListDocumentsByStatus retrieves an owner's documents in the given
	// processing state.
	ListDocumentsByStatus(ctx context.Context, ownerId string, status core.ProcessingStatus) ([]*core.Document, error)
}
