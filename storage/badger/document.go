package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateDocument adds a document to storage.
func (r *DocumentRepository) CreateDocument(ctx context.Context, document *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(document); err != nil {
		return nil, err
	}
	if document.Id == "" {
		document.Id = uuid.NewString()
	}
	if document.Status == "" {
		document.Status = core.StatusPending
	}
	// Stored timestamps have microsecond resolution.
	document.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	document.UpdatedAt = document.CreatedAt

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(document.OwnerId, document.Id)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, storage.MarshalDocument(document)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return document, nil
}

// GetDocument retrieves a document by owner and ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, ownerId, documentId string) (*core.Document, error) {
	var document *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		document, err = readDocument(tx, makeDocumentKey(ownerId, documentId))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, storage.ErrNotFound
	}
	return document, nil
}

// UpdateDocument updates an existing document.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, document *core.Document) (*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(document.OwnerId, document.Id)
		existing, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return storage.ErrNotFound
		}
		document.CreatedAt = existing.CreatedAt
		document.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		if err := tx.Set(key, storage.MarshalDocument(document)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return document, nil
}

// DeleteDocument removes a document by owner and ID.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, ownerId, documentId string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(ownerId, documentId)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListDocuments retrieves all documents for an owner.
func (r *DocumentRepository) ListDocuments(ctx context.Context, ownerId string) ([]*core.Document, error) {
	var documents []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeOwnerPrefix(ownerId)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var document *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				document, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			documents = append(documents, document)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return documents, nil
}

// ListDocumentsByStatus retrieves an owner's documents in the given state.
func (r *DocumentRepository) ListDocumentsByStatus(ctx context.Context, ownerId string, status core.ProcessingStatus) ([]*core.Document, error) {
	documents, err := r.ListDocuments(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	filtered := documents[:0]
	for _, document := range documents {
		if document.Status == status {
			filtered = append(filtered, document)
		}
	}
	return filtered, nil
}

// readDocument reads and unmarshals a document, returning nil if the key
// does not exist.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var document *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		document, err = storage.UnmarshalDocument(val)
		return err
	})
	return document, err
}
