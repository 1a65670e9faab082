package vectorstore

import (
	"context"

	"github.com/lexigraph/lexigraph/core"
)

// QueryOptions restricts a nearest-neighbor query.
type QueryOptions struct {
	// TopK is the maximum number of results to return.
	TopK int

	// MinScore drops results scoring below the threshold. Zero keeps all.
	MinScore float64

	// OwnerId restricts results to records owned by this owner.
	OwnerId string

	// Filter holds additional metadata equality constraints.
	Filter map[string]string
}

// Backend is a vector index that persists records and answers
// nearest-neighbor queries. Implementations must normalize scores to
// "higher is more similar, range approximately [0,1]" before returning:
// backends that report distances convert them as 1 - distance.
//
// Implementations must be thread-safe for concurrent use.
type Backend interface {
	// Upsert inserts or replaces records by id.
	Upsert(ctx context.Context, records []core.VectorRecord) error

	// Query returns the records nearest to the vector, ordered by
	// descending similarity.
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]core.SearchResult, error)

	// DeleteByDocument removes every record belonging to the document.
	// Deleting a document with no indexed records is not an error.
	DeleteByDocument(ctx context.Context, documentId string) error

	// Close releases resources held by the backend.
	Close() error
}
