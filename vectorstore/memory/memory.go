package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/vectorstore"
)

// Backend is an in-process vector index using brute-force cosine
// similarity. It is intended for tests and small local corpora; it keeps
// every record in memory and scans all of them per query.
type Backend struct {
	mu      sync.RWMutex
	records map[string]core.VectorRecord
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{records: make(map[string]core.VectorRecord)}
}

var _ vectorstore.Backend = (*Backend)(nil)

// Upsert inserts or replaces records by id.
func (b *Backend) Upsert(ctx context.Context, records []core.VectorRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, record := range records {
		b.records[record.Id] = record
	}
	return nil
}

// Query scans all records and returns the nearest matches honoring the
// owner and metadata constraints.
func (b *Backend) Query(ctx context.Context, vector []float32, opts vectorstore.QueryOptions) ([]core.SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	results := make([]core.SearchResult, 0, len(b.records))
	for _, record := range b.records {
		if opts.OwnerId != "" && record.OwnerId != opts.OwnerId {
			continue
		}
		if !matchesFilter(record, opts.Filter) {
			continue
		}
		score := vectorstore.CosineSimilarity(vector, record.Embedding)
		if opts.MinScore > 0 && score < opts.MinScore {
			continue
		}
		results = append(results, core.SearchResult{
			Id:         record.Id,
			DocumentId: record.DocumentId,
			ChunkId:    record.ChunkId,
			Content:    record.Content,
			Score:      score,
			Metadata:   record.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByDocument removes every record belonging to the document.
func (b *Backend) DeleteByDocument(ctx context.Context, documentId string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, record := range b.records {
		if record.DocumentId == documentId {
			delete(b.records, id)
		}
	}
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

// Len returns the number of stored records. Exposed for tests.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

func matchesFilter(record core.VectorRecord, filter map[string]string) bool {
	for key, want := range filter {
		var got string
		switch key {
		case "documentId":
			got = record.DocumentId
		case "documentType":
			got = record.Metadata.DocumentType
		case "chunkType":
			got = record.Metadata.ChunkType
		case "title":
			got = record.Metadata.Title
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}
