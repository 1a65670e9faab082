// Package chroma implements vectorstore.Backend against a self-hosted
// Chroma server over its REST API. Chroma reports distances, converted to
// similarity as 1 - distance before results are returned.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/vectorstore"
)

// Config holds connection settings for a Chroma server.
type Config struct {
	// URL is the server base URL, e.g. http://localhost:8000.
	URL string

	// Collection is the collection name. Created on first use if missing.
	Collection string

	// Timeout bounds each HTTP call. Default is 15 seconds.
	Timeout time.Duration
}

// Backend is a REST client to a Chroma collection.
type Backend struct {
	url        string
	collection string
	client     *http.Client

	mu           sync.Mutex
	collectionId string
}

// NewBackend creates a Chroma backend from config.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, errors.New("chroma url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("chroma collection name is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Backend{
		url:        strings.TrimRight(cfg.URL, "/"),
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

var _ vectorstore.Backend = (*Backend)(nil)

// ensureCollection resolves the collection UUID, creating the collection if
// it does not exist yet. The id is cached after the first call.
func (b *Backend) ensureCollection(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.collectionId != "" {
		return b.collectionId, nil
	}

	body := map[string]any{
		"name":          b.collection,
		"get_or_create": true,
	}
	var resp struct {
		Id string `json:"id"`
	}
	if err := b.postJSON(ctx, "/api/v1/collections", body, &resp); err != nil {
		return "", fmt.Errorf("creating collection %s: %w", b.collection, err)
	}
	b.collectionId = resp.Id
	return b.collectionId, nil
}

// Upsert inserts or replaces records by id.
func (b *Backend) Upsert(ctx context.Context, records []core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	collectionId, err := b.ensureCollection(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	documents := make([]string, len(records))
	metadatas := make([]map[string]any, len(records))
	for i, record := range records {
		ids[i] = record.Id
		embeddings[i] = record.Embedding
		documents[i] = record.Content
		metadatas[i] = recordMetadata(record)
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	return b.postJSON(ctx, "/api/v1/collections/"+collectionId+"/upsert", body, nil)
}

// Query returns the nearest records. Owner and metadata constraints are
// applied server-side through the where clause.
func (b *Backend) Query(ctx context.Context, vec []float32, opts vectorstore.QueryOptions) ([]core.SearchResult, error) {
	collectionId, err := b.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vec},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if where := whereClause(opts); where != nil {
		body["where"] = where
	}

	var resp struct {
		Ids       [][]string         `json:"ids"`
		Distances [][]float64        `json:"distances"`
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
	}
	if err := b.postJSON(ctx, "/api/v1/collections/"+collectionId+"/query", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Ids) == 0 {
		return []core.SearchResult{}, nil
	}

	results := make([]core.SearchResult, 0, len(resp.Ids[0]))
	for i, id := range resp.Ids[0] {
		// Distance to similarity; clamp negatives from far matches.
		score := 1.0
		if i < len(resp.Distances[0]) {
			score = 1.0 - resp.Distances[0][i]
		}
		if score < 0 {
			score = 0
		}
		if opts.MinScore > 0 && score < opts.MinScore {
			continue
		}

		result := core.SearchResult{Id: id, Score: score}
		if i < len(resp.Documents[0]) {
			result.Content = resp.Documents[0][i]
		}
		if i < len(resp.Metadatas[0]) {
			fillFromMetadata(&result, resp.Metadatas[0][i])
		}
		results = append(results, result)
	}
	return results, nil
}

// DeleteByDocument removes every record whose documentId metadata matches.
func (b *Backend) DeleteByDocument(ctx context.Context, documentId string) error {
	collectionId, err := b.ensureCollection(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{
		"where": map[string]any{"documentId": documentId},
	}
	return b.postJSON(ctx, "/api/v1/collections/"+collectionId+"/delete", body, nil)
}

// Close is a no-op; the backend holds no persistent connections.
func (b *Backend) Close() error {
	return nil
}

// recordMetadata flattens a record for Chroma, which only accepts scalar
// metadata values. Slices are joined with commas.
func recordMetadata(record core.VectorRecord) map[string]any {
	metadata := map[string]any{
		"ownerId":       record.OwnerId,
		"documentId":    record.DocumentId,
		"chunkId":       record.ChunkId,
		"documentType":  record.Metadata.DocumentType,
		"chunkType":     record.Metadata.ChunkType,
		"title":         record.Metadata.Title,
		"level":         record.Metadata.Level,
		"semanticScore": record.Metadata.SemanticScore,
	}
	if len(record.Metadata.Tags) > 0 {
		metadata["tags"] = strings.Join(record.Metadata.Tags, ",")
	}
	if len(record.Metadata.Keywords) > 0 {
		metadata["keywords"] = strings.Join(record.Metadata.Keywords, ",")
	}
	if !record.Metadata.CreatedAt.IsZero() {
		metadata["createdAt"] = record.Metadata.CreatedAt.Format(time.RFC3339)
	}
	return metadata
}

func fillFromMetadata(result *core.SearchResult, metadata map[string]any) {
	if v, ok := metadata["documentId"].(string); ok {
		result.DocumentId = v
	}
	if v, ok := metadata["chunkId"].(string); ok {
		result.ChunkId = v
	}
	if v, ok := metadata["documentType"].(string); ok {
		result.Metadata.DocumentType = v
	}
	if v, ok := metadata["chunkType"].(string); ok {
		result.Metadata.ChunkType = v
	}
	if v, ok := metadata["title"].(string); ok {
		result.Metadata.Title = v
	}
	if v, ok := metadata["level"].(float64); ok {
		result.Metadata.Level = int(v)
	}
	if v, ok := metadata["semanticScore"].(float64); ok {
		result.Metadata.SemanticScore = v
	}
	if v, ok := metadata["tags"].(string); ok && v != "" {
		result.Metadata.Tags = strings.Split(v, ",")
	}
	if v, ok := metadata["keywords"].(string); ok && v != "" {
		result.Metadata.Keywords = strings.Split(v, ",")
	}
	if v, ok := metadata["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			result.Metadata.CreatedAt = t
		}
	}
}

// whereClause builds a Chroma where filter from query options. Multiple
// constraints are combined with $and.
func whereClause(opts vectorstore.QueryOptions) map[string]any {
	clauses := make([]map[string]any, 0, len(opts.Filter)+1)
	if opts.OwnerId != "" {
		clauses = append(clauses, map[string]any{"ownerId": opts.OwnerId})
	}
	for key, value := range opts.Filter {
		clauses = append(clauses, map[string]any{key: value})
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"$and": clauses}
	}
}

func (b *Backend) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma POST %s failed: %s: %s", path, resp.Status, detail)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
