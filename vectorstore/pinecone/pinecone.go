// Package pinecone implements vectorstore.Backend against a managed
// Pinecone serverless index over its REST API. Pinecone reports native
// cosine similarity, so scores pass through unchanged.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/vectorstore"
)

// Config holds connection settings for a Pinecone index.
type Config struct {
	// Host is the index endpoint, e.g. https://idx-abc123.svc.aped-4627-b74a.pinecone.io.
	Host string

	// APIKey authenticates requests.
	APIKey string

	// Namespace partitions records within the index. Empty uses the default
	// namespace.
	Namespace string

	// Timeout bounds each HTTP call. Default is 15 seconds.
	Timeout time.Duration
}

// Backend is a REST client to a Pinecone serverless index.
type Backend struct {
	host      string
	apiKey    string
	namespace string
	client    *http.Client
}

// NewBackend creates a Pinecone backend from config.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Host == "" {
		return nil, errors.New("pinecone host is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone api key is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Backend{
		host:      cfg.Host,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

var _ vectorstore.Backend = (*Backend)(nil)

type vector struct {
	Id       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// Upsert inserts or replaces vectors by id.
func (b *Backend) Upsert(ctx context.Context, records []core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	vectors := make([]vector, len(records))
	for i, record := range records {
		vectors[i] = vector{
			Id:       record.Id,
			Values:   record.Embedding,
			Metadata: recordMetadata(record),
		}
	}
	body := map[string]any{"vectors": vectors}
	if b.namespace != "" {
		body["namespace"] = b.namespace
	}
	return b.postJSON(ctx, "/vectors/upsert", body, nil)
}

// Query returns the nearest vectors. Pinecone applies the owner and
// metadata constraints server-side through its filter expression.
func (b *Backend) Query(ctx context.Context, vec []float32, opts vectorstore.QueryOptions) ([]core.SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	filter := map[string]any{}
	if opts.OwnerId != "" {
		filter["ownerId"] = map[string]any{"$eq": opts.OwnerId}
	}
	for key, value := range opts.Filter {
		filter[key] = map[string]any{"$eq": value}
	}

	body := map[string]any{
		"vector":          vec,
		"topK":            topK,
		"includeMetadata": true,
	}
	if b.namespace != "" {
		body["namespace"] = b.namespace
	}
	if len(filter) > 0 {
		body["filter"] = filter
	}

	var resp struct {
		Matches []struct {
			Id       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := b.postJSON(ctx, "/query", body, &resp); err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		// Cosine similarity, already higher-is-better.
		if opts.MinScore > 0 && match.Score < opts.MinScore {
			continue
		}
		results = append(results, resultFromMetadata(match.Id, match.Score, match.Metadata))
	}
	return results, nil
}

// DeleteByDocument removes every vector whose documentId metadata matches.
func (b *Backend) DeleteByDocument(ctx context.Context, documentId string) error {
	body := map[string]any{
		"filter": map[string]any{
			"documentId": map[string]any{"$eq": documentId},
		},
	}
	if b.namespace != "" {
		body["namespace"] = b.namespace
	}
	return b.postJSON(ctx, "/vectors/delete", body, nil)
}

// Close is a no-op; the backend holds no persistent connections.
func (b *Backend) Close() error {
	return nil
}

func recordMetadata(record core.VectorRecord) map[string]any {
	metadata := map[string]any{
		"ownerId":       record.OwnerId,
		"documentId":    record.DocumentId,
		"chunkId":       record.ChunkId,
		"content":       record.Content,
		"documentType":  record.Metadata.DocumentType,
		"chunkType":     record.Metadata.ChunkType,
		"title":         record.Metadata.Title,
		"level":         record.Metadata.Level,
		"semanticScore": record.Metadata.SemanticScore,
	}
	if len(record.Metadata.Tags) > 0 {
		metadata["tags"] = record.Metadata.Tags
	}
	if len(record.Metadata.Keywords) > 0 {
		metadata["keywords"] = record.Metadata.Keywords
	}
	if !record.Metadata.CreatedAt.IsZero() {
		metadata["createdAt"] = record.Metadata.CreatedAt.Format(time.RFC3339)
	}
	return metadata
}

func resultFromMetadata(id string, score float64, metadata map[string]any) core.SearchResult {
	result := core.SearchResult{Id: id, Score: score}
	if v, ok := metadata["documentId"].(string); ok {
		result.DocumentId = v
	}
	if v, ok := metadata["chunkId"].(string); ok {
		result.ChunkId = v
	}
	if v, ok := metadata["content"].(string); ok {
		result.Content = v
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
	if v, ok := metadata["tags"].([]any); ok {
		result.Metadata.Tags = toStrings(v)
	}
	if v, ok := metadata["keywords"].([]any); ok {
		result.Metadata.Keywords = toStrings(v)
	}
	if v, ok := metadata["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			result.Metadata.CreatedAt = t
		}
	}
	return result
}

func toStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (b *Backend) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pinecone POST %s failed: %s: %s", path, resp.Status, detail)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
