// Copyright 2025 The Lexigraph Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/core"
)

const defaultBatchSize = 100

// DocumentMetadata carries document-level fields copied onto every
// record stored for that document.
type DocumentMetadata struct {
	DocumentType string
	Title        string
	Tags         []string
	CreatedAt    time.Time
}

// SearchOptions configures a semantic search.
type SearchOptions struct {
	TopK     int
	MinScore float64
	OwnerId  string
	Filter   map[string]string
}

// HybridSearchOptions configures a hybrid search. Weights are relative:
// a result matching both signals scores SemanticWeight*similarity +
// KeywordWeight.
type HybridSearchOptions struct {
	TopK           int
	KeywordWeight  float64
	SemanticWeight float64
	OwnerId        string
}

// DefaultHybridOptions returns balanced hybrid search settings.
func DefaultHybridOptions() HybridSearchOptions {
	return HybridSearchOptions{
		TopK:           10,
		KeywordWeight:  0.3,
		SemanticWeight: 0.7,
	}
}

// Store persists embedded chunks in a vector backend and answers semantic
// and hybrid queries against it. The backend is interchangeable: a managed
// serverless index in production-like configuration, a self-hosted index
// otherwise, or an in-process index for tests.
type Store struct {
	backend   Backend
	embedder  ai.Embedder
	batchSize int
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithBatchSize sets how many records are upserted per backend call.
// Default is 100, the recommended batch limit for most hosted indexes.
func WithBatchSize(size int) Option {
	return func(s *Store) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		s.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a store over the given backend. Queries embed their text
// through the given embedder, which should be the same gateway used at
// ingestion time so query and record vectors share a space.
func NewStore(backend Backend, embedder ai.Embedder, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Store{
		backend:   backend,
		embedder:  embedder,
		batchSize: defaultBatchSize,
		logger:    slog.Default().With("component", "vectorstore"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Store converts chunks into vector records and upserts them in batches.
// Chunks without an embedding are skipped; they remain reachable through
// keyword search over the document record.
func (s *Store) Store(ctx context.Context, ownerId, documentId string, chunks []core.Chunk, meta DocumentMetadata) error {
	records := make([]core.VectorRecord, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			s.logger.Debug("skipping chunk without embedding",
				"documentId", documentId, "chunkId", chunk.Id)
			continue
		}
		records = append(records, core.VectorRecord{
			Id:         core.RecordId(documentId, chunk.Id),
			OwnerId:    ownerId,
			DocumentId: documentId,
			ChunkId:    chunk.Id,
			Content:    chunk.Content,
			Embedding:  NormalizeVector(chunk.Embedding),
			Metadata: core.VectorMetadata{
				DocumentType:  meta.DocumentType,
				ChunkType:     string(chunk.Type),
				Title:         meta.Title,
				Tags:          meta.Tags,
				CreatedAt:     meta.CreatedAt,
				Level:         chunk.Level,
				SemanticScore: chunk.SemanticScore,
				Keywords:      chunk.Keywords,
			},
		})
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.backend.Upsert(ctx, records[start:end]); err != nil {
			return fmt.Errorf("upserting records %d-%d for document %s: %w", start, end-1, documentId, err)
		}
	}

	s.logger.Info("stored vector records",
		"documentId", documentId, "records", len(records), "chunks", len(chunks))
	return nil
}

// Search embeds the query and returns the nearest records restricted to the
// owner, ordered by descending similarity.
func (s *Store) Search(ctx context.Context, queryText string, opts SearchOptions) ([]core.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, ErrEmptyQuery
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	embedding, err := s.embedder.EmbedText(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return s.SearchByVector(ctx, embedding, opts)
}

// SearchByVector runs a nearest-neighbor query with a precomputed embedding,
// bypassing the query embedder. Useful for document-to-document similarity
// where the source vector already exists.
func (s *Store) SearchByVector(ctx context.Context, vector []float32, opts SearchOptions) ([]core.SearchResult, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyQuery
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	results, err := s.backend.Query(ctx, NormalizeVector(vector), QueryOptions{
		TopK:     opts.TopK,
		MinScore: opts.MinScore,
		OwnerId:  opts.OwnerId,
		Filter:   opts.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("querying backend: %w", err)
	}
	return results, nil
}

// HybridSearch combines semantic similarity with literal keyword matching.
// It runs Search with an inflated TopK, marks results whose content contains
// the raw query case-insensitively, and scores each result as
// similarity*SemanticWeight plus KeywordWeight when the keyword signal also
// fires. Results come back in non-increasing combined-score order.
func (s *Store) HybridSearch(ctx context.Context, queryText string, opts HybridSearchOptions) ([]core.SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.SemanticWeight == 0 && opts.KeywordWeight == 0 {
		defaults := DefaultHybridOptions()
		opts.SemanticWeight = defaults.SemanticWeight
		opts.KeywordWeight = defaults.KeywordWeight
	}

	// Over-fetch so keyword matches outside the strict topK can surface.
	semantic, err := s.Search(ctx, queryText, SearchOptions{
		TopK:    opts.TopK * 2,
		OwnerId: opts.OwnerId,
	})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(queryText)
	combined := make([]core.SearchResult, 0, len(semantic))
	for _, result := range semantic {
		score := result.Score * opts.SemanticWeight
		if strings.Contains(strings.ToLower(result.Content), needle) {
			score += opts.KeywordWeight
		}
		result.Score = score
		combined = append(combined, result)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Score > combined[j].Score
	})
	if len(combined) > opts.TopK {
		combined = combined[:opts.TopK]
	}
	return combined, nil
}

// DeleteDocument removes every record indexed for the document. Deleting a
// document with no records is not an error.
func (s *Store) DeleteDocument(ctx context.Context, documentId string) error {
	if err := s.backend.DeleteByDocument(ctx, documentId); err != nil {
		return fmt.Errorf("deleting records for document %s: %w", documentId, err)
	}
	s.logger.Info("deleted vector records", "documentId", documentId)
	return nil
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
