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


package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/storage"
	"github.com/lexigraph/lexigraph/vectorstore"
)

// verbatimBoost is added to a result's score when every filtered query word
// appears in the chunk text.
const verbatimBoost = 0.3

// Searcher answers semantic, hybrid and document-similarity queries over the
// processed corpus of a single owner.
type Searcher struct {
	documents storage.DocumentRepository
	store     *vectorstore.Store
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	documents storage.DocumentRepository,
	store *vectorstore.Store,
	opts ...Option,
) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}

	s := &Searcher{
		documents: documents,
		store:     store,
		logger:    slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SemanticSearch returns the chunks nearest to the query for the given owner,
// ranked by descending similarity. Returns up to topK results.
func (s *Searcher) SemanticSearch(ctx context.Context, ownerId, query string, topK int) ([]core.SearchResult, error) {
	if ownerId == "" {
		return nil, ErrOwnerRequired
	}

	results, err := s.store.Search(ctx, query, vectorstore.SearchOptions{
		TopK:    topK,
		OwnerId: ownerId,
	})
	if err != nil {
		s.logger.Error("semantic search failed", "query", query, "err", err)
		return nil, err
	}
	return results, nil
}

// HybridSearch combines semantic similarity, keyword matching and a verbatim
// boost. Returns up to topK results, ranked by combined relevance score.
func (s *Searcher) HybridSearch(ctx context.Context, ownerId, query string, topK int) ([]core.SearchResult, error) {
	return s.HybridSearchWithMonitor(ctx, ownerId, query, topK, nil)
}

// HybridSearchWithMonitor runs a hybrid search with monitoring. The monitor
// receives callbacks at each stage of the search process.
func (s *Searcher) HybridSearchWithMonitor(ctx context.Context, ownerId, query string, topK int, monitor SearchMonitor) ([]core.SearchResult, error) {
	if ownerId == "" {
		return nil, ErrOwnerRequired
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	opts := vectorstore.DefaultHybridOptions()
	if topK > 0 {
		opts.TopK = topK
	}
	opts.OwnerId = ownerId

	results, err := s.store.HybridSearch(ctx, query, opts)
	if err != nil {
		s.logger.Error("hybrid search failed", "query", query, "err", err)
		return nil, err
	}

	ids := make([]string, 0, len(results))
	for _, result := range results {
		ids = append(ids, result.Id)
	}
	monitor.AfterSemanticSearch(ids)

	// Re-rank with the verbatim signal: a chunk containing every meaningful
	// query word beats a near-miss with slightly higher similarity.
	boosted := false
	for i := range results {
		if containsAllQueryWords(results[i].Content, query) {
			results[i].Score += verbatimBoost
			boosted = true
			monitor.VerbatimHit(results[i].Id)
		}
	}
	if boosted {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}

	monitor.Finish(results)
	return results, nil
}

// FindSimilarDocuments returns documents whose content is close to the given
// document, ranked by the best matching chunk. The source document itself is
// excluded. When the source has no document-level embedding (its embedding
// stage was unavailable) the result is empty rather than an error.
func (s *Searcher) FindSimilarDocuments(ctx context.Context, ownerId, documentId string, limit int) ([]core.SearchResult, error) {
	if ownerId == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = 10
	}

	document, err := s.documents.GetDocument(ctx, ownerId, documentId)
	if err != nil {
		return nil, err
	}
	if len(document.Embeddings.Text) == 0 {
		s.logger.Debug("document has no embedding, similarity unavailable",
			"documentId", documentId)
		return []core.SearchResult{}, nil
	}

	// Over-fetch so the source document's own chunks do not crowd out other
	// documents before aggregation.
	matches, err := s.store.SearchByVector(ctx, document.Embeddings.Text, vectorstore.SearchOptions{
		TopK:    (limit + 1) * 4,
		OwnerId: ownerId,
	})
	if err != nil {
		s.logger.Error("similarity query failed", "documentId", documentId, "err", err)
		return nil, err
	}

	// Keep the best chunk per document.
	best := make(map[string]core.SearchResult)
	order := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.DocumentId == documentId {
			continue
		}
		existing, seen := best[match.DocumentId]
		if !seen {
			order = append(order, match.DocumentId)
			best[match.DocumentId] = match
			continue
		}
		if match.Score > existing.Score {
			best[match.DocumentId] = match
		}
	}

	results := make([]core.SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, best[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
