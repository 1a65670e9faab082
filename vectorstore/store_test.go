package vectorstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/ai/mock"
	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/vectorstore"
	"github.com/lexigraph/lexigraph/vectorstore/memory"
)

// fixedQueryEmbedder always returns the same query vector so test scores
// depend only on the stored records.
func fixedQueryEmbedder(vector []float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}
	return embedder
}

func makeChunk(id, content string, embedding []float32) core.Chunk {
	return core.Chunk{
		Id:        id,
		Content:   content,
		Type:      core.ChunkTypeParagraph,
		Embedding: embedding,
		EndIndex:  len(content),
	}
}

func TestNewStore_Validation(t *testing.T) {
	backend := memory.NewBackend()
	embedder := mock.NewMockEmbedder()

	_, err := vectorstore.NewStore(nil, embedder)
	assert.ErrorIs(t, err, vectorstore.ErrBackendRequired)

	_, err = vectorstore.NewStore(backend, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmbedderRequired)
}

func TestStore_SkipsChunksWithoutEmbedding(t *testing.T) {
	backend := memory.NewBackend()
	store, err := vectorstore.NewStore(backend, mock.NewMockEmbedder())
	require.NoError(t, err)

	chunks := []core.Chunk{
		makeChunk("c1", "embedded chunk", []float32{1, 0}),
		makeChunk("c2", "chunk the embedding provider never reached", nil),
	}
	err = store.Store(context.Background(), "owner-1", "doc-1", chunks, vectorstore.DocumentMetadata{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Len())
}

func TestStore_BatchesLargeUpserts(t *testing.T) {
	backend := memory.NewBackend()
	store, err := vectorstore.NewStore(backend, mock.NewMockEmbedder(),
		vectorstore.WithBatchSize(10))
	require.NoError(t, err)

	chunks := make([]core.Chunk, 25)
	for i := range chunks {
		chunks[i] = makeChunk(fmt.Sprintf("c%d", i), fmt.Sprintf("content %d", i), []float32{1, float32(i)})
	}
	err = store.Store(context.Background(), "owner-1", "doc-1", chunks, vectorstore.DocumentMetadata{})
	require.NoError(t, err)
	assert.Equal(t, 25, backend.Len())
}

func TestSearch_ScopedToOwner(t *testing.T) {
	backend := memory.NewBackend()
	query := []float32{1, 0}
	store, err := vectorstore.NewStore(backend, fixedQueryEmbedder(query))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Store(ctx, "alice", "doc-a",
		[]core.Chunk{makeChunk("c1", "alice owns this", []float32{1, 0})},
		vectorstore.DocumentMetadata{}))
	require.NoError(t, store.Store(ctx, "bob", "doc-b",
		[]core.Chunk{makeChunk("c1", "bob owns this", []float32{1, 0})},
		vectorstore.DocumentMetadata{}))

	results, err := store.Search(ctx, "anything", vectorstore.SearchOptions{OwnerId: "alice", TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].DocumentId)
}

func TestSearch_EmptyQuery(t *testing.T) {
	store, err := vectorstore.NewStore(memory.NewBackend(), mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = store.Search(context.Background(), "   ", vectorstore.SearchOptions{})
	assert.ErrorIs(t, err, vectorstore.ErrEmptyQuery)
}

func TestSearch_OrderedByDescendingScore(t *testing.T) {
	backend := memory.NewBackend()
	query := []float32{1, 0}
	store, err := vectorstore.NewStore(backend, fixedQueryEmbedder(query))
	require.NoError(t, err)

	ctx := context.Background()
	chunks := []core.Chunk{
		makeChunk("far", "distant content", []float32{0, 1}),
		makeChunk("near", "close content", []float32{1, 0.1}),
		makeChunk("exact", "matching content", []float32{1, 0}),
	}
	require.NoError(t, store.Store(ctx, "owner-1", "doc-1", chunks, vectorstore.DocumentMetadata{}))

	results, err := store.Search(ctx, "query", vectorstore.SearchOptions{OwnerId: "owner-1", TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].ChunkId)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestHybridSearch_KeywordBoost(t *testing.T) {
	backend := memory.NewBackend()
	query := []float32{1, 0}
	store, err := vectorstore.NewStore(backend, fixedQueryEmbedder(query))
	require.NoError(t, err)

	ctx := context.Background()
	chunks := []core.Chunk{
		// Semantically closest but no literal match.
		makeChunk("semantic", "vector similarity only", []float32{1, 0}),
		// Semantically further but contains the literal query.
		makeChunk("keyword", "the roadmap covers quarterly planning in detail", []float32{0.8, 0.6}),
	}
	require.NoError(t, store.Store(ctx, "owner-1", "doc-1", chunks, vectorstore.DocumentMetadata{}))

	results, err := store.HybridSearch(ctx, "roadmap", vectorstore.HybridSearchOptions{
		TopK:           10,
		OwnerId:        "owner-1",
		SemanticWeight: 0.5,
		KeywordWeight:  0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "keyword", results[0].ChunkId,
		"literal match plus decent similarity should outrank pure similarity")
}

func TestHybridSearch_NonIncreasingOrder(t *testing.T) {
	backend := memory.NewBackend()
	query := []float32{1, 0, 0}
	store, err := vectorstore.NewStore(backend, fixedQueryEmbedder(query))
	require.NoError(t, err)

	ctx := context.Background()
	chunks := make([]core.Chunk, 0, 8)
	for i := 0; i < 8; i++ {
		content := fmt.Sprintf("document section %d", i)
		if i%3 == 0 {
			content += " mentioning kubernetes explicitly"
		}
		chunks = append(chunks, makeChunk(fmt.Sprintf("c%d", i), content,
			[]float32{1, float32(i) * 0.2, float32(i) * 0.1}))
	}
	require.NoError(t, store.Store(ctx, "owner-1", "doc-1", chunks, vectorstore.DocumentMetadata{}))

	results, err := store.HybridSearch(ctx, "kubernetes", vectorstore.HybridSearchOptions{
		TopK:    5,
		OwnerId: "owner-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 5)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score,
			"hybrid results must be in non-increasing combined-score order")
	}
}

func TestDeleteDocument_RemovesAllRecords(t *testing.T) {
	backend := memory.NewBackend()
	query := []float32{1, 0}
	store, err := vectorstore.NewStore(backend, fixedQueryEmbedder(query))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Store(ctx, "owner-1", "doc-keep",
		[]core.Chunk{makeChunk("c1", "kept", []float32{1, 0})},
		vectorstore.DocumentMetadata{}))
	require.NoError(t, store.Store(ctx, "owner-1", "doc-gone",
		[]core.Chunk{
			makeChunk("c1", "removed", []float32{1, 0}),
			makeChunk("c2", "also removed", []float32{0.9, 0.1}),
		},
		vectorstore.DocumentMetadata{}))
	require.Equal(t, 3, backend.Len())

	require.NoError(t, store.DeleteDocument(ctx, "doc-gone"))
	assert.Equal(t, 1, backend.Len())

	results, err := store.Search(ctx, "query", vectorstore.SearchOptions{OwnerId: "owner-1", TopK: 10})
	require.NoError(t, err)
	for _, result := range results {
		assert.NotEqual(t, "doc-gone", result.DocumentId)
	}
}

func TestDeleteDocument_NoRecordsIsNotAnError(t *testing.T) {
	store, err := vectorstore.NewStore(memory.NewBackend(), mock.NewMockEmbedder())
	require.NoError(t, err)
	assert.NoError(t, store.DeleteDocument(context.Background(), "never-indexed"))
}

func TestNormalizeVector(t *testing.T) {
	normalized := vectorstore.NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, normalized[0], 1e-6)
	assert.InDelta(t, 0.8, normalized[1], 1e-6)

	zero := vectorstore.NormalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)

	assert.Empty(t, vectorstore.NormalizeVector(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, vectorstore.CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 0.0, vectorstore.CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, 0.0, vectorstore.CosineSimilarity([]float32{1}, []float32{1, 2}))
}
