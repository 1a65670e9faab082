package reprocess_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/ai/mock"
	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/reprocess"
	badgerstore "github.com/lexigraph/lexigraph/storage/badger"
	"github.com/lexigraph/lexigraph/vectorstore"
	"github.com/lexigraph/lexigraph/vectorstore/memory"
)

type fixture struct {
	repo     *badgerstore.DocumentRepository
	backend  *memory.Backend
	embedder *mock.MockEmbedder
	output   *bytes.Buffer
	runner   *reprocess.Reprocessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend, err := badgerstore.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	repo := badgerstore.NewDocumentRepository(backend)

	vecBackend := memory.NewBackend()
	embedder := mock.NewMockEmbedder()
	store, err := vectorstore.NewStore(vecBackend, embedder)
	require.NoError(t, err)

	output := &bytes.Buffer{}
	config := &reprocess.Config{ReportInterval: 1, MaxRetries: 2, RetryDelay: time.Millisecond}
	runner := reprocess.NewReprocessor(repo, embedder, store, config, output)

	return &fixture{repo: repo, backend: vecBackend, embedder: embedder, output: output, runner: runner}
}

func (f *fixture) createCompleted(t *testing.T, title string) *core.Document {
	t.Helper()
	document, err := f.repo.CreateDocument(context.Background(), &core.Document{
		OwnerId: "alice",
		Title:   title,
		Content: "original content of " + title,
		Status:  core.StatusCompleted,
		Chunks: []core.Chunk{
			{Id: "c1", Content: "first chunk of " + title, Type: core.ChunkTypeParagraph, Embedding: []float32{0.1, 0.2}},
			{Id: "c2", Content: "second chunk of " + title, Type: core.ChunkTypeParagraph, Embedding: []float32{0.3, 0.4}},
		},
	})
	require.NoError(t, err)
	return document
}

func TestRun_NoCompletedDocuments(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.runner.Run(context.Background(), "alice"))
	assert.Contains(t, f.output.String(), "No completed documents")
}

func TestRun_ReembedsChunksAndDocument(t *testing.T) {
	f := newFixture(t)
	document := f.createCompleted(t, "report")

	require.NoError(t, f.runner.Run(context.Background(), "alice"))

	updated, err := f.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)

	for _, chunk := range updated.Chunks {
		assert.Len(t, chunk.Embedding, 384, "chunk carries the new model's dimensionality")
	}
	assert.Len(t, updated.Embeddings.Text, 384)
	assert.Equal(t, 2, f.backend.Len(), "both chunk vectors rewritten")
	assert.Contains(t, f.output.String(), "Reprocessing complete")
}

func TestRun_SkipsFailingDocument(t *testing.T) {
	f := newFixture(t)
	document := f.createCompleted(t, "report")
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model not loaded")
	}

	require.NoError(t, f.runner.Run(context.Background(), "alice"))

	unchanged, err := f.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, unchanged.Chunks[0].Embedding,
		"failed document keeps its previous embeddings")
	assert.Contains(t, f.output.String(), "skipping "+document.Id)
	assert.Contains(t, f.output.String(), "1 skipped")
}

func TestRun_SkipsChunklessDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.CreateDocument(context.Background(), &core.Document{
		OwnerId: "alice",
		Title:   "empty",
		Content: "content without chunks",
		Status:  core.StatusCompleted,
	})
	require.NoError(t, err)

	require.NoError(t, f.runner.Run(context.Background(), "alice"))
	assert.Contains(t, f.output.String(), "no chunks")
}

func TestRun_HonorsCancellation(t *testing.T) {
	f := newFixture(t)
	f.createCompleted(t, "report")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.runner.Run(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}
