package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/ai/mock"
	"github.com/lexigraph/lexigraph/chunking"
	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/extraction"
	"github.com/lexigraph/lexigraph/pipeline"
	"github.com/lexigraph/lexigraph/storage"
	badgerstore "github.com/lexigraph/lexigraph/storage/badger"
	"github.com/lexigraph/lexigraph/vectorstore"
	"github.com/lexigraph/lexigraph/vectorstore/memory"
)

const threeParagraphs = `The annual engineering review covered the platform migration in depth. Teams presented their progress on the new ingestion service and discussed the remaining blockers. The consensus was that the rollout should continue through the next quarter.

Acme Corp contributed several improvements to the shared tooling during this cycle. Jane Doe presented the revised deployment workflow and walked through the incident retrospectives. The discussion surfaced a number of follow-up items for the infrastructure group.

The final session focused on search quality. Relevance metrics improved noticeably after the reranking changes, and the team agreed to expand the evaluation corpus before the next review.`

// recordingNotifier captures lifecycle events for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	processed []core.ProcessingStatus
	errors    []error
}

func (n *recordingNotifier) OnDocumentProcessed(documentId, ownerId string, status core.ProcessingStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.processed = append(n.processed, status)
}

func (n *recordingNotifier) OnDocumentProcessingError(documentId, ownerId string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err)
}

func (n *recordingNotifier) statuses() []core.ProcessingStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.ProcessingStatus(nil), n.processed...)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

type testHarness struct {
	repo      storage.DocumentRepository
	backend   *memory.Backend
	provider  *mock.MockProvider
	notifier  *recordingNotifier
	orchestrator *pipeline.Orchestrator
}

func newHarness(t *testing.T, opts ...pipeline.Option) *testHarness {
	t.Helper()

	backend, err := badgerstore.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	repo := badgerstore.NewDocumentRepository(backend)

	vecBackend := memory.NewBackend()
	provider := mock.NewMockProvider()

	store, err := vectorstore.NewStore(vecBackend, provider.GetMockEmbedder())
	require.NoError(t, err)

	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	t.Cleanup(extractor.Release)

	notifier := &recordingNotifier{}
	base := []pipeline.Option{
		pipeline.WithNotifier(notifier),
		pipeline.WithEmbedPacing(5, 0, 0),
		pipeline.WithChunkingOptions(chunking.Options{
			Strategy:     chunking.StrategyHybrid,
			MaxChunkSize: 1000,
			ChunkOverlap: 100,
			MinChunkSize: 100,
		}),
	}
	orchestrator, err := pipeline.NewOrchestrator(repo, provider.GetMockEmbedder(), store, extractor,
		append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(orchestrator.Release)

	return &testHarness{
		repo:      repo,
		backend:   vecBackend,
		provider:  provider,
		notifier:  notifier,
		orchestrator: orchestrator,
	}
}

func (h *testHarness) createDocument(t *testing.T, content string) *core.Document {
	t.Helper()
	document, err := h.repo.CreateDocument(context.Background(), &core.Document{
		OwnerId:      "alice",
		Title:        "quarterly review",
		DocumentType: "text",
		Content:      content,
	})
	require.NoError(t, err)
	return document
}

func TestProcess_ThreeParagraphDocument(t *testing.T) {
	h := newHarness(t)
	document := h.createDocument(t, threeParagraphs)

	require.NoError(t, h.orchestrator.Process(context.Background(), "alice", document.Id))

	processed, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, processed.Status)
	assert.Empty(t, processed.ProcessingErrors)
	assert.False(t, processed.LastProcessedAt.IsZero())

	require.NotEmpty(t, processed.Chunks)
	for _, chunk := range processed.Chunks {
		assert.Equal(t, core.ChunkTypeParagraph, chunk.Type)
		assert.Contains(t, []int{0, 1}, chunk.Level)
		assert.NotEmpty(t, chunk.Embedding, "every chunk is embedded on the happy path")
	}

	assert.NotEmpty(t, processed.Embeddings.Text, "document-level embedding is populated")
	assert.NotEmpty(t, processed.GraphNodes, "graph extraction attaches entities")
	assert.Greater(t, h.backend.Len(), 0, "chunk vectors are stored")

	assert.Equal(t, []core.ProcessingStatus{core.StatusCompleted}, h.notifier.statuses())
	assert.Equal(t, 0, h.notifier.errorCount())
}

func TestProcess_ShortDocumentCompletes(t *testing.T) {
	h := newHarness(t)
	document := h.createDocument(t, "Hello world. This is a short note.")

	require.NoError(t, h.orchestrator.Process(context.Background(), "alice", document.Id))

	processed, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, processed.Status)
	require.Len(t, processed.Chunks, 1)
	assert.Empty(t, processed.ProcessingErrors)
}

func TestProcess_StaleProcessingStatusReprocessed(t *testing.T) {
	h := newHarness(t)
	document := h.createDocument(t, threeParagraphs)

	// A crashed run leaves the record marked processing; a fresh run must
	// still be able to take over.
	document.Status = core.StatusProcessing
	_, err := h.repo.UpdateDocument(context.Background(), document)
	require.NoError(t, err)

	require.NoError(t, h.orchestrator.Process(context.Background(), "alice", document.Id))

	processed, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, processed.Status)
}

func TestProcess_EmbeddingFailureStillCompletes(t *testing.T) {
	h := newHarness(t)
	h.provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}
	document := h.createDocument(t, threeParagraphs)

	require.NoError(t, h.orchestrator.Process(context.Background(), "alice", document.Id))

	processed, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, processed.Status,
		"embedding unavailability degrades the document, it does not fail it")
	assert.NotEmpty(t, processed.ProcessingErrors)
	assert.Empty(t, processed.Embeddings.Text)
	assert.NotEmpty(t, processed.Chunks, "chunks survive for keyword search")
	assert.Equal(t, 0, h.backend.Len(), "nothing is stored without embeddings")

	assert.Equal(t, []core.ProcessingStatus{core.StatusCompleted}, h.notifier.statuses())
}

func TestProcess_UnreadableContentFails(t *testing.T) {
	h := newHarness(t)
	document, err := h.repo.CreateDocument(context.Background(), &core.Document{
		OwnerId:    "alice",
		Title:      "missing source",
		SourcePath: "/nonexistent/path/to/file.txt",
	})
	require.NoError(t, err)

	err = h.orchestrator.Process(context.Background(), "alice", document.Id)
	assert.ErrorIs(t, err, pipeline.ErrContentUnavailable)

	failed, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, failed.Status)
	assert.NotEmpty(t, failed.ProcessingErrors)

	assert.Equal(t, []core.ProcessingStatus{core.StatusFailed}, h.notifier.statuses())
	assert.Equal(t, 1, h.notifier.errorCount())
}

func TestProcess_ResolvesSourcePath(t *testing.T) {
	h := newHarness(t)

	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(threeParagraphs), 0644))

	document, err := h.repo.CreateDocument(context.Background(), &core.Document{
		OwnerId:    "alice",
		Title:      "from file",
		SourcePath: path,
	})
	require.NoError(t, err)

	require.NoError(t, h.orchestrator.Process(context.Background(), "alice", document.Id))

	processed, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, processed.Status)
	assert.NotEmpty(t, processed.Chunks)
}

func TestProcess_NonReentrant(t *testing.T) {
	h := newHarness(t)
	document := h.createDocument(t, threeParagraphs)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return []float32{0.1, 0.2}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- h.orchestrator.Process(context.Background(), "alice", document.Id)
	}()

	<-entered
	err := h.orchestrator.Process(context.Background(), "alice", document.Id)
	assert.ErrorIs(t, err, pipeline.ErrAlreadyProcessing)

	close(release)
	require.NoError(t, <-done)
}

func TestProcess_ConcurrentDifferentDocuments(t *testing.T) {
	h := newHarness(t)
	first := h.createDocument(t, threeParagraphs)

	second, err := h.repo.CreateDocument(context.Background(), &core.Document{
		OwnerId:      "alice",
		Title:        "another document",
		DocumentType: "text",
		Content:      threeParagraphs,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.Id, second.Id} {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.orchestrator.Process(context.Background(), "alice", id)
		}()
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestSubmit_FireAndForget(t *testing.T) {
	h := newHarness(t)
	document := h.createDocument(t, threeParagraphs)

	require.NoError(t, h.orchestrator.Submit("alice", document.Id))

	// Poll until the detached run completes.
	deadline := time.After(5 * time.Second)
	for {
		processed, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
		require.NoError(t, err)
		if processed.Status == core.StatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("document never completed, status %s", processed.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestDelete_RemovesDocumentAndVectors(t *testing.T) {
	h := newHarness(t)
	document := h.createDocument(t, threeParagraphs)
	require.NoError(t, h.orchestrator.Process(context.Background(), "alice", document.Id))
	require.Greater(t, h.backend.Len(), 0)

	require.NoError(t, h.orchestrator.Delete(context.Background(), "alice", document.Id))

	assert.Equal(t, 0, h.backend.Len())
	_, err := h.repo.GetDocument(context.Background(), "alice", document.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		err := pipeline.RetryWithBackoff(ctx, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, 3, time.Millisecond)
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		boom := errors.New("boom")
		err := pipeline.RetryWithBackoff(ctx, func() error { return boom }, 2, time.Millisecond)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("rejects zero attempts", func(t *testing.T) {
		err := pipeline.RetryWithBackoff(ctx, func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, pipeline.ErrInvalidMaxAttempts)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		err := pipeline.RetryWithBackoff(cancelled, func() error { return errors.New("x") }, 3, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
