package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/storage"
)

func newTestRepository(t *testing.T) *DocumentRepository {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return NewDocumentRepository(backend)
}

func testDocument(ownerId, title string) *core.Document {
	return &core.Document{
		OwnerId:      ownerId,
		Title:        title,
		DocumentType: "text",
		Content:      "The quick brown fox jumps over the lazy dog.",
		Tags:         []string{"test"},
	}
}

func TestCreateDocument(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateDocument(ctx, testDocument("alice", "first"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.Id, "an ID is generated when none is supplied")
	assert.Equal(t, core.StatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
}

func TestCreateDocument_Validation(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.CreateDocument(context.Background(), &core.Document{Title: "no owner", Content: "text"})
	assert.Error(t, err)
}

func TestCreateDocument_Duplicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	document := testDocument("alice", "doc")
	document.Id = "fixed-id"
	_, err := repo.CreateDocument(ctx, document)
	require.NoError(t, err)

	duplicate := testDocument("alice", "doc again")
	duplicate.Id = "fixed-id"
	_, err = repo.CreateDocument(ctx, duplicate)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestGetDocument_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	original := testDocument("alice", "round trip")
	original.Chunks = []core.Chunk{{
		Id:            "chunk_1",
		Content:       "The quick brown fox",
		Type:          core.ChunkTypeParagraph,
		Embedding:     []float32{0.1, 0.2, 0.3},
		SemanticScore: 0.75,
		EndIndex:      19,
		Keywords:      []string{"quick", "brown"},
	}}
	original.Embeddings = core.DocumentEmbeddings{Text: []float32{0.5, 0.6}}
	original.GraphNodes = []*core.Entity{{
		Id:         "ent_1",
		Name:       "Fox",
		Type:       core.EntityTypeConcept,
		Confidence: 0.8,
		Mentions:   []core.Mention{{ChunkId: "chunk_1", Position: 16, Context: "brown fox", Confidence: 0.8}},
	}}
	original.ProcessingErrors = []string{"embedding provider unavailable"}
	original.LastProcessedAt = time.Now().UTC().Truncate(time.Microsecond)

	created, err := repo.CreateDocument(ctx, original)
	require.NoError(t, err)

	loaded, err := repo.GetDocument(ctx, "alice", created.Id)
	require.NoError(t, err)
	assert.Equal(t, created.Title, loaded.Title)
	assert.Equal(t, created.Content, loaded.Content)
	require.Len(t, loaded.Chunks, 1)
	assert.Equal(t, original.Chunks[0].Embedding, loaded.Chunks[0].Embedding)
	assert.Equal(t, original.Chunks[0].Keywords, loaded.Chunks[0].Keywords)
	require.Len(t, loaded.GraphNodes, 1)
	assert.Equal(t, "Fox", loaded.GraphNodes[0].Name)
	require.Len(t, loaded.GraphNodes[0].Mentions, 1)
	assert.Equal(t, original.Embeddings.Text, loaded.Embeddings.Text)
	assert.Equal(t, original.ProcessingErrors, loaded.ProcessingErrors)
	assert.Equal(t, original.LastProcessedAt, loaded.LastProcessedAt)
}

func TestGetDocument_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetDocument(context.Background(), "alice", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetDocument_ScopedToOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateDocument(ctx, testDocument("alice", "private"))
	require.NoError(t, err)

	_, err = repo.GetDocument(ctx, "bob", created.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound, "documents are keyed by owner")
}

func TestUpdateDocument(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateDocument(ctx, testDocument("alice", "before"))
	require.NoError(t, err)
	createdAt := created.CreatedAt

	created.Status = core.StatusProcessing
	created.Title = "after"
	updated, err := repo.UpdateDocument(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, createdAt, updated.CreatedAt, "CreatedAt is preserved across updates")
	assert.True(t, updated.UpdatedAt.After(createdAt) || updated.UpdatedAt.Equal(createdAt))

	loaded, err := repo.GetDocument(ctx, "alice", created.Id)
	require.NoError(t, err)
	assert.Equal(t, "after", loaded.Title)
	assert.Equal(t, core.StatusProcessing, loaded.Status)
}

func TestUpdateDocument_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	missing := testDocument("alice", "ghost")
	missing.Id = "never-created"
	_, err := repo.UpdateDocument(context.Background(), missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteDocument(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateDocument(ctx, testDocument("alice", "doomed"))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteDocument(ctx, "alice", created.Id))
	_, err = repo.GetDocument(ctx, "alice", created.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteDocument(ctx, "alice", created.Id), storage.ErrNotFound)
}

func TestListDocuments(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		_, err := repo.CreateDocument(ctx, testDocument("alice", title))
		require.NoError(t, err)
	}
	_, err := repo.CreateDocument(ctx, testDocument("bob", "other owner"))
	require.NoError(t, err)

	documents, err := repo.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, documents, 3)

	empty, err := repo.ListDocuments(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListDocumentsByStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	pending, err := repo.CreateDocument(ctx, testDocument("alice", "pending"))
	require.NoError(t, err)

	done, err := repo.CreateDocument(ctx, testDocument("alice", "done"))
	require.NoError(t, err)
	done.Status = core.StatusCompleted
	_, err = repo.UpdateDocument(ctx, done)
	require.NoError(t, err)

	completed, err := repo.ListDocumentsByStatus(ctx, "alice", core.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.Id, completed[0].Id)

	pendingDocs, err := repo.ListDocumentsByStatus(ctx, "alice", core.StatusPending)
	require.NoError(t, err)
	require.Len(t, pendingDocs, 1)
	assert.Equal(t, pending.Id, pendingDocs[0].Id)
}
