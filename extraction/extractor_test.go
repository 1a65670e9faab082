package extraction_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/ai/mock"
	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/extraction"
)

// acmeJaneEntities makes the entity extractor return exactly Acme Corp and
// Jane Doe for every chunk, so co-occurrence behavior is deterministic.
func acmeJaneEntities(provider *mock.MockProvider) {
	provider.GetMockEntityExtractor().ExtractEntitiesFunc = func(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
		return []ai.ExtractedEntity{
			{Name: "Acme Corp", Type: "organization", Confidence: 0.9},
			{Name: "Jane Doe", Type: "person", Confidence: 0.85},
		}, nil
	}
}

func acmeJaneChunks() []core.Chunk {
	return []core.Chunk{
		{Id: "c1", Content: "Acme Corp announced that Jane Doe will lead the platform team.", EndIndex: 62},
		{Id: "c2", Content: "Under Jane Doe, Acme Corp doubled its engineering headcount.", EndIndex: 60},
	}
}

func TestNewExtractor_RequiresProvider(t *testing.T) {
	_, err := extraction.NewExtractor(nil)
	assert.ErrorIs(t, err, extraction.ErrAIProviderRequired)
}

func TestExtractKnowledgeGraph_NoChunks(t *testing.T) {
	extractor, err := extraction.NewExtractor(mock.NewMockProvider())
	require.NoError(t, err)
	defer extractor.Release()

	_, err = extractor.ExtractKnowledgeGraph(context.Background(), nil, "doc-1", "title")
	assert.ErrorIs(t, err, extraction.ErrNoChunks)
}

func TestExtractKnowledgeGraph_MergesRuleAndModelPasses(t *testing.T) {
	provider := mock.NewMockProvider()
	acmeJaneEntities(provider)
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	graph, err := extractor.ExtractKnowledgeGraph(context.Background(), acmeJaneChunks(), "doc-1", "t")
	require.NoError(t, err)

	// Acme Corp is found by both the rule tagger (Corp suffix) and the model
	// pass; the merged entity carries mentions from both across both chunks.
	var acme *core.Entity
	for _, entity := range graph.Entities {
		if entity.Name == "Acme Corp" {
			acme = entity
		}
	}
	require.NotNil(t, acme)
	assert.Equal(t, 0.9, acme.Confidence, "maximum confidence wins the merge")
	assert.GreaterOrEqual(t, len(acme.Mentions), 2, "mentions from both chunks are kept")

	chunkIds := make(map[string]bool)
	for _, mention := range acme.Mentions {
		chunkIds[mention.ChunkId] = true
	}
	assert.True(t, chunkIds["c1"] && chunkIds["c2"])
}

func TestExtractKnowledgeGraph_InvalidModelEntitiesDropped(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.GetMockEntityExtractor().ExtractEntitiesFunc = func(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
		return []ai.ExtractedEntity{
			{Name: "", Type: "concept", Confidence: 0.9},
			{Name: "Ghost Org", Type: "organization", Confidence: 1.5},
			{Name: "ingestion service", Type: "concept", Confidence: 0.7},
		}, nil
	}
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	chunks := []core.Chunk{{Id: "c1", Content: "the ingestion service processes documents nightly.", EndIndex: 50}}
	graph, err := extractor.ExtractKnowledgeGraph(context.Background(), chunks, "doc-1", "t")
	require.NoError(t, err)

	// The nameless detection and the out-of-range confidence are discarded.
	require.Len(t, graph.Entities, 1)
	assert.Equal(t, "ingestion service", graph.Entities[0].Name)
}

func TestExtractKnowledgeGraph_InferenceAttemptedExactlyOncePerPair(t *testing.T) {
	provider := mock.NewMockProvider()
	acmeJaneEntities(provider)
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	// Both entities appear in both chunks: Jaccard similarity 1.0.
	_, err = extractor.ExtractKnowledgeGraph(context.Background(), acmeJaneChunks(), "doc-1", "t")
	require.NoError(t, err)

	relationships := provider.GetMockRelationshipExtractor()
	assert.Equal(t, 1, relationships.ProbeCount(),
		"co-occurring pair must be probed exactly once, not once per chunk")
	require.Len(t, relationships.ProbedPairs(), 1)
	assert.Contains(t, relationships.ProbedPairs()[0], "Acme Corp")
	assert.Contains(t, relationships.ProbedPairs()[0], "Jane Doe")
}

func TestExtractKnowledgeGraph_DisjointEntitiesNeverProbed(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.GetMockEntityExtractor().ExtractEntitiesFunc = func(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
		if strings.Contains(text, "first") {
			return []ai.ExtractedEntity{{Name: "Alpha", Type: "concept", Confidence: 0.8}}, nil
		}
		return []ai.ExtractedEntity{{Name: "Beta", Type: "concept", Confidence: 0.8}}, nil
	}
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	chunks := []core.Chunk{
		{Id: "c1", Content: "the first chunk mentions nothing shared", EndIndex: 39},
		{Id: "c2", Content: "the second chunk mentions nothing shared", EndIndex: 40},
	}
	_, err = extractor.ExtractKnowledgeGraph(context.Background(), chunks, "doc-1", "t")
	require.NoError(t, err)

	assert.Equal(t, 0, provider.GetMockRelationshipExtractor().ProbeCount(),
		"entities with disjoint chunk sets are never submitted for inference")
}

func TestExtractKnowledgeGraph_AcceptedProbeBecomesRelationship(t *testing.T) {
	provider := mock.NewMockProvider()
	acmeJaneEntities(provider)
	provider.GetMockRelationshipExtractor().ProbeRelationshipFunc = func(ctx context.Context, source, target, probeContext string) (ai.RelationshipProbe, error) {
		return ai.RelationshipProbe{
			HasRelationship:  true,
			RelationshipType: "works_at",
			Confidence:       0.8,
			Evidence:         "Jane Doe will lead the platform team at Acme Corp",
		}, nil
	}
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	graph, err := extractor.ExtractKnowledgeGraph(context.Background(), acmeJaneChunks(), "doc-1", "t")
	require.NoError(t, err)

	require.Len(t, graph.Relationships, 1)
	assert.Equal(t, "works_at", graph.Relationships[0].RelationshipType)
	assert.NotEmpty(t, graph.Relationships[0].Evidence)

	// The edge is mirrored onto the source entity.
	var edged bool
	for _, entity := range graph.Entities {
		if len(entity.Relationships) > 0 {
			edged = true
		}
	}
	assert.True(t, edged)
}

func TestExtractKnowledgeGraph_ThinEvidenceProbeDiscarded(t *testing.T) {
	provider := mock.NewMockProvider()
	acmeJaneEntities(provider)
	provider.GetMockRelationshipExtractor().ProbeRelationshipFunc = func(ctx context.Context, source, target, probeContext string) (ai.RelationshipProbe, error) {
		return ai.RelationshipProbe{HasRelationship: true, RelationshipType: "related_to", Evidence: "yes"}, nil
	}
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	graph, err := extractor.ExtractKnowledgeGraph(context.Background(), acmeJaneChunks(), "doc-1", "t")
	require.NoError(t, err)
	assert.Empty(t, graph.Relationships,
		"a positive probe without substantive evidence text is not accepted")
}

func TestExtractKnowledgeGraph_ChunkFailureDoesNotAbort(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.GetMockEntityExtractor().ExtractEntitiesFunc = func(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
		if strings.Contains(text, "broken") {
			return nil, errors.New("model unavailable")
		}
		return []ai.ExtractedEntity{{Name: "Gamma", Type: "concept", Confidence: 0.8}}, nil
	}
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	chunks := []core.Chunk{
		{Id: "c1", Content: "this chunk is broken for the model", EndIndex: 34},
		{Id: "c2", Content: "this chunk extracts fine", EndIndex: 24},
	}
	graph, err := extractor.ExtractKnowledgeGraph(context.Background(), chunks, "doc-1", "t")
	require.NoError(t, err, "a single chunk's failure must not abort the run")

	var found bool
	for _, entity := range graph.Entities {
		if entity.Name == "Gamma" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtractKnowledgeGraph_ProbeFailureSkipsPair(t *testing.T) {
	provider := mock.NewMockProvider()
	acmeJaneEntities(provider)
	provider.GetMockRelationshipExtractor().ProbeRelationshipFunc = func(ctx context.Context, source, target, probeContext string) (ai.RelationshipProbe, error) {
		return ai.RelationshipProbe{}, errors.New("model timeout")
	}
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	graph, err := extractor.ExtractKnowledgeGraph(context.Background(), acmeJaneChunks(), "doc-1", "t")
	require.NoError(t, err, "probe failures skip the pair, not the run")
	assert.Empty(t, graph.Relationships)
}

func TestExtractKnowledgeGraph_OverallConfidence(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.GetMockEntityExtractor().ExtractEntitiesFunc = func(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
		return []ai.ExtractedEntity{{Name: "Solo", Type: "concept", Confidence: 0.8}}, nil
	}
	extractor, err := extraction.NewExtractor(provider)
	require.NoError(t, err)
	defer extractor.Release()

	chunks := []core.Chunk{{Id: "c1", Content: "a lone concept lives here", EndIndex: 25}}
	graph, err := extractor.ExtractKnowledgeGraph(context.Background(), chunks, "doc-1", "t")
	require.NoError(t, err)

	// One entity at 0.8, no relationships: (0.8 + 0) / 2.
	assert.InDelta(t, 0.4, graph.Confidence, 1e-9)
	assert.Greater(t, graph.ProcessingTime.Nanoseconds(), int64(0))
}
