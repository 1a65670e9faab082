package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/lexigraph/lexigraph/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	// If nil, uses default capitalized-word extraction.
	ExtractEntitiesFunc func(ctx context.Context, text string) ([]ai.ExtractedEntity, error)

	mu        sync.Mutex
	callCount int
}

// NewMockEntityExtractor creates a mock entity extractor with default
// behavior. Returns a concrete type to allow test assertions.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractEntities extracts simple mock entities from text.
// Default behavior: every capitalized multi-character word becomes a concept
// entity with confidence 0.8.
func (m *MockEntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}

	seen := make(map[string]bool)
	entities := make([]ai.ExtractedEntity, 0, 4)
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) < 2 || word[0] < 'A' || word[0] > 'Z' {
			continue
		}
		key := strings.ToLower(word)
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, ai.ExtractedEntity{
			Name:       word,
			Type:       "concept",
			Confidence: 0.8,
			Context:    text,
		})
		if len(entities) >= 5 {
			break
		}
	}
	return entities, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *MockEntityExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractEntitiesFunc = nil
}

// MockRelationshipExtractor is a test double for ai.RelationshipExtractor.
// It allows custom behavior injection via function fields.
type MockRelationshipExtractor struct {
	// ExtractRelationshipsFunc is called by ExtractRelationships if set.
	// If nil, returns no relationships.
	ExtractRelationshipsFunc func(ctx context.Context, text string, entityNames []string) ([]ai.ExtractedRelationship, error)

	// ProbeRelationshipFunc is called by ProbeRelationship if set.
	// If nil, answers that no relationship exists.
	ProbeRelationshipFunc func(ctx context.Context, sourceName, targetName, context string) (ai.RelationshipProbe, error)

	mu         sync.Mutex
	callCount  int
	probeCount int
	probePairs []string
}

// NewMockRelationshipExtractor creates a mock relationship extractor.
// Returns a concrete type to allow test assertions.
func NewMockRelationshipExtractor() *MockRelationshipExtractor {
	return &MockRelationshipExtractor{}
}

// ExtractRelationships returns the injected relationships, or none.
func (m *MockRelationshipExtractor) ExtractRelationships(ctx context.Context, text string, entityNames []string) ([]ai.ExtractedRelationship, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractRelationshipsFunc != nil {
		return m.ExtractRelationshipsFunc(ctx, text, entityNames)
	}
	return []ai.ExtractedRelationship{}, nil
}

// ProbeRelationship returns the injected probe answer, or a negative one.
// Probed pairs are recorded for assertions.
func (m *MockRelationshipExtractor) ProbeRelationship(ctx context.Context, sourceName, targetName, context string) (ai.RelationshipProbe, error) {
	m.mu.Lock()
	m.probeCount++
	m.probePairs = append(m.probePairs, sourceName+"|"+targetName)
	m.mu.Unlock()

	if m.ProbeRelationshipFunc != nil {
		return m.ProbeRelationshipFunc(ctx, sourceName, targetName, context)
	}
	return ai.RelationshipProbe{}, nil
}

// CallCount returns the number of times ExtractRelationships was called.
func (m *MockRelationshipExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// ProbeCount returns the number of times ProbeRelationship was called.
func (m *MockRelationshipExtractor) ProbeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probeCount
}

// ProbedPairs returns the "source|target" pairs submitted for probing, in
// call order.
func (m *MockRelationshipExtractor) ProbedPairs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.probePairs...)
}

// Reset clears counters and custom functions.
func (m *MockRelationshipExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.probeCount = 0
	m.probePairs = nil
	m.ExtractRelationshipsFunc = nil
	m.ProbeRelationshipFunc = nil
}
