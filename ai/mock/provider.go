package mock

import (
	"github.com/lexigraph/lexigraph/ai"
)

// MockProvider is a test double for ai.Provider aggregating the mock
// services.
type MockProvider struct {
	embedder      *MockEmbedder
	entities      *MockEntityExtractor
	relationships *MockRelationshipExtractor
}

// NewMockProvider creates a provider with default mock services.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder:      NewMockEmbedder(),
		entities:      NewMockEntityExtractor(),
		relationships: NewMockRelationshipExtractor(),
	}
}

var _ ai.Provider = (*MockProvider)(nil)

// Embedder returns the mock embedding service.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// EntityExtractor returns the mock entity extraction service.
func (p *MockProvider) EntityExtractor() ai.EntityExtractor {
	return p.entities
}

// RelationshipExtractor returns the mock relationship extraction service.
func (p *MockProvider) RelationshipExtractor() ai.RelationshipExtractor {
	return p.relationships
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the concrete mock for behavior injection and
// assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockEntityExtractor returns the concrete mock for behavior injection
// and assertions.
func (p *MockProvider) GetMockEntityExtractor() *MockEntityExtractor {
	return p.entities
}

// GetMockRelationshipExtractor returns the concrete mock for behavior
// injection and assertions.
func (p *MockProvider) GetMockRelationshipExtractor() *MockRelationshipExtractor {
	return p.relationships
}
