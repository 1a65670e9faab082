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

package extraction

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/core"
)

// Extractor builds a knowledge graph from a document's chunks. Per-chunk
// extraction fans out across a worker pool; document-level resolution and
// cross-chunk inference run after all chunks have fanned back in.
type Extractor struct {
	entities      ai.EntityExtractor
	relationships ai.RelationshipExtractor
	pool          *ants.Pool
	minEvidence   int
	logger        *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithPoolSize sets the worker pool size for concurrent chunk extraction.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Extractor) error {
		if size < 1 {
			size = 1
		}
		if e.pool != nil {
			e.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool = pool
		return nil
	}
}

// WithMinEvidenceLength sets the minimum evidence text length required to
// accept a positive cross-chunk relationship probe. Model responses that
// affirm a relationship without quoting supporting text are discarded.
// Default is 10 characters; zero disables the guard.
func WithMinEvidenceLength(length int) Option {
	return func(e *Extractor) error {
		if length < 0 {
			length = 0
		}
		e.minEvidence = length
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExtractor creates a knowledge graph extractor backed by the provider's
// entity and relationship services.
func NewExtractor(provider ai.Provider, opts ...Option) (*Extractor, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		entities:      provider.EntityExtractor(),
		relationships: provider.RelationshipExtractor(),
		pool:          pool,
		minEvidence:   10,
		logger:        slog.Default().With("component", "extraction"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Release()
			return nil, err
		}
	}

	return e, nil
}

// Release releases the worker pool.
// The extractor should not be used after calling Release.
func (e *Extractor) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// chunkResult is one chunk's contribution before document-level resolution.
type chunkResult struct {
	entities      []*core.Entity
	relationships []*core.Relationship
}

// ExtractKnowledgeGraph runs the full extraction pipeline over a document's
// chunks: concurrent per-chunk extraction, entity resolution, relationship
// deduplication, and cross-chunk relationship inference via co-occurrence
// analysis.
//
// A single chunk's failure yields an empty contribution for that chunk and
// never aborts the run.
func (e *Extractor) ExtractKnowledgeGraph(ctx context.Context, chunks []core.Chunk, documentId, documentTitle string) (*core.KnowledgeGraph, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	start := time.Now()

	// Fan out per chunk. Each goroutine writes only its own slot.
	results := make([]chunkResult, len(chunks))
	var wg sync.WaitGroup
	for i := range chunks {
		i := i
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("chunk extraction panicked",
						"documentId", documentId, "chunkId", chunks[i].Id, "panic", r)
					results[i] = chunkResult{}
				}
			}()
			results[i] = e.extractChunk(ctx, chunks[i], documentId)
		})
		if submitErr != nil {
			// Pool rejected the task; run inline rather than dropping the chunk.
			results[i] = e.extractChunk(ctx, chunks[i], documentId)
			wg.Done()
		}
	}
	wg.Wait()

	var allEntities []*core.Entity
	var allRelationships []*core.Relationship
	for _, result := range results {
		allEntities = append(allEntities, result.entities...)
		allRelationships = append(allRelationships, result.relationships...)
	}

	entities := ResolveEntities(allEntities)
	relationships := ResolveRelationships(allRelationships)

	inferred := e.inferCrossChunkRelationships(ctx, entities, chunks, documentId)
	relationships = ResolveRelationships(append(relationships, inferred...))

	attachEntityEdges(entities, relationships)

	graph := &core.KnowledgeGraph{
		Entities:       entities,
		Relationships:  relationships,
		Confidence:     overallConfidence(entities, relationships),
		ProcessingTime: time.Since(start),
	}

	e.logger.Info("extracted knowledge graph",
		"documentId", documentId,
		"title", documentTitle,
		"chunks", len(chunks),
		"entities", len(graph.Entities),
		"relationships", len(graph.Relationships),
		"took", graph.ProcessingTime)
	return graph, nil
}

// extractChunk performs the rule-based pass, the model-based pass, the
// per-chunk merge, and the per-chunk relationship pass for one chunk.
func (e *Extractor) extractChunk(ctx context.Context, chunk core.Chunk, documentId string) chunkResult {
	merged := ruleBasedEntities(chunk)

	extracted, err := e.entities.ExtractEntities(ctx, chunk.Content)
	if err != nil {
		// Recoverable per chunk: keep the rule-based pass, drop the model pass.
		e.logger.Warn("model entity extraction failed for chunk",
			"documentId", documentId, "chunkId", chunk.Id, "err", err)
		extracted = nil
	}
	for _, ee := range extracted {
		entity := modelEntity(ee, chunk)
		if err := core.ValidateEntity(entity); err != nil {
			// Model output is untrusted; skip detections that fail domain rules.
			e.logger.Warn("discarding invalid entity from model",
				"documentId", documentId, "chunkId", chunk.Id, "err", err)
			continue
		}
		merged = append(merged, entity)
	}

	entities := mergeByName(merged)
	for _, entity := range entities {
		entity.Id = entityId(documentId, entity.Name)
	}

	var relationships []*core.Relationship
	if len(entities) >= 2 {
		relationships = e.extractChunkRelationships(ctx, chunk, entities, documentId)
	}
	return chunkResult{entities: entities, relationships: relationships}
}

// extractChunkRelationships asks the model for relationships among exactly
// the chunk's merged entities and maps name pairs back to entity ids. Any
// pair whose endpoints cannot be resolved is discarded.
func (e *Extractor) extractChunkRelationships(ctx context.Context, chunk core.Chunk, entities []*core.Entity, documentId string) []*core.Relationship {
	names := make([]string, len(entities))
	byName := make(map[string]*core.Entity, len(entities))
	for i, entity := range entities {
		names[i] = entity.Name
		byName[normalizeName(entity.Name)] = entity
	}

	extracted, err := e.relationships.ExtractRelationships(ctx, chunk.Content, names)
	if err != nil {
		e.logger.Warn("relationship extraction failed for chunk",
			"documentId", documentId, "chunkId", chunk.Id, "err", err)
		return nil
	}

	relationships := make([]*core.Relationship, 0, len(extracted))
	for _, er := range extracted {
		source, sourceOk := byName[normalizeName(er.SourceEntity)]
		target, targetOk := byName[normalizeName(er.TargetEntity)]
		if !sourceOk || !targetOk || source == target {
			continue
		}
		relationship := &core.Relationship{
			SourceEntityId:   source.Id,
			TargetEntityId:   target.Id,
			RelationshipType: er.RelationshipType,
			Description:      er.Description,
			Confidence:       er.Confidence,
		}
		if er.Evidence != "" {
			relationship.Evidence = []string{er.Evidence}
		}
		relationship.Id = relationshipId(relationship)
		relationships = append(relationships, relationship)
	}
	return relationships
}

// modelEntity converts a model detection into a provisional entity with one
// mention located in the chunk.
func modelEntity(ee ai.ExtractedEntity, chunk core.Chunk) *core.Entity {
	position := strings.Index(chunk.Content, ee.Name)
	if position < 0 {
		position = 0
	}
	mentionContext := ee.Context
	if mentionContext == "" {
		mentionContext = contextWindow(chunk.Content, position, position+len(ee.Name))
	}
	return &core.Entity{
		Name:        ee.Name,
		Type:        entityType(ee.Type),
		Description: ee.Description,
		Confidence:  ee.Confidence,
		Attributes:  ee.Attributes,
		Mentions: []core.Mention{{
			ChunkId:    chunk.Id,
			Position:   position,
			Context:    mentionContext,
			Confidence: ee.Confidence,
		}},
	}
}

func entityType(raw string) core.EntityType {
	switch t := core.EntityType(strings.ToLower(strings.TrimSpace(raw))); t {
	case core.EntityTypePerson, core.EntityTypePlace, core.EntityTypeOrganization,
		core.EntityTypeConcept, core.EntityTypeEvent, core.EntityTypeProduct:
		return t
	default:
		return core.EntityTypeOther
	}
}

// entityId derives a stable id from the document and the normalized entity
// name, so the same name in different chunks resolves to the same entity.
func entityId(documentId, name string) string {
	return "ent_" + core.IDFromContent(documentId+":"+normalizeName(name))
}

func relationshipId(r *core.Relationship) string {
	return "rel_" + core.IDFromContent(r.Key())
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// attachEntityEdges mirrors resolved relationships onto their source
// entities as lightweight edge references.
func attachEntityEdges(entities []*core.Entity, relationships []*core.Relationship) {
	byId := make(map[string]*core.Entity, len(entities))
	for _, entity := range entities {
		byId[entity.Id] = entity
		entity.Relationships = nil
	}
	for _, r := range relationships {
		if source, ok := byId[r.SourceEntityId]; ok {
			source.Relationships = append(source.Relationships, core.EntityRelationship{
				TargetEntityId:   r.TargetEntityId,
				RelationshipType: r.RelationshipType,
				Confidence:       r.Confidence,
			})
		}
	}
}

// overallConfidence is the average of the mean entity confidence and the
// mean relationship confidence. With no relationships the relationship term
// is 0, halving the overall score.
func overallConfidence(entities []*core.Entity, relationships []*core.Relationship) float64 {
	if len(entities) == 0 {
		return 0
	}
	var entitySum float64
	for _, entity := range entities {
		entitySum += entity.Confidence
	}
	entityMean := entitySum / float64(len(entities))

	var relationshipMean float64
	if len(relationships) > 0 {
		var relationshipSum float64
		for _, r := range relationships {
			relationshipSum += r.Confidence
		}
		relationshipMean = relationshipSum / float64(len(relationships))
	}
	return (entityMean + relationshipMean) / 2
}
