package extraction

import (
	"context"
	"strings"

	"github.com/lexigraph/lexigraph/core"
)

// inferenceContextBound limits how much concatenated chunk content is sent
// to the model per cross-chunk probe.
const inferenceContextBound = 1000

// cooccurrenceThreshold is the minimum Jaccard similarity of two entities'
// chunk-id sets for the pair to become an inference candidate.
const cooccurrenceThreshold = 0.5

// mergeByName merges entities extracted from a single chunk. Entities are
// grouped by lowercased, trimmed name; on collision the first entity keeps
// its identity while taking the maximum confidence and appending all
// mentions. Order of first appearance is preserved.
func mergeByName(entities []*core.Entity) []*core.Entity {
	merged := make([]*core.Entity, 0, len(entities))
	byName := make(map[string]*core.Entity, len(entities))
	for _, entity := range entities {
		name := normalizeName(entity.Name)
		existing, ok := byName[name]
		if !ok {
			byName[name] = entity
			merged = append(merged, entity)
			continue
		}
		if entity.Confidence > existing.Confidence {
			existing.Confidence = entity.Confidence
		}
		existing.Mentions = append(existing.Mentions, entity.Mentions...)
		if existing.Description == "" {
			existing.Description = entity.Description
		}
	}
	return merged
}

// ResolveEntities merges duplicate entities across all of a document's
// chunks. Entities are grouped by lowercased, trimmed name; singletons pass
// through unchanged, so resolving an already-resolved list is a no-op.
// Groups of size > 1 collapse into one canonical entity: mentions are
// concatenated, aliases are unioned, attributes are shallow-merged with
// later values winning, and confidence becomes the arithmetic mean of the
// group.
func ResolveEntities(entities []*core.Entity) []*core.Entity {
	groups := make(map[string][]*core.Entity, len(entities))
	order := make([]string, 0, len(entities))
	for _, entity := range entities {
		name := normalizeName(entity.Name)
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], entity)
	}

	resolved := make([]*core.Entity, 0, len(order))
	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			resolved = append(resolved, group[0])
			continue
		}

		canonical := group[0]
		var confidenceSum float64
		aliases := make(map[string]bool)
		for _, alias := range canonical.Aliases {
			aliases[alias] = true
		}
		for _, entity := range group {
			confidenceSum += entity.Confidence
			if entity == canonical {
				continue
			}
			canonical.Mentions = append(canonical.Mentions, entity.Mentions...)
			if entity.Name != canonical.Name && !aliases[entity.Name] {
				aliases[entity.Name] = true
				canonical.Aliases = append(canonical.Aliases, entity.Name)
			}
			for _, alias := range entity.Aliases {
				if !aliases[alias] {
					aliases[alias] = true
					canonical.Aliases = append(canonical.Aliases, alias)
				}
			}
			for key, value := range entity.Attributes {
				if canonical.Attributes == nil {
					canonical.Attributes = make(map[string]string)
				}
				canonical.Attributes[key] = value
			}
			if canonical.Description == "" {
				canonical.Description = entity.Description
			}
		}
		canonical.Confidence = confidenceSum / float64(len(group))
		resolved = append(resolved, canonical)
	}
	return resolved
}

// ResolveRelationships deduplicates relationships by the key
// (sourceEntityId, targetEntityId, relationshipType). On collision, evidence
// lists are unioned and confidence takes the maximum. Order of first
// appearance is preserved.
func ResolveRelationships(relationships []*core.Relationship) []*core.Relationship {
	resolved := make([]*core.Relationship, 0, len(relationships))
	byKey := make(map[string]*core.Relationship, len(relationships))
	for _, relationship := range relationships {
		key := relationship.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = relationship
			resolved = append(resolved, relationship)
			continue
		}
		if relationship.Confidence > existing.Confidence {
			existing.Confidence = relationship.Confidence
		}
		existing.Evidence = unionEvidence(existing.Evidence, relationship.Evidence)
		if existing.Description == "" {
			existing.Description = relationship.Description
		}
	}
	return resolved
}

func unionEvidence(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, evidence := range a {
		seen[evidence] = true
	}
	for _, evidence := range b {
		if !seen[evidence] {
			seen[evidence] = true
			a = append(a, evidence)
		}
	}
	return a
}

// inferCrossChunkRelationships links entities that repeatedly co-occur
// across chunks even when no single chunk relates them. For every unordered
// entity pair whose chunk-id sets overlap above the co-occurrence threshold,
// it gathers the chunks containing both literal names and asks the model
// whether a meaningful relationship exists. A probe is accepted only when
// the response explicitly affirms the relationship and quotes enough
// evidence text. Each candidate pair is probed exactly once per run; probe
// failures skip the pair, never the run.
func (e *Extractor) inferCrossChunkRelationships(ctx context.Context, entities []*core.Entity, chunks []core.Chunk, documentId string) []*core.Relationship {
	chunkSets := make(map[string]map[string]bool, len(entities))
	for _, entity := range entities {
		set := make(map[string]bool, len(entity.Mentions))
		for _, mention := range entity.Mentions {
			set[mention.ChunkId] = true
		}
		chunkSets[entity.Id] = set
	}

	var inferred []*core.Relationship
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			source, target := entities[i], entities[j]
			similarity := jaccard(chunkSets[source.Id], chunkSets[target.Id])
			if similarity <= cooccurrenceThreshold {
				continue
			}

			sharedContext := gatherSharedContext(chunks, source.Name, target.Name)
			if sharedContext == "" {
				continue
			}

			probe, err := e.relationships.ProbeRelationship(ctx, source.Name, target.Name, sharedContext)
			if err != nil {
				e.logger.Warn("cross-chunk probe failed, skipping pair",
					"documentId", documentId,
					"source", source.Name, "target", target.Name, "err", err)
				continue
			}
			if !probe.HasRelationship {
				continue
			}
			if e.minEvidence > 0 && len(strings.TrimSpace(probe.Evidence)) < e.minEvidence {
				e.logger.Debug("discarding probe with insufficient evidence",
					"source", source.Name, "target", target.Name)
				continue
			}

			relationshipType := probe.RelationshipType
			if relationshipType == "" {
				relationshipType = "related_to"
			}
			relationship := &core.Relationship{
				SourceEntityId:   source.Id,
				TargetEntityId:   target.Id,
				RelationshipType: relationshipType,
				Description:      probe.Description,
				Confidence:       probe.Confidence,
				Evidence:         []string{probe.Evidence},
			}
			relationship.Id = relationshipId(relationship)
			inferred = append(inferred, relationship)
		}
	}
	return inferred
}

// gatherSharedContext concatenates the content of every chunk mentioning
// both names literally (case-insensitive), bounded to roughly the first
// inferenceContextBound characters.
func gatherSharedContext(chunks []core.Chunk, sourceName, targetName string) string {
	sourceNeedle := strings.ToLower(sourceName)
	targetNeedle := strings.ToLower(targetName)

	var builder strings.Builder
	for _, chunk := range chunks {
		content := strings.ToLower(chunk.Content)
		if !strings.Contains(content, sourceNeedle) || !strings.Contains(content, targetNeedle) {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(chunk.Content)
		if builder.Len() >= inferenceContextBound {
			break
		}
	}
	context := builder.String()
	if len(context) > inferenceContextBound {
		context = context[:inferenceContextBound]
	}
	return context
}

// jaccard computes |intersection| / |union| of two chunk-id sets.
// Two empty sets have similarity 0.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for id := range a {
		if b[id] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
