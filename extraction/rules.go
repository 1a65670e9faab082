package extraction

import (
	"regexp"
	"strings"

	"github.com/lexigraph/lexigraph/core"
)

// ruleConfidence is assigned to every rule-based detection. The patterns are
// precise but shallow, so they rank below a confident model detection and
// above a tentative one.
const ruleConfidence = 0.7

// contextRadius is how many characters of surrounding text a mention keeps
// on each side.
const contextRadius = 50

var (
	// Honorific followed by one or two capitalized words.
	personRe = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof|Sir|Dame)\.? ([A-Z][a-z]+(?: [A-Z][a-z]+)?)`)

	// Capitalized words ending in a corporate or institutional suffix.
	organizationRe = regexp.MustCompile(`\b([A-Z][A-Za-z&]+(?: [A-Z][A-Za-z&]+)* (?:Corp|Corporation|Inc|Incorporated|LLC|Ltd|Limited|GmbH|Company|Group|University|Institute|Foundation|Agency)\b\.?)`)

	// Capitalized words following a locative preposition.
	placeRe = regexp.MustCompile(`\b(?:in|at|near|from) ([A-Z][a-z]+(?: [A-Z][a-z]+)?)\b`)
)

type ruleMatch struct {
	name     string
	kind     core.EntityType
	position int
}

// ruleBasedEntities runs the lightweight linguistic tagger over a chunk.
// Organization patterns take precedence over person and place patterns when
// spans overlap, so "Acme Corp" is not also tagged as a place.
func ruleBasedEntities(chunk core.Chunk) []*core.Entity {
	text := chunk.Content
	var matches []ruleMatch
	claimed := make([][2]int, 0, 8)

	collect := func(re *regexp.Regexp, kind core.EntityType) {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			// Submatch 1 is the entity name.
			start, end := loc[2], loc[3]
			if start < 0 || overlapsAny(claimed, start, end) {
				continue
			}
			name := strings.TrimRight(text[start:end], ".")
			if name == "" {
				continue
			}
			claimed = append(claimed, [2]int{start, end})
			matches = append(matches, ruleMatch{name: name, kind: kind, position: start})
		}
	}

	collect(organizationRe, core.EntityTypeOrganization)
	collect(personRe, core.EntityTypePerson)
	collect(placeRe, core.EntityTypePlace)

	entities := make([]*core.Entity, 0, len(matches))
	for _, match := range matches {
		entities = append(entities, &core.Entity{
			Name:       match.name,
			Type:       match.kind,
			Confidence: ruleConfidence,
			Mentions: []core.Mention{{
				ChunkId:    chunk.Id,
				Position:   match.position,
				Context:    contextWindow(text, match.position, match.position+len(match.name)),
				Confidence: ruleConfidence,
			}},
		})
	}
	return entities
}

func overlapsAny(claimed [][2]int, start, end int) bool {
	for _, span := range claimed {
		if start < span[1] && end > span[0] {
			return true
		}
	}
	return false
}

// contextWindow slices the text around [start, end) with contextRadius
// characters on each side, clamped to the text bounds.
func contextWindow(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}
