package openai

import (
	"fmt"
	"strings"

	"github.com/lexigraph/lexigraph/ai"
)

const entityResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "type": {"type": "string"},
          "description": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "context": {"type": "string"},
          "attributes": {"type": "object", "additionalProperties": {"type": "string"}}
        },
        "required": ["name", "type", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities"],
  "additionalProperties": false
}`

const entityPromptTemplate = `Extract the named entities from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names keep the surface form used in the text.
- Type field must match exactly one of the listed values: %s.
- Confidence is a number from 0 (uncertain) to 1 (certain). Rate based on how clearly the text identifies the entity.
- Context is the sentence fragment where the entity appears.
- Include only entities that are explicitly mentioned. Do not hallucinate.
- If no entities can be identified, return "entities": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Jane Doe joined Acme Corp in Berlin last spring."
Output:
{
  "entities": [
    {"name":"Jane Doe","type":"person","confidence":0.95,"context":"Jane Doe joined Acme Corp"},
    {"name":"Acme Corp","type":"organization","confidence":0.9,"context":"joined Acme Corp in Berlin"},
    {"name":"Berlin","type":"place","confidence":0.85,"context":"Acme Corp in Berlin last spring"}
  ]
}`

const relationshipResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "relationships": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source": {"type": "string"},
          "target": {"type": "string"},
          "type": {"type": "string"},
          "description": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "evidence": {"type": "string"}
        },
        "required": ["source", "target", "type", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["relationships"],
  "additionalProperties": false
}`

const relationshipPromptTemplate = `Identify the relationships between the named entities in the given text and return them as JSON.

Only consider relationships among exactly these entities: %s.

Output ONLY valid JSON which complies with the schema given below. Start your response directly with the
opening brace { and end with the closing brace }. Your output must exactly follow this schema:

%s

Rules:
- source and target must be names from the entity list above, verbatim.
- type is a short lowercase snake_case label such as "works_for", "located_in", "founded_by".
- Confidence is a number from 0 to 1.
- evidence is the text fragment supporting the relationship.
- If the text supports no relationships between the listed entities, return "relationships": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const probeResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "has_relationship": {"type": "boolean"},
    "type": {"type": "string"},
    "description": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "evidence": {"type": "string"}
  },
  "required": ["has_relationship"],
  "additionalProperties": false
}`

const probePromptTemplate = `Two entities, %q and %q, appear together across several passages of the same document.
Decide whether the passages describe a meaningful relationship between them, and answer as JSON.

Output ONLY valid JSON which complies with this schema:

%s

Rules:
- Set "has_relationship" to true only when the passages clearly connect the two entities.
- When true, fill in type (short lowercase snake_case label), description, confidence (0 to 1) and evidence
  (the supporting text fragment).
- When false, the other fields may be omitted.
- The JSON must parse without errors and contain no text outside the object.`

// buildEntityPrompt creates the entity extraction system prompt with the
// allowed entity types embedded.
func buildEntityPrompt() string {
	return fmt.Sprintf(entityPromptTemplate,
		entityResponseSchema,
		strings.Join(ai.EntityTypes, ", "))
}

// buildRelationshipPrompt creates the relationship extraction system prompt
// restricted to the given entity names.
func buildRelationshipPrompt(entityNames []string) string {
	quoted := make([]string, len(entityNames))
	for i, name := range entityNames {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf(relationshipPromptTemplate,
		strings.Join(quoted, ", "),
		relationshipResponseSchema)
}

// buildProbePrompt creates the cross-chunk relationship probe prompt.
func buildProbePrompt(sourceName, targetName string) string {
	return fmt.Sprintf(probePromptTemplate, sourceName, targetName, probeResponseSchema)
}
