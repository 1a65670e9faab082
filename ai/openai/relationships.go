package openai

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// RelationshipExtractor implements ai.RelationshipExtractor using
// OpenAI-compatible chat APIs.
type RelationshipExtractor struct {
	client llms.Model
	logger *slog.Logger
}

type relationship struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Evidence    string  `json:"evidence"`
}

type relationshipAnalysis struct {
	Relationships []relationship `json:"relationships"`
}

type probeAnswer struct {
	HasRelationship bool    `json:"has_relationship"`
	Type            string  `json:"type"`
	Description     string  `json:"description"`
	Confidence      float64 `json:"confidence"`
	Evidence        string  `json:"evidence"`
}

// newRelationshipExtractor is an internal constructor that returns the
// concrete type. Used by Provider to manage the instance.
func newRelationshipExtractor(config *ai.Config) (*RelationshipExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken(config.APIToken),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &RelationshipExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-relationship-extractor"),
	}, nil
}

// NewRelationshipExtractor creates a new relationship extractor using the
// provided configuration.
//
// Returns ai.RelationshipExtractor interface to enforce abstraction.
func NewRelationshipExtractor(config *ai.Config) (ai.RelationshipExtractor, error) {
	return newRelationshipExtractor(config)
}

// ExtractRelationships asks the model for relationships among exactly the
// named entities within the given text. Parse failures degrade to an empty
// slice.
func (e *RelationshipExtractor) ExtractRelationships(ctx context.Context, text string, entityNames []string) ([]ai.ExtractedRelationship, error) {
	if len(entityNames) < 2 {
		return []ai.ExtractedRelationship{}, nil
	}

	var result relationshipAnalysis
	ok, err := e.generateJSON(ctx, buildRelationshipPrompt(entityNames), text, &result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []ai.ExtractedRelationship{}, nil
	}

	extracted := make([]ai.ExtractedRelationship, 0, len(result.Relationships))
	for _, rel := range result.Relationships {
		if rel.Source == "" || rel.Target == "" || rel.Source == rel.Target {
			continue
		}
		extracted = append(extracted, ai.ExtractedRelationship{
			SourceEntity:     rel.Source,
			TargetEntity:     rel.Target,
			RelationshipType: rel.Type,
			Description:      rel.Description,
			Confidence:       clampConfidence(rel.Confidence),
			Evidence:         rel.Evidence,
		})
	}

	e.logger.Debug("extracted relationships", "entities", len(entityNames), "relationships", len(extracted))
	return extracted, nil
}

// ProbeRelationship asks whether a meaningful relationship exists between two
// entities given context gathered across chunks. A parse failure reads as "no
// relationship".
func (e *RelationshipExtractor) ProbeRelationship(ctx context.Context, sourceName, targetName, context_ string) (ai.RelationshipProbe, error) {
	var answer probeAnswer
	ok, err := e.generateJSON(ctx, buildProbePrompt(sourceName, targetName), context_, &answer)
	if err != nil {
		return ai.RelationshipProbe{}, err
	}
	if !ok {
		return ai.RelationshipProbe{}, nil
	}

	return ai.RelationshipProbe{
		HasRelationship:  answer.HasRelationship,
		RelationshipType: answer.Type,
		Description:      answer.Description,
		Confidence:       clampConfidence(answer.Confidence),
		Evidence:         answer.Evidence,
	}, nil
}

// generateJSON sends one system+user exchange and decodes the JSON reply into
// out, retrying up to 3 times on malformed output. It reports ok=false when
// the response never parsed; transport errors are returned as err.
func (e *RelationshipExtractor) generateJSON(ctx context.Context, systemPrompt, userText string, out any) (bool, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(userText),
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return false, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return false, nil
		}

		responseText := extractJSON(response.Choices[0].Content)
		if err := json.Unmarshal([]byte(responseText), out); err != nil {
			lastErr = err
			e.logger.Warn("error parsing relationship response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		return true, nil
	}

	e.logger.Error("failed to parse relationship response after retries", "err", lastErr)
	return false, nil
}
