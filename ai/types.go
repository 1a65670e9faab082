package ai

// EntityTypes defines the valid categories for extracted entities.
// These types are used by extractors to classify named things in text.
var EntityTypes = []string{
	"person",
	"place",
	"organization",
	"concept",
	"event",
	"product",
	"other",
}

// ExtractedEntity represents a named entity identified in a piece of text.
type ExtractedEntity struct {
	// Name is the surface form of the entity as it appears in the text.
	Name string

	// Type categorizes the entity. Must match one of EntityTypes; anything
	// else is mapped to "other" by consumers.
	Type string

	// Description is a short model-provided summary, possibly empty.
	Description string

	// Confidence is the extractor's confidence in the detection, 0..1.
	Confidence float64

	// Context is the text surrounding the mention.
	Context string

	// Attributes carries any extra key/value details the model supplied.
	Attributes map[string]string
}

// ExtractedRelationship represents a relationship detected between two named
// entities in the same text.
type ExtractedRelationship struct {
	SourceEntity     string
	TargetEntity     string
	RelationshipType string
	Description      string
	Confidence       float64
	Evidence         string
}

// RelationshipProbe is the answer to a cross-chunk relationship question.
// HasRelationship must be explicitly true for the probe to be accepted.
type RelationshipProbe struct {
	HasRelationship  bool
	RelationshipType string
	Description      string
	Confidence       float64
	Evidence         string
}
