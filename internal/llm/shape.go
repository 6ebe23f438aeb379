package llm

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Shape is the expected output structure of an invocation, expressed as a JSON Schema document
type Shape struct {
	Name   string
	Schema string
}

// Validate checks a raw JSON document against the shape's schema.
// Schema violations are reported as a single error listing every failing field.
func (s Shape) Validate(raw string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(s.Schema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", s.Name, err)
	}
	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteString(" does not match schema:")
	for _, desc := range result.Errors() {
		sb.WriteString(fmt.Sprintf(" %s: %s;", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%s", strings.TrimSuffix(sb.String(), ";"))
}

// WorkstreamsShape is the output of the architect stage
var WorkstreamsShape = Shape{
	Name: "Workstreams",
	Schema: `{
	"type": "object",
	"required": ["workstreams"],
	"properties": {
		"workstreams": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["topicName", "rawQuotes"],
				"properties": {
					"topicName": {"type": "string", "minLength": 1},
					"rawQuotes": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
				}
			}
		}
	}
}`,
}

// RefinedTopicShape is the output of one writer invocation
var RefinedTopicShape = Shape{
	Name: "RefinedTopic",
	Schema: `{
	"type": "object",
	"required": ["redefinedTopic", "refinedQuotes"],
	"properties": {
		"redefinedTopic": {"type": "string", "minLength": 1},
		"refinedQuotes": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
	}
}`,
}

// TopicListShape is the output of the unify stage
var TopicListShape = Shape{
	Name: "TopicList",
	Schema: `{
	"type": "object",
	"required": ["topics"],
	"properties": {
		"topics": {"type": "array", "items": {"type": "string", "minLength": 1}}
	}
}`,
}
