// internal/llm/structured.go
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// classificationSchema constrains the classifier's structured output to the
// closed category set before the caller trusts it.
const classificationSchema = `{
	"type": "object",
	"required": ["category", "confidence"],
	"properties": {
		"category": {
			"type": "string",
			"enum": ["CONTROL", "WEATHER", "SPORTS", "AIRPORTS", "LOCAL_BUSINESS", "EVENTS", "GENERAL", "UNKNOWN"]
		},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

// factCheckSchema constrains the second-opinion fact-check output.
const factCheckSchema = `{
	"type": "object",
	"required": ["hallucination"],
	"properties": {
		"hallucination": {"type": "boolean"},
		"reason": {"type": "string"}
	}
}`

// ClassificationOutput is the validated structured classification reply.
type ClassificationOutput struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// FactCheckOutput is the validated structured fact-check reply.
type FactCheckOutput struct {
	Hallucination bool   `json:"hallucination"`
	Reason        string `json:"reason"`
}

// extractJSON pulls the first JSON object out of a model reply, tolerating
// prose or code fences around it.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return text[start : end+1], nil
}

func validateAgainst(schema, doc string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return fmt.Errorf("schema violation: %s", strings.Join(reasons, "; "))
	}
	return nil
}

// ParseClassification validates and decodes a structured classification
// reply. Callers treat any error as a parse failure and fall back.
func ParseClassification(text string) (*ClassificationOutput, error) {
	doc, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err := validateAgainst(classificationSchema, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	var out ClassificationOutput
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return &out, nil
}

// ParseFactCheck validates and decodes a structured fact-check reply.
func ParseFactCheck(text string) (*FactCheckOutput, error) {
	doc, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err := validateAgainst(factCheckSchema, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	var out FactCheckOutput
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return &out, nil
}
