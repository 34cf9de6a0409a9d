// internal/models/classification.go
package models

// Category is the closed set of intent categories.
type Category string

const (
	CategoryControl       Category = "CONTROL"
	CategoryWeather       Category = "WEATHER"
	CategorySports        Category = "SPORTS"
	CategoryAirports      Category = "AIRPORTS"
	CategoryLocalBusiness Category = "LOCAL_BUSINESS"
	CategoryEvents        Category = "EVENTS"
	CategoryGeneral       Category = "GENERAL"
	CategoryUnknown       Category = "UNKNOWN"
)

// AllCategories lists every valid category in a fixed order.
var AllCategories = []Category{
	CategoryControl,
	CategoryWeather,
	CategorySports,
	CategoryAirports,
	CategoryLocalBusiness,
	CategoryEvents,
	CategoryGeneral,
	CategoryUnknown,
}

// IsValid reports whether c belongs to the closed category set.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ClassificationMethod tags how a result was produced.
type ClassificationMethod string

const (
	MethodPattern ClassificationMethod = "PATTERN"
	MethodLLM     ClassificationMethod = "LLM"
	MethodCached  ClassificationMethod = "CACHED"
)

// SubIntent is one element of a compound query, classified independently.
// An ambiguous sub-intent carries the same clarification flags as a
// top-level result; the chain cannot proceed past an unresolved entity.
type SubIntent struct {
	Text            string            `json:"text"`
	Category        Category          `json:"category"`
	Confidence      float64           `json:"confidence"`
	Entities        map[string]string `json:"entities,omitempty"`
	Ambiguous       bool              `json:"ambiguous,omitempty"`
	AmbiguousEntity string            `json:"ambiguousEntity,omitempty"`
}

// ClassificationResult is the single tagged result shape every caller
// handles: category, confidence, method, entities, optional sub-intents.
type ClassificationResult struct {
	Category   Category             `json:"category"`
	Confidence float64              `json:"confidence"`
	Method     ClassificationMethod `json:"method"`
	Entities   map[string]string    `json:"entities,omitempty"`
	SubIntents []SubIntent          `json:"subIntents,omitempty"`

	// Ambiguous marks an entity the configured disambiguation policy
	// could not resolve; the orchestrator asks for clarification.
	Ambiguous       bool   `json:"ambiguous,omitempty"`
	AmbiguousEntity string `json:"ambiguousEntity,omitempty"`
}

// Provisional reports whether the category must be treated as tentative
// because confidence fell below the configured trust threshold.
func (r *ClassificationResult) Provisional(threshold float64) bool {
	return r.Confidence < threshold
}

// Compound reports whether the query split into multiple sub-intents.
func (r *ClassificationResult) Compound() bool {
	return len(r.SubIntents) > 1
}
