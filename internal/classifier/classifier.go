// internal/classifier/classifier.go
package classifier

import (
	"context"
	"fmt"
	"strings"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/text"
	"query-orchestrator/internal/llm"
	"query-orchestrator/internal/models"
)

// ClassificationCache is the subset of the tiered cache the classifier
// needs. A nil cache disables caching.
type ClassificationCache interface {
	GetClassification(ctx context.Context, queryText string) (*models.ClassificationResult, bool)
	PutClassification(ctx context.Context, queryText string, result *models.ClassificationResult)
}

// Classifier turns raw text into a category, confidence, entities, and
// optionally an ordered chain of sub-intents. It never returns an error:
// the worst case is UNKNOWN with low confidence.
type Classifier struct {
	cfg    *config.ClassifierConfig
	client llm.Client
	cache  ClassificationCache
	logger logger.Logger
}

func New(cfg *config.ClassifierConfig, client llm.Client, cache ClassificationCache, log logger.Logger) *Classifier {
	return &Classifier{
		cfg:    cfg,
		client: client,
		cache:  cache,
		logger: log.With(map[string]interface{}{
			"component": "intent-classifier",
		}),
	}
}

// Classify resolves the query's intent. Compound queries split into
// sub-intents classified independently, with the previous sub-query's
// subject carried forward through an explicit chain context.
func (c *Classifier) Classify(ctx context.Context, queryText string, history []models.Turn) *models.ClassificationResult {
	if strings.TrimSpace(queryText) == "" {
		return &models.ClassificationResult{
			Category:   models.CategoryUnknown,
			Confidence: 0,
			Method:     models.MethodPattern,
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.GetClassification(ctx, queryText); ok {
			c.logger.Debug("classification cache hit", map[string]interface{}{
				"category": string(cached.Category),
			})
			return cached
		}
	}

	var result *models.ClassificationResult
	if steps, ok := expandChain(queryText, c.cfg.Chains); ok {
		result = c.classifyChain(ctx, steps)
	} else if parts := splitCompound(queryText, c.cfg.Separators); len(parts) > 1 {
		result = c.classifyChain(ctx, parts)
	} else {
		result = c.classifySingle(ctx, queryText, &chainContext{})
	}

	if c.cache != nil {
		c.cache.PutClassification(ctx, queryText, result)
	}
	return result
}

// classifyChain classifies each sub-query in order, threading the chain
// context so pronouns resolve against the previous subject.
func (c *Classifier) classifyChain(ctx context.Context, parts []string) *models.ClassificationResult {
	cc := &chainContext{}
	subIntents := make([]models.SubIntent, 0, len(parts))

	for _, part := range parts {
		resolved := resolveSubject(part, cc)
		sub := c.classifySingle(ctx, resolved, cc)
		subIntents = append(subIntents, models.SubIntent{
			Text:            resolved,
			Category:        sub.Category,
			Confidence:      sub.Confidence,
			Entities:        sub.Entities,
			Ambiguous:       sub.Ambiguous,
			AmbiguousEntity: sub.AmbiguousEntity,
		})
	}

	// The top-level shape mirrors the dominant sub-intent; the full chain
	// rides along for the orchestrator to execute in order.
	dominant := subIntents[0]
	minConf := dominant.Confidence
	for _, si := range subIntents[1:] {
		if si.Confidence > dominant.Confidence {
			dominant = si
		}
		if si.Confidence < minConf {
			minConf = si.Confidence
		}
	}

	result := &models.ClassificationResult{
		Category:   dominant.Category,
		Confidence: minConf,
		Method:     models.MethodPattern,
		Entities:   dominant.Entities,
		SubIntents: subIntents,
	}

	// The first unresolved entity bubbles up so the orchestrator asks for
	// clarification instead of guessing a sense for part of the chain.
	for _, si := range subIntents {
		if si.Ambiguous {
			result.Ambiguous = true
			result.AmbiguousEntity = si.AmbiguousEntity
			break
		}
	}
	return result
}

// classifySingle runs the fast pattern path, then the model slow path.
func (c *Classifier) classifySingle(ctx context.Context, queryText string, cc *chainContext) *models.ClassificationResult {
	normalized := text.Normalize(queryText)

	result := &models.ClassificationResult{
		Category:   models.CategoryGeneral,
		Confidence: 0.3,
		Method:     models.MethodLLM,
	}

	if category, confidence, entities, ok := matchPatterns(normalized); ok && confidence >= c.cfg.FastPathThreshold {
		result = &models.ClassificationResult{
			Category:   category,
			Confidence: confidence,
			Method:     models.MethodPattern,
			Entities:   entities,
		}
	} else if out, err := c.classifyWithModel(ctx, queryText); err == nil {
		result = out
	} else {
		c.logger.Warn("model classification failed, defaulting", map[string]interface{}{
			"error": err.Error(),
		})
	}

	applyDisambiguation(c.cfg.Disambiguation, normalized, result)
	if result.Entities != nil {
		updateSubject(cc, result.Entities)
	}
	return result
}

func (c *Classifier) classifyWithModel(ctx context.Context, queryText string) (*models.ClassificationResult, error) {
	reply, err := c.client.Generate(ctx, llm.TierSmall, &llm.GenerateRequest{
		Prompt:      buildClassifyPrompt(queryText),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	out, err := llm.ParseClassification(reply.Text)
	if err != nil {
		return nil, err
	}

	category := models.Category(out.Category)
	if !category.IsValid() {
		category = models.CategoryUnknown
	}
	confidence := out.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.ClassificationResult{
		Category:   category,
		Confidence: confidence,
		Method:     models.MethodLLM,
	}, nil
}

func buildClassifyPrompt(queryText string) string {
	names := make([]string, 0, len(models.AllCategories))
	for _, cat := range models.AllCategories {
		names = append(names, string(cat))
	}
	return fmt.Sprintf(
		`Classify the user query into exactly one category from this list: %s.
Respond with only a JSON object of the form {"category": "<CATEGORY>", "confidence": <0.0-1.0>}.

Query: %s`,
		strings.Join(names, ", "), queryText,
	)
}
