// internal/validation/pipeline.go
package validation

import (
	"context"
	"fmt"
	"strings"

	"query-orchestrator/internal/common/config"
	apperrors "query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
	"query-orchestrator/internal/llm"
	"query-orchestrator/internal/models"
)

// RegenerateFunc asks the caller for one replacement answer, generated
// with the given corrective instruction appended to the prompt.
type RegenerateFunc func(ctx context.Context, instruction string) (string, error)

const regenerateInstruction = "Your previous answer contained claims not supported by the evidence. " +
	"Rewrite it using only facts present in the evidence, state clearly when something is uncertain, " +
	"and omit any specific dates, numbers, or names the evidence does not contain."

const hedgedAnswer = "I don't have reliable data to answer that right now. " +
	"You may want to check a trusted source directly for current details."

// Pipeline runs the four ordered answer checks. It never returns an
// error: every failure mode resolves to a terminal PASS or HEDGE verdict.
type Pipeline struct {
	cfg    *config.ValidationConfig
	client llm.Client
	logger logger.Logger
}

func NewPipeline(cfg *config.ValidationConfig, client llm.Client, log logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		client: client,
		logger: log.With(map[string]interface{}{
			"component": "validation-pipeline",
		}),
	}
}

// Validate checks the answer against the evidence. A failed check triggers
// one regeneration with an uncertainty instruction; a failed retry replaces
// the answer with a hedged fallback.
func (p *Pipeline) Validate(ctx context.Context, queryText string, category models.Category, confidence float64, evidence *models.FusedEvidence, answer string, regenerate RegenerateFunc) *models.ValidationVerdict {
	verdict := &models.ValidationVerdict{State: models.ValidationPending, FinalAnswer: answer}

	verdict.Layers = p.runLayers(ctx, queryText, category, confidence, evidence, answer)
	if allPassed(verdict.Layers) {
		verdict.State = models.ValidationPass
		metrics.ValidationOutcomes.WithLabelValues(string(verdict.State)).Inc()
		return verdict
	}

	verdict.State = models.ValidationFail
	layer, reason := firstFailure(verdict.Layers)
	stdErr := apperrors.NewValidationFailedError(layer, reason)
	p.logger.Warn("answer failed validation, regenerating", map[string]interface{}{
		"code":     string(stdErr.Code),
		"category": string(category),
		"layer":    layer,
		"reason":   reason,
	})

	if regenerate == nil {
		return p.hedge(verdict)
	}

	verdict.State = models.ValidationRetry
	verdict.Retries = 1
	retried, err := regenerate(ctx, regenerateInstruction)
	if err != nil {
		p.logger.Warn("regeneration failed", map[string]interface{}{
			"error": err.Error(),
		})
		return p.hedge(verdict)
	}

	retryLayers := p.runLayers(ctx, queryText, category, confidence, evidence, retried)
	verdict.Layers = append(verdict.Layers, retryLayers...)
	if allPassed(retryLayers) {
		verdict.State = models.ValidationPass
		verdict.FinalAnswer = retried
		verdict.UncertaintyMarked = true
		metrics.ValidationOutcomes.WithLabelValues(string(verdict.State)).Inc()
		return verdict
	}

	return p.hedge(verdict)
}

func (p *Pipeline) hedge(verdict *models.ValidationVerdict) *models.ValidationVerdict {
	verdict.State = models.ValidationHedge
	verdict.FinalAnswer = hedgedAnswer
	verdict.UncertaintyMarked = true
	metrics.ValidationOutcomes.WithLabelValues(string(verdict.State)).Inc()
	return verdict
}

// runLayers executes shape, unsupported-claim, cross-reference, and the
// conditional second-opinion check, short-circuiting on the first failure.
func (p *Pipeline) runLayers(ctx context.Context, queryText string, category models.Category, confidence float64, evidence *models.FusedEvidence, answer string) []models.LayerResult {
	layers := []models.LayerResult{p.checkShape(answer)}
	if !layers[0].Passed {
		return layers
	}

	payloads := evidencePayloads(evidence)

	unsupported := p.checkUnsupportedClaims(answer, payloads)
	layers = append(layers, unsupported)
	if !unsupported.Passed {
		return layers
	}

	if len(payloads) > 0 {
		crossRef := p.checkCrossReference(answer, payloads)
		layers = append(layers, crossRef)
		if !crossRef.Passed {
			return layers
		}
	}

	if confidence < p.cfg.SecondOpinionBelow || p.highStakes(category) {
		layers = append(layers, p.checkSecondOpinion(ctx, queryText, payloads, answer))
	}

	return layers
}

// checkShape rejects degenerate or runaway outputs.
func (p *Pipeline) checkShape(answer string) models.LayerResult {
	result := models.LayerResult{Layer: models.LayerShape, Passed: true}
	length := len(strings.TrimSpace(answer))
	if length < p.cfg.MinAnswerLength {
		result.Passed = false
		result.Reason = fmt.Sprintf("answer length %d below minimum %d", length, p.cfg.MinAnswerLength)
	} else if length > p.cfg.MaxAnswerLength {
		result.Passed = false
		result.Reason = fmt.Sprintf("answer length %d above maximum %d", length, p.cfg.MaxAnswerLength)
	}
	return result
}

// checkUnsupportedClaims fails on any specific factual marker absent from
// the evidence. With empty evidence, any marker at all fails.
func (p *Pipeline) checkUnsupportedClaims(answer string, payloads []string) models.LayerResult {
	result := models.LayerResult{Layer: models.LayerUnsupported, Passed: true}
	for _, m := range extractMarkers(answer) {
		if len(payloads) == 0 {
			result.Passed = false
			result.Reason = fmt.Sprintf("%s %q with no evidence", m.kind, m.text)
			return result
		}
		if !supportedBy(m, payloads) {
			result.Passed = false
			result.Reason = fmt.Sprintf("%s %q not found in evidence", m.kind, m.text)
			return result
		}
	}
	return result
}

// checkCrossReference requires every claim-bearing sentence to trace to at
// least one evidence item.
func (p *Pipeline) checkCrossReference(answer string, payloads []string) models.LayerResult {
	result := models.LayerResult{Layer: models.LayerCrossRef, Passed: true}
	for _, sentence := range sentences(answer) {
		claims := extractMarkers(sentence)
		if len(claims) == 0 {
			continue
		}
		traced := false
		for _, payload := range payloads {
			if sentenceTracesTo(claims, payload) {
				traced = true
				break
			}
		}
		if !traced {
			result.Passed = false
			result.Reason = fmt.Sprintf("claim %q traces to no evidence item", sentence)
			return result
		}
	}
	return result
}

// sentenceTracesTo reports whether one evidence payload supports every
// marker in the sentence.
func sentenceTracesTo(claims []marker, payload string) bool {
	for _, m := range claims {
		if !supportedBy(m, []string{payload}) {
			return false
		}
	}
	return true
}

// checkSecondOpinion issues a structured fact-check call. An unavailable
// or malformed check degrades to a pass with a recorded reason; it must
// not fail an answer the deterministic layers accepted.
func (p *Pipeline) checkSecondOpinion(ctx context.Context, queryText string, payloads []string, answer string) models.LayerResult {
	result := models.LayerResult{Layer: models.LayerSecondOpinion, Passed: true}

	reply, err := p.client.Generate(ctx, llm.TierMedium, &llm.GenerateRequest{
		Prompt:      buildFactCheckPrompt(queryText, payloads, answer),
		MaxTokens:   128,
		Temperature: 0.0,
	})
	if err != nil {
		result.Reason = fmt.Sprintf("fact-check unavailable: %v", err)
		return result
	}

	check, err := llm.ParseFactCheck(reply.Text)
	if err != nil {
		result.Reason = fmt.Sprintf("fact-check unparseable: %v", err)
		return result
	}

	if check.Hallucination {
		result.Passed = false
		result.Reason = "fact-check flagged hallucination: " + check.Reason
	}
	return result
}

func (p *Pipeline) highStakes(category models.Category) bool {
	for _, c := range p.cfg.HighStakesCategories {
		if strings.EqualFold(c, string(category)) {
			return true
		}
	}
	return false
}

func evidencePayloads(evidence *models.FusedEvidence) []string {
	if evidence == nil {
		return nil
	}
	payloads := make([]string, 0, len(evidence.Items))
	for _, item := range evidence.Items {
		payloads = append(payloads, item.Payload)
	}
	return payloads
}

func allPassed(layers []models.LayerResult) bool {
	for _, l := range layers {
		if !l.Passed {
			return false
		}
	}
	return true
}

func firstFailure(layers []models.LayerResult) (layer, reason string) {
	for _, l := range layers {
		if !l.Passed {
			return string(l.Layer), l.Reason
		}
	}
	return "", ""
}

func buildFactCheckPrompt(queryText string, payloads []string, answer string) string {
	var b strings.Builder
	b.WriteString("You are checking an answer for unsupported claims.\n\nQuestion: ")
	b.WriteString(queryText)
	b.WriteString("\n\nEvidence:\n")
	if len(payloads) == 0 {
		b.WriteString("(none)\n")
	}
	for _, p := range payloads {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer: ")
	b.WriteString(answer)
	b.WriteString("\n\nDoes the answer contain claims not supported by the evidence? ")
	b.WriteString(`Respond with only a JSON object of the form {"hallucination": true|false, "reason": "<short reason>"}.`)
	return b.String()
}
