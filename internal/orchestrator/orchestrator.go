// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"query-orchestrator/internal/cache"
	"query-orchestrator/internal/classifier"
	"query-orchestrator/internal/common/config"
	apperrors "query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
	"query-orchestrator/internal/common/observability"
	"query-orchestrator/internal/devices"
	"query-orchestrator/internal/llm"
	"query-orchestrator/internal/models"
	"query-orchestrator/internal/retrieval"
	"query-orchestrator/internal/router"
	"query-orchestrator/internal/validation"
)

// Stage names, recorded per request in per_stage_latency_ms.
const (
	StageClassify   = "classify"
	StageControl    = "control"
	StageRetrieve   = "retrieve"
	StageSynthesize = "synthesize"
	StageValidate   = "validate"
	StageFinalize   = "finalize"
)

// AnswerCache is the subset of the tiered cache used at final-answer
// granularity. A nil cache disables answer caching.
type AnswerCache interface {
	Get(ctx context.Context, queryText string) (*models.CacheEntry, bool)
	Put(ctx context.Context, queryText, value string)
}

var _ AnswerCache = (*cache.TieredCache)(nil)

// Orchestrator drives one query through the stage machine:
// CLASSIFY, then either the control path straight to FINALIZE or the info
// path through RETRIEVE, SYNTHESIZE, and VALIDATE. A stage failure
// finalizes with an error payload instead of aborting the turn.
type Orchestrator struct {
	cfg         *config.Config
	classifier  *classifier.Classifier
	modelRouter *router.ModelRouter
	retriever   *retrieval.Coordinator
	validator   *validation.Pipeline
	devices     devices.Executor
	answerCache AnswerCache
	tracer      *observability.Tracer
	obs         *observability.Observability
	logger      logger.Logger
}

func New(
	cfg *config.Config,
	intentClassifier *classifier.Classifier,
	modelRouter *router.ModelRouter,
	retriever *retrieval.Coordinator,
	validator *validation.Pipeline,
	deviceExecutor devices.Executor,
	answerCache AnswerCache,
	tracer *observability.Tracer,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		classifier:  intentClassifier,
		modelRouter: modelRouter,
		retriever:   retriever,
		validator:   validator,
		devices:     deviceExecutor,
		answerCache: answerCache,
		tracer:      tracer,
		obs:         obs,
		logger: log.With(map[string]interface{}{
			"component": "orchestrator",
		}),
	}
}

// run captures one request's mutable stage state.
type run struct {
	query     *models.Query
	latencies map[string]int64
}

// Process executes one conversational turn end to end. It always returns
// a response; information queries never surface a raw error.
func (o *Orchestrator) Process(ctx context.Context, req *models.Request) *models.Response {
	r := &run{
		query: &models.Query{
			ID:        uuid.New().String(),
			Text:      req.QueryText,
			SessionID: req.SessionID,
			History:   req.ConversationHistory,
			CreatedAt: time.Now(),
		},
		latencies: make(map[string]int64),
	}

	log := o.logger.With(map[string]interface{}{
		"requestId": r.query.ID,
		"sessionId": r.query.SessionID,
	})
	log.Info("processing query", map[string]interface{}{
		"length": len(req.QueryText),
	})

	if cached, ok := o.checkAnswerCache(ctx, r); ok {
		log.Info("answer served from cache", nil)
		metrics.QueriesTotal.WithLabelValues(string(cached.IntentCategory), "cached").Inc()
		return cached
	}

	var result *models.ClassificationResult
	o.stage(ctx, r, StageClassify, o.cfg.Stages.Classify, func(stageCtx context.Context) {
		result = o.classifier.Classify(stageCtx, r.query.Text, r.query.History)
	})

	response := o.route(ctx, r, result)
	o.finalize(ctx, r, result, response)
	return response
}

// route dispatches on the classification outcome.
func (o *Orchestrator) route(ctx context.Context, r *run, result *models.ClassificationResult) *models.Response {
	if result.Ambiguous {
		return o.clarificationResponse(r, result)
	}
	if result.Category == models.CategoryUnknown && result.Provisional(o.cfg.Classifier.ClarifyBelow) {
		return &models.Response{
			AnswerText:       "I'm not sure what you're asking. Could you rephrase that?",
			IntentCategory:   result.Category,
			Confidence:       result.Confidence,
			Citations:        []string{},
			ValidationStatus: models.ValidationSkipped,
		}
	}

	if result.Compound() {
		return o.processCompound(ctx, r, result)
	}
	return o.processSingle(ctx, r, r.query.Text, result.Category, result.Confidence, result.Entities)
}

// processCompound runs each sub-intent sequentially and merges the
// answers in order.
func (o *Orchestrator) processCompound(ctx context.Context, r *run, result *models.ClassificationResult) *models.Response {
	var (
		answers    []string
		citations  []string
		seen       = map[string]bool{}
		status     = models.ValidationPass
		confidence = 1.0
	)

	for _, sub := range result.SubIntents {
		subResponse := o.processSingle(ctx, r, sub.Text, sub.Category, sub.Confidence, sub.Entities)
		answers = append(answers, subResponse.AnswerText)
		for _, c := range subResponse.Citations {
			if !seen[c] {
				seen[c] = true
				citations = append(citations, c)
			}
		}
		if worseState(subResponse.ValidationStatus, status) {
			status = subResponse.ValidationStatus
		}
		if subResponse.Confidence < confidence {
			confidence = subResponse.Confidence
		}
	}

	return &models.Response{
		AnswerText:       strings.Join(answers, " "),
		IntentCategory:   result.Category,
		Confidence:       confidence,
		Citations:        citations,
		ValidationStatus: status,
	}
}

// processSingle runs one intent down the control or info path. A category
// below the trust threshold is provisional: rather than act on a guess,
// the query runs the info path against the GENERAL provider set.
func (o *Orchestrator) processSingle(ctx context.Context, r *run, queryText string, category models.Category, confidence float64, entities map[string]string) *models.Response {
	if confidence < o.cfg.Classifier.TrustThreshold {
		o.logger.Info("provisional classification, widening to general", map[string]interface{}{
			"category":   string(category),
			"confidence": confidence,
		})
		category = models.CategoryGeneral
	}
	if category == models.CategoryControl {
		return o.controlPath(ctx, r, queryText, confidence, entities)
	}
	return o.infoPath(ctx, r, queryText, category, confidence, entities)
}

// controlPath executes a device command directly, skipping retrieval,
// synthesis, and validation.
func (o *Orchestrator) controlPath(ctx context.Context, r *run, queryText string, confidence float64, entities map[string]string) *models.Response {
	entity := entities["device"]
	action := entities["action"]
	if entity == "" || action == "" {
		return &models.Response{
			AnswerText:       "I couldn't tell which device to control. Could you name the device and the action?",
			IntentCategory:   models.CategoryControl,
			Confidence:       confidence,
			Citations:        []string{},
			ValidationStatus: models.ValidationSkipped,
		}
	}

	params := map[string]string{}
	if v := entities["value"]; v != "" {
		params["value"] = v
	}

	var (
		result *devices.ExecuteResult
		err    error
	)
	o.stage(ctx, r, StageControl, o.cfg.Stages.Control, func(stageCtx context.Context) {
		result, err = o.devices.Execute(stageCtx, entity, action, params)
	})
	if err != nil {
		stdErr := apperrors.NewDeviceExecuteFailedError(entity, action, err)
		return &models.Response{
			AnswerText:       fmt.Sprintf("Sorry, I couldn't reach the %s. Please try again.", entity),
			IntentCategory:   models.CategoryControl,
			Confidence:       confidence,
			Citations:        []string{},
			ValidationStatus: models.ValidationSkipped,
			Error:            string(stdErr.Code),
		}
	}

	answer := fmt.Sprintf("Done. The %s is now %s.", entity, result.State)
	return &models.Response{
		AnswerText:       answer,
		IntentCategory:   models.CategoryControl,
		Confidence:       confidence,
		Citations:        []string{},
		ValidationStatus: models.ValidationSkipped,
	}
}

// infoPath retrieves evidence, synthesizes an answer, and validates it.
func (o *Orchestrator) infoPath(ctx context.Context, r *run, queryText string, category models.Category, confidence float64, entities map[string]string) *models.Response {
	var evidence *models.FusedEvidence
	o.stage(ctx, r, StageRetrieve, o.cfg.Stages.Retrieve, func(stageCtx context.Context) {
		evidence = o.retriever.Retrieve(stageCtx, queryText, category, entities)
	})
	if evidence == nil {
		evidence = &models.FusedEvidence{}
	}
	if evidence.Empty() && len(evidence.FailedProviders) > 0 {
		stdErr := apperrors.NewAllProvidersFailedError(string(category))
		o.logger.Warn("all providers failed", map[string]interface{}{
			"code":     string(stdErr.Code),
			"category": string(category),
			"failed":   evidence.FailedProviders,
		})
	}

	subQuery := &models.Query{
		ID:        r.query.ID,
		Text:      queryText,
		SessionID: r.query.SessionID,
		History:   r.query.History,
		CreatedAt: r.query.CreatedAt,
	}

	tier := o.modelRouter.SelectTier(category, queryText)
	var (
		generated *llm.GenerateResult
		genErr    error
	)
	o.stage(ctx, r, StageSynthesize, o.cfg.Stages.Synthesize, func(stageCtx context.Context) {
		generated, genErr = o.modelRouter.Generate(stageCtx, tier, &llm.GenerateRequest{
			Prompt:      buildSynthesisPrompt(subQuery, evidence, ""),
			MaxTokens:   512,
			Temperature: 0.4,
		})
	})
	if genErr != nil {
		return o.synthesisFailureResponse(category, tier, confidence, genErr)
	}

	regenerate := func(regenCtx context.Context, instruction string) (string, error) {
		retry, err := o.modelRouter.Generate(regenCtx, tier, &llm.GenerateRequest{
			Prompt:      buildSynthesisPrompt(subQuery, evidence, instruction),
			MaxTokens:   512,
			Temperature: 0.2,
		})
		if err != nil {
			return "", err
		}
		return retry.Text, nil
	}

	var verdict *models.ValidationVerdict
	o.stage(ctx, r, StageValidate, o.cfg.Stages.Validate, func(stageCtx context.Context) {
		verdict = o.validator.Validate(stageCtx, queryText, category, confidence, evidence, strings.TrimSpace(generated.Text), regenerate)
	})

	return &models.Response{
		AnswerText:       verdict.FinalAnswer,
		IntentCategory:   category,
		Confidence:       confidence,
		Citations:        evidence.Citations(),
		ValidationStatus: verdict.State,
	}
}

// synthesisFailureResponse maps a generation error to the response
// payload. Only an exhausted model downgrade surfaces as an error code;
// everything else degrades to an honest no-data answer.
func (o *Orchestrator) synthesisFailureResponse(category models.Category, tier llm.ModelTier, confidence float64, genErr error) *models.Response {
	response := &models.Response{
		AnswerText:       "I don't have an answer for that right now. Please try again in a moment.",
		IntentCategory:   category,
		Confidence:       confidence,
		Citations:        []string{},
		ValidationStatus: models.ValidationSkipped,
	}

	var stdErr *apperrors.StandardError
	if errors.As(genErr, &stdErr) && apperrors.UserVisible(stdErr.Code) {
		response.Error = string(stdErr.Code)
		return response
	}
	if errors.Is(genErr, llm.ErrModelTimeout) {
		timeoutErr := apperrors.NewModelTimeoutError(string(tier))
		o.logger.Warn("synthesis timed out", map[string]interface{}{
			"code":     string(timeoutErr.Code),
			"category": string(category),
		})
	}
	return response
}

// clarificationResponse asks the user to resolve an ambiguous entity
// instead of guessing a sense.
func (o *Orchestrator) clarificationResponse(r *run, result *models.ClassificationResult) *models.Response {
	stdErr := apperrors.NewClassificationAmbiguousError(result.Confidence)
	o.logger.Info("asking for clarification", map[string]interface{}{
		"code":   string(stdErr.Code),
		"entity": result.AmbiguousEntity,
	})

	question := fmt.Sprintf("Which %s do you mean?", result.AmbiguousEntity)
	for _, rule := range o.cfg.Classifier.Disambiguation {
		if rule.Entity == result.AmbiguousEntity && len(rule.Senses) > 0 {
			question = fmt.Sprintf("Which %s do you mean: %s?", result.AmbiguousEntity, strings.Join(rule.Senses, " or "))
			break
		}
	}

	return &models.Response{
		AnswerText:       question,
		IntentCategory:   result.Category,
		Confidence:       result.Confidence,
		Citations:        []string{},
		ValidationStatus: models.ValidationSkipped,
	}
}

// checkAnswerCache serves a previously finalized response when the cache
// holds one for this query.
func (o *Orchestrator) checkAnswerCache(ctx context.Context, r *run) (*models.Response, bool) {
	if o.answerCache == nil {
		return nil, false
	}

	entry, ok := o.answerCache.Get(ctx, r.query.Text)
	if !ok {
		return nil, false
	}

	var response models.Response
	if err := json.Unmarshal([]byte(entry.Value), &response); err != nil {
		return nil, false
	}
	response.StageLatencyMS = map[string]int64{StageFinalize: 0}
	return &response, true
}

// finalize records metrics and writes the answer cache. Only clean PASS
// outcomes are cached; hedged, clarifying, and error payloads are not
// worth replaying.
func (o *Orchestrator) finalize(ctx context.Context, r *run, result *models.ClassificationResult, response *models.Response) {
	start := time.Now()

	response.StageLatencyMS = r.latencies
	if response.Citations == nil {
		response.Citations = []string{}
	}

	status := "ok"
	if response.Error != "" {
		status = "error"
	}
	metrics.QueriesTotal.WithLabelValues(string(response.IntentCategory), status).Inc()
	if o.obs != nil {
		o.obs.RecordQueryProcessed(ctx, string(response.IntentCategory), status)
	}

	if o.answerCache != nil && response.Error == "" && response.ValidationStatus == models.ValidationPass {
		if encoded, err := json.Marshal(response); err == nil {
			o.answerCache.Put(ctx, r.query.Text, string(encoded))
		}
	}

	r.latencies[StageFinalize] = time.Since(start).Milliseconds()
	o.logger.Info("query finalized", map[string]interface{}{
		"requestId": r.query.ID,
		"category":  string(response.IntentCategory),
		"status":    string(response.ValidationStatus),
	})
}

// stage runs fn under the stage's deadline budget, recording its duration
// and a trace span.
func (o *Orchestrator) stage(ctx context.Context, r *run, name string, budgetMS int, fn func(context.Context)) {
	stageCtx := ctx
	if budgetMS > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(budgetMS)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	if o.tracer != nil {
		spanCtx, span := o.tracer.StartStage(stageCtx, name, r.query.ID)
		defer span.End()
		stageCtx = spanCtx
	}

	fn(stageCtx)

	elapsed := time.Since(start)
	r.latencies[name] += elapsed.Milliseconds()
	metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if o.obs != nil {
		o.obs.RecordStageDuration(ctx, name, elapsed)
	}
}

// worseState orders validation states from best to worst for merging
// compound results.
func worseState(candidate, current models.ValidationState) bool {
	rank := map[models.ValidationState]int{
		models.ValidationPass:    0,
		models.ValidationSkipped: 1,
		models.ValidationRetry:   2,
		models.ValidationFail:    3,
		models.ValidationHedge:   4,
	}
	return rank[candidate] > rank[current]
}
