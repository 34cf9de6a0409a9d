// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/cache"
	"query-orchestrator/internal/classifier"
	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/devices"
	"query-orchestrator/internal/llm"
	"query-orchestrator/internal/models"
	"query-orchestrator/internal/retrieval"
	"query-orchestrator/internal/router"
	"query-orchestrator/internal/validation"
)

// scriptedModel routes Generate calls by prompt content.
type scriptedModel struct {
	generate func(prompt string) (string, error)
}

func (s *scriptedModel) Generate(ctx context.Context, tier llm.ModelTier, req *llm.GenerateRequest) (*llm.GenerateResult, error) {
	text, err := s.generate(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &llm.GenerateResult{Text: text}, nil
}

type testProvider struct {
	id       string
	payloads []string
	err      error
	calls    atomic.Int32
}

func (p *testProvider) ID() string             { return p.id }
func (p *testProvider) Timeout() time.Duration { return time.Second }

func (p *testProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	results := make([]models.ProviderResult, 0, len(p.payloads))
	for _, payload := range p.payloads {
		results = append(results, models.ProviderResult{
			ProviderID: p.id,
			Payload:    payload,
			Confidence: 0.85,
			FetchedAt:  time.Now(),
			Success:    true,
		})
	}
	return results, nil
}

type fakeExecutor struct {
	entity string
	action string
	calls  int
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, entity, action string, params map[string]string) (*devices.ExecuteResult, error) {
	f.calls++
	f.entity, f.action = entity, action
	if f.err != nil {
		return nil, f.err
	}
	return &devices.ExecuteResult{Success: true, State: action}, nil
}

func defaultGenerate(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Classify the user query"):
		return `{"category": "GENERAL", "confidence": 0.75}`, nil
	case strings.Contains(prompt, "checking an answer"):
		return `{"hallucination": false, "reason": ""}`, nil
	case strings.Contains(prompt, "Evidence: none available"):
		return "I don't have current data on that right now.", nil
	case strings.Contains(prompt, "User Question: what's the weather"):
		return "The weather is sunny and mild.", nil
	case strings.Contains(prompt, "User Question: what time is it"):
		return "The time is half past five.", nil
	default:
		return "Here is what the evidence shows.", nil
	}
}

func newTestOrchestrator(t *testing.T, model llm.Client, providers []retrieval.Provider, exec devices.Executor, answerCache AnswerCache, mutate func(*config.Config)) *Orchestrator {
	t.Helper()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewNoOpLogger()
	intentClassifier := classifier.New(&cfg.Classifier, model, nil, log)
	modelRouter := router.New(&cfg.Models, model, log)
	retriever := retrieval.NewCoordinator(&cfg.Retrieval, &cfg.Routing, providers, log)
	validator := validation.NewPipeline(&cfg.Validation, model, log)

	return New(cfg, intentClassifier, modelRouter, retriever, validator, exec, answerCache, nil, nil, log)
}

func TestProcess_ControlPathSkipsRetrievalAndValidation(t *testing.T) {
	model := &scriptedModel{generate: defaultGenerate}
	provider := &testProvider{id: "web", payloads: []string{"anything"}}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(t, model, []retrieval.Provider{provider}, exec, nil, nil)

	response := o.Process(context.Background(), &models.Request{
		QueryText: "turn on the office lights",
		SessionID: "s-1",
	})

	assert.Equal(t, models.CategoryControl, response.IntentCategory)
	assert.GreaterOrEqual(t, response.Confidence, 0.8)
	assert.Equal(t, models.ValidationSkipped, response.ValidationStatus)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, "office lights", exec.entity)
	assert.Equal(t, "on", exec.action)
	assert.Equal(t, int32(0), provider.calls.Load(), "control path must not retrieve")

	assert.Contains(t, response.StageLatencyMS, StageClassify)
	assert.Contains(t, response.StageLatencyMS, StageControl)
	assert.NotContains(t, response.StageLatencyMS, StageRetrieve)
	assert.NotContains(t, response.StageLatencyMS, StageValidate)
}

func TestProcess_CompoundQueryMergesAnswers(t *testing.T) {
	model := &scriptedModel{generate: defaultGenerate}
	weather := &testProvider{id: "weather", payloads: []string{"sunny and mild in boston"}}
	web := &testProvider{id: "web", payloads: []string{"the time is half past five"}}
	o := newTestOrchestrator(t, model, []retrieval.Provider{weather, web}, &fakeExecutor{}, nil, nil)

	response := o.Process(context.Background(), &models.Request{
		QueryText: "what's the weather and what time is it",
		SessionID: "s-2",
	})

	assert.Contains(t, response.AnswerText, "The weather is sunny and mild.")
	assert.Contains(t, response.AnswerText, "The time is half past five.")
	assert.Equal(t, models.ValidationPass, response.ValidationStatus)
	assert.Equal(t, int32(1), weather.calls.Load())
	assert.GreaterOrEqual(t, web.calls.Load(), int32(1))
	assert.Contains(t, response.Citations, "weather")
}

func TestProcess_RepeatedQueryServedFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Cache.Enabled = true
	answerCache := cache.New(rdb, &cfg.Cache, logger.NewNoOpLogger())

	model := &scriptedModel{generate: defaultGenerate}
	weather := &testProvider{id: "weather", payloads: []string{"sunny and mild in boston"}}
	web := &testProvider{id: "web", payloads: []string{"sunny and mild in boston today"}}
	o := newTestOrchestrator(t, model, []retrieval.Provider{weather, web}, &fakeExecutor{}, answerCache, nil)

	req := &models.Request{QueryText: "what's the weather in boston", SessionID: "s-3"}

	first := o.Process(context.Background(), req)
	require.Equal(t, models.ValidationPass, first.ValidationStatus)
	require.Equal(t, int32(1), weather.calls.Load())

	second := o.Process(context.Background(), req)

	assert.Equal(t, int32(1), weather.calls.Load(), "cached answer must skip provider calls")
	assert.Equal(t, first.AnswerText, second.AnswerText)
	assert.Equal(t, first.IntentCategory, second.IntentCategory)
	assert.Equal(t, first.Citations, second.Citations)
	assert.Equal(t, first.ValidationStatus, second.ValidationStatus)
}

func TestProcess_AmbiguousEntityAsksForClarification(t *testing.T) {
	model := &scriptedModel{generate: defaultGenerate}
	sports := &testProvider{id: "sports", payloads: []string{"game data"}}
	o := newTestOrchestrator(t, model, []retrieval.Provider{sports}, &fakeExecutor{}, nil, func(cfg *config.Config) {
		cfg.Classifier.Disambiguation = []config.DisambiguationRule{{
			Entity: "giants",
			Keywords: map[string]string{
				"baseball": "san francisco giants",
				"football": "new york giants",
			},
			Senses: []string{"the baseball team", "the football team"},
		}}
	})

	response := o.Process(context.Background(), &models.Request{
		QueryText: "when do the giants play next",
		SessionID: "s-4",
	})

	assert.Contains(t, response.AnswerText, "Which giants do you mean")
	assert.Contains(t, response.AnswerText, "the baseball team or the football team")
	assert.Equal(t, models.ValidationSkipped, response.ValidationStatus)
	assert.Equal(t, int32(0), sports.calls.Load(), "clarification must not guess and retrieve")
}

func TestProcess_AmbiguousEntityInCompoundQueryAsksForClarification(t *testing.T) {
	model := &scriptedModel{generate: defaultGenerate}
	sports := &testProvider{id: "sports", payloads: []string{"game data"}}
	weather := &testProvider{id: "weather", payloads: []string{"sunny and mild in boston"}}
	o := newTestOrchestrator(t, model, []retrieval.Provider{sports, weather}, &fakeExecutor{}, nil, func(cfg *config.Config) {
		cfg.Classifier.Disambiguation = []config.DisambiguationRule{{
			Entity: "giants",
			Keywords: map[string]string{
				"baseball": "san francisco giants",
				"football": "new york giants",
			},
			Senses: []string{"the baseball team", "the football team"},
		}}
	})

	response := o.Process(context.Background(), &models.Request{
		QueryText: "when do the giants play next and what's the weather",
		SessionID: "s-8",
	})

	assert.Contains(t, response.AnswerText, "Which giants do you mean")
	assert.Equal(t, models.ValidationSkipped, response.ValidationStatus)
	assert.Equal(t, int32(0), sports.calls.Load(), "an ambiguous sub-intent must not be guessed and retrieved")
	assert.Equal(t, int32(0), weather.calls.Load(), "the chain must not run past an unresolved entity")
}

func TestProcess_ProvisionalClassificationRoutesToGeneral(t *testing.T) {
	model := &scriptedModel{generate: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Classify the user query") {
			return `{"category": "WEATHER", "confidence": 0.4}`, nil
		}
		return defaultGenerate(prompt)
	}}
	weather := &testProvider{id: "weather", payloads: []string{"sunny and mild in boston"}}
	web := &testProvider{id: "web", payloads: []string{"general page text"}}
	o := newTestOrchestrator(t, model, []retrieval.Provider{weather, web}, &fakeExecutor{}, nil, nil)

	response := o.Process(context.Background(), &models.Request{
		QueryText: "will I need a jacket later",
		SessionID: "s-9",
	})

	assert.Equal(t, models.CategoryGeneral, response.IntentCategory, "an untrusted category must not drive routing")
	assert.Equal(t, 0.4, response.Confidence)
	assert.Equal(t, int32(0), weather.calls.Load(), "provisional weather guess must not call the weather provider")
	assert.Equal(t, int32(1), web.calls.Load())
}

func TestProcess_AllProvidersFailedYieldsHonestAnswer(t *testing.T) {
	model := &scriptedModel{generate: defaultGenerate}
	weather := &testProvider{id: "weather", err: errors.New("upstream down")}
	web := &testProvider{id: "web", err: errors.New("upstream down")}
	o := newTestOrchestrator(t, model, []retrieval.Provider{weather, web}, &fakeExecutor{}, nil, nil)

	response := o.Process(context.Background(), &models.Request{
		QueryText: "what's the weather in boston",
		SessionID: "s-5",
	})

	assert.Empty(t, response.Error, "empty evidence is not a user-visible error")
	assert.Equal(t, models.ValidationPass, response.ValidationStatus)
	assert.Contains(t, response.AnswerText, "don't have current data")
	assert.Empty(t, response.Citations)
}

func TestProcess_ModelUnavailableSurfacesError(t *testing.T) {
	model := &scriptedModel{generate: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Classify the user query") {
			return `{"category": "GENERAL", "confidence": 0.75}`, nil
		}
		return "", llm.ErrModelUnavailable
	}}
	web := &testProvider{id: "web", payloads: []string{"some page text"}}
	o := newTestOrchestrator(t, model, []retrieval.Provider{web}, &fakeExecutor{}, nil, nil)

	response := o.Process(context.Background(), &models.Request{
		QueryText: "tell me something interesting about deep sea creatures",
		SessionID: "s-6",
	})

	assert.Equal(t, "MODEL_UNAVAILABLE", response.Error)
	assert.NotEmpty(t, response.AnswerText, "even a hard failure carries a readable message")
}

func TestProcess_DeviceFailureReportsWithoutRawError(t *testing.T) {
	model := &scriptedModel{generate: defaultGenerate}
	exec := &fakeExecutor{err: devices.ErrExecuteFailed}
	o := newTestOrchestrator(t, model, nil, exec, nil, nil)

	response := o.Process(context.Background(), &models.Request{
		QueryText: "turn off the lights",
		SessionID: "s-7",
	})

	assert.Equal(t, "DEVICE_EXECUTE_FAILED", response.Error)
	assert.Contains(t, response.AnswerText, "couldn't reach the lights")
}
