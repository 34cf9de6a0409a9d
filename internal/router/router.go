// internal/router/router.go
package router

import (
	"context"
	"errors"
	"strings"

	"query-orchestrator/internal/common/config"
	apperrors "query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/llm"
	"query-orchestrator/internal/models"
)

// tierTable is the deterministic category -> tier lookup. Lightweight,
// well-structured categories go to the small tier.
var tierTable = map[models.Category]llm.ModelTier{
	models.CategoryWeather:       llm.TierSmall,
	models.CategorySports:        llm.TierSmall,
	models.CategoryAirports:      llm.TierSmall,
	models.CategoryLocalBusiness: llm.TierMedium,
	models.CategoryEvents:        llm.TierMedium,
	models.CategoryGeneral:       llm.TierMedium,
	models.CategoryUnknown:       llm.TierMedium,
}

// ModelRouter picks the model tier for a query and handles downgrade when
// a backend is unreachable.
type ModelRouter struct {
	cfg    *config.ModelsConfig
	client llm.Client
	logger logger.Logger
}

func New(cfg *config.ModelsConfig, client llm.Client, log logger.Logger) *ModelRouter {
	return &ModelRouter{
		cfg:    cfg,
		client: client,
		logger: log.With(map[string]interface{}{
			"component": "model-router",
		}),
	}
}

// SelectTier returns the tier for a category and query text. Long queries
// and reasoning verbs escalate to LARGE regardless of category.
func (r *ModelRouter) SelectTier(category models.Category, queryText string) llm.ModelTier {
	if r.needsLargeTier(queryText) {
		return llm.TierLarge
	}
	if tier, ok := tierTable[category]; ok {
		return tier
	}
	return llm.TierMedium
}

func (r *ModelRouter) needsLargeTier(queryText string) bool {
	words := strings.Fields(queryText)
	if len(words) > r.cfg.LongQueryWords {
		return true
	}
	lowered := strings.ToLower(queryText)
	for _, verb := range r.cfg.ReasoningVerbs {
		if strings.Contains(lowered, verb) {
			return true
		}
	}
	return false
}

// downgrade steps one tier down. SMALL has nowhere to go.
func downgrade(tier llm.ModelTier) (llm.ModelTier, bool) {
	switch tier {
	case llm.TierLarge:
		return llm.TierMedium, true
	case llm.TierMedium:
		return llm.TierSmall, true
	default:
		return tier, false
	}
}

// Generate calls the selected tier, downgrading one tier and retrying once
// if the backend is unreachable. When no tier answers, the caller receives
// a MODEL_UNAVAILABLE error; this is the only failure that may surface to
// the user.
func (r *ModelRouter) Generate(ctx context.Context, tier llm.ModelTier, req *llm.GenerateRequest) (*llm.GenerateResult, error) {
	result, err := r.client.Generate(ctx, tier, req)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, llm.ErrModelUnavailable) {
		return nil, err
	}

	lower, ok := downgrade(tier)
	if !ok {
		return nil, apperrors.NewModelUnavailableError(string(tier), err)
	}

	r.logger.Warn("model tier unreachable, downgrading", map[string]interface{}{
		"from": string(tier),
		"to":   string(lower),
	})

	result, retryErr := r.client.Generate(ctx, lower, req)
	if retryErr == nil {
		return result, nil
	}
	if errors.Is(retryErr, llm.ErrModelUnavailable) {
		return nil, apperrors.NewModelUnavailableError(string(lower), retryErr)
	}
	return nil, retryErr
}
