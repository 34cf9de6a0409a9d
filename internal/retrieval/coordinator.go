// internal/retrieval/coordinator.go
package retrieval

import (
	"context"
	"errors"
	"sort"
	"time"

	"query-orchestrator/internal/common/config"
	apperrors "query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
	"query-orchestrator/internal/models"
	"query-orchestrator/internal/retrieval/providers"
)

// Coordinator fans a classified query out to every eligible provider
// concurrently and fuses whatever completed before the global deadline.
// One slow provider never blocks the whole request.
type Coordinator struct {
	cfg       *config.RetrievalConfig
	routing   *config.RoutingConfig
	providers map[string]Provider
	fuser     *Fuser
	logger    logger.Logger
}

func NewCoordinator(cfg *config.RetrievalConfig, routing *config.RoutingConfig, providers []Provider, log logger.Logger) *Coordinator {
	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	return &Coordinator{
		cfg:       cfg,
		routing:   routing,
		providers: byID,
		fuser:     NewFuser(cfg, routing),
		logger: log.With(map[string]interface{}{
			"component": "retrieval-coordinator",
		}),
	}
}

type providerOutcome struct {
	providerID string
	results    []models.ProviderResult
	err        error
}

// Retrieve runs the category's providers concurrently. A provider error or
// timeout drops that provider from the result set; all providers failing
// yields empty evidence, which is a valid state rather than an error.
func (c *Coordinator) Retrieve(ctx context.Context, queryText string, category models.Category, entities map[string]string) *models.FusedEvidence {
	eligible := c.eligibleProviders(category)
	if len(eligible) == 0 {
		c.logger.Warn("no providers routed for category", map[string]interface{}{
			"category": string(category),
		})
		return &models.FusedEvidence{}
	}

	globalCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.GlobalTimeout)*time.Millisecond)
	defer cancel()

	// Buffered so an abandoned provider can still complete its send.
	outcomes := make(chan providerOutcome, len(eligible))
	for _, provider := range eligible {
		go func(p Provider) {
			callCtx, callCancel := context.WithTimeout(globalCtx, p.Timeout())
			defer callCancel()

			start := time.Now()
			results, err := p.Search(callCtx, queryText, category, entities)
			if err != nil {
				err = classifyProviderFailure(p.ID(), callCtx, err)
			}
			outcomes <- providerOutcome{providerID: p.ID(), results: results, err: err}

			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.ProviderCalls.WithLabelValues(p.ID(), status).Inc()
			c.logger.Debug("provider call finished", map[string]interface{}{
				"provider": p.ID(),
				"status":   status,
				"duration": time.Since(start).String(),
			})
		}(provider)
	}

	// Collect against the global deadline rather than joining the group:
	// a provider that ignores cancellation is abandoned, not waited for.
	var results []models.ProviderResult
	seen := make(map[string]bool, len(eligible))
	var failed []string

collect:
	for range eligible {
		select {
		case outcome := <-outcomes:
			seen[outcome.providerID] = true
			if outcome.err != nil {
				c.logger.Warn("provider excluded from evidence", map[string]interface{}{
					"provider": outcome.providerID,
					"error":    outcome.err.Error(),
				})
				failed = append(failed, outcome.providerID)
				continue
			}
			results = append(results, outcome.results...)
		case <-globalCtx.Done():
			break collect
		}
	}
	for _, p := range eligible {
		if !seen[p.ID()] {
			failed = append(failed, p.ID())
		}
	}

	sort.Strings(failed)
	return c.fuser.Fuse(category, results, failed)
}

// classifyProviderFailure maps a raw provider error onto the standard
// taxonomy so failure logs carry a stable code.
func classifyProviderFailure(providerID string, callCtx context.Context, err error) error {
	if errors.Is(err, providers.ErrProviderTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		callCtx.Err() == context.DeadlineExceeded {
		return apperrors.NewProviderTimeoutError(providerID)
	}
	return apperrors.NewProviderError(providerID, err)
}

// eligibleProviders resolves the routing table entry for the category,
// preserving priority order and skipping unregistered ids.
func (c *Coordinator) eligibleProviders(category models.Category) []Provider {
	ids := c.routing.Table[string(category)]
	eligible := make([]Provider, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.providers[id]; ok {
			eligible = append(eligible, p)
		}
	}
	return eligible
}
