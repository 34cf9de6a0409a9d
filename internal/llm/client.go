// internal/llm/client.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
)

// ModelTier selects which model backend serves a call.
type ModelTier string

const (
	TierSmall  ModelTier = "SMALL"
	TierMedium ModelTier = "MEDIUM"
	TierLarge  ModelTier = "LARGE"
)

var (
	ErrModelTimeout     = errors.New("MODEL_TIMEOUT")
	ErrModelUnavailable = errors.New("MODEL_UNAVAILABLE")
	ErrBadResponse      = errors.New("MODEL_BAD_RESPONSE")
)

// GenerateRequest carries one inference call.
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// GenerateResult is the gateway's reply.
type GenerateResult struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Client is the model inference boundary. Inference is opaque: possibly
// slow, possibly unavailable.
type Client interface {
	Generate(ctx context.Context, tier ModelTier, req *GenerateRequest) (*GenerateResult, error)
}

// HTTPClient talks to the tiered model gateway over HTTP.
type HTTPClient struct {
	cfg    *config.ModelsConfig
	client *http.Client
	logger logger.Logger
}

func NewHTTPClient(cfg *config.ModelsConfig, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		// No client-level timeout; deadlines come from the per-stage context.
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"component": "llm-client",
		}),
	}
}

func (c *HTTPClient) tierConfig(tier ModelTier) config.ModelTierConfig {
	switch tier {
	case TierSmall:
		return c.cfg.Small
	case TierLarge:
		return c.cfg.Large
	default:
		return c.cfg.Medium
	}
}

// Generate issues one inference call against the given tier, retrying
// transient failures with exponential backoff inside the context deadline.
func (c *HTTPClient) Generate(ctx context.Context, tier ModelTier, genReq *GenerateRequest) (*GenerateResult, error) {
	tierCfg := c.tierConfig(tier)
	if tierCfg.BaseURL == "" {
		metrics.ModelCalls.WithLabelValues(string(tier), "unavailable").Inc()
		return nil, fmt.Errorf("%w: tier %s not configured", ErrModelUnavailable, tier)
	}

	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(tierCfg.Timeout))
	defer cancel()

	body, _ := json.Marshal(map[string]interface{}{
		"model":       tierCfg.Model,
		"prompt":      genReq.Prompt,
		"max_tokens":  genReq.MaxTokens,
		"temperature": genReq.Temperature,
	})

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.ModelCalls.WithLabelValues(string(tier), "timeout").Inc()
				return nil, ErrModelTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", tierCfg.BaseURL+"/api/ai/generate", bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			metrics.ModelCalls.WithLabelValues(string(tier), "timeout").Inc()
			return nil, ErrModelTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		metrics.ModelCalls.WithLabelValues(string(tier), "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, lastErr)
	}
	if resp == nil {
		metrics.ModelCalls.WithLabelValues(string(tier), "error").Inc()
		return nil, fmt.Errorf("%w: no successful response after retries", ErrModelUnavailable)
	}
	defer resp.Body.Close()

	var apiResponse GenerateResult
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.ModelCalls.WithLabelValues(string(tier), "error").Inc()
		return nil, fmt.Errorf("%w: decode error: %v", ErrBadResponse, err)
	}

	metrics.ModelCalls.WithLabelValues(string(tier), "success").Inc()
	c.logger.Debug("model call completed", map[string]interface{}{
		"tier":       string(tier),
		"tokenCount": apiResponse.TokenCount,
	})

	return &apiResponse, nil
}
