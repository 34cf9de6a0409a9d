// internal/retrieval/providers/sports.go
package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

const SportsProviderID = "sports"

// SportsProvider fetches schedules and scores from the sports data API.
type SportsProvider struct {
	cfg    *config.ProviderConfig
	client *http.Client
	logger logger.Logger
}

func NewSports(cfg *config.ProviderConfig, log logger.Logger) *SportsProvider {
	return &SportsProvider{
		cfg:    cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"provider": SportsProviderID,
		}),
	}
}

func (p *SportsProvider) ID() string { return SportsProviderID }

func (p *SportsProvider) Timeout() time.Duration {
	return time.Duration(p.cfg.Timeout) * time.Millisecond
}

type sportsResponse struct {
	Team     string `json:"team"`
	League   string `json:"league"`
	Opponent string `json:"opponent"`
	StartsAt string `json:"starts_at"`
	// LastScore is empty when the team has not played recently.
	LastScore string `json:"last_score"`
}

func (p *SportsProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	team := entities["team"]
	if sense := entities["giants"]; sense != "" {
		team = sense
	}
	if team == "" {
		return nil, fmt.Errorf("%w: no team entity", ErrProviderError)
	}

	endpoint := fmt.Sprintf("%s/v1/teams/next?team=%s&key=%s",
		p.cfg.BaseURL, url.QueryEscape(team), url.QueryEscape(p.cfg.APIKey))

	start := time.Now()
	var resp sportsResponse
	if err := getJSON(ctx, p.client, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	payload := fmt.Sprintf("The %s (%s) play the %s at %s",
		resp.Team, resp.League, resp.Opponent, resp.StartsAt)
	if resp.LastScore != "" {
		payload += fmt.Sprintf("; last result %s", resp.LastScore)
	}

	return []models.ProviderResult{{
		ProviderID: SportsProviderID,
		Payload:    payload,
		Provenance: p.cfg.BaseURL,
		Confidence: 0.85,
		Latency:    time.Since(start),
		FetchedAt:  time.Now(),
		Success:    true,
	}}, nil
}
