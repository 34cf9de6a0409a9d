// internal/retrieval/providers/airports.go
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

const AirportsProviderID = "airports"

// AirportsProvider fetches flight status from the aviation data API.
type AirportsProvider struct {
	cfg    *config.ProviderConfig
	client *http.Client
	logger logger.Logger
}

func NewAirports(cfg *config.ProviderConfig, log logger.Logger) *AirportsProvider {
	return &AirportsProvider{
		cfg:    cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"provider": AirportsProviderID,
		}),
	}
}

func (p *AirportsProvider) ID() string { return AirportsProviderID }

func (p *AirportsProvider) Timeout() time.Duration {
	return time.Duration(p.cfg.Timeout) * time.Millisecond
}

type flightResponse struct {
	Flight    string `json:"flight"`
	Status    string `json:"status"`
	Gate      string `json:"gate"`
	Terminal  string `json:"terminal"`
	Scheduled string `json:"scheduled"`
	Estimated string `json:"estimated"`
}

func (p *AirportsProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	query := url.Values{}
	if flight := entities["flight"]; flight != "" {
		query.Set("flight", flight)
	} else if location := entities["location"]; location != "" {
		query.Set("airport", location)
	} else {
		return nil, fmt.Errorf("%w: no flight or airport entity", ErrProviderError)
	}
	query.Set("key", p.cfg.APIKey)

	endpoint := fmt.Sprintf("%s/v1/flights?%s", p.cfg.BaseURL, query.Encode())

	start := time.Now()
	var resp flightResponse
	if err := getJSON(ctx, p.client, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	payload := fmt.Sprintf("Flight %s is %s, scheduled %s", resp.Flight, resp.Status, resp.Scheduled)
	if resp.Estimated != "" && resp.Estimated != resp.Scheduled {
		payload += fmt.Sprintf(", now estimated %s", resp.Estimated)
	}
	if resp.Gate != "" {
		payload += fmt.Sprintf(", gate %s terminal %s", resp.Gate, resp.Terminal)
	}

	return []models.ProviderResult{{
		ProviderID: AirportsProviderID,
		Payload:    payload,
		Provenance: p.cfg.BaseURL,
		Confidence: 0.9,
		Latency:    time.Since(start),
		FetchedAt:  time.Now(),
		Success:    true,
	}}, nil
}
