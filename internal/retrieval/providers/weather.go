// internal/retrieval/providers/weather.go
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

const WeatherProviderID = "weather"

// WeatherProvider fetches current conditions from the weather API.
type WeatherProvider struct {
	cfg    *config.ProviderConfig
	client *http.Client
	logger logger.Logger
}

func NewWeather(cfg *config.ProviderConfig, log logger.Logger) *WeatherProvider {
	return &WeatherProvider{
		cfg:    cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"provider": WeatherProviderID,
		}),
	}
}

func (p *WeatherProvider) ID() string { return WeatherProviderID }

func (p *WeatherProvider) Timeout() time.Duration {
	return time.Duration(p.cfg.Timeout) * time.Millisecond
}

type weatherResponse struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature_f"`
	Condition   string  `json:"condition"`
	Humidity    int     `json:"humidity"`
}

func (p *WeatherProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	location := entities["location"]
	if location == "" {
		location = "current location"
	}

	endpoint := fmt.Sprintf("%s/v1/current?location=%s&key=%s",
		p.cfg.BaseURL, url.QueryEscape(location), url.QueryEscape(p.cfg.APIKey))

	start := time.Now()
	var resp weatherResponse
	if err := getJSON(ctx, p.client, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	payload := fmt.Sprintf("%s, %.0fF in %s with %d%% humidity",
		resp.Condition, resp.Temperature, resp.Location, resp.Humidity)

	return []models.ProviderResult{{
		ProviderID: WeatherProviderID,
		Payload:    payload,
		Provenance: p.cfg.BaseURL,
		Confidence: 0.9,
		Latency:    time.Since(start),
		FetchedAt:  time.Now(),
		Success:    true,
	}}, nil
}
