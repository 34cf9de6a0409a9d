// internal/retrieval/providers/web.go
package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

const WebProviderID = "web"

var collapseWS = regexp.MustCompile(`\s+`)

// WebProvider runs a programmable web search and emits one result per
// usable hit. It is the lowest-authority fallback source.
type WebProvider struct {
	cfg    *config.WebSearchConfig
	client *http.Client
	logger logger.Logger
}

func NewWeb(cfg *config.WebSearchConfig, log logger.Logger) *WebProvider {
	return &WebProvider{
		cfg:    cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"provider": WebProviderID,
		}),
	}
}

func (p *WebProvider) ID() string { return WebProviderID }

func (p *WebProvider) Timeout() time.Duration {
	return time.Duration(p.cfg.Timeout) * time.Millisecond
}

type webSearchResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Mime    string `json:"mime"`
	} `json:"items"`
}

func (p *WebProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	query := p.buildQuery(queryText, entities)

	start := time.Now()
	var resp webSearchResponse
	if err := getJSON(ctx, p.client, p.buildSearchURL(query), nil, &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var results []models.ProviderResult
	for _, item := range resp.Items {
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}
		if seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		confidence := 0.6
		if strings.Contains(item.Link, ".gov") || strings.Contains(item.Link, ".edu") {
			confidence += 0.15
		}
		if strings.Contains(strings.ToLower(item.Title), "official") {
			confidence += 0.05
		}

		results = append(results, models.ProviderResult{
			ProviderID: WebProviderID,
			Payload:    collapseWS.ReplaceAllString(strings.TrimSpace(item.Title+": "+item.Snippet), " "),
			Provenance: item.Link,
			Confidence: confidence,
			Latency:    time.Since(start),
			FetchedAt:  time.Now(),
			Success:    true,
		})

		if p.cfg.MaxResults > 0 && len(results) >= p.cfg.MaxResults {
			break
		}
	}

	p.logger.Debug("web search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(results),
	})
	return results, nil
}

func (p *WebProvider) buildQuery(queryText string, entities map[string]string) string {
	query := queryText
	for _, key := range []string{"location", "team", "flight"} {
		if v := entities[key]; v != "" && !strings.Contains(strings.ToLower(query), v) {
			query += " " + v
		}
	}
	return collapseWS.ReplaceAllString(strings.TrimSpace(query), " ")
}

func (p *WebProvider) buildSearchURL(query string) string {
	base, _ := url.Parse(p.cfg.BaseURL)
	params := url.Values{}
	params.Add("key", p.cfg.APIKey)
	params.Add("cx", p.cfg.EngineID)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", p.cfg.MaxResults))
	base.RawQuery = params.Encode()
	return base.String()
}
