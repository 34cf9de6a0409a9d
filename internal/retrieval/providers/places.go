// internal/retrieval/providers/places.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"query-orchestrator/internal/common/database"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

const PlacesProviderID = "places"

// PlacesProvider searches the curated local-business index in
// Elasticsearch.
type PlacesProvider struct {
	es      *database.ElasticsearchClient
	index   string
	timeout time.Duration
	logger  logger.Logger
}

func NewPlaces(es *database.ElasticsearchClient, index string, timeoutMS int, log logger.Logger) *PlacesProvider {
	return &PlacesProvider{
		es:      es,
		index:   index,
		timeout: time.Duration(timeoutMS) * time.Millisecond,
		logger: log.With(map[string]interface{}{
			"provider": PlacesProviderID,
		}),
	}
}

func (p *PlacesProvider) ID() string { return PlacesProviderID }

func (p *PlacesProvider) Timeout() time.Duration { return p.timeout }

type placeDoc struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	City     string  `json:"city"`
	Category string  `json:"category"`
	Rating   float64 `json:"rating"`
	Hours    string  `json:"hours"`
}

type placesSearchResponse struct {
	Hits struct {
		MaxScore float64 `json:"max_score"`
		Hits     []struct {
			Score  float64  `json:"_score"`
			Source placeDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (p *PlacesProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	body := p.buildSearchBody(queryText, entities)

	start := time.Now()
	res, err := p.es.Client.Search(
		p.es.Client.Search.WithContext(ctx),
		p.es.Client.Search.WithIndex(p.index),
		p.es.Client.Search.WithBody(strings.NewReader(body)),
		p.es.Client.Search.WithSize(5),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrProviderTimeout
		}
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search returned %s", ErrProviderError, res.Status())
	}

	var resp placesSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, err
	}

	results := make([]models.ProviderResult, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		doc := hit.Source
		payload := fmt.Sprintf("%s, %s, %s", doc.Name, doc.Address, doc.City)
		if doc.Rating > 0 {
			payload += fmt.Sprintf(", rated %.1f", doc.Rating)
		}
		if doc.Hours != "" {
			payload += fmt.Sprintf(", hours %s", doc.Hours)
		}

		confidence := 0.8
		if resp.Hits.MaxScore > 0 {
			confidence = 0.5 + 0.4*(hit.Score/resp.Hits.MaxScore)
		}

		results = append(results, models.ProviderResult{
			ProviderID: PlacesProviderID,
			Payload:    payload,
			Provenance: fmt.Sprintf("es:%s", p.index),
			Confidence: confidence,
			Latency:    time.Since(start),
			FetchedAt:  time.Now(),
			Success:    true,
		})
	}

	return results, nil
}

func (p *PlacesProvider) buildSearchBody(queryText string, entities map[string]string) string {
	must := []string{fmt.Sprintf(
		`{"multi_match": {"query": %q, "fields": ["name^2", "category", "description"]}}`,
		queryText,
	)}
	if location := entities["location"]; location != "" {
		must = append(must, fmt.Sprintf(`{"match": {"city": %q}}`, location))
	}
	return fmt.Sprintf(`{"query": {"bool": {"must": [%s]}}}`, strings.Join(must, ","))
}
