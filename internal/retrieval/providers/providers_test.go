// internal/retrieval/providers/providers_test.go
package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/database"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

func httpProviderConfig(baseURL string) *config.ProviderConfig {
	return &config.ProviderConfig{
		Enabled: true,
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 2000,
	}
}

func TestWeatherProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "boston", r.URL.Query().Get("location"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"location": "Boston", "temperature_f": 72, "condition": "Sunny", "humidity": 40}`))
	}))
	defer server.Close()

	p := NewWeather(httpProviderConfig(server.URL), logger.NewNoOpLogger())

	results, err := p.Search(context.Background(), "weather in boston", models.CategoryWeather,
		map[string]string{"location": "boston"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, WeatherProviderID, results[0].ProviderID)
	assert.Equal(t, "Sunny, 72F in Boston with 40% humidity", results[0].Payload)
	assert.True(t, results[0].Success)
}

func TestWeatherProvider_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewWeather(httpProviderConfig(server.URL), logger.NewNoOpLogger())

	_, err := p.Search(context.Background(), "weather", models.CategoryWeather, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderError)
}

func TestWeatherProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	p := NewWeather(httpProviderConfig(server.URL), logger.NewNoOpLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Search(ctx, "weather", models.CategoryWeather, nil)

	assert.ErrorIs(t, err, ErrProviderTimeout)
}

func TestSportsProvider_ResolvedSenseOverridesTeam(t *testing.T) {
	var gotTeam string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTeam = r.URL.Query().Get("team")
		w.Write([]byte(`{"team": "Giants", "league": "MLB", "opponent": "Dodgers", "starts_at": "7pm Friday"}`))
	}))
	defer server.Close()

	p := NewSports(httpProviderConfig(server.URL), logger.NewNoOpLogger())

	results, err := p.Search(context.Background(), "when do the giants play", models.CategorySports,
		map[string]string{"team": "giants", "giants": "san francisco giants"})

	require.NoError(t, err)
	assert.Equal(t, "san francisco giants", gotTeam)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Payload, "Giants (MLB) play the Dodgers")
}

func TestSportsProvider_NoTeamEntity(t *testing.T) {
	p := NewSports(httpProviderConfig("http://unused"), logger.NewNoOpLogger())

	_, err := p.Search(context.Background(), "who is playing", models.CategorySports, nil)

	assert.ErrorIs(t, err, ErrProviderError)
}

func TestWebProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "best pizza near downtown boston", r.URL.Query().Get("q"))
		w.Write([]byte(`{"items": [
			{"link": "https://a.example/pizza", "title": "Best Pizza", "snippet": "Top ten pizza spots"},
			{"link": "https://a.example/pizza", "title": "Best Pizza", "snippet": "duplicate link"},
			{"link": "https://b.example/menu.pdf", "title": "Menu", "snippet": "pdf", "mime": "application/pdf"},
			{"link": "https://c.example.gov/food", "title": "Official food safety", "snippet": "inspections"}
		]}`))
	}))
	defer server.Close()

	cfg := &config.WebSearchConfig{
		ProviderConfig: *httpProviderConfig(server.URL),
		EngineID:       "engine-1",
		MaxResults:     5,
	}
	p := NewWeb(cfg, logger.NewNoOpLogger())

	results, err := p.Search(context.Background(), "best pizza near downtown boston", models.CategoryLocalBusiness, nil)

	require.NoError(t, err)
	require.Len(t, results, 2, "duplicate links and non-HTML results are dropped")
	assert.Equal(t, "Best Pizza: Top ten pizza spots", results[0].Payload)
	assert.Greater(t, results[1].Confidence, results[0].Confidence, ".gov source gains confidence")
}

func TestEventsProvider_Search(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	starts := time.Date(2026, 9, 4, 19, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT title, venue, city, starts_at").
		WithArgs("boston").
		WillReturnRows(sqlmock.NewRows([]string{"title", "venue", "city", "starts_at"}).
			AddRow("Jazz Night", "The Blue Room", "Boston", starts))

	p := NewEvents(&database.PostgresClient{DB: db}, 2000, logger.NewNoOpLogger())

	results, err := p.Search(context.Background(), "concerts this weekend", models.CategoryEvents,
		map[string]string{"location": "boston"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Payload, "Jazz Night at The Blue Room, Boston")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsProvider_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT title, venue, city, starts_at").
		WillReturnError(assert.AnError)

	p := NewEvents(&database.PostgresClient{DB: db}, 2000, logger.NewNoOpLogger())

	_, err = p.Search(context.Background(), "concerts", models.CategoryEvents, nil)

	assert.Error(t, err)
}
