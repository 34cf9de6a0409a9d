// internal/retrieval/coordinator_test.go
package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/config"
	apperrors "query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
	"query-orchestrator/internal/retrieval/providers"
)

// fakeProvider is a scriptable provider for coordinator tests.
type fakeProvider struct {
	id      string
	timeout time.Duration
	delay   time.Duration
	results []models.ProviderResult
	err     error
}

func (f *fakeProvider) ID() string             { return f.id }
func (f *fakeProvider) Timeout() time.Duration { return f.timeout }

func (f *fakeProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, context.DeadlineExceeded
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func testRetrievalConfig(globalTimeoutMS int) (*config.RetrievalConfig, *config.RoutingConfig) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Retrieval.GlobalTimeout = globalTimeoutMS
	return &cfg.Retrieval, &cfg.Routing
}

func okResult(provider, payload string) []models.ProviderResult {
	return []models.ProviderResult{{
		ProviderID: provider,
		Payload:    payload,
		Confidence: 0.8,
		FetchedAt:  time.Now(),
		Success:    true,
	}}
}

func TestRetrieve_FanOutMergesAllProviders(t *testing.T) {
	retrievalCfg, routingCfg := testRetrievalConfig(2000)
	coordinator := NewCoordinator(retrievalCfg, routingCfg, []Provider{
		&fakeProvider{id: "weather", timeout: time.Second, results: okResult("weather", "sunny and 72 in boston")},
		&fakeProvider{id: "web", timeout: time.Second, results: okResult("web", "red sox win home opener")},
	}, logger.NewNoOpLogger())

	evidence := coordinator.Retrieve(context.Background(), "weather in boston", models.CategoryWeather, nil)

	assert.Len(t, evidence.Items, 2)
	assert.Empty(t, evidence.FailedProviders)
}

func TestRetrieve_SlowProviderDoesNotBlock(t *testing.T) {
	retrievalCfg, routingCfg := testRetrievalConfig(150)
	coordinator := NewCoordinator(retrievalCfg, routingCfg, []Provider{
		&fakeProvider{id: "weather", timeout: time.Second, results: okResult("weather", "sunny and 72 in boston")},
		&fakeProvider{id: "web", timeout: time.Second, delay: 5 * time.Second},
	}, logger.NewNoOpLogger())

	start := time.Now()
	evidence := coordinator.Retrieve(context.Background(), "weather in boston", models.CategoryWeather, nil)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "global timeout must cut off the slow provider")
	require.Len(t, evidence.Items, 1)
	assert.Equal(t, "weather", evidence.Items[0].ProviderID)
	assert.Equal(t, []string{"web"}, evidence.FailedProviders)
}

func TestRetrieve_PerProviderTimeoutIsolated(t *testing.T) {
	retrievalCfg, routingCfg := testRetrievalConfig(2000)
	coordinator := NewCoordinator(retrievalCfg, routingCfg, []Provider{
		&fakeProvider{id: "weather", timeout: 50 * time.Millisecond, delay: time.Second},
		&fakeProvider{id: "web", timeout: time.Second, results: okResult("web", "sunny and 72 in boston")},
	}, logger.NewNoOpLogger())

	evidence := coordinator.Retrieve(context.Background(), "weather in boston", models.CategoryWeather, nil)

	require.Len(t, evidence.Items, 1)
	assert.Equal(t, "web", evidence.Items[0].ProviderID)
	assert.Equal(t, []string{"weather"}, evidence.FailedProviders)
}

// stubbornProvider sleeps through its full delay regardless of the
// context, modelling a provider that never checks cancellation.
type stubbornProvider struct {
	id    string
	delay time.Duration
}

func (s *stubbornProvider) ID() string             { return s.id }
func (s *stubbornProvider) Timeout() time.Duration { return 10 * time.Second }

func (s *stubbornProvider) Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error) {
	time.Sleep(s.delay)
	return okResult(s.id, "late data"), nil
}

func TestRetrieve_ProviderIgnoringCancellationIsAbandoned(t *testing.T) {
	retrievalCfg, routingCfg := testRetrievalConfig(150)
	coordinator := NewCoordinator(retrievalCfg, routingCfg, []Provider{
		&fakeProvider{id: "weather", timeout: time.Second, results: okResult("weather", "sunny and 72 in boston")},
		&stubbornProvider{id: "web", delay: 3 * time.Second},
	}, logger.NewNoOpLogger())

	start := time.Now()
	evidence := coordinator.Retrieve(context.Background(), "weather in boston", models.CategoryWeather, nil)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "a provider that never returns must not block the request")
	require.Len(t, evidence.Items, 1)
	assert.Equal(t, "weather", evidence.Items[0].ProviderID)
	assert.Equal(t, []string{"web"}, evidence.FailedProviders)
}

func TestRetrieve_AllProvidersFailedIsEmptyNotError(t *testing.T) {
	retrievalCfg, routingCfg := testRetrievalConfig(2000)
	coordinator := NewCoordinator(retrievalCfg, routingCfg, []Provider{
		&fakeProvider{id: "weather", timeout: time.Second, err: errors.New("upstream 500")},
		&fakeProvider{id: "web", timeout: time.Second, err: errors.New("upstream 503")},
	}, logger.NewNoOpLogger())

	evidence := coordinator.Retrieve(context.Background(), "weather in boston", models.CategoryWeather, nil)

	require.NotNil(t, evidence)
	assert.True(t, evidence.Empty())
	assert.Equal(t, []string{"weather", "web"}, evidence.FailedProviders)
}

func TestClassifyProviderFailure(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		err      error
		wantCode apperrors.ErrorCode
	}{
		{"context deadline", context.Background(), context.DeadlineExceeded, apperrors.ErrCodeProviderTimeout},
		{"provider timeout sentinel", context.Background(), providers.ErrProviderTimeout, apperrors.ErrCodeProviderTimeout},
		{"expired call context", expired, errors.New("connection reset"), apperrors.ErrCodeProviderTimeout},
		{"upstream failure", context.Background(), errors.New("upstream 500"), apperrors.ErrCodeProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyProviderFailure("weather", tt.ctx, tt.err)

			var stdErr *apperrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestRetrieve_UnroutedCategoryYieldsEmpty(t *testing.T) {
	retrievalCfg, routingCfg := testRetrievalConfig(2000)
	coordinator := NewCoordinator(retrievalCfg, routingCfg, nil, logger.NewNoOpLogger())

	evidence := coordinator.Retrieve(context.Background(), "anything", models.CategoryUnknown, nil)

	assert.True(t, evidence.Empty())
}
