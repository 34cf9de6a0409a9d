// internal/retrieval/fusion_test.go
package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/models"
)

func testFuser() *Fuser {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Routing.Authority = map[string]map[string]float64{
		"WEATHER": {"weather": 1.0, "web": 0.7},
	}
	return NewFuser(&cfg.Retrieval, &cfg.Routing)
}

func result(provider, payload string, confidence float64, fetchedAt time.Time) models.ProviderResult {
	return models.ProviderResult{
		ProviderID: provider,
		Payload:    payload,
		Confidence: confidence,
		FetchedAt:  fetchedAt,
		Success:    true,
	}
}

func TestFuse_EmptyInput(t *testing.T) {
	evidence := testFuser().Fuse(models.CategoryWeather, nil, []string{"weather", "web"})

	assert.True(t, evidence.Empty())
	assert.Equal(t, []string{"weather", "web"}, evidence.FailedProviders)
}

func TestFuse_CorroborationClusters(t *testing.T) {
	now := time.Now()
	results := []models.ProviderResult{
		result("weather", "sunny and 72 degrees in boston", 0.9, now),
		result("web", "sunny and 72 degrees in boston today", 0.6, now),
		result("web", "red sox win home opener", 0.6, now),
	}

	evidence := testFuser().Fuse(models.CategoryWeather, results, nil)

	require.Len(t, evidence.Items, 2)
	top := evidence.Items[0]
	assert.Equal(t, "weather", top.ProviderID, "representative is the highest-confidence member")
	assert.Equal(t, 2, top.Agreement)
	assert.ElementsMatch(t, []string{"weather", "web"}, top.Corroborators)
	// 0.9 confidence, authority 1.0, one corroborator adds a 0.15 bonus.
	assert.InDelta(t, 0.9*1.0*1.15, top.RankScore, 1e-9)
}

func TestFuse_AgreementBonusSaturates(t *testing.T) {
	now := time.Now()
	payload := "sunny and 72 degrees in boston"
	var results []models.ProviderResult
	for i := 0; i < 6; i++ {
		results = append(results, result("weather", payload, 0.9, now))
	}

	evidence := testFuser().Fuse(models.CategoryWeather, results, nil)

	require.Len(t, evidence.Items, 1)
	assert.Equal(t, 6, evidence.Items[0].Agreement)
	// Bonus caps at 0.45 regardless of cluster size.
	assert.InDelta(t, 0.9*1.0*1.45, evidence.Items[0].RankScore, 1e-9)
}

func TestFuse_AuthorityWeightsRanking(t *testing.T) {
	now := time.Now()
	results := []models.ProviderResult{
		result("web", "forecast says rain tomorrow", 0.85, now),
		result("weather", "clear skies expected all week", 0.8, now),
	}

	evidence := testFuser().Fuse(models.CategoryWeather, results, nil)

	require.Len(t, evidence.Items, 2)
	// 0.8*1.0 beats 0.85*0.7: the authoritative source outranks the
	// higher raw confidence.
	assert.Equal(t, "weather", evidence.Items[0].ProviderID)
	assert.Equal(t, "web", evidence.Items[1].ProviderID)
}

func TestFuse_TieBreakByRoutingPriorityThenRecency(t *testing.T) {
	now := time.Now()
	fuser := testFuser()

	t.Run("routing priority", func(t *testing.T) {
		results := []models.ProviderResult{
			result("web", "airport shuttle schedule", 0.8, now),
			result("weather", "sunny all day tomorrow here", 0.8, now),
		}
		// Equalize authority so only priority separates them.
		fuser.routing.Authority = nil

		evidence := fuser.Fuse(models.CategoryWeather, results, nil)
		require.Len(t, evidence.Items, 2)
		assert.Equal(t, "weather", evidence.Items[0].ProviderID)
	})

	t.Run("recency", func(t *testing.T) {
		results := []models.ProviderResult{
			result("web", "airport shuttle schedule", 0.8, now.Add(-time.Minute)),
			result("web", "sunny all day tomorrow here", 0.8, now),
		}

		evidence := fuser.Fuse(models.CategoryWeather, results, nil)
		require.Len(t, evidence.Items, 2)
		assert.Equal(t, "sunny all day tomorrow here", evidence.Items[0].Payload)
	})
}

func TestFuse_DeterministicAcrossInputOrder(t *testing.T) {
	now := time.Now()
	a := result("weather", "sunny and 72 degrees in boston", 0.9, now)
	b := result("web", "sunny and 72 degrees in boston today", 0.6, now)
	c := result("web", "red sox win home opener", 0.6, now)

	fuser := testFuser()
	first := fuser.Fuse(models.CategoryWeather, []models.ProviderResult{a, b, c}, nil)
	second := fuser.Fuse(models.CategoryWeather, []models.ProviderResult{c, b, a}, nil)

	require.Equal(t, len(first.Items), len(second.Items))
	for i := range first.Items {
		assert.Equal(t, first.Items[i].Payload, second.Items[i].Payload)
		assert.Equal(t, first.Items[i].RankScore, second.Items[i].RankScore)
	}
}

func TestFuse_CitationsInRankOrder(t *testing.T) {
	now := time.Now()
	results := []models.ProviderResult{
		result("weather", "sunny and 72 degrees in boston", 0.9, now),
		result("web", "red sox win home opener", 0.6, now),
	}

	evidence := testFuser().Fuse(models.CategoryWeather, results, nil)

	assert.Equal(t, []string{"weather", "web"}, evidence.Citations())
}
