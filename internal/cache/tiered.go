// internal/cache/tiered.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"query-orchestrator/internal/common/config"
	apperrors "query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
	"query-orchestrator/internal/common/text"
	"query-orchestrator/internal/models"
)

// TieredCache is the three-level semantic cache. INSTANT requires an exact
// fingerprint match; FRESH and RESPONSE accept paraphrases above their
// similarity floors. An unreachable store degrades to a silent miss; the
// orchestrator must still produce a correct answer without it.
type TieredCache struct {
	rdb    *redis.Client
	cfg    *config.CacheConfig
	logger logger.Logger
	now    func() time.Time
}

func New(rdb *redis.Client, cfg *config.CacheConfig, log logger.Logger) *TieredCache {
	return &TieredCache{
		rdb: rdb,
		cfg: cfg,
		logger: log.With(map[string]interface{}{
			"component": "tiered-cache",
		}),
		now: time.Now,
	}
}

func (c *TieredCache) key(tier models.CacheTier, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", c.cfg.KeyPrefix, strings.ToLower(string(tier)), fingerprint)
}

// Get checks INSTANT (exact), then FRESH (>=0.85), then RESPONSE (>=0.90),
// returning the first unexpired hit.
func (c *TieredCache) Get(ctx context.Context, queryText string) (*models.CacheEntry, bool) {
	if c.cfg == nil || !c.cfg.Enabled || c.rdb == nil {
		return nil, false
	}

	fingerprint := text.Fingerprint(queryText)
	if fingerprint == "" {
		return nil, false
	}

	if entry, ok := c.getExact(ctx, fingerprint); ok {
		metrics.CacheLookups.WithLabelValues(string(models.TierInstant), "hit").Inc()
		return entry, true
	}
	metrics.CacheLookups.WithLabelValues(string(models.TierInstant), "miss").Inc()

	if entry, ok := c.getSimilar(ctx, models.TierFresh, queryText, c.cfg.Fresh.MinSimilarity); ok {
		metrics.CacheLookups.WithLabelValues(string(models.TierFresh), "hit").Inc()
		return entry, true
	}
	metrics.CacheLookups.WithLabelValues(string(models.TierFresh), "miss").Inc()

	if entry, ok := c.getSimilar(ctx, models.TierResponse, queryText, c.cfg.Response.MinSimilarity); ok {
		metrics.CacheLookups.WithLabelValues(string(models.TierResponse), "hit").Inc()
		return entry, true
	}
	metrics.CacheLookups.WithLabelValues(string(models.TierResponse), "miss").Inc()

	return nil, false
}

func (c *TieredCache) getExact(ctx context.Context, fingerprint string) (*models.CacheEntry, bool) {
	val, err := c.rdb.Get(ctx, c.key(models.TierInstant, fingerprint)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		stdErr := apperrors.NewCacheUnavailableError(err)
		c.logger.Warn("cache store unreachable, bypassing", map[string]interface{}{
			"code":  string(stdErr.Code),
			"tier":  string(models.TierInstant),
			"error": err.Error(),
		})
		return nil, false
	}

	entry, err := decodeEntry(val)
	if err != nil || entry.Expired(c.now()) {
		return nil, false
	}
	entry.Similarity = 1.0
	return entry, true
}

// getSimilar scans the tier's keyspace and returns the best entry whose
// stored fingerprint is at least minSim similar to the query.
func (c *TieredCache) getSimilar(ctx context.Context, tier models.CacheTier, queryText string, minSim float64) (*models.CacheEntry, bool) {
	pattern := c.key(tier, "*")
	queryFingerprint := text.Fingerprint(queryText)
	var cursor uint64
	var best *models.CacheEntry

	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, int64(c.cfg.ScanCount)).Result()
		if err != nil {
			stdErr := apperrors.NewCacheUnavailableError(err)
			c.logger.Warn("cache store unreachable, bypassing", map[string]interface{}{
				"code":  string(stdErr.Code),
				"tier":  string(tier),
				"error": err.Error(),
			})
			return nil, false
		}

		for _, key := range keys {
			val, err := c.rdb.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			entry, err := decodeEntry(val)
			if err != nil || entry.Expired(c.now()) {
				continue
			}
			sim := text.Similarity(queryFingerprint, entry.Fingerprint)
			if sim < minSim {
				continue
			}
			entry.Similarity = sim
			if best == nil || sim > best.Similarity {
				best = entry
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return best, best != nil
}

// Put writes the value to all three tiers with their respective TTLs.
// Writes are idempotent upserts; overwriting stale entries is safe.
func (c *TieredCache) Put(ctx context.Context, queryText, value string) {
	if c.cfg == nil || !c.cfg.Enabled || c.rdb == nil {
		return
	}

	fingerprint := text.Fingerprint(queryText)
	if fingerprint == "" {
		return
	}

	tiers := []struct {
		tier models.CacheTier
		ttl  time.Duration
	}{
		{models.TierInstant, time.Duration(c.cfg.Instant.TTL) * time.Second},
		{models.TierFresh, time.Duration(c.cfg.Fresh.TTL) * time.Second},
		{models.TierResponse, time.Duration(c.cfg.Response.TTL) * time.Second},
	}

	for _, t := range tiers {
		entry := &models.CacheEntry{
			Tier:        t.tier,
			Key:         c.key(t.tier, fingerprint),
			Fingerprint: fingerprint,
			Value:       value,
			CreatedAt:   c.now(),
			TTL:         t.ttl,
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := c.rdb.SetEx(ctx, entry.Key, string(encoded), t.ttl).Err(); err != nil {
			// Dropped writes are acceptable; the store may be down.
			stdErr := apperrors.NewCacheUnavailableError(err)
			c.logger.Warn("cache write dropped", map[string]interface{}{
				"code":  string(stdErr.Code),
				"tier":  string(t.tier),
				"error": err.Error(),
			})
			return
		}
	}
}

// GetClassification returns a cached classification for the query, if any.
func (c *TieredCache) GetClassification(ctx context.Context, queryText string) (*models.ClassificationResult, bool) {
	if c.cfg == nil || !c.cfg.Enabled || c.rdb == nil {
		return nil, false
	}

	fingerprint := text.Fingerprint(queryText)
	if fingerprint == "" {
		return nil, false
	}

	val, err := c.rdb.Get(ctx, c.classifyKey(fingerprint)).Result()
	if err != nil {
		return nil, false
	}

	var result models.ClassificationResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, false
	}
	result.Method = models.MethodCached
	return &result, true
}

// PutClassification caches a classification result with the FRESH tier TTL.
func (c *TieredCache) PutClassification(ctx context.Context, queryText string, result *models.ClassificationResult) {
	if c.cfg == nil || !c.cfg.Enabled || c.rdb == nil {
		return
	}

	fingerprint := text.Fingerprint(queryText)
	if fingerprint == "" {
		return
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return
	}
	ttl := time.Duration(c.cfg.Fresh.TTL) * time.Second
	if err := c.rdb.SetEx(ctx, c.classifyKey(fingerprint), string(encoded), ttl).Err(); err != nil {
		c.logger.Warn("classification cache write dropped", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (c *TieredCache) classifyKey(fingerprint string) string {
	return fmt.Sprintf("%s:classify:%s", c.cfg.KeyPrefix, fingerprint)
}

func decodeEntry(raw string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
