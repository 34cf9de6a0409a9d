// internal/models/cache.go
package models

import "time"

// CacheTier identifies one of the three cache levels.
type CacheTier string

const (
	// TierInstant requires an exact key match.
	TierInstant CacheTier = "INSTANT"
	// TierFresh accepts near-paraphrases (similarity >= 0.85).
	TierFresh CacheTier = "FRESH"
	// TierResponse accepts close paraphrases (similarity >= 0.90).
	TierResponse CacheTier = "RESPONSE"
)

// CacheEntry is the only state that outlives a request.
type CacheEntry struct {
	Tier        CacheTier     `json:"tier"`
	Key         string        `json:"key"`
	Fingerprint string        `json:"fingerprint"`
	Value       string        `json:"value"`
	Similarity  float64       `json:"similarity,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	TTL         time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.CreatedAt.Add(e.TTL))
}
