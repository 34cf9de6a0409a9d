// internal/models/retrieval.go
package models

import "time"

// ProviderResult is one fact returned by a retrieval provider.
type ProviderResult struct {
	ProviderID string        `json:"providerId"`
	Payload    string        `json:"payload"`
	Provenance string        `json:"provenance"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency"`
	FetchedAt  time.Time     `json:"fetchedAt"`
	Success    bool          `json:"success"`
}

// EvidenceItem is a fused cluster representative: the highest-confidence
// member of a group of corroborating provider results.
type EvidenceItem struct {
	ProviderResult
	Agreement int     `json:"agreement"`
	RankScore float64 `json:"rankScore"`
	// Corroborators lists the provider ids merged into this item,
	// including the representative itself.
	Corroborators []string `json:"corroborators"`
}

// FusedEvidence is the merged, ranked evidence list. Ordered descending
// by rank score. An empty list is a valid state (all providers failed),
// not an error.
type FusedEvidence struct {
	Items []EvidenceItem `json:"items"`
	// FailedProviders records providers excluded by error or timeout.
	FailedProviders []string `json:"failedProviders,omitempty"`
}

// Empty reports whether no provider produced usable evidence.
func (f *FusedEvidence) Empty() bool {
	return len(f.Items) == 0
}

// Citations returns the distinct provider ids backing the evidence,
// in rank order.
func (f *FusedEvidence) Citations() []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range f.Items {
		for _, id := range item.Corroborators {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
