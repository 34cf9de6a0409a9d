// internal/retrieval/fusion.go
package retrieval

import (
	"sort"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/text"
	"query-orchestrator/internal/models"
)

// cluster groups provider results whose payloads corroborate one fact.
type cluster struct {
	members []models.ProviderResult
}

// representative returns the highest-confidence member.
func (c *cluster) representative() models.ProviderResult {
	best := c.members[0]
	for _, m := range c.members[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	return best
}

// Fuser merges raw provider results into ranked evidence.
type Fuser struct {
	cfg     *config.RetrievalConfig
	routing *config.RoutingConfig
}

func NewFuser(cfg *config.RetrievalConfig, routing *config.RoutingConfig) *Fuser {
	return &Fuser{cfg: cfg, routing: routing}
}

// Fuse clusters near-duplicate payloads, rewards agreement with a
// saturating bonus, and ranks clusters by confidence times the provider's
// per-category authority weight. Ties break by the routing table's provider
// priority, then by most recent fetch. Deterministic for a given input set.
func (f *Fuser) Fuse(category models.Category, results []models.ProviderResult, failed []string) *models.FusedEvidence {
	evidence := &models.FusedEvidence{FailedProviders: failed}
	if len(results) == 0 {
		return evidence
	}

	// Stable input order so clustering does not depend on goroutine
	// completion order.
	sorted := make([]models.ProviderResult, len(results))
	copy(sorted, results)
	priority := f.priorityFunc(category)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := priority(sorted[i].ProviderID), priority(sorted[j].ProviderID)
		if pi != pj {
			return pi < pj
		}
		return sorted[i].FetchedAt.After(sorted[j].FetchedAt)
	})

	var clusters []*cluster
	for _, result := range sorted {
		placed := false
		for _, cl := range clusters {
			if text.Similarity(result.Payload, cl.representative().Payload) >= f.cfg.ClusterSimilarity {
				cl.members = append(cl.members, result)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{members: []models.ProviderResult{result}})
		}
	}

	items := make([]models.EvidenceItem, 0, len(clusters))
	for _, cl := range clusters {
		rep := cl.representative()
		agreement := len(cl.members)

		bonus := f.cfg.AgreementBonusStep * float64(agreement-1)
		if bonus > f.cfg.AgreementBonusCap {
			bonus = f.cfg.AgreementBonusCap
		}

		corroborators := make([]string, 0, agreement)
		for _, m := range cl.members {
			corroborators = append(corroborators, m.ProviderID)
		}

		items = append(items, models.EvidenceItem{
			ProviderResult: rep,
			Agreement:      agreement,
			RankScore:      rep.Confidence * f.authority(category, rep.ProviderID) * (1 + bonus),
			Corroborators:  corroborators,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].RankScore != items[j].RankScore {
			return items[i].RankScore > items[j].RankScore
		}
		pi, pj := priority(items[i].ProviderID), priority(items[j].ProviderID)
		if pi != pj {
			return pi < pj
		}
		return items[i].FetchedAt.After(items[j].FetchedAt)
	})

	evidence.Items = items
	return evidence
}

// authority looks up the static per-category provider weight; unknown
// providers weigh 1.0.
func (f *Fuser) authority(category models.Category, providerID string) float64 {
	if f.routing == nil || f.routing.Authority == nil {
		return 1.0
	}
	weights, ok := f.routing.Authority[string(category)]
	if !ok {
		return 1.0
	}
	w, ok := weights[providerID]
	if !ok || w <= 0 {
		return 1.0
	}
	return w
}

// priorityFunc maps provider id to its position in the category's routing
// list; unknown providers sort last.
func (f *Fuser) priorityFunc(category models.Category) func(string) int {
	index := make(map[string]int)
	if f.routing != nil {
		for i, id := range f.routing.Table[string(category)] {
			index[id] = i
		}
	}
	return func(id string) int {
		if pos, ok := index[id]; ok {
			return pos
		}
		return len(index)
	}
}
