// internal/classifier/disambiguate.go
package classifier

import (
	"sort"
	"strings"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/models"
)

// applyDisambiguation runs the configured entity-sense policy over a
// classified sub-query. When an ambiguous entity appears and no keyword in
// the text selects a sense, the result is marked so the orchestrator asks
// for clarification instead of guessing.
func applyDisambiguation(rules []config.DisambiguationRule, normalized string, result *models.ClassificationResult) {
	for _, rule := range rules {
		if rule.Entity == "" || !containsWord(normalized, rule.Entity) {
			continue
		}

		sense := ""
		keywords := make([]string, 0, len(rule.Keywords))
		for keyword := range rule.Keywords {
			keywords = append(keywords, keyword)
		}
		sort.Strings(keywords)
		for _, keyword := range keywords {
			if containsWord(normalized, keyword) {
				sense = rule.Keywords[keyword]
				break
			}
		}

		if sense != "" {
			if result.Entities == nil {
				result.Entities = map[string]string{}
			}
			result.Entities[rule.Entity] = sense
			continue
		}

		result.Ambiguous = true
		result.AmbiguousEntity = rule.Entity
	}
}

func containsWord(normalized, word string) bool {
	for _, w := range strings.Fields(normalized) {
		if w == word {
			return true
		}
	}
	return false
}
