// internal/classifier/splitter.go
package classifier

import (
	"regexp"
	"strings"

	"query-orchestrator/internal/common/text"
)

// pronouns that stand in for the previous sub-query's subject.
var pronounRe = regexp.MustCompile(`\b(?:them|it|they|those)\b`)

// chainContext carries what flows from one sub-query to the next. It is an
// explicit value, never shared mutable state.
type chainContext struct {
	// subject is the dominant grammatical subject of the last classified
	// sub-query, e.g. "lights" after "turn on the lights".
	subject string
}

// splitCompound splits raw text on the configured separators, preserving
// order. A single-element result means the query is not compound.
func splitCompound(raw string, separators []string) []string {
	parts := []string{raw}
	for _, sep := range separators {
		var next []string
		for _, part := range parts {
			for _, piece := range strings.Split(part, sep) {
				piece = strings.TrimSpace(piece)
				if piece != "" {
					next = append(next, piece)
				}
			}
		}
		parts = next
	}
	return parts
}

// expandChain resolves a named chain alias to its fixed ordered sub-query
// list. Keys are compared on normalized text.
func expandChain(raw string, chains map[string][]string) ([]string, bool) {
	if len(chains) == 0 {
		return nil, false
	}
	normalized := text.Normalize(raw)
	for alias, steps := range chains {
		if text.Normalize(alias) == normalized && len(steps) > 0 {
			return steps, true
		}
	}
	return nil, false
}

// resolveSubject rewrites pronouns in a sub-query using the chain context,
// so "turn them off" after "turn on the lights" becomes "turn the lights off".
func resolveSubject(subQuery string, cc *chainContext) string {
	if cc.subject == "" || !pronounRe.MatchString(subQuery) {
		return subQuery
	}
	return pronounRe.ReplaceAllString(subQuery, "the "+cc.subject)
}

// updateSubject records the dominant subject of a classified sub-query for
// the next link in the chain.
func updateSubject(cc *chainContext, entities map[string]string) {
	for _, key := range []string{"device", "team", "location"} {
		if v := entities[key]; v != "" {
			cc.subject = v
			return
		}
	}
}
