// internal/common/text/similarity.go
package text

import (
	"regexp"
	"strings"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// stopwords are filtered when building cache fingerprints so paraphrases
// collapse to the same key material.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "to": true, "of": true,
	"in": true, "on": true, "at": true, "for": true, "me": true,
	"my": true, "please": true, "what": true, "whats": true,
	"it": true, "its": true, "do": true, "does": true, "can": true,
	"you": true, "tell": true, "about": true,
}

// Normalize lowercases, strips punctuation, and collapses whitespace.
// Pure function; safe to call from any goroutine.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fingerprint returns the normalized, stopword-filtered form of a query,
// used as cache key material and for near-duplicate detection.
func Fingerprint(s string) string {
	var kept []string
	for _, w := range strings.Fields(Normalize(s)) {
		if !stopwords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Similarity computes a normalized sequence similarity between two strings
// after normalization: 2*LCS / (len(a)+len(b)), in [0,1]. Pure function.
func Similarity(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	lcs := longestCommonSubsequence(a, b)
	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}

func longestCommonSubsequence(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
