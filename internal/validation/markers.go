// internal/validation/markers.go
package validation

import (
	"regexp"
	"strings"
)

// marker is one specific factual claim found in an answer: a date, a
// number, or a proper noun. Markers must be traceable to evidence.
type marker struct {
	kind string
	text string
}

var (
	dateRe   = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December|Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)\b(?:\s+\d{1,2}(?:st|nd|rd|th)?)?`)
	numberRe = regexp.MustCompile(`\b\d+(?:[:.,]\d+)*\s*(?:am|pm|AM|PM|%|F|C)?\b`)
	properRe = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*\b`)

	sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)
)

// capitalized words that are not factual claims when they open a clause.
var properNounStoplist = map[string]bool{
	"I": true, "The": true, "A": true, "An": true, "It": true,
	"If": true, "Here": true, "There": true, "This": true, "That": true,
	"Try": true, "Sorry": true, "Unfortunately": true, "Based": true,
	"According": true, "However": true, "Currently": true, "Yes": true,
	"No": true, "Please": true,
}

// extractMarkers pulls every specific factual marker out of the answer.
// Sentence-initial capitalized words are not treated as proper nouns.
func extractMarkers(answer string) []marker {
	var markers []marker
	seen := map[string]bool{}
	add := func(kind, text string) {
		text = strings.TrimSpace(text)
		if text == "" || seen[kind+":"+text] {
			return
		}
		seen[kind+":"+text] = true
		markers = append(markers, marker{kind: kind, text: text})
	}

	for _, m := range dateRe.FindAllString(answer, -1) {
		add("date", m)
	}
	for _, m := range numberRe.FindAllString(answer, -1) {
		add("number", m)
	}

	sentenceStarts := sentenceStartOffsets(answer)
	for _, loc := range properRe.FindAllStringIndex(answer, -1) {
		word := answer[loc[0]:loc[1]]
		first := strings.SplitN(word, " ", 2)[0]
		if sentenceStarts[loc[0]] {
			// A multi-word capitalized run opening a sentence still
			// carries a name after the first word.
			rest := strings.TrimPrefix(word, first)
			rest = strings.TrimSpace(rest)
			if rest != "" && !properNounStoplist[rest] {
				add("proper_noun", rest)
			}
			continue
		}
		if properNounStoplist[first] && !strings.Contains(word, " ") {
			continue
		}
		if dateRe.MatchString(word) {
			continue
		}
		add("proper_noun", word)
	}

	return markers
}

// sentenceStartOffsets marks byte offsets that begin a sentence.
func sentenceStartOffsets(answer string) map[int]bool {
	starts := map[int]bool{0: true}
	for _, loc := range sentenceSplitRe.FindAllStringIndex(answer, -1) {
		starts[loc[1]] = true
	}
	return starts
}

// supportedBy reports whether the marker text appears in any evidence
// payload, case-insensitively.
func supportedBy(m marker, payloads []string) bool {
	needle := strings.ToLower(m.text)
	for _, payload := range payloads {
		if strings.Contains(strings.ToLower(payload), needle) {
			return true
		}
	}
	return false
}

// sentences splits the answer for per-claim cross-referencing.
func sentences(answer string) []string {
	parts := sentenceSplitRe.Split(answer, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
