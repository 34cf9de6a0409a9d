// internal/classifier/patterns.go
package classifier

import (
	"regexp"

	"query-orchestrator/internal/models"
)

// intentPattern is one high-precision rule on normalized text. Named
// capture groups become extracted entities.
type intentPattern struct {
	category   models.Category
	confidence float64
	re         *regexp.Regexp
}

// Patterns are ordered by precision; the best-scoring match wins. They run
// against Normalize(text): lowercase, punctuation stripped.
var intentPatterns = []intentPattern{
	// Device control
	{models.CategoryControl, 0.95, regexp.MustCompile(`^(?:please )?(?:turn|switch) (?P<action>on|off) (?:the |my )?(?P<device>[a-z ]+)$`)},
	{models.CategoryControl, 0.95, regexp.MustCompile(`^(?:please )?(?:turn|switch) (?:the |my )?(?P<device>[a-z ]+?) (?P<action>on|off)$`)},
	{models.CategoryControl, 0.92, regexp.MustCompile(`^(?:please )?(?P<action>dim|brighten) (?:the |my )?(?P<device>[a-z ]+)$`)},
	{models.CategoryControl, 0.92, regexp.MustCompile(`^(?:please )?(?P<action>lock|unlock) (?:the |my )?(?P<device>[a-z ]+)$`)},
	{models.CategoryControl, 0.92, regexp.MustCompile(`^set (?:the )?(?P<device>thermostat|temperature|heat|ac) to (?P<value>\d+)(?: degrees)?$`)},
	{models.CategoryControl, 0.9, regexp.MustCompile(`^(?P<action>play|pause|stop|resume|skip) (?:some |the )?(?P<device>[a-z ]+)$`)},

	// Weather
	{models.CategoryWeather, 0.92, regexp.MustCompile(`\b(?:weather|forecast|humidity|windy|raining|snowing)\b`)},
	{models.CategoryWeather, 0.85, regexp.MustCompile(`\b(?:how (?:hot|cold)|temperature outside)\b`)},

	// Sports
	{models.CategorySports, 0.9, regexp.MustCompile(`\b(?:score|game|match|standings|season|playoffs)\b`)},
	{models.CategorySports, 0.88, regexp.MustCompile(`\bplay(?:ing)? (?:next|tonight|today|tomorrow)\b`)},

	// Airports and flights
	{models.CategoryAirports, 0.92, regexp.MustCompile(`\b(?:flight|airport|departure|arrival|terminal|gate|delayed|layover)\b`)},

	// Local business
	{models.CategoryLocalBusiness, 0.88, regexp.MustCompile(`\b(?:restaurant|restaurants|coffee|cafe|bar|pizza|pharmacy|grocery|shop|store)\b`)},
	{models.CategoryLocalBusiness, 0.85, regexp.MustCompile(`\b(?:near me|nearby|open now|closest)\b`)},

	// Events
	{models.CategoryEvents, 0.88, regexp.MustCompile(`\b(?:concert|concerts|event|events|festival|gig|whats happening|things to do)\b`)},
}

// Secondary extractors run once the category is known.
var (
	locationRe = regexp.MustCompile(`\b(?:in|at|near|around) (?P<location>[a-z][a-z ]*?)(?: (?:today|tonight|tomorrow|this week|this weekend|now))?$`)
	teamRe     = regexp.MustCompile(`\bthe (?P<team>[a-z0-9]+)(?:s)? (?:game|score|match|play|playing)\b|\bdo the (?P<team2>[a-z0-9]+) play\b`)
	flightRe   = regexp.MustCompile(`\b(?P<flight>[a-z]{2}\d{2,4})\b`)
	timeRe     = regexp.MustCompile(`\b(?P<when>today|tonight|tomorrow|this week|this weekend)\b`)
)

// matchPatterns scores the normalized text against every rule and returns
// the best match. ok is false when nothing matched at all.
func matchPatterns(normalized string) (models.Category, float64, map[string]string, bool) {
	var (
		bestCat  models.Category
		bestConf float64
		bestEnts map[string]string
		matched  bool
	)

	for _, p := range intentPatterns {
		m := p.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		if p.confidence <= bestConf {
			continue
		}
		ents := map[string]string{}
		for i, name := range p.re.SubexpNames() {
			if name != "" && i < len(m) && m[i] != "" {
				ents[name] = m[i]
			}
		}
		bestCat, bestConf, bestEnts, matched = p.category, p.confidence, ents, true
	}

	if !matched {
		return models.CategoryUnknown, 0, nil, false
	}

	extractSecondary(bestCat, normalized, bestEnts)
	return bestCat, bestConf, bestEnts, true
}

// extractSecondary pulls category-specific slots out of the text.
func extractSecondary(category models.Category, normalized string, ents map[string]string) {
	switch category {
	case models.CategoryWeather, models.CategoryLocalBusiness, models.CategoryEvents, models.CategoryAirports:
		if m := findNamed(locationRe, normalized, "location"); m != "" {
			ents["location"] = m
		}
	}

	switch category {
	case models.CategorySports:
		if m := findNamed(teamRe, normalized, "team"); m != "" {
			ents["team"] = m
		} else if m := findNamed(teamRe, normalized, "team2"); m != "" {
			ents["team"] = m
		}
	case models.CategoryAirports:
		if m := findNamed(flightRe, normalized, "flight"); m != "" {
			ents["flight"] = m
		}
	}

	if m := findNamed(timeRe, normalized, "when"); m != "" {
		ents["when"] = m
	}
}

func findNamed(re *regexp.Regexp, s, group string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	for i, name := range re.SubexpNames() {
		if name == group && i < len(m) {
			return m[i]
		}
	}
	return ""
}
