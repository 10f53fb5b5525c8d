package extraction

import (
	"regexp"
	"strings"
)

type weatherPattern struct {
	re      *regexp.Regexp
	hasCity bool
}

// Weather intent patterns, tried in order. Patterns with a capture group
// yield the city as written in the query.
var weatherPatterns = []weatherPattern{
	{re: regexp.MustCompile(`(?i)\bweather\b.*?\b(?:in|for|at)\s+([a-z][a-z\s]*)`), hasCity: true},
	{re: regexp.MustCompile(`(?i)\btemperature\b.*?\b(?:in|for|at)\s+([a-z][a-z\s]*)`), hasCity: true},
	{re: regexp.MustCompile(`(?i)\bforecast\b.*?\b(?:in|for)\s+([a-z][a-z\s]*)`), hasCity: true},
	{re: regexp.MustCompile(`(?i)\b(?:what|how)(?:'s|\s+is)?\b.*\bweather\b`)},
}

// Trailing words that belong to the question rather than the city name.
var cityStopWords = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true, "now": true, "right": true,
	"currently": true, "please": true, "this": true, "week": true, "weekend": true,
	"like": true,
}

// matchWeather reports whether text expresses a weather request and returns
// the captured city, if any.
func matchWeather(text string) (bool, string) {
	matched := false
	for _, p := range weatherPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		matched = true
		if p.hasCity {
			if city := cleanCity(m[1]); city != "" {
				return true, city
			}
		}
	}
	return matched, ""
}

func cleanCity(raw string) string {
	words := strings.Fields(raw)
	for len(words) > 0 && cityStopWords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
