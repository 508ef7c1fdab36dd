package fetcher

import (
	"strings"
	"unicode"
)

// DefaultFingerprints are the bot-challenge markers checked on every
// direct 200 response.
var DefaultFingerprints = []string{
	"verify you are human",
	"cf-browser-verification",
	"attention required",
}

// Detector recognizes anti-automation interstitials by case-insensitive
// substring match. The zero value matches nothing.
//
// Patterns containing whitespace are prose and are matched against the
// visible text only, so a script or widget that mentions the phrase does
// not flag a real page. Single-token patterns such as
// "cf-browser-verification" are markup markers and are matched against
// the raw body.
type Detector struct {
	patterns []string
}

// NewDetector creates a Detector for the given patterns.
// Blank patterns are ignored.
func NewDetector(patterns []string) Detector {
	d := Detector{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			d.patterns = append(d.patterns, p)
		}
	}
	return d
}

// Match reports the first pattern found in a page, given its extracted
// text and its raw markup.
func (d Detector) Match(text, markup string) (string, bool) {
	if len(d.patterns) == 0 {
		return "", false
	}
	text = strings.ToLower(text)
	markup = strings.ToLower(markup)
	for _, p := range d.patterns {
		in := markup
		if isProse(p) {
			in = text
		}
		if strings.Contains(in, p) {
			return p, true
		}
	}
	return "", false
}

// isProse reports whether a pattern is a phrase rather than a markup token.
func isProse(pattern string) bool {
	return strings.ContainsFunc(pattern, unicode.IsSpace)
}

// Patterns returns a copy of the configured patterns.
func (d Detector) Patterns() []string {
	out := make([]string, len(d.patterns))
	copy(out, d.patterns)
	return out
}
