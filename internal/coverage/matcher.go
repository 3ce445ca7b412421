package coverage

import "strings"

// Matcher decides whether a test exercises an acceptance criterion.
type Matcher interface {
	Match(testName, requirement string) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(testName, requirement string) bool

func (f MatcherFunc) Match(testName, requirement string) bool { return f(testName, requirement) }

// TokenOverlap matches when enough significant requirement words appear in
// the test name, or when the whole requirement does. A word is significant
// when it is longer than MinTokenLen characters.
type TokenOverlap struct {
	MinTokenLen int
	MinOverlap  int
}

// DefaultMatcher is the matcher used when none is configured.
var DefaultMatcher Matcher = TokenOverlap{MinTokenLen: 3, MinOverlap: 2}

func (m TokenOverlap) Match(testName, requirement string) bool {
	name := strings.ToLower(testName)
	req := strings.ToLower(requirement)
	if strings.Contains(name, req) {
		return true
	}
	n := 0
	for _, word := range strings.Fields(req) {
		if len(word) > m.MinTokenLen && strings.Contains(name, word) {
			n++
		}
	}
	return n >= m.MinOverlap
}
