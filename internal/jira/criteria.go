package jira

import (
	"regexp"
	"strings"
)

// minCriterionLen filters out fragments too short to be a real criterion.
const minCriterionLen = 10

var (
	acHeading = regexp.MustCompile(`(?i)^\s*(?:h\d\.\s*)?#*\s*\**\s*(?:acceptance criteria|ac)\b\s*\**\s*(?::\s*\**\s*(.*))?$`)
	acBullet  = regexp.MustCompile(`^\s*(?:[*#-]+|\d+[.)])\s+(.*)$`)
	gherkin   = regexp.MustCompile(`(?i)^\s*(?:[*#-]+\s*)?((?:given|when|then)\b.*)$`)
)

// ExtractAcceptanceCriteria pulls criteria out of a ticket description:
// bullets under an "Acceptance Criteria" (or "AC") heading, and any
// Given/When/Then line. Results are cleaned, longer than ten characters
// and deduplicated in order of appearance.
func ExtractAcceptanceCriteria(description string) []string {
	var (
		out       []string
		seen      = map[string]bool{}
		inSection bool
	)
	add := func(s string) {
		s = clean(s)
		if len(s) <= minCriterionLen || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, line := range strings.Split(description, "\n") {
		if m := acHeading.FindStringSubmatch(line); m != nil {
			inSection = true
			if m[1] != "" {
				add(m[1])
			}
			continue
		}
		if m := gherkin.FindStringSubmatch(line); m != nil {
			add(m[1])
			continue
		}
		if !inSection {
			continue
		}
		switch m := acBullet.FindStringSubmatch(line); {
		case m != nil:
			add(m[1])
		case strings.TrimSpace(line) == "":
		default:
			inSection = false
		}
	}
	return out
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*-"))
}
