package analyzer

import (
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// Risk flags raised by the default pattern detectors.
const (
	FlagDatabase       = "Database schema changes detected - requires migration testing"
	FlagAuth           = "Authentication/Authorization changes - test all auth flows"
	FlagAPI            = "API changes detected - verify contract compatibility"
	FlagInfrastructure = "Infrastructure changes - requires DevOps review"
	FlagBreaking       = "Breaking changes in code - versioning strategy check needed"
)

// PatternDetector inspects a change and optionally raises one risk flag.
type PatternDetector interface {
	Detect(diff string, files release.Classification) (flag string, ok bool)
}

// Pattern is a PatternDetector built from a predicate.
type Pattern struct {
	Flag    string
	Matches func(diff string, files release.Classification) bool
}

func (p Pattern) Detect(diff string, files release.Classification) (string, bool) {
	if p.Matches != nil && p.Matches(diff, files) {
		return p.Flag, true
	}
	return "", false
}

// DefaultPatterns returns the built-in detectors in reporting order.
func DefaultPatterns() []PatternDetector {
	return []PatternDetector{
		Pattern{Flag: FlagDatabase, Matches: func(_ string, files release.Classification) bool {
			return files.Has(release.CategoryDatabase)
		}},
		Pattern{Flag: FlagAuth, Matches: func(_ string, files release.Classification) bool {
			candidates := append(append([]string{}, files[release.CategoryBackend]...), files[release.CategoryFrontend]...)
			return anyContains(candidates, "auth")
		}},
		Pattern{Flag: FlagAPI, Matches: func(_ string, files release.Classification) bool {
			return anyContains(files[release.CategoryBackend], "api", "route")
		}},
		Pattern{Flag: FlagInfrastructure, Matches: func(_ string, files release.Classification) bool {
			return files.Has(release.CategoryInfrastructure)
		}},
		Pattern{Flag: FlagBreaking, Matches: func(diff string, _ release.Classification) bool {
			d := strings.ToLower(diff)
			return strings.Contains(d, "breaking") || strings.Contains(d, "deprecated")
		}},
	}
}

// DetectPatterns runs detectors in order and collects the raised flags.
// A nil detector list uses DefaultPatterns.
func DetectPatterns(diff string, files release.Classification, detectors []PatternDetector) []string {
	if detectors == nil {
		detectors = DefaultPatterns()
	}
	var flags []string
	for _, d := range detectors {
		if flag, ok := d.Detect(diff, files); ok {
			flags = append(flags, flag)
		}
	}
	return flags
}

func anyContains(names []string, needles ...string) bool {
	for _, n := range names {
		lower := strings.ToLower(n)
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				return true
			}
		}
	}
	return false
}
