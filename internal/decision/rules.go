package decision

import (
	"fmt"
	"math"
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// CoverageFloor is the minimum acceptance-criteria coverage for any release.
// It is not configurable per call.
const CoverageFloor = 80.0

// Signals are the metrics the ladder reads, extracted from the three stage
// outputs.
type Signals struct {
	PassRate         float64
	ExecutionStatus  release.ExecutionStatus
	Failed           int
	Coverage         float64
	ValidationStatus release.ValidationStatus
	Gaps             []string
	RiskScore        float64
	RiskFlags        []string
}

// Outcome is what a rule contributes to a decision.
type Outcome struct {
	Status         release.DecisionStatus
	Confidence     int
	Reasoning      []string
	Gates          []string
	Recommendation string
	NextSteps      []string
}

// Rule is one rung of the ladder.
type Rule struct {
	ID      string
	Name    string
	Applies func(Signals) bool
	Build   func(Signals) Outcome
}

// DefaultRules returns the ladder in evaluation order. The last rule always
// applies.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID: "R1", Name: "tests failing",
			Applies: func(s Signals) bool {
				return s.ExecutionStatus != release.ExecutionSuccess || s.PassRate < 1.0
			},
			Build: func(s Signals) Outcome {
				reason := fmt.Sprintf("Tests failed: %d failures", s.Failed)
				switch s.ExecutionStatus {
				case release.ExecutionSuccess, release.ExecutionFailed:
				case "":
					reason = "Test execution status missing"
				default:
					reason = fmt.Sprintf("Test execution did not complete: %s", s.ExecutionStatus)
				}
				return Outcome{
					Status:         release.DecisionNoGo,
					Reasoning:      []string{reason},
					Recommendation: "Fix failing tests before deployment",
					NextSteps:      []string{"Review test failures", "Fix failing code", "Re-run tests"},
				}
			},
		},
		{
			ID: "R2", Name: "coverage below floor",
			Applies: func(s Signals) bool { return s.Coverage < CoverageFloor },
			Build: func(s Signals) Outcome {
				return Outcome{
					Status: release.DecisionNoGo,
					Reasoning: []string{fmt.Sprintf("AC coverage too low: %s%% < %s%% requirement",
						release.FormatNumber(s.Coverage), release.FormatNumber(CoverageFloor))},
					Recommendation: "Add tests to meet AC coverage requirement",
					NextSteps:      []string{"Identify missing AC tests", "Add test scenarios", "Validate coverage"},
				}
			},
		},
		{
			ID: "R3", Name: "validation failed",
			Applies: func(s Signals) bool { return s.ValidationStatus == release.ValidationFail },
			Build: func(s Signals) Outcome {
				return Outcome{
					Status:         release.DecisionNoGo,
					Reasoning:      append([]string{"Test validation failed"}, head(s.Gaps, 3)...),
					Recommendation: "Fix validation issues",
					NextSteps:      []string{"Review validation report", "Fix identified gaps"},
				}
			},
		},
		{
			ID: "R4", Name: "critical risk",
			Applies: func(s Signals) bool { return s.RiskScore >= 75 },
			Build: func(s Signals) Outcome {
				return Outcome{
					Status:     release.DecisionNoGo,
					Confidence: 10,
					Reasoning: append([]string{fmt.Sprintf("Critical risk score: %s/100", release.FormatNumber(s.RiskScore))},
						head(s.RiskFlags, 3)...),
					Gates:          []string{"Security team review required", "Architecture review required", "Load testing required"},
					Recommendation: "Requires extensive review and testing",
					NextSteps:      []string{"Schedule security review", "Plan load testing"},
				}
			},
		},
		{
			ID: "R5", Name: "high risk with database changes",
			Applies: func(s Signals) bool { return s.RiskScore >= 50 && mentions(s.RiskFlags, "database") },
			Build: func(s Signals) Outcome {
				return Outcome{
					Status:     release.DecisionGate,
					Confidence: 40,
					Reasoning: []string{
						fmt.Sprintf("High risk with database changes: %s/100", release.FormatNumber(s.RiskScore)),
						"Database migration detected",
					},
					Gates:          []string{"DBA approval required", "Database backup verified", "Rollback procedure tested"},
					Recommendation: "Deploy after DBA approval and backup verification",
					NextSteps:      []string{"Contact DBA for review", "Verify backup strategy"},
				}
			},
		},
		{
			ID: "R6", Name: "elevated risk",
			Applies: func(s Signals) bool { return s.RiskScore >= 50 },
			Build: func(s Signals) Outcome {
				return Outcome{
					Status:     release.DecisionGate,
					Confidence: 55,
					Reasoning: append([]string{fmt.Sprintf("Medium-high risk: %s/100", release.FormatNumber(s.RiskScore))},
						head(s.RiskFlags, 2)...),
					Gates:          []string{"Manual testing recommended", "Staging validation required"},
					Recommendation: "Validate manually in staging before deployment",
					NextSteps:      []string{"Run manual smoke tests in staging", "Verify user flows work correctly"},
				}
			},
		},
		{
			ID: "R7", Name: "clean",
			Applies: func(Signals) bool { return true },
			Build: func(s Signals) Outcome {
				return Outcome{
					Status:     release.DecisionGo,
					Confidence: GoConfidence(s.PassRate, s.Coverage),
					Reasoning: []string{
						fmt.Sprintf("Tests passed: %.0f%%", s.PassRate*100),
						fmt.Sprintf("AC coverage: %s%%", release.FormatNumber(s.Coverage)),
						fmt.Sprintf("Risk score: %s/100 (LOW)", release.FormatNumber(s.RiskScore)),
					},
					Recommendation: "Safe to deploy - all metrics look good",
					NextSteps:      []string{"Auto-merge to main", "Deploy to staging", "Monitor metrics"},
				}
			},
		},
	}
}

// GoConfidence is the clean-path confidence. pass_rate is a fraction and
// coverage a percentage; both scales are kept as they are reported.
func GoConfidence(passRate, coverage float64) int {
	c := math.Round(passRate * 100 * coverage / 100)
	return int(math.Max(0, math.Min(100, c)))
}

func mentions(flags []string, needle string) bool {
	for _, f := range flags {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func head(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string{}, s...)
}
