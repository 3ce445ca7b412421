package risk

import (
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// Level is a human-readable risk band.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// LevelOf maps a score onto its band.
func LevelOf(score float64) Level {
	switch {
	case score <= 20:
		return LevelLow
	case score <= 50:
		return LevelMedium
	case score <= 75:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// flagGates map a keyword found in any risk flag to the gates it requires.
// Matching is case-sensitive so "Database schema" triggers but a model
// factor mentioning "database" in passing does not.
var flagGates = []struct {
	keyword string
	gates   []string
}{
	{"Database", []string{"Verify database backups are recent", "Run data migration tests"}},
	{"Auth", []string{"Test all authentication flows", "Verify session management"}},
	{"API", []string{"Verify API contract compatibility", "Test backward compatibility"}},
	{"Infrastructure", []string{"Verify infrastructure availability", "Check monitoring and alerting"}},
}

// DeploymentGates lists the checks the assessment calls for.
func DeploymentGates(a release.RiskAssessment) []string {
	joined := strings.Join(a.RiskFlags, "\n")
	var gates []string
	for _, fg := range flagGates {
		if strings.Contains(joined, fg.keyword) {
			gates = append(gates, fg.gates...)
		}
	}
	if a.RiskScore > 50 {
		gates = append(gates, "Requires QA sign-off")
	}
	if a.RiskScore > 75 {
		gates = append(gates, "Requires product manager approval", "Have rollback plan ready")
	}
	return gates
}

// RemediationSteps combines the model's suggestions with checks implied by
// the acceptance criteria. A change with neither gets generic steps.
func RemediationSteps(a release.RiskAssessment, acceptanceCriteria []string) []string {
	steps := append([]string{}, a.Suggestions...)
	for _, ac := range acceptanceCriteria {
		lower := strings.ToLower(ac)
		if strings.Contains(lower, "performance") {
			steps = append(steps, "Run performance benchmarks before and after")
		}
		if strings.Contains(lower, "security") {
			steps = append(steps, "Run security scanning and SAST analysis")
		}
		if strings.Contains(lower, "database") {
			steps = append(steps, "Validate database integrity post-deployment")
		}
	}
	if len(steps) == 0 {
		steps = []string{
			"Run full integration test suite",
			"Perform smoke tests in staging",
			"Monitor error rates post-deployment",
		}
	}
	return steps
}
