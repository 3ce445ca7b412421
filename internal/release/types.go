package release

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category is a file classification bucket.
type Category string

const (
	CategoryBackend        Category = "backend"
	CategoryFrontend       Category = "frontend"
	CategoryDatabase       Category = "database"
	CategoryInfrastructure Category = "infrastructure"
	CategoryConfig         Category = "config"
	CategoryTests          Category = "tests"
	CategoryOther          Category = "other"
)

// Categories lists every category in canonical report order.
var Categories = []Category{
	CategoryBackend,
	CategoryFrontend,
	CategoryDatabase,
	CategoryInfrastructure,
	CategoryConfig,
	CategoryTests,
	CategoryOther,
}

// Classification maps a category to the (lower-cased) filenames assigned to it.
// Only non-empty categories are present.
type Classification map[Category][]string

// Has reports whether at least one file landed in cat.
func (c Classification) Has(cat Category) bool { return len(c[cat]) > 0 }

// Names returns the present categories in canonical order.
func (c Classification) Names() []string {
	var out []string
	for _, cat := range Categories {
		if c.Has(cat) {
			out = append(out, string(cat))
		}
	}
	return out
}

// Files returns every classified filename in canonical category order.
func (c Classification) Files() []string {
	var out []string
	for _, cat := range Categories {
		out = append(out, c[cat]...)
	}
	return out
}

// Ref identifies a pull request in a repository.
type Ref struct {
	Owner  string `json:"repo_owner"`
	Repo   string `json:"repo_name"`
	Number int    `json:"pr_number"`
}

func (r Ref) String() string { return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number) }

// Validate returns an error naming the first missing field.
func (r Ref) Validate() error {
	switch {
	case r.Owner == "":
		return fmt.Errorf("missing repo_owner")
	case r.Repo == "":
		return fmt.Errorf("missing repo_name")
	case r.Number <= 0:
		return fmt.Errorf("missing pr_number")
	}
	return nil
}

// FileChange is one file touched by a pull request.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// PullRequest is the source-control view of a change.
type PullRequest struct {
	Number     int          `json:"pr_number"`
	Title      string       `json:"title"`
	Body       string       `json:"body"`
	Author     string       `json:"author"`
	BaseBranch string       `json:"base_branch"`
	HeadBranch string       `json:"head_branch"`
	Files      []FileChange `json:"files"`
}

func (p PullRequest) TotalAdditions() int {
	n := 0
	for _, f := range p.Files {
		n += f.Additions
	}
	return n
}

func (p PullRequest) TotalDeletions() int {
	n := 0
	for _, f := range p.Files {
		n += f.Deletions
	}
	return n
}

// Diff joins every file patch with newlines.
func (p PullRequest) Diff() string {
	patches := make([]string, len(p.Files))
	for i, f := range p.Files {
		patches[i] = f.Patch
	}
	return strings.Join(patches, "\n")
}

// Ticket is an issue-tracker ticket with its extracted acceptance criteria.
type Ticket struct {
	ID                 string   `json:"ticket_id"`
	Key                string   `json:"key"`
	Summary            string   `json:"summary"`
	Description        string   `json:"description"`
	Status             string   `json:"status"`
	Type               string   `json:"type"`
	Assignee           string   `json:"assignee"`
	Priority           string   `json:"priority"`
	Labels             []string `json:"labels"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// ChangeContext is everything known about a change before any test runs.
// It is built once per change and never mutated afterwards.
type ChangeContext struct {
	Ref                Ref            `json:"ref"`
	PullRequest        PullRequest    `json:"pr_info"`
	Classification     Classification `json:"file_types"`
	TicketIDs          []string       `json:"jira_tickets"`
	Tickets            []Ticket       `json:"jira_details"`
	AcceptanceCriteria []string       `json:"acceptance_criteria"`
	TotalChanges       int            `json:"total_changes"`
}

// ScenarioType tags the flavour of a synthesized test.
type ScenarioType string

const (
	ScenarioIntegration ScenarioType = "integration_test"
	ScenarioAutomation  ScenarioType = "automation_test"
	ScenarioE2E         ScenarioType = "e2e_test"
)

// Priority of a test scenario.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TestScenario is a proposed test.
type TestScenario struct {
	ID               string       `json:"test_id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	Type             ScenarioType `json:"type"`
	Steps            []string     `json:"scenario_steps"`
	ExpectedOutcomes []string     `json:"expected_outcomes"`
	Priority         Priority     `json:"priority"`
	RiskFlags        []string     `json:"risk_flags"`
}

// TestStatus is a single test outcome as reported by the runner.
type TestStatus string

const (
	TestPassed  TestStatus = "passed"
	TestFailed  TestStatus = "failed"
	TestSkipped TestStatus = "skipped"
	TestError   TestStatus = "error"
)

// ExecutionStatus is the overall outcome of one execution attempt.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
	ExecutionTimeout ExecutionStatus = "TIMEOUT"
	ExecutionError   ExecutionStatus = "ERROR"
)

// TestOutcome is the result of one executed test.
type TestOutcome struct {
	Name     string     `json:"name"`
	Status   TestStatus `json:"status"`
	Duration float64    `json:"duration"`
	Error    string     `json:"error"`
}

// ExecutionSummary aggregates the outcomes of an execution attempt.
type ExecutionSummary struct {
	Total                int     `json:"total"`
	Passed               int     `json:"passed"`
	Failed               int     `json:"failed"`
	Skipped              int     `json:"skipped"`
	Errors               int     `json:"errors"`
	PassRate             float64 `json:"pass_rate"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
}

// Recompute sets PassRate from Passed and Total.
func (s *ExecutionSummary) Recompute() {
	s.PassRate = 0
	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total)
	}
}

// TestExecutionResult is produced once per execution attempt.
type TestExecutionResult struct {
	Timestamp time.Time        `json:"timestamp"`
	RepoPath  string           `json:"repo_path"`
	Tests     []TestOutcome    `json:"tests"`
	Summary   ExecutionSummary `json:"summary"`
	Status    ExecutionStatus  `json:"status"`
}

// ValidationStatus is the verdict of the coverage validator.
type ValidationStatus string

const (
	ValidationPass  ValidationStatus = "PASS"
	ValidationFail  ValidationStatus = "FAIL"
	ValidationError ValidationStatus = "ERROR"
)

// ACCoverage records how one acceptance criterion is covered.
type ACCoverage struct {
	AC        string `json:"ac"`
	Tested    bool   `json:"tested"`
	Passed    bool   `json:"passed"`
	TestCount int    `json:"test_count"`
}

// ValidationReport reconciles an execution result with the requirement list.
type ValidationReport struct {
	Timestamp          time.Time        `json:"timestamp"`
	ACCoverage         []ACCoverage     `json:"ac_coverage"`
	CoveragePercentage float64          `json:"coverage_percentage"`
	Gaps               []string         `json:"gaps"`
	Status             ValidationStatus `json:"status"`
	Issues             []string         `json:"issues"`
	Warnings           []string         `json:"warnings"`
}

// RiskAssessment scores deployment risk. Score and confidence are
// independent axes.
type RiskAssessment struct {
	RiskScore            float64  `json:"risk_score"`
	ConfidencePercentage float64  `json:"confidence_percentage"`
	RiskFlags            []string `json:"risk_flags"`
	Suggestions          []string `json:"suggestions"`
	RequiresManualReview bool     `json:"requires_manual_review"`
}

// DefaultRiskScore is assumed when an assessment carries no score. It sits
// on the elevated-risk rung so a missing score never reads as low risk.
const DefaultRiskScore = 50.0

// UnmarshalJSON defaults a missing or null risk_score to DefaultRiskScore.
func (a *RiskAssessment) UnmarshalJSON(data []byte) error {
	type plain RiskAssessment
	aux := struct {
		*plain
		RiskScore *float64 `json:"risk_score"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.RiskScore = DefaultRiskScore
	if aux.RiskScore != nil {
		a.RiskScore = *aux.RiskScore
	}
	return nil
}

// DecisionStatus is the deployment verdict.
type DecisionStatus string

const (
	DecisionGo   DecisionStatus = "GO"
	DecisionGate DecisionStatus = "GATE"
	DecisionNoGo DecisionStatus = "NO-GO"
)

// DeploymentDecision is emitted exactly once per (execution, validation, risk) triple.
type DeploymentDecision struct {
	Timestamp       time.Time      `json:"timestamp"`
	Status          DecisionStatus `json:"status"`
	Confidence      int            `json:"confidence"`
	Reasoning       []string       `json:"reasoning"`
	DeploymentGates []string       `json:"deployment_gates"`
	Recommendation  string         `json:"recommendation"`
	NextSteps       []string       `json:"next_steps"`
	Rule            string         `json:"rule,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// RollbackPlan is an ordered rollback procedure for a release.
type RollbackPlan struct {
	ReleaseID                string   `json:"release_id"`
	Steps                    []string `json:"steps"`
	EstimatedDurationMinutes int      `json:"estimated_duration_minutes"`
	CriticalAlerts           []string `json:"critical_alerts"`
	DataBackupRequired       bool     `json:"data_backup_required"`
}

// FormatNumber renders v without a trailing ".0" for whole numbers.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
