package pipeline

import (
	"time"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

// TestsGenerated is the synthesize stage's checkpoint.
type TestsGenerated struct {
	PRNumber       int                    `json:"pr_number"`
	PRTitle        string                 `json:"pr_title"`
	Ref            release.Ref            `json:"ref"`
	Tests          synth.Result           `json:"tests"`
	RiskAssessment release.RiskAssessment `json:"risk_assessment"`
	JiraContext    JiraContext            `json:"jira_context"`
	FileTypes      release.Classification `json:"file_types"`
}

// JiraContext is the requirement context carried by TestsGenerated.
type JiraContext struct {
	Tickets            []string `json:"tickets"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// Stage names, in run order.
const (
	StageSynthesize = "synthesize"
	StageExecute    = "execute"
	StageValidate   = "validate"
	StageDecide     = "decide"
)

// Default artifact file names used by Run.
const (
	FileTestsGenerated     = "phase1_tests_generated.json"
	FileTestsExecuted      = "phase2_tests_executed.json"
	FileTestsValidated     = "phase2_tests_validated.json"
	FileDeploymentDecision = "phase2_deployment_decision.json"
	FileRunState           = "run_state.json"
)

// RunStatus is the lifecycle of a composed run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// StageRecord is one entry in the run history.
type StageRecord struct {
	Stage      string    `json:"stage"`
	Artifact   string    `json:"artifact"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Skipped    bool      `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunState is the manifest written next to a run's artifacts.
type RunState struct {
	RunID     string        `json:"run_id"`
	Ref       release.Ref   `json:"ref"`
	RepoPath  string        `json:"repo_path"`
	Status    RunStatus     `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Stages    []StageRecord `json:"stages"`
	Files     RunFiles      `json:"files"`
}

// RunFiles are the artifact paths of a run.
type RunFiles struct {
	TestsGenerated     string `json:"tests_generated"`
	TestsExecuted      string `json:"tests_executed"`
	TestsValidated     string `json:"tests_validated"`
	DeploymentDecision string `json:"deployment_decision"`
}

// RunSummary is returned by Run and Resume.
type RunSummary struct {
	RunID          string                 `json:"run_id"`
	PRNumber       int                    `json:"pr_number"`
	TestsGenerated int                    `json:"phase1_tests_generated"`
	TestsExecuted  int                    `json:"phase2_tests_executed"`
	TestsPassed    int                    `json:"phase2_tests_passed"`
	ACCoverage     float64                `json:"phase2_ac_coverage"`
	Decision       release.DecisionStatus `json:"phase2_deployment_decision"`
	Confidence     int                    `json:"phase2_confidence"`
	Files          RunFiles               `json:"files"`
}
