// Package mcp exposes the guardian operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mobigaurav/ai-release-guardian/internal/decision"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/risk"
	"github.com/mobigaurav/ai-release-guardian/internal/rollback"
	"github.com/mobigaurav/ai-release-guardian/internal/service"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

// Guardian is the set of operations exposed as tools.
type Guardian interface {
	AnalyzeRelease(ctx context.Context, ref release.Ref) (*service.Analysis, error)
	GenerateTests(ctx context.Context, in synth.Input) (*synth.Result, error)
	ScoreRisk(ctx context.Context, in risk.Input) (release.RiskAssessment, error)
	RollbackPlan(in rollback.Input) release.RollbackPlan
	MakeDecision(in decision.Inputs) release.DeploymentDecision
}

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server
	svc       Guardian
}

// NewServer creates an MCP server with the release analysis tools.
func NewServer(svc Guardian, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{svc: svc}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "ai-release-guardian", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves over the given transport until the client disconnects or ctx
// is canceled.
func (s *Server) Run(ctx context.Context, t sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, t)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "analyze_release",
		Description: "Analyze a pull request: linked tickets, acceptance criteria, generated test count and release risk.",
	}, s.handleAnalyzeRelease)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "generate_tests",
		Description: "Generate integration, automation and end-to-end test scenarios for a code diff.",
	}, s.handleGenerateTests)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "release_risk_score",
		Description: "Score the deployment risk of a change from 0 (safe) to 100 (critical).",
	}, s.handleRiskScore)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "rollback_plan",
		Description: "Build an ordered rollback procedure for a release from its changed files.",
	}, s.handleRollbackPlan)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "make_decision",
		Description: "Decide GO, GATE or NO-GO from test execution, acceptance coverage and risk.",
	}, s.handleMakeDecision)
}

// --- Tool input/output types ---

type analyzeReleaseInput struct {
	RepoOwner string `json:"repo_owner" jsonschema:"repository owner or organization"`
	RepoName  string `json:"repo_name" jsonschema:"repository name"`
	PRNumber  int    `json:"pr_number" jsonschema:"pull request number"`
}

type analyzeReleaseOutput struct {
	PRNumber             int                  `json:"pr_number"`
	Files                []release.FileChange `json:"files"`
	JiraTickets          []string             `json:"jira_tickets"`
	AcceptanceCriteria   []string             `json:"acceptance_criteria"`
	TestsGenerated       int                  `json:"tests_generated"`
	RiskScore            float64              `json:"risk_score"`
	Confidence           float64              `json:"confidence"`
	RiskFlags            []string             `json:"risk_flags"`
	RequiresManualReview bool                 `json:"requires_manual_review"`
}

type generateTestsInput struct {
	CodeDiff           string                 `json:"code_diff" jsonschema:"unified diff of the change"`
	AcceptanceCriteria []string               `json:"acceptance_criteria,omitempty" jsonschema:"acceptance criteria the tests should cover"`
	FileTypes          release.Classification `json:"file_types,omitempty" jsonschema:"changed files grouped by category (backend, frontend, database, ...)"`
	PRTitle            string                 `json:"pr_title,omitempty" jsonschema:"pull request title"`
}

type generateTestsOutput struct {
	IntegrationTests []release.TestScenario `json:"integration_tests"`
	AutomationTests  []release.TestScenario `json:"automation_tests"`
	E2EFlows         []release.TestScenario `json:"e2e_flows"`
	Total            int                    `json:"total"`
	Error            string                 `json:"error,omitempty"`
}

type riskScoreInput struct {
	ChangesSummary string                 `json:"changes_summary" jsonschema:"short description of the change"`
	FileTypes      release.Classification `json:"file_types,omitempty" jsonschema:"changed files grouped by category"`
	TotalChanges   int                    `json:"total_changes,omitempty" jsonschema:"lines added plus lines deleted"`
	RiskyPatterns  []string               `json:"risky_patterns,omitempty" jsonschema:"risk flags already detected by the caller"`
}

type rollbackPlanInput struct {
	ReleaseID    string                 `json:"release_id" jsonschema:"release or change identifier"`
	ChangedFiles []string               `json:"changed_files,omitempty" jsonschema:"changed file paths, classified when file_types is absent"`
	FileTypes    release.Classification `json:"file_types,omitempty" jsonschema:"changed files grouped by category"`
	RiskFlags    []string               `json:"risk_flags,omitempty" jsonschema:"risk flags used to raise critical alerts"`
}

type makeDecisionInput struct {
	PassRate           float64  `json:"pass_rate" jsonschema:"fraction of tests passed, 0 to 1"`
	ExecutionStatus    string   `json:"execution_status" jsonschema:"SUCCESS, FAILED, TIMEOUT or ERROR"`
	Failed             int      `json:"failed,omitempty" jsonschema:"number of failed tests"`
	CoveragePercentage float64  `json:"coverage_percentage" jsonschema:"acceptance criteria coverage, 0 to 100"`
	ValidationStatus   string   `json:"validation_status" jsonschema:"PASS, FAIL or ERROR"`
	Gaps               []string `json:"gaps,omitempty" jsonschema:"untested acceptance criteria"`
	RiskScore          float64  `json:"risk_score" jsonschema:"release risk score, 0 to 100"`
	RiskFlags          []string `json:"risk_flags,omitempty" jsonschema:"risk flags from the risk assessment"`
}

type makeDecisionOutput struct {
	Status          string   `json:"status"`
	Confidence      int      `json:"confidence"`
	Reasoning       []string `json:"reasoning"`
	DeploymentGates []string `json:"deployment_gates"`
	Recommendation  string   `json:"recommendation"`
	NextSteps       []string `json:"next_steps"`
	Rule            string   `json:"rule,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleAnalyzeRelease(ctx context.Context, _ *sdkmcp.CallToolRequest, input analyzeReleaseInput) (*sdkmcp.CallToolResult, analyzeReleaseOutput, error) {
	ref := release.Ref{Owner: input.RepoOwner, Repo: input.RepoName, Number: input.PRNumber}
	if err := ref.Validate(); err != nil {
		return nil, analyzeReleaseOutput{}, err
	}
	a, err := s.svc.AnalyzeRelease(ctx, ref)
	if err != nil {
		return nil, analyzeReleaseOutput{}, fmt.Errorf("analyze_release: %w", err)
	}
	files := a.Context.PullRequest.Files
	if files == nil {
		files = []release.FileChange{}
	}
	return nil, analyzeReleaseOutput{
		PRNumber:             ref.Number,
		Files:                files,
		JiraTickets:          nonNil(a.Context.TicketIDs),
		AcceptanceCriteria:   nonNil(a.Context.AcceptanceCriteria),
		TestsGenerated:       a.Tests.Total,
		RiskScore:            a.Risk.RiskScore,
		Confidence:           a.Risk.ConfidencePercentage,
		RiskFlags:            nonNil(a.Risk.RiskFlags),
		RequiresManualReview: a.Risk.RequiresManualReview,
	}, nil
}

func (s *Server) handleGenerateTests(ctx context.Context, _ *sdkmcp.CallToolRequest, input generateTestsInput) (*sdkmcp.CallToolResult, generateTestsOutput, error) {
	if input.CodeDiff == "" {
		return nil, generateTestsOutput{}, fmt.Errorf("code_diff is required")
	}
	r, err := s.svc.GenerateTests(ctx, synth.Input{
		Title:              input.PRTitle,
		Diff:               input.CodeDiff,
		AcceptanceCriteria: input.AcceptanceCriteria,
		FileTypes:          input.FileTypes.Names(),
	})
	if err != nil {
		return nil, generateTestsOutput{}, fmt.Errorf("generate_tests: %w", err)
	}
	return nil, generateTestsOutput{
		IntegrationTests: r.Integration,
		AutomationTests:  r.Automation,
		E2EFlows:         r.E2E,
		Total:            r.Total,
		Error:            r.Error,
	}, nil
}

func (s *Server) handleRiskScore(ctx context.Context, _ *sdkmcp.CallToolRequest, input riskScoreInput) (*sdkmcp.CallToolResult, release.RiskAssessment, error) {
	if input.ChangesSummary == "" {
		return nil, release.RiskAssessment{}, fmt.Errorf("changes_summary is required")
	}
	a, err := s.svc.ScoreRisk(ctx, risk.Input{
		Summary:      input.ChangesSummary,
		FileTypes:    input.FileTypes,
		TotalChanges: input.TotalChanges,
		Patterns:     input.RiskyPatterns,
	})
	if err != nil {
		return nil, release.RiskAssessment{}, fmt.Errorf("release_risk_score: %w", err)
	}
	a.RiskFlags = nonNil(a.RiskFlags)
	a.Suggestions = nonNil(a.Suggestions)
	return nil, a, nil
}

func (s *Server) handleRollbackPlan(_ context.Context, _ *sdkmcp.CallToolRequest, input rollbackPlanInput) (*sdkmcp.CallToolResult, release.RollbackPlan, error) {
	if input.ReleaseID == "" {
		return nil, release.RollbackPlan{}, fmt.Errorf("release_id is required")
	}
	return nil, s.svc.RollbackPlan(rollback.Input{
		ReleaseID:    input.ReleaseID,
		ChangedFiles: input.ChangedFiles,
		FileTypes:    input.FileTypes,
		RiskFlags:    input.RiskFlags,
	}), nil
}

func (s *Server) handleMakeDecision(_ context.Context, _ *sdkmcp.CallToolRequest, input makeDecisionInput) (*sdkmcp.CallToolResult, makeDecisionOutput, error) {
	d := s.svc.MakeDecision(decision.Inputs{
		Execution: &release.TestExecutionResult{
			Status:  release.ExecutionStatus(input.ExecutionStatus),
			Summary: release.ExecutionSummary{PassRate: input.PassRate, Failed: input.Failed},
		},
		Validation: &release.ValidationReport{
			Status:             release.ValidationStatus(input.ValidationStatus),
			CoveragePercentage: input.CoveragePercentage,
			Gaps:               input.Gaps,
		},
		Risk: &release.RiskAssessment{RiskScore: input.RiskScore, RiskFlags: input.RiskFlags},
	})
	return nil, makeDecisionOutput{
		Status:          string(d.Status),
		Confidence:      d.Confidence,
		Reasoning:       nonNil(d.Reasoning),
		DeploymentGates: nonNil(d.DeploymentGates),
		Recommendation:  d.Recommendation,
		NextSteps:       nonNil(d.NextSteps),
		Rule:            d.Rule,
		Error:           d.Error,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
