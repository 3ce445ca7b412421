package server

import (
	"context"
	"net/http"

	"github.com/mobigaurav/ai-release-guardian/internal/decision"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/risk"
	"github.com/mobigaurav/ai-release-guardian/internal/rollback"
	"github.com/mobigaurav/ai-release-guardian/internal/service"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

// Guardian is the set of operations the server exposes.
type Guardian interface {
	AnalyzeRelease(ctx context.Context, ref release.Ref) (*service.Analysis, error)
	GenerateTests(ctx context.Context, in synth.Input) (*synth.Result, error)
	ScoreRisk(ctx context.Context, in risk.Input) (release.RiskAssessment, error)
	RollbackPlan(in rollback.Input) release.RollbackPlan
	MakeDecision(in decision.Inputs) release.DeploymentDecision
	Review(ctx context.Context, ref release.Ref) (*service.Analysis, error)
}

type analyzeRQ struct {
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
	PRNumber  int    `json:"pr_number"`
}

type analysisRS struct {
	Files                []release.FileChange `json:"files"`
	JiraTickets          []string             `json:"jira_tickets"`
	AcceptanceCriteria   []string             `json:"acceptance_criteria"`
	TestsGenerated       int                  `json:"tests_generated"`
	RiskScore            float64              `json:"risk_score"`
	Confidence           float64              `json:"confidence"`
	RiskFlags            []string             `json:"risk_flags"`
	RequiresManualReview bool                 `json:"requires_manual_review"`
}

func (s *Server) handleAnalyzeRelease(w http.ResponseWriter, r *http.Request) {
	var rq analyzeRQ
	if !s.decode(w, r, &rq) {
		return
	}
	switch {
	case rq.RepoOwner == "":
		writeError(w, http.StatusBadRequest, "Missing repo_owner")
		return
	case rq.RepoName == "":
		writeError(w, http.StatusBadRequest, "Missing repo_name")
		return
	case rq.PRNumber <= 0:
		writeError(w, http.StatusBadRequest, "Missing pr_number")
		return
	}

	a, err := s.svc.AnalyzeRelease(r.Context(), release.Ref{Owner: rq.RepoOwner, Repo: rq.RepoName, Number: rq.PRNumber})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "error in analyze-release", "pr_number", rq.PRNumber, "error", err)
		writeUpstreamError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"pr_number": rq.PRNumber,
		"analysis": analysisRS{
			Files:                a.Context.PullRequest.Files,
			JiraTickets:          nonNil(a.Context.TicketIDs),
			AcceptanceCriteria:   nonNil(a.Context.AcceptanceCriteria),
			TestsGenerated:       a.Tests.Total,
			RiskScore:            a.Risk.RiskScore,
			Confidence:           a.Risk.ConfidencePercentage,
			RiskFlags:            nonNil(a.Risk.RiskFlags),
			RequiresManualReview: a.Risk.RequiresManualReview,
		},
	})
}

type generateTestsRQ struct {
	CodeDiff           string                 `json:"code_diff"`
	AcceptanceCriteria []string               `json:"acceptance_criteria"`
	FileTypes          release.Classification `json:"file_types"`
	PRTitle            string                 `json:"pr_title"`
}

func (s *Server) handleGenerateTests(w http.ResponseWriter, r *http.Request) {
	var rq generateTestsRQ
	if !s.decode(w, r, &rq) {
		return
	}
	if rq.CodeDiff == "" {
		writeError(w, http.StatusBadRequest, "Missing code_diff")
		return
	}
	res, err := s.svc.GenerateTests(r.Context(), synth.Input{
		Title:              rq.PRTitle,
		Diff:               rq.CodeDiff,
		AcceptanceCriteria: rq.AcceptanceCriteria,
		FileTypes:          rq.FileTypes.Names(),
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "error in generate-tests", "error", err)
		writeUpstreamError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"integration_tests": res.Integration,
		"automation_tests":  res.Automation,
		"e2e_flows":         res.E2E,
		"total":             res.Total,
	})
}

type riskScoreRQ struct {
	ChangesSummary string                 `json:"changes_summary"`
	FileTypes      release.Classification `json:"file_types"`
	TotalChanges   int                    `json:"total_changes"`
	RiskyPatterns  []string               `json:"risky_patterns"`
}

func (s *Server) handleRiskScore(w http.ResponseWriter, r *http.Request) {
	var rq riskScoreRQ
	if !s.decode(w, r, &rq) {
		return
	}
	if rq.ChangesSummary == "" {
		writeError(w, http.StatusBadRequest, "Missing changes_summary")
		return
	}
	a, err := s.svc.ScoreRisk(r.Context(), risk.Input{
		Summary:      rq.ChangesSummary,
		FileTypes:    rq.FileTypes,
		TotalChanges: rq.TotalChanges,
		Patterns:     rq.RiskyPatterns,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "error in release-risk-score", "error", err)
		writeUpstreamError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                true,
		"risk_score":             a.RiskScore,
		"confidence_percentage":  a.ConfidencePercentage,
		"risk_flags":             nonNil(a.RiskFlags),
		"suggestions":            nonNil(a.Suggestions),
		"requires_manual_review": a.RequiresManualReview,
	})
}

type rollbackRQ struct {
	ReleaseID    string                 `json:"release_id"`
	ChangedFiles []string               `json:"changed_files"`
	FileTypes    release.Classification `json:"file_types"`
	RiskFlags    []string               `json:"risk_flags"`
}

func (s *Server) handleRollbackPlan(w http.ResponseWriter, r *http.Request) {
	var rq rollbackRQ
	if !s.decode(w, r, &rq) {
		return
	}
	if rq.ReleaseID == "" {
		writeError(w, http.StatusBadRequest, "Missing release_id")
		return
	}
	p := s.svc.RollbackPlan(rollback.Input{
		ReleaseID:    rq.ReleaseID,
		ChangedFiles: rq.ChangedFiles,
		FileTypes:    rq.FileTypes,
		RiskFlags:    rq.RiskFlags,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                    true,
		"release_id":                 p.ReleaseID,
		"steps":                      p.Steps,
		"estimated_duration_minutes": p.EstimatedDurationMinutes,
		"critical_alerts":            p.CriticalAlerts,
		"data_backup_required":       p.DataBackupRequired,
	})
}

type decisionRQ struct {
	TestResults      *release.TestExecutionResult `json:"test_results"`
	ValidationReport *release.ValidationReport    `json:"validation_report"`
	RiskAssessment   *release.RiskAssessment      `json:"risk_assessment"`
}

func (s *Server) handleMakeDecision(w http.ResponseWriter, r *http.Request) {
	var rq decisionRQ
	if !s.decode(w, r, &rq) {
		return
	}
	switch {
	case rq.TestResults == nil:
		writeError(w, http.StatusBadRequest, "Missing test_results")
		return
	case rq.ValidationReport == nil:
		writeError(w, http.StatusBadRequest, "Missing validation_report")
		return
	case rq.RiskAssessment == nil:
		writeError(w, http.StatusBadRequest, "Missing risk_assessment")
		return
	}
	d := s.svc.MakeDecision(decision.Inputs{
		Execution:  rq.TestResults,
		Validation: rq.ValidationReport,
		Risk:       rq.RiskAssessment,
	})
	writeJSON(w, http.StatusOK, d)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
