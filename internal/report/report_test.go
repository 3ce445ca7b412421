package report

import (
	"strings"
	"testing"

	"github.com/mobigaurav/ai-release-guardian/internal/format"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/store"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

func scenarios(n int) []release.TestScenario {
	out := make([]release.TestScenario, n)
	for i := range out {
		out[i] = release.TestScenario{Name: "test_" + string(rune('a'+i)), Description: "desc"}
	}
	return out
}

func TestPRComment(t *testing.T) {
	a := Analysis{
		Tests: &synth.Result{Integration: scenarios(4), Automation: scenarios(1), Total: 5},
		Risk: release.RiskAssessment{
			RiskScore:            62,
			ConfidencePercentage: 70,
			RiskFlags:            []string{"f1", "f2", "f3", "f4", "f5", "f6"},
			Suggestions:          []string{"Add integration tests"},
			RequiresManualReview: true,
		},
		TicketIDs:          []string{"SHOP-1", "SHOP-2"},
		AcceptanceCriteria: []string{"User can pay"},
	}
	got := PRComment(a)

	for _, want := range []string{
		"## 🤖 AI Release Guardian Analysis",
		"### 🧪 Auto-Generated Test Scenarios (5 total)",
		"**Integration Tests:** 4 ✓",
		"**E2E Flows:** 0 ✓",
		"- **test_c**: desc",
		"### 🔴 Release Risk Assessment",
		"**Risk Score:** 62/100 (HIGH)",
		"**Deployment Confidence:** 70%",
		"**Manual Review Required:** Yes ⚠️",
		"- ⚠️ f5",
		"### 📋 Linked Jira Tickets\nSHOP-1, SHOP-2",
		"- User can pay",
		"### 💡 Recommendations\n- Add integration tests",
		"*Generated by AI Release Guardian*",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("comment missing %q\n%s", want, got)
		}
	}
	for _, absent := range []string{"test_d", "f6", "Deployment Decision"} {
		if strings.Contains(got, absent) {
			t.Errorf("comment should not contain %q", absent)
		}
	}
}

func TestPRComment_NoTicketsAndDecision(t *testing.T) {
	d := release.DeploymentDecision{Status: release.DecisionGo, Confidence: 90}
	got := PRComment(Analysis{Risk: release.RiskAssessment{RiskScore: 10}, Decision: &d})
	if strings.Contains(got, "Linked Jira Tickets") {
		t.Error("jira section rendered without tickets")
	}
	for _, want := range []string{"### 🟢 Release Risk Assessment", "(0 total)", "✅ **GO** (Confidence: 90%)"} {
		if !strings.Contains(got, want) {
			t.Errorf("comment missing %q\n%s", want, got)
		}
	}
}

func TestDecisionSummary(t *testing.T) {
	d := release.DeploymentDecision{
		Status:          release.DecisionGate,
		Confidence:      60,
		Reasoning:       []string{"High risk score: 80/100"},
		DeploymentGates: []string{"Requires QA sign-off"},
		Recommendation:  "Deploy with caution",
		NextSteps:       []string{"Get sign-off", "Deploy"},
	}
	want := "⚠️ **GATE** (Confidence: 60%)\n" +
		"\n**Auto-merge:** no | **Staging:** yes | **Manual review:** yes\n" +
		"\n**Reasoning:**\n- High risk score: 80/100\n" +
		"\n**Required Gates:**\n- ⚠️ Requires QA sign-off\n" +
		"\n**Recommendation:** Deploy with caution\n" +
		"\n**Next Steps:**\n1. Get sign-off\n2. Deploy\n"
	if got := DecisionSummary(d); got != want {
		t.Errorf("DecisionSummary =\n%s\nwant\n%s", got, want)
	}
	if StatusEmoji(release.DecisionNoGo) != "❌" {
		t.Error("NO-GO badge")
	}
}

func TestDecisionSummary_Permissions(t *testing.T) {
	tests := []struct {
		status release.DecisionStatus
		want   string
	}{
		{release.DecisionGo, "**Auto-merge:** yes | **Staging:** yes | **Manual review:** no"},
		{release.DecisionGate, "**Auto-merge:** no | **Staging:** yes | **Manual review:** yes"},
		{release.DecisionNoGo, "**Auto-merge:** no | **Staging:** no | **Manual review:** yes"},
	}
	for _, tt := range tests {
		got := DecisionSummary(release.DeploymentDecision{Status: tt.status})
		if !strings.Contains(got, tt.want) {
			t.Errorf("%s: summary missing %q\n%s", tt.status, tt.want, got)
		}
	}
}

func TestPRComment_PrioritizedTestsAndGates(t *testing.T) {
	integration := []release.TestScenario{
		{Name: "test_low", Description: "l", Priority: release.PriorityLow},
		{Name: "test_med", Description: "m", Priority: release.PriorityMedium},
		{Name: "test_low2", Description: "l", Priority: release.PriorityLow},
		{Name: "test_high", Description: "h", Priority: release.PriorityHigh},
	}
	a := Analysis{
		Tests: &synth.Result{Integration: integration, Total: 4},
		Risk: release.RiskAssessment{
			RiskScore: 80,
			RiskFlags: []string{"Database schema changes detected"},
		},
		AcceptanceCriteria: []string{"Checkout meets the performance budget"},
	}
	got := PRComment(a)

	high := strings.Index(got, "test_high")
	med := strings.Index(got, "test_med")
	if high < 0 || med < 0 || high > med {
		t.Errorf("high priority test should be listed first\n%s", got)
	}
	if strings.Contains(got, "test_low2") {
		t.Errorf("only the top %d integration tests are listed\n%s", maxListedTests, got)
	}
	for _, want := range []string{
		"#### Deployment Gates:\n- [ ] Verify database backups are recent",
		"- [ ] Requires QA sign-off",
		"- [ ] Have rollback plan ready",
		"### 💡 Recommendations\n- Run performance benchmarks before and after",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("comment missing %q\n%s", want, got)
		}
	}

	low := PRComment(Analysis{Risk: release.RiskAssessment{RiskScore: 10}})
	if strings.Contains(low, "Deployment Gates") {
		t.Errorf("low risk change should list no gates\n%s", low)
	}
	if !strings.Contains(low, "- Run full integration test suite") {
		t.Errorf("generic recommendations expected without suggestions\n%s", low)
	}
}

func TestExecutionSummary(t *testing.T) {
	r := release.TestExecutionResult{
		Summary: release.ExecutionSummary{Total: 3, Passed: 1, Failed: 2},
		Tests: []release.TestOutcome{
			{Name: "test_ok", Status: release.TestPassed},
			{Name: "test_total", Status: release.TestFailed, Error: "AssertionError: 10 != 12\nfull traceback"},
			{Name: "test_silent", Status: release.TestFailed},
		},
	}
	want := "✓ Tests executed: 1/3 passed\n" +
		"  ✗ test_total: AssertionError: 10 != 12\n"
	if got := ExecutionSummary(r); got != want {
		t.Errorf("ExecutionSummary =\n%s\nwant\n%s", got, want)
	}
}

func TestRollbackTable(t *testing.T) {
	p := release.RollbackPlan{
		ReleaseID:                "acme/shop#7",
		Steps:                    []string{"Stop traffic", "Revert"},
		EstimatedDurationMinutes: 65,
		CriticalAlerts:           []string{"Auth changes"},
		DataBackupRequired:       true,
	}
	got := RollbackTable(p, format.Markdown)
	for _, want := range []string{"acme/shop#7", "1h 5m", "Stop traffic", "backup required: ✓", "  ! Auth changes"} {
		if !strings.Contains(got, want) {
			t.Errorf("rollback table missing %q\n%s", want, got)
		}
	}
}

func TestHistoryTable(t *testing.T) {
	if got := HistoryTable(nil, format.ASCII); got != "No decisions recorded.\n" {
		t.Errorf("empty history = %q", got)
	}
	recs := []*store.DecisionRecord{{
		ID: 3, Ref: release.Ref{Owner: "acme", Repo: "shop", Number: 7},
		Status: release.DecisionNoGo, Confidence: 95, Rule: "R1",
		RiskScore: 40, Coverage: 50, PassRate: 0.75, CreatedAt: "2026-10-19T10:00:00Z",
	}}
	got := HistoryTable(recs, format.ASCII)
	for _, want := range []string{"acme/shop#7", "NO-GO", "95%", "R1", "40/100", "50%", "75%"} {
		if !strings.Contains(got, want) {
			t.Errorf("history missing %q\n%s", want, got)
		}
	}
}
