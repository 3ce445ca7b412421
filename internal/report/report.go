// Package report renders analysis results for people: the Markdown comment
// posted on a pull request and the terminal summaries printed by the CLI.
package report

import (
	"fmt"
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/coverage"
	"github.com/mobigaurav/ai-release-guardian/internal/decision"
	"github.com/mobigaurav/ai-release-guardian/internal/format"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/risk"
	"github.com/mobigaurav/ai-release-guardian/internal/store"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

const (
	maxListedTests = 3
	maxListed      = 5
)

// Analysis is everything shown in a pull request comment.
type Analysis struct {
	Tests              *synth.Result
	Risk               release.RiskAssessment
	TicketIDs          []string
	AcceptanceCriteria []string
	// Decision is optional; when set, a decision section is appended.
	Decision *release.DeploymentDecision
}

// PRComment renders the Markdown comment for a pull request analysis.
func PRComment(a Analysis) string {
	var b strings.Builder
	b.WriteString("## 🤖 AI Release Guardian Analysis\n\n")
	writeTests(&b, a.Tests)
	writeRisk(&b, a.Risk)
	writeJira(&b, a.TicketIDs, a.AcceptanceCriteria)
	writeRecommendations(&b, risk.RemediationSteps(a.Risk, a.AcceptanceCriteria))
	if a.Decision != nil {
		b.WriteString("\n### 🚦 Deployment Decision\n\n")
		b.WriteString(DecisionSummary(*a.Decision))
	}
	b.WriteString("\n---\n*Generated by AI Release Guardian*\n")
	return b.String()
}

func writeTests(b *strings.Builder, r *synth.Result) {
	if r == nil {
		r = &synth.Result{}
	}
	fmt.Fprintf(b, "### 🧪 Auto-Generated Test Scenarios (%d total)\n\n", r.Total)
	fmt.Fprintf(b, "**Integration Tests:** %d ✓\n", len(r.Integration))
	fmt.Fprintf(b, "**Automation Tests:** %d ✓\n", len(r.Automation))
	fmt.Fprintf(b, "**E2E Flows:** %d ✓\n", len(r.E2E))
	if len(r.Integration) > 0 {
		b.WriteString("\n#### Integration Tests:\n")
		for _, t := range head(synth.Prioritize(r.Integration), maxListedTests) {
			fmt.Fprintf(b, "- **%s**: %s\n", t.Name, t.Description)
		}
	}
	b.WriteString("\n")
}

func writeRisk(b *strings.Builder, a release.RiskAssessment) {
	level := risk.LevelOf(a.RiskScore)
	emoji := "🔴"
	switch level {
	case risk.LevelLow:
		emoji = "🟢"
	case risk.LevelMedium:
		emoji = "🟡"
	}
	review := "No ✓"
	if a.RequiresManualReview {
		review = "Yes ⚠️"
	}
	fmt.Fprintf(b, "### %s Release Risk Assessment\n\n", emoji)
	fmt.Fprintf(b, "**Risk Score:** %s (%s)\n", format.Score(a.RiskScore), level)
	fmt.Fprintf(b, "**Deployment Confidence:** %s\n", format.Percent(a.ConfidencePercentage))
	fmt.Fprintf(b, "**Manual Review Required:** %s\n", review)
	b.WriteString("\n#### Risk Flags:\n")
	for _, f := range head(a.RiskFlags, maxListed) {
		fmt.Fprintf(b, "- ⚠️ %s\n", f)
	}
	if gates := risk.DeploymentGates(a); len(gates) > 0 {
		b.WriteString("\n#### Deployment Gates:\n")
		for _, g := range gates {
			fmt.Fprintf(b, "- [ ] %s\n", g)
		}
	}
	b.WriteString("\n")
}

func writeJira(b *strings.Builder, ids, acs []string) {
	if len(ids) == 0 {
		return
	}
	b.WriteString("### 📋 Linked Jira Tickets\n")
	b.WriteString(strings.Join(ids, ", ") + "\n")
	if len(acs) > 0 {
		b.WriteString("\n#### Acceptance Criteria:\n")
		for _, ac := range head(acs, maxListed) {
			fmt.Fprintf(b, "- %s\n", ac)
		}
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, suggestions []string) {
	b.WriteString("### 💡 Recommendations\n")
	for _, s := range head(suggestions, maxListed) {
		fmt.Fprintf(b, "- %s\n", s)
	}
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// StatusEmoji is the badge shown next to a decision status.
func StatusEmoji(s release.DecisionStatus) string {
	switch s {
	case release.DecisionGo:
		return "✅"
	case release.DecisionGate:
		return "⚠️"
	default:
		return "❌"
	}
}

// DecisionSummary renders a decision as Markdown.
func DecisionSummary(d release.DeploymentDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s** (Confidence: %d%%)\n", StatusEmoji(d.Status), d.Status, d.Confidence)
	fmt.Fprintf(&b, "\n**Auto-merge:** %s | **Staging:** %s | **Manual review:** %s\n",
		yesNo(decision.CanAutoMerge(d)), yesNo(decision.CanDeployToStaging(d)), yesNo(decision.RequiresManualReview(d)))
	if len(d.Reasoning) > 0 {
		b.WriteString("\n**Reasoning:**\n")
		for _, r := range d.Reasoning {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(d.DeploymentGates) > 0 {
		b.WriteString("\n**Required Gates:**\n")
		for _, g := range d.DeploymentGates {
			fmt.Fprintf(&b, "- ⚠️ %s\n", g)
		}
	}
	if d.Recommendation != "" {
		fmt.Fprintf(&b, "\n**Recommendation:** %s\n", d.Recommendation)
	}
	if len(d.NextSteps) > 0 {
		b.WriteString("\n**Next Steps:**\n")
		for i, s := range d.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ExecutionSummary renders the pass count of a test run followed by the
// failing tests and the start of their assertion errors.
func ExecutionSummary(r release.TestExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Tests executed: %d/%d passed\n", r.Summary.Passed, r.Summary.Total)
	for _, f := range coverage.AssertionFailures(&r) {
		fmt.Fprintf(&b, "  ✗ %s: %s\n", f.Test, firstLine(f.Error))
	}
	return b.String()
}

func firstLine(s string) string {
	if line, _, ok := strings.Cut(s, "\n"); ok {
		return line
	}
	return s
}

// RollbackTable renders a rollback plan as a numbered step table followed by
// any critical alerts.
func RollbackTable(p release.RollbackPlan, m format.Mode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rollback plan %s (est. %s, backup required: %s)\n\n",
		p.ReleaseID, format.Minutes(p.EstimatedDurationMinutes), format.BoolMark(p.DataBackupRequired))

	tbl := format.NewTable(m)
	tbl.Header("#", "Step")
	tbl.Columns(format.ColumnConfig{Number: 1, Align: format.AlignRight}, format.ColumnConfig{Number: 2, MaxWidth: 80})
	for i, s := range p.Steps {
		tbl.Row(i+1, s)
	}
	b.WriteString(tbl.String())
	b.WriteString("\n")
	if len(p.CriticalAlerts) > 0 {
		b.WriteString("\nCritical alerts:\n")
		for _, a := range p.CriticalAlerts {
			fmt.Fprintf(&b, "  ! %s\n", a)
		}
	}
	return b.String()
}

// HistoryTable renders audited decisions, newest first as stored.
func HistoryTable(records []*store.DecisionRecord, m format.Mode) string {
	if len(records) == 0 {
		return "No decisions recorded.\n"
	}
	tbl := format.NewTable(m)
	tbl.Header("ID", "PR", "Status", "Conf", "Rule", "Risk", "Coverage", "Pass", "When")
	tbl.Columns(
		format.ColumnConfig{Number: 1, Align: format.AlignRight},
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
		format.ColumnConfig{Number: 6, Align: format.AlignRight},
		format.ColumnConfig{Number: 7, Align: format.AlignRight},
		format.ColumnConfig{Number: 8, Align: format.AlignRight},
	)
	for _, r := range records {
		tbl.Row(r.ID, r.Ref.String(), StatusEmoji(r.Status)+" "+string(r.Status),
			fmt.Sprintf("%d%%", r.Confidence), r.Rule,
			format.Score(r.RiskScore), format.Percent(r.Coverage), format.Percent(r.PassRate*100), r.CreatedAt)
	}
	return tbl.String() + "\n"
}
