// Package rollback plans how to undo a release.
package rollback

import (
	"io"
	"log/slog"
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/analyzer"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

const (
	baseMinutes         = 5
	verificationMinutes = 10
)

type categoryPlan struct {
	category release.Category
	steps    []string
	alerts   []string
	minutes  int
	backup   bool
}

// categoryPlans are applied in this order for every category present.
var categoryPlans = []categoryPlan{
	{
		category: release.CategoryDatabase,
		steps: []string{
			"Backup most recent data from pre-deployment state",
			"Revert database schema to previous version",
			"Run post-rollback data validation",
		},
		alerts:  []string{"Database integrity check required"},
		minutes: 15,
		backup:  true,
	},
	{
		category: release.CategoryInfrastructure,
		steps: []string{
			"Scale down new infrastructure",
			"Restore previous infrastructure configuration",
			"Point traffic back to previous version",
		},
		alerts:  []string{"DNS/Load balancer failover"},
		minutes: 20,
	},
	{
		category: release.CategoryBackend,
		steps: []string{
			"Trigger deployment of previous version",
			"Clear application caches",
			"Verify service health checks passing",
		},
		alerts:  []string{"API version compatibility"},
		minutes: 10,
	},
	{
		category: release.CategoryFrontend,
		steps: []string{
			"Clear CDN cache",
			"Deploy previous frontend version",
			"Verify UI loads correctly in all browsers",
		},
		minutes: 5,
	},
	{
		category: release.CategoryConfig,
		steps: []string{
			"Rollback configuration management changes",
			"Restart services with previous config",
		},
	},
}

var genericSteps = []string{
	"Revert to previous release version",
	"Run post-rollback verification tests",
	"Monitor error rates and user reports",
}

var closingSteps = []string{
	"Monitor application metrics for 30 minutes",
	"Verify all integration tests passing",
	"Check error rates have returned to baseline",
	"Post-incident review with team",
}

// flagAlerts are raised for each risk flag containing the keyword. Matching
// is case-sensitive.
var flagAlerts = []struct{ keyword, alert string }{
	{"Auth", "Verify authentication services operational"},
	{"Payment", "Verify payment processing available"},
	{"Data", "Verify data consistency"},
}

// Input describes the release to plan for. When FileTypes is empty,
// ChangedFiles are classified instead.
type Input struct {
	ReleaseID    string
	ChangedFiles []string
	FileTypes    release.Classification
	RiskFlags    []string
}

// Plan builds the rollback procedure. It is deterministic and additive: each
// present category contributes its steps, alerts and minutes independently.
func Plan(in Input) release.RollbackPlan {
	return New(nil).Plan(in)
}

// Planner logs the plans it builds.
type Planner struct {
	logger *slog.Logger
}

// New returns a Planner. A nil logger discards output.
func New(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Planner{logger: logger}
}

func (p *Planner) Plan(in Input) release.RollbackPlan {
	files := in.FileTypes
	if len(files) == 0 && len(in.ChangedFiles) > 0 {
		files = analyzer.ClassifyNames(in.ChangedFiles)
	}

	plan := release.RollbackPlan{
		ReleaseID:                in.ReleaseID,
		Steps:                    []string{},
		CriticalAlerts:           []string{},
		EstimatedDurationMinutes: EstimateMinutes(files),
	}
	for _, cp := range categoryPlans {
		if !files.Has(cp.category) {
			continue
		}
		plan.Steps = append(plan.Steps, cp.steps...)
		plan.CriticalAlerts = append(plan.CriticalAlerts, cp.alerts...)
		plan.DataBackupRequired = plan.DataBackupRequired || cp.backup
	}
	if len(plan.Steps) == 0 {
		plan.Steps = append(plan.Steps, genericSteps...)
	}
	plan.Steps = append(plan.Steps, closingSteps...)

	for _, flag := range in.RiskFlags {
		for _, fa := range flagAlerts {
			if strings.Contains(flag, fa.keyword) {
				plan.CriticalAlerts = append(plan.CriticalAlerts, fa.alert)
			}
		}
	}

	p.logger.Info("rollback plan generated", "release_id", in.ReleaseID, "steps", len(plan.Steps))
	return plan
}

// EstimateMinutes sums a fixed base, the per-category costs and a
// verification buffer.
func EstimateMinutes(files release.Classification) int {
	total := baseMinutes + verificationMinutes
	for _, cp := range categoryPlans {
		if files.Has(cp.category) {
			total += cp.minutes
		}
	}
	return total
}

// PreDeploymentChecklist lists what must be confirmed before deploying a
// release with this plan.
func PreDeploymentChecklist(plan release.RollbackPlan) []string {
	items := []string{
		"Rollback plan reviewed by team",
		"Backups verified and tested",
		"Communication channel open (incident channel)",
		"Team members available during deployment window",
	}
	if plan.DataBackupRequired {
		items = append(items, "Database backups confirmed and recent", "Backup restore procedure tested")
	}
	return append(items, plan.CriticalAlerts...)
}

// PostDeploymentChecklist lists what to verify once the release is live.
func PostDeploymentChecklist() []string {
	return []string{
		"All services reporting healthy status",
		"Error rates within normal parameters",
		"No critical alerts in monitoring",
		"Database integrity verified",
		"API endpoints responding correctly",
		"User-facing features working as expected",
		"Performance metrics acceptable",
		"Security scans passing",
	}
}
