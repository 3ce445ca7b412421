package store

import (
	"context"
	"errors"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// DefaultDBPath is the default relative path for the SQLite audit DB.
// Open() creates the parent dir if needed.
const DefaultDBPath = ".guardian/guardian.db"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// DecisionRecord is one audited deployment decision.
type DecisionRecord struct {
	ID         int64
	RunID      string
	Ref        release.Ref
	Status     release.DecisionStatus
	Confidence int
	Rule       string
	RiskScore  float64
	Coverage   float64
	PassRate   float64
	Decision   release.DeploymentDecision
	CreatedAt  string
}

// Filter narrows ListDecisions. Zero fields match everything.
type Filter struct {
	Owner    string
	Repo     string
	PRNumber int
	Limit    int
}

func (f Filter) matches(r *DecisionRecord) bool {
	return (f.Owner == "" || f.Owner == r.Ref.Owner) &&
		(f.Repo == "" || f.Repo == r.Ref.Repo) &&
		(f.PRNumber == 0 || f.PRNumber == r.Ref.Number)
}

// Store is the audit facade. Implementations are SQLite or in-memory.
type Store interface {
	SaveDecision(ctx context.Context, rec *DecisionRecord) (int64, error)
	GetDecision(ctx context.Context, id int64) (*DecisionRecord, error)
	// ListDecisions returns matching records, newest first.
	ListDecisions(ctx context.Context, f Filter) ([]*DecisionRecord, error)
	Close() error
}

// NewDecisionRecord fills the indexed columns from the decision and its
// inputs.
func NewDecisionRecord(runID string, ref release.Ref, d release.DeploymentDecision, riskScore, coverage, passRate float64) *DecisionRecord {
	return &DecisionRecord{
		RunID:      runID,
		Ref:        ref,
		Status:     d.Status,
		Confidence: d.Confidence,
		Rule:       d.Rule,
		RiskScore:  riskScore,
		Coverage:   coverage,
		PassRate:   passRate,
		Decision:   d,
	}
}
