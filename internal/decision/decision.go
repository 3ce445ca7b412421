// Package decision turns execution, coverage and risk signals into a
// GO / GATE / NO-GO verdict by walking an ordered rule ladder.
package decision

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// Verdict returned when the ladder itself fails. It never defaults to GO.
const (
	InternalErrorStatus     = release.DecisionGate
	InternalErrorConfidence = 0
)

// Inputs are the outputs of the execute, validate and score stages.
type Inputs struct {
	Execution  *release.TestExecutionResult
	Validation *release.ValidationReport
	Risk       *release.RiskAssessment
}

// Signals extracts and sanity-checks the metrics the ladder reads.
func (in Inputs) Signals() (Signals, error) {
	switch {
	case in.Execution == nil:
		return Signals{}, errors.New("missing test execution result")
	case in.Validation == nil:
		return Signals{}, errors.New("missing validation report")
	case in.Risk == nil:
		return Signals{}, errors.New("missing risk assessment")
	}
	s := Signals{
		PassRate:         in.Execution.Summary.PassRate,
		ExecutionStatus:  in.Execution.Status,
		Failed:           in.Execution.Summary.Failed,
		Coverage:         in.Validation.CoveragePercentage,
		ValidationStatus: in.Validation.Status,
		Gaps:             in.Validation.Gaps,
		RiskScore:        in.Risk.RiskScore,
		RiskFlags:        in.Risk.RiskFlags,
	}
	for _, m := range []struct {
		name string
		v    float64
	}{{"pass_rate", s.PassRate}, {"coverage_percentage", s.Coverage}, {"risk_score", s.RiskScore}} {
		if math.IsNaN(m.v) || math.IsInf(m.v, 0) {
			return Signals{}, fmt.Errorf("%s is not a number", m.name)
		}
	}
	return s, nil
}

// Engine evaluates a rule ladder.
type Engine struct {
	rules    []Rule
	now      func() time.Time
	logger   *slog.Logger
	observer func(release.DeploymentDecision)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the default ladder.
func WithRules(rules []Rule) Option { return func(e *Engine) { e.rules = rules } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithObserver registers a callback invoked with every decision made.
func WithObserver(fn func(release.DeploymentDecision)) Option {
	return func(e *Engine) { e.observer = fn }
}

// New returns an Engine using DefaultRules unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		rules:  DefaultRules(),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rules returns the ladder in evaluation order.
func (e *Engine) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// Decide always returns a decision. Missing or malformed inputs, a
// panicking rule or an exhausted ladder produce the internal-error verdict.
// The observer sees every decision returned.
func (e *Engine) Decide(in Inputs) release.DeploymentDecision {
	d := e.Evaluate(in)
	if e.observer != nil {
		e.observer(d)
	}
	return d
}

// Evaluate is Decide without notifying the observer, for re-evaluating
// inputs that were already decided once.
func (e *Engine) Evaluate(in Inputs) release.DeploymentDecision {
	d, err := e.evaluate(in)
	if err != nil {
		e.logger.Error("error making decision", "error", err)
		d = release.DeploymentDecision{
			Status:          InternalErrorStatus,
			Confidence:      InternalErrorConfidence,
			Reasoning:       []string{"Decision logic error: " + err.Error()},
			DeploymentGates: []string{},
			Recommendation:  "Manual review required due to decision error",
			NextSteps:       []string{},
			Error:           err.Error(),
		}
	} else {
		e.logger.Info("decision made", "status", d.Status, "confidence", d.Confidence, "rule", d.Rule)
	}
	d.Timestamp = e.now()
	return d
}

func (e *Engine) evaluate(in Inputs) (release.DeploymentDecision, error) {
	s, err := in.Signals()
	if err != nil {
		return release.DeploymentDecision{}, err
	}
	e.logger.Info("making deployment decision",
		"pass_rate", s.PassRate, "coverage", s.Coverage, "risk_score", s.RiskScore)

	var (
		d     release.DeploymentDecision
		fired bool
		pc    panics.Catcher
	)
	pc.Try(func() {
		for _, r := range e.rules {
			if !r.Applies(s) {
				continue
			}
			o := r.Build(s)
			d = release.DeploymentDecision{
				Status:          o.Status,
				Confidence:      o.Confidence,
				Reasoning:       nonNil(o.Reasoning),
				DeploymentGates: nonNil(o.Gates),
				Recommendation:  o.Recommendation,
				NextSteps:       nonNil(o.NextSteps),
				Rule:            r.ID,
			}
			fired = true
			return
		}
	})
	if rec := pc.Recovered(); rec != nil {
		return release.DeploymentDecision{}, fmt.Errorf("rule panicked: %v", rec.Value)
	}
	if !fired {
		return release.DeploymentDecision{}, errors.New("no rule matched")
	}
	return d, nil
}

// CanAutoMerge reports whether the change may merge without review.
func CanAutoMerge(d release.DeploymentDecision) bool { return d.Status == release.DecisionGo }

// CanDeployToStaging reports whether the change may reach staging.
func CanDeployToStaging(d release.DeploymentDecision) bool {
	return d.Status == release.DecisionGo || d.Status == release.DecisionGate
}

// RequiresManualReview reports whether a human must sign off.
func RequiresManualReview(d release.DeploymentDecision) bool {
	return d.Status == release.DecisionGate || d.Status == release.DecisionNoGo
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
