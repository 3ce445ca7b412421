// Package pipeline sequences the release-readiness stages. Each stage reads
// its predecessors' checkpoint artifacts and writes its own, so any stage can
// be re-run without repeating earlier work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/mobigaurav/ai-release-guardian/internal/decision"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/risk"
	"github.com/mobigaurav/ai-release-guardian/internal/store"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

// ChangeAnalyzer builds the context of a change.
type ChangeAnalyzer interface {
	Analyze(ctx context.Context, ref release.Ref) (*release.ChangeContext, error)
}

// TestSynthesizer proposes scenarios for a change.
type TestSynthesizer interface {
	Generate(ctx context.Context, in synth.Input) *synth.Result
}

// RiskAssessor scores a change.
type RiskAssessor interface {
	Assess(ctx context.Context, in risk.Input) release.RiskAssessment
}

// TestExecutor runs a checkout's tests.
type TestExecutor interface {
	Execute(ctx context.Context, repoPath, pattern string) *release.TestExecutionResult
}

// CoverageValidator reconciles executed tests with acceptance criteria.
type CoverageValidator interface {
	Validate(result *release.TestExecutionResult, criteria []string) release.ValidationReport
}

// Decider produces the final verdict.
type Decider interface {
	Decide(in decision.Inputs) release.DeploymentDecision
}

// Evaluator is implemented by deciders that can re-evaluate inputs without
// counting it as a new decision. Replay prefers it over Decide.
type Evaluator interface {
	Evaluate(in decision.Inputs) release.DeploymentDecision
}

// Recorder audits decisions.
type Recorder interface {
	SaveDecision(ctx context.Context, rec *store.DecisionRecord) (int64, error)
}

// Components are the stage implementations an Orchestrator drives.
type Components struct {
	Analyzer    ChangeAnalyzer
	Synthesizer TestSynthesizer
	Risk        RiskAssessor
	Executor    TestExecutor
	Validator   CoverageValidator
	Decider     Decider
}

// Orchestrator runs stages and persists their artifacts.
type Orchestrator struct {
	c         Components
	artifacts *ArtifactStore
	recorder  Recorder
	pattern   string
	now       func() time.Time
	logger    *slog.Logger
	observe   func(stage string, elapsed time.Duration, err error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFs sets the filesystem artifacts are read from and written to.
func WithFs(fs afero.Fs) Option {
	return func(o *Orchestrator) { o.artifacts = NewArtifactStore(fs) }
}

// WithRecorder audits every decision the Decide stage makes.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithTestPattern sets the test path passed to the executor.
func WithTestPattern(p string) Option { return func(o *Orchestrator) { o.pattern = p } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithStageObserver is called after every stage that actually runs.
func WithStageObserver(fn func(stage string, elapsed time.Duration, err error)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// New validates the components and returns an Orchestrator.
func New(c Components, opts ...Option) (*Orchestrator, error) {
	switch {
	case c.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer is required")
	case c.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case c.Risk == nil:
		return nil, errors.New("pipeline: risk assessor is required")
	case c.Executor == nil:
		return nil, errors.New("pipeline: executor is required")
	case c.Validator == nil:
		return nil, errors.New("pipeline: validator is required")
	case c.Decider == nil:
		return nil, errors.New("pipeline: decider is required")
	}
	o := &Orchestrator{
		c:         c,
		artifacts: NewArtifactStore(nil),
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		observe:   func(string, time.Duration, error) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Artifacts returns the store used for checkpoint I/O.
func (o *Orchestrator) Artifacts() *ArtifactStore { return o.artifacts }

// Synthesize analyzes the change, proposes tests and scores risk.
func (o *Orchestrator) Synthesize(ctx context.Context, ref release.Ref, path string) (*TestsGenerated, error) {
	cc, err := o.c.Analyzer.Analyze(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyze change: %w", err)
	}
	tests := o.c.Synthesizer.Generate(ctx, synth.InputFromContext(cc))
	assessment := o.c.Risk.Assess(ctx, risk.InputFromContext(cc))

	out := &TestsGenerated{
		PRNumber:       ref.Number,
		PRTitle:        cc.PullRequest.Title,
		Ref:            ref,
		Tests:          *tests,
		RiskAssessment: assessment,
		JiraContext: JiraContext{
			Tickets:            nonNil(cc.TicketIDs),
			AcceptanceCriteria: nonNil(cc.AcceptanceCriteria),
		},
		FileTypes: cc.Classification,
	}
	if err := o.artifacts.Write(path, KindTestsGenerated, out); err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "tests generated", "pr_number", ref.Number, "total", tests.Total,
		"risk_score", assessment.RiskScore, "path", path)
	return out, nil
}

// Execute runs the tests of a checkout. Runner failures are recorded in the
// result, not returned.
func (o *Orchestrator) Execute(ctx context.Context, repoPath, path string) (*release.TestExecutionResult, error) {
	if repoPath == "" {
		return nil, errors.New("missing repo path")
	}
	res := o.c.Executor.Execute(ctx, repoPath, o.pattern)
	if err := o.artifacts.Write(path, KindTestsExecuted, res); err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "tests executed", "status", res.Status,
		"passed", res.Summary.Passed, "total", res.Summary.Total, "path", path)
	return res, nil
}

// Validate checks an executed artifact against the change's current
// acceptance criteria.
func (o *Orchestrator) Validate(ctx context.Context, executedPath string, ref release.Ref, path string) (*release.ValidationReport, error) {
	var executed release.TestExecutionResult
	if err := o.artifacts.Read(executedPath, KindTestsExecuted, &executed); err != nil {
		return nil, err
	}
	cc, err := o.c.Analyzer.Analyze(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyze change: %w", err)
	}
	rep := o.c.Validator.Validate(&executed, cc.AcceptanceCriteria)
	if err := o.artifacts.Write(path, KindTestsValidated, rep); err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "tests validated", "pr_number", ref.Number, "status", rep.Status,
		"coverage", rep.CoveragePercentage, "path", path)
	return &rep, nil
}

// Decide loads the three prior artifacts and writes the verdict.
func (o *Orchestrator) Decide(ctx context.Context, generatedPath, executedPath, validatedPath, path string) (*release.DeploymentDecision, error) {
	return o.decide(ctx, uuid.NewString(), generatedPath, executedPath, validatedPath, path)
}

func (o *Orchestrator) decide(ctx context.Context, runID, generatedPath, executedPath, validatedPath, path string) (*release.DeploymentDecision, error) {
	in, err := o.loadInputs(generatedPath, executedPath, validatedPath)
	if err != nil {
		return nil, err
	}
	d := o.c.Decider.Decide(in.Inputs)
	if err := o.artifacts.Write(path, KindDeploymentDecision, d); err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "decision made", "pr_number", in.generated.PRNumber,
		"status", d.Status, "confidence", d.Confidence, "rule", d.Rule, "path", path)

	if o.recorder != nil {
		rec := store.NewDecisionRecord(runID, in.generated.Ref, d,
			in.Risk.RiskScore, in.Validation.CoveragePercentage, in.Execution.Summary.PassRate)
		if _, err := o.recorder.SaveDecision(ctx, rec); err != nil {
			o.logger.WarnContext(ctx, "failed to record decision", "run_id", runID, "error", err)
		}
	}
	return &d, nil
}

type loadedInputs struct {
	decision.Inputs
	generated *TestsGenerated
}

func (o *Orchestrator) loadInputs(generatedPath, executedPath, validatedPath string) (*loadedInputs, error) {
	var (
		gen  TestsGenerated
		exec release.TestExecutionResult
		val  release.ValidationReport
	)
	if err := o.artifacts.Read(generatedPath, KindTestsGenerated, &gen); err != nil {
		return nil, err
	}
	if err := o.artifacts.Read(executedPath, KindTestsExecuted, &exec); err != nil {
		return nil, err
	}
	if err := o.artifacts.Read(validatedPath, KindTestsValidated, &val); err != nil {
		return nil, err
	}
	return &loadedInputs{
		Inputs:    decision.Inputs{Execution: &exec, Validation: &val, Risk: &gen.RiskAssessment},
		generated: &gen,
	}, nil
}

// Files returns the default artifact paths under dir.
func Files(dir string) RunFiles {
	return RunFiles{
		TestsGenerated:     filepath.Join(dir, FileTestsGenerated),
		TestsExecuted:      filepath.Join(dir, FileTestsExecuted),
		TestsValidated:     filepath.Join(dir, FileTestsValidated),
		DeploymentDecision: filepath.Join(dir, FileDeploymentDecision),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
