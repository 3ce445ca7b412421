// Package service composes the analysis components into the request-level
// operations shared by the HTTP API, the webhook and the MCP tools.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mobigaurav/ai-release-guardian/internal/decision"
	"github.com/mobigaurav/ai-release-guardian/internal/github"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/report"
	"github.com/mobigaurav/ai-release-guardian/internal/risk"
	"github.com/mobigaurav/ai-release-guardian/internal/rollback"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

// Analyzer builds a change context for a pull request.
type Analyzer interface {
	Analyze(ctx context.Context, ref release.Ref) (*release.ChangeContext, error)
}

// Synthesizer proposes test scenarios.
type Synthesizer interface {
	Generate(ctx context.Context, in synth.Input) *synth.Result
}

// RiskAssessor scores deployment risk.
type RiskAssessor interface {
	Assess(ctx context.Context, in risk.Input) release.RiskAssessment
}

// Decider turns execution, validation and risk into a verdict.
type Decider interface {
	Decide(in decision.Inputs) release.DeploymentDecision
}

// Commenter posts a comment on a pull request.
type Commenter interface {
	PostComment(ctx context.Context, ref release.Ref, body string) (*github.Comment, error)
}

// ErrNotConfigured is returned by operations whose collaborator is missing.
var ErrNotConfigured = errors.New("not configured")

// Service is the request-level facade. Each collaborator is optional; an
// operation fails with ErrNotConfigured when the one it needs is missing.
type Service struct {
	analyzer  Analyzer
	synth     Synthesizer
	risk      RiskAssessor
	decider   Decider
	commenter Commenter
	planner   *rollback.Planner
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAnalyzer enables AnalyzeRelease and Review.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

func WithSynthesizer(y Synthesizer) Option {
	return func(s *Service) { s.synth = y }
}

func WithRiskAssessor(r RiskAssessor) Option {
	return func(s *Service) { s.risk = r }
}

// WithDecider replaces the default decision engine.
func WithDecider(d Decider) Option {
	return func(s *Service) { s.decider = d }
}

// WithCommenter enables Review.
func WithCommenter(c Commenter) Option {
	return func(s *Service) { s.commenter = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Service. The rollback planner and decision engine need no
// external collaborators and are always available.
func New(opts ...Option) *Service {
	s := &Service{
		decider: decision.New(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	s.planner = rollback.New(s.logger)
	return s
}

// Analysis is the combined result of analyzing a pull request.
type Analysis struct {
	Context *release.ChangeContext
	Tests   *synth.Result
	Risk    release.RiskAssessment
}

// AnalyzeRelease fetches the pull request, proposes tests and scores risk.
func (s *Service) AnalyzeRelease(ctx context.Context, ref release.Ref) (*Analysis, error) {
	if s.analyzer == nil || s.synth == nil || s.risk == nil {
		return nil, fmt.Errorf("analyze release: %w", ErrNotConfigured)
	}
	cc, err := s.analyzer.Analyze(ctx, ref)
	if err != nil {
		return nil, err
	}
	tests := s.synth.Generate(ctx, synth.InputFromContext(cc))
	assessment := s.risk.Assess(ctx, risk.InputFromContext(cc))
	s.logger.InfoContext(ctx, "release analyzed",
		"pr_number", ref.Number,
		"tests_generated", tests.Total,
		"risk_score", assessment.RiskScore)
	return &Analysis{Context: cc, Tests: tests, Risk: assessment}, nil
}

// GenerateTests proposes scenarios for a diff.
func (s *Service) GenerateTests(ctx context.Context, in synth.Input) (*synth.Result, error) {
	if s.synth == nil {
		return nil, fmt.Errorf("generate tests: %w", ErrNotConfigured)
	}
	return s.synth.Generate(ctx, in), nil
}

// ScoreRisk scores a described change.
func (s *Service) ScoreRisk(ctx context.Context, in risk.Input) (release.RiskAssessment, error) {
	if s.risk == nil {
		return release.RiskAssessment{}, fmt.Errorf("score risk: %w", ErrNotConfigured)
	}
	return s.risk.Assess(ctx, in), nil
}

// RollbackPlan builds a rollback procedure.
func (s *Service) RollbackPlan(in rollback.Input) release.RollbackPlan {
	return s.planner.Plan(in)
}

// MakeDecision runs the decision ladder.
func (s *Service) MakeDecision(in decision.Inputs) release.DeploymentDecision {
	return s.decider.Decide(in)
}

// Review analyzes a pull request and posts the analysis as a comment.
func (s *Service) Review(ctx context.Context, ref release.Ref) (*Analysis, error) {
	if s.commenter == nil {
		return nil, fmt.Errorf("review: %w", ErrNotConfigured)
	}
	a, err := s.AnalyzeRelease(ctx, ref)
	if err != nil {
		return nil, err
	}
	body := report.PRComment(report.Analysis{
		Tests:              a.Tests,
		Risk:               a.Risk,
		TicketIDs:          a.Context.TicketIDs,
		AcceptanceCriteria: a.Context.AcceptanceCriteria,
	})
	if _, err := s.commenter.PostComment(ctx, ref, body); err != nil {
		return nil, fmt.Errorf("post analysis comment on %s: %w", ref, err)
	}
	s.logger.InfoContext(ctx, "pull request reviewed", "pr_number", ref.Number)
	return a, nil
}
