// Package risk scores how dangerous a change is to deploy.
//
// The language model supplies a score, a confidence and free-form factors.
// Deterministic pattern flags from the analyzer are appended afterwards so
// they survive whatever the model says. Any model failure yields FailSafe.
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/mobigaurav/ai-release-guardian/internal/analyzer"
	"github.com/mobigaurav/ai-release-guardian/internal/llm"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// FailSafe is returned whenever the model cannot produce a usable
// assessment. It always demands manual review.
var FailSafe = release.RiskAssessment{
	RiskScore:            75,
	ConfidencePercentage: 25,
	RiskFlags:            []string{"Analysis failed - manual review required"},
	Suggestions:          []string{"Please review PR manually"},
	RequiresManualReview: true,
}

const defaultScore = release.DefaultRiskScore

// Input describes the change being scored.
type Input struct {
	Summary      string
	FileTypes    release.Classification
	TotalChanges int
	Diff         string
	// Patterns are risky patterns detected by the caller. They are added to
	// the flags alongside those found in Diff.
	Patterns []string
}

// InputFromContext derives an Input from an analyzed change.
func InputFromContext(cc *release.ChangeContext) Input {
	return Input{
		Summary:      cc.PullRequest.Title,
		FileTypes:    cc.Classification,
		TotalChanges: cc.TotalChanges,
		Diff:         cc.PullRequest.Diff(),
	}
}

// Assessor scores changes.
type Assessor struct {
	model     llm.Generator
	detectors []analyzer.PatternDetector
	logger    *slog.Logger
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithDetectors replaces the default pattern detectors.
func WithDetectors(d ...analyzer.PatternDetector) Option {
	return func(a *Assessor) { a.detectors = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assessor) { a.logger = l }
}

// New returns an Assessor backed by model.
func New(model llm.Generator, opts ...Option) *Assessor {
	a := &Assessor{
		model:     model,
		detectors: analyzer.DefaultPatterns(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type modelAssessment struct {
	RiskScore            *float64 `json:"risk_score"`
	ConfidencePercentage *float64 `json:"confidence_percentage"`
	RiskFactors          []string `json:"risk_factors"`
	Recommendations      []string `json:"recommendations"`
	RequiresManualReview bool     `json:"requires_manual_review"`
}

// Assess scores the change. It never returns an error: failures produce a
// copy of FailSafe.
func (a *Assessor) Assess(ctx context.Context, in Input) release.RiskAssessment {
	m, err := a.ask(ctx, in)
	if err != nil {
		a.logger.ErrorContext(ctx, "error scoring release risk", "error", err)
		return failSafe()
	}

	flags := append([]string{}, m.RiskFactors...)
	flags = append(flags, in.Patterns...)
	flags = append(flags, analyzer.DetectPatterns(in.Diff, in.FileTypes, a.detectors)...)
	flags = analyzer.Dedupe(flags)

	out := release.RiskAssessment{
		RiskScore:            valueOr(m.RiskScore, defaultScore),
		ConfidencePercentage: valueOr(m.ConfidencePercentage, defaultScore),
		RiskFlags:            flags,
		Suggestions:          append([]string{}, m.Recommendations...),
		RequiresManualReview: m.RequiresManualReview,
	}
	a.logger.InfoContext(ctx, "release risk scored",
		"risk_score", out.RiskScore,
		"confidence", out.ConfidencePercentage,
		"requires_review", out.RequiresManualReview)
	return out
}

func (a *Assessor) ask(ctx context.Context, in Input) (*modelAssessment, error) {
	if a.model == nil {
		return nil, fmt.Errorf("no model configured")
	}
	prompt, err := renderPrompt(in)
	if err != nil {
		return nil, err
	}
	reply, err := a.model.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("score release risk: %w", err)
	}
	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	var m modelAssessment
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse risk assessment: %w", err)
	}
	if err := checkRange("risk_score", m.RiskScore); err != nil {
		return nil, err
	}
	if err := checkRange("confidence_percentage", m.ConfidencePercentage); err != nil {
		return nil, err
	}
	return &m, nil
}

func checkRange(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 100 {
		return fmt.Errorf("%s out of range: %v", field, *v)
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func failSafe() release.RiskAssessment {
	out := FailSafe
	out.RiskFlags = append([]string{}, FailSafe.RiskFlags...)
	out.Suggestions = append([]string{}, FailSafe.Suggestions...)
	return out
}
