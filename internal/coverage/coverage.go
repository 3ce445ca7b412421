// Package coverage reconciles executed tests with acceptance criteria.
package coverage

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// DefaultThreshold is the minimum acceptance-criteria coverage percentage.
const DefaultThreshold = 80.0

// Validator produces ValidationReports.
type Validator struct {
	matcher   Matcher
	threshold float64
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

func WithMatcher(m Matcher) Option { return func(v *Validator) { v.matcher = m } }

func WithThreshold(pct float64) Option { return func(v *Validator) { v.threshold = pct } }

func WithClock(now func() time.Time) Option { return func(v *Validator) { v.now = now } }

func WithLogger(l *slog.Logger) Option { return func(v *Validator) { v.logger = l } }

// New returns a Validator using DefaultMatcher and DefaultThreshold unless
// overridden.
func New(opts ...Option) *Validator {
	v := &Validator{
		matcher:   DefaultMatcher,
		threshold: DefaultThreshold,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Threshold returns the configured coverage requirement.
func (v *Validator) Threshold() float64 { return v.threshold }

// Validate checks every criterion against the executed tests. Coverage counts
// tested criteria, passing or not; failed criteria and failed runs force FAIL
// separately.
func (v *Validator) Validate(result *release.TestExecutionResult, criteria []string) release.ValidationReport {
	rep := release.ValidationReport{
		Timestamp:  v.now(),
		ACCoverage: []release.ACCoverage{},
		Gaps:       []string{},
		Status:     release.ValidationPass,
		Issues:     []string{},
		Warnings:   []string{},
	}
	if result == nil {
		rep.Status = release.ValidationError
		rep.Issues = append(rep.Issues, "Validation error: no test execution result")
		v.logger.Error("error validating tests", "error", "no test execution result")
		return rep
	}

	tested := 0
	for _, ac := range criteria {
		var matched, passed int
		for _, t := range result.Tests {
			if !v.matcher.Match(t.Name, ac) {
				continue
			}
			matched++
			if t.Status == release.TestPassed {
				passed++
			}
		}
		switch {
		case passed > 0:
			tested++
			rep.ACCoverage = append(rep.ACCoverage, release.ACCoverage{AC: ac, Tested: true, Passed: true, TestCount: passed})
		case matched > 0:
			tested++
			rep.ACCoverage = append(rep.ACCoverage, release.ACCoverage{AC: ac, Tested: true, TestCount: matched})
			rep.Gaps = append(rep.Gaps, "Tests exist for AC but failed: "+ac)
			rep.Status = release.ValidationFail
		default:
			rep.ACCoverage = append(rep.ACCoverage, release.ACCoverage{AC: ac})
			rep.Gaps = append(rep.Gaps, "No test found for AC: "+ac)
			rep.Warnings = append(rep.Warnings, "Missing coverage for: "+ac)
		}
	}

	if len(criteria) > 0 {
		rep.CoveragePercentage = math.Round(float64(tested)/float64(len(criteria))*100*100) / 100
	}

	fail := func(issue string) {
		rep.Issues = append(rep.Issues, issue)
		rep.Status = release.ValidationFail
	}
	// With no criteria there is nothing to cover; the execution summary alone
	// decides the status.
	if len(criteria) > 0 && rep.CoveragePercentage < v.threshold {
		fail(fmt.Sprintf("AC Coverage %s%% < %s%% requirement",
			release.FormatNumber(rep.CoveragePercentage), release.FormatNumber(v.threshold)))
	}
	if n := result.Summary.Failed; n > 0 {
		fail(fmt.Sprintf("%d test(s) failed", n))
	}
	if n := result.Summary.Errors; n > 0 {
		fail(fmt.Sprintf("%d test error(s)", n))
	}
	if result.Summary.Total == 0 {
		fail("No tests were executed")
	}

	v.logger.Info("tests validated", "status", rep.Status, "coverage", rep.CoveragePercentage)
	return rep
}

// AssertionFailure is a failed test together with the start of its error.
type AssertionFailure struct {
	Test  string `json:"test"`
	Error string `json:"error"`
}

const maxErrorExcerpt = 200

// AssertionFailures lists failed tests that reported an error message.
func AssertionFailures(result *release.TestExecutionResult) []AssertionFailure {
	if result == nil {
		return nil
	}
	var out []AssertionFailure
	for _, t := range result.Tests {
		if t.Status != release.TestFailed || t.Error == "" {
			continue
		}
		msg := t.Error
		if r := []rune(msg); len(r) > maxErrorExcerpt {
			msg = string(r[:maxErrorExcerpt])
		}
		out = append(out, AssertionFailure{Test: t.Name, Error: msg})
	}
	return out
}
