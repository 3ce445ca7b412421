package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/llm"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// Input is what the synthesizer needs to propose tests.
type Input struct {
	Title              string
	Diff               string
	AcceptanceCriteria []string
	FileTypes          []string
}

// InputFromContext derives an Input from an analyzed change.
func InputFromContext(cc *release.ChangeContext) Input {
	return Input{
		Title:              cc.PullRequest.Title,
		Diff:               cc.PullRequest.Diff(),
		AcceptanceCriteria: cc.AcceptanceCriteria,
		FileTypes:          cc.Classification.Names(),
	}
}

// Result groups proposed scenarios by type.
type Result struct {
	Integration []release.TestScenario `json:"integration"`
	Automation  []release.TestScenario `json:"automation"`
	E2E         []release.TestScenario `json:"e2e"`
	Total       int                    `json:"total"`
	Error       string                 `json:"error,omitempty"`
}

// All returns integration, automation and end-to-end scenarios in that order.
func (r *Result) All() []release.TestScenario {
	out := make([]release.TestScenario, 0, r.Total)
	out = append(out, r.Integration...)
	out = append(out, r.Automation...)
	return append(out, r.E2E...)
}

// Synthesizer turns a change into structured test scenarios. The model
// supplies content; structure and ids are assigned here.
type Synthesizer struct {
	model  llm.Generator
	logger *slog.Logger
}

// New returns a Synthesizer. A nil logger discards output.
func New(model llm.Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Synthesizer{model: model, logger: logger}
}

type suggestion struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Steps            []string `json:"steps"`
	Scenario         []string `json:"scenario"`
	ExpectedOutcomes []string `json:"expected_outcomes"`
	Assertions       []string `json:"assertions"`
	Priority         string   `json:"priority"`
}

type suggestions struct {
	Integration []suggestion `json:"integration_tests"`
	Automation  []suggestion `json:"automation_tests"`
	E2E         []suggestion `json:"e2e_flows"`
}

// Generate asks the model for scenarios. A failed or unparsable model reply
// yields an empty Result carrying the error text rather than an error, so
// the rest of the pipeline can still score and decide.
func (s *Synthesizer) Generate(ctx context.Context, in Input) *Result {
	sug, err := s.suggest(ctx, in)
	if err != nil {
		s.logger.ErrorContext(ctx, "error generating tests", "error", err)
		return &Result{
			Integration: []release.TestScenario{},
			Automation:  []release.TestScenario{},
			E2E:         []release.TestScenario{},
			Error:       err.Error(),
		}
	}

	r := &Result{
		Integration: convert(sug.Integration, release.ScenarioIntegration),
		Automation:  convert(sug.Automation, release.ScenarioAutomation),
		E2E:         convert(sug.E2E, release.ScenarioE2E),
	}
	r.Total = len(r.Integration) + len(r.Automation) + len(r.E2E)

	s.logger.InfoContext(ctx, "tests generated",
		"integration_count", len(r.Integration),
		"automation_count", len(r.Automation),
		"e2e_count", len(r.E2E),
		"total", r.Total)
	return r
}

func (s *Synthesizer) suggest(ctx context.Context, in Input) (*suggestions, error) {
	if s.model == nil {
		return nil, fmt.Errorf("no model configured")
	}
	prompt, err := renderPrompt(in)
	if err != nil {
		return nil, err
	}
	reply, err := s.model.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate test scenarios: %w", err)
	}
	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	var sug suggestions
	if err := json.Unmarshal([]byte(raw), &sug); err != nil {
		return nil, fmt.Errorf("parse test scenarios: %w", err)
	}
	return &sug, nil
}

func convert(in []suggestion, typ release.ScenarioType) []release.TestScenario {
	out := make([]release.TestScenario, 0, len(in))
	for i, s := range in {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Test %d", i+1)
		}
		steps := s.Steps
		if steps == nil {
			steps = s.Scenario
		}
		outcomes := s.ExpectedOutcomes
		if outcomes == nil {
			outcomes = s.Assertions
		}
		out = append(out, release.TestScenario{
			ID:               fmt.Sprintf("%s_%d", typ, i+1),
			Name:             name,
			Description:      s.Description,
			Type:             typ,
			Steps:            nonNil(steps),
			ExpectedOutcomes: nonNil(outcomes),
			Priority:         normalizePriority(s.Priority),
			RiskFlags:        []string{},
		})
	}
	return out
}

func normalizePriority(p string) release.Priority {
	switch pr := release.Priority(strings.ToLower(strings.TrimSpace(p))); pr {
	case release.PriorityHigh, release.PriorityMedium, release.PriorityLow:
		return pr
	}
	return release.PriorityMedium
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var priorityRank = map[release.Priority]int{
	release.PriorityHigh:   0,
	release.PriorityMedium: 1,
	release.PriorityLow:    2,
}

// Prioritize returns a copy of tests ordered high, medium, low. Ties keep
// their original order.
func Prioritize(tests []release.TestScenario) []release.TestScenario {
	out := append([]release.TestScenario(nil), tests...)
	rank := func(p release.Priority) int {
		if r, ok := priorityRank[p]; ok {
			return r
		}
		return 99
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i].Priority) < rank(out[j].Priority) })
	return out
}
