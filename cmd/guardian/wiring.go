package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mobigaurav/ai-release-guardian/internal/analyzer"
	"github.com/mobigaurav/ai-release-guardian/internal/config"
	"github.com/mobigaurav/ai-release-guardian/internal/coverage"
	"github.com/mobigaurav/ai-release-guardian/internal/decision"
	"github.com/mobigaurav/ai-release-guardian/internal/executor"
	"github.com/mobigaurav/ai-release-guardian/internal/github"
	"github.com/mobigaurav/ai-release-guardian/internal/jira"
	"github.com/mobigaurav/ai-release-guardian/internal/llm"
	"github.com/mobigaurav/ai-release-guardian/internal/logging"
	"github.com/mobigaurav/ai-release-guardian/internal/metrics"
	"github.com/mobigaurav/ai-release-guardian/internal/pipeline"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/risk"
	"github.com/mobigaurav/ai-release-guardian/internal/service"
	"github.com/mobigaurav/ai-release-guardian/internal/store"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

// deps holds everything a command may need, built once from config.
// Components whose credentials are missing are replaced by placeholders
// that fail on use, so credential-free stages still run.
type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	github   *github.Client
	analyzer service.Analyzer
	synth    *synth.Synthesizer
	risk     *risk.Assessor
	executor *executor.Executor
	coverage *coverage.Validator
	decider  *decision.Engine
	store    store.Store
}

type buildOption func(*buildSettings)

type buildSettings struct {
	metrics   *metrics.Metrics
	openStore bool
}

func withMetrics(m *metrics.Metrics) buildOption {
	return func(s *buildSettings) { s.metrics = m }
}

func withStore() buildOption {
	return func(s *buildSettings) { s.openStore = true }
}

func buildDeps(opts ...buildOption) (*deps, error) {
	var bs buildSettings
	for _, o := range opts {
		o(&bs)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	d := &deps{
		cfg:     cfg,
		logger:  logging.New("guardian"),
		metrics: bs.metrics,
	}

	if d.analyzer, err = d.buildAnalyzer(); err != nil {
		return nil, err
	}

	var model llm.Generator
	if cfg.LLM.APIKey != "" {
		client, err := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, nil,
			llm.WithModel(cfg.LLM.Model), llm.WithMaxTokens(cfg.LLM.MaxTokens))
		if err != nil {
			return nil, fmt.Errorf("llm client: %w", err)
		}
		model = client
	}
	d.synth = synth.New(model, logging.New("synth"))
	d.risk = risk.New(model, risk.WithLogger(logging.New("risk")))

	d.executor = executor.New(
		executor.WithCommand(cfg.Executor.Command),
		executor.WithTimeout(cfg.Executor.Timeout),
		executor.WithLogger(logging.New("executor")),
	)
	d.coverage = coverage.New(
		coverage.WithThreshold(cfg.Coverage.Threshold),
		coverage.WithLogger(logging.New("coverage")),
	)

	engineOpts := []decision.Option{decision.WithLogger(logging.New("decision"))}
	if d.metrics != nil {
		engineOpts = append(engineOpts, decision.WithObserver(d.metrics.ObserveDecision))
	}
	d.decider = decision.New(engineOpts...)

	if bs.openStore {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			d.logger.Warn("decision history disabled", "path", cfg.Store.Path, "error", err)
		} else {
			d.store = s
		}
	}
	return d, nil
}

func (d *deps) buildAnalyzer() (service.Analyzer, error) {
	if err := d.cfg.RequireGitHub(); err != nil {
		return unavailableAnalyzer{err: err}, nil
	}
	gh, err := github.New(d.cfg.GitHub.BaseURL, d.cfg.GitHub.Token)
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	d.github = gh

	opts := []analyzer.Option{
		analyzer.WithIgnore(d.cfg.Analyzer.Ignore...),
		analyzer.WithTicketConcurrency(d.cfg.Analyzer.TicketConcurrency),
		analyzer.WithLogger(logging.New("analyzer")),
	}
	if d.cfg.Jira.Enabled() {
		jc, err := jira.New(d.cfg.Jira.URL, d.cfg.Jira.User, d.cfg.Jira.APIToken)
		if err != nil {
			return nil, fmt.Errorf("jira client: %w", err)
		}
		opts = append(opts, analyzer.WithIssueTracker(jc))
	}
	a, err := analyzer.New(gh, opts...)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	return a, nil
}

func (d *deps) orchestrator(pattern string) (*pipeline.Orchestrator, error) {
	opts := []pipeline.Option{
		pipeline.WithTestPattern(pattern),
		pipeline.WithLogger(logging.New("pipeline")),
	}
	if d.store != nil {
		opts = append(opts, pipeline.WithRecorder(d.store))
	}
	if d.metrics != nil {
		opts = append(opts, pipeline.WithStageObserver(d.metrics.ObserveStage))
	}
	return pipeline.New(pipeline.Components{
		Analyzer:    d.analyzer,
		Synthesizer: d.synth,
		Risk:        d.risk,
		Executor:    d.executor,
		Validator:   d.coverage,
		Decider:     d.decider,
	}, opts...)
}

func (d *deps) service() *service.Service {
	opts := []service.Option{
		service.WithAnalyzer(d.analyzer),
		service.WithSynthesizer(d.synth),
		service.WithRiskAssessor(d.risk),
		service.WithDecider(d.decider),
		service.WithLogger(logging.New("service")),
	}
	if d.github != nil {
		opts = append(opts, service.WithCommenter(d.github))
	}
	return service.New(opts...)
}

func (d *deps) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// unavailableAnalyzer stands in when no GitHub token is configured.
type unavailableAnalyzer struct{ err error }

func (u unavailableAnalyzer) Analyze(context.Context, release.Ref) (*release.ChangeContext, error) {
	return nil, u.err
}

// signalTimeout bounds graceful shutdown of long-running commands.
const signalTimeout = 10 * time.Second
