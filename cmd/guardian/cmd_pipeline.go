package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mobigaurav/ai-release-guardian/internal/executor"
	"github.com/mobigaurav/ai-release-guardian/internal/format"
	"github.com/mobigaurav/ai-release-guardian/internal/pipeline"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/report"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

type refFlags struct {
	owner  string
	repo   string
	number int
}

func (f *refFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.owner, "repo-owner", "", "repository owner (required)")
	cmd.Flags().StringVar(&f.repo, "repo-name", "", "repository name (required)")
	cmd.Flags().IntVar(&f.number, "pr-number", 0, "pull request number (required)")
	_ = cmd.MarkFlagRequired("repo-owner")
	_ = cmd.MarkFlagRequired("repo-name")
	_ = cmd.MarkFlagRequired("pr-number")
}

func (f *refFlags) ref() (release.Ref, error) {
	r := release.Ref{Owner: f.owner, Repo: f.repo, Number: f.number}
	return r, r.Validate()
}

func newGenerateTestsCmd() *cobra.Command {
	var (
		rf                  refFlags
		output, skeletonDir string
	)
	cmd := &cobra.Command{
		Use:   "generate-tests",
		Short: "Analyze a pull request and generate test scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := rf.ref()
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.cfg.RequireGitHub(); err != nil {
				return err
			}
			if err := d.cfg.RequireLLM(); err != nil {
				return err
			}
			o, err := d.orchestrator(d.cfg.Executor.Pattern)
			if err != nil {
				return err
			}
			gen, err := o.Synthesize(cmd.Context(), ref, output)
			if err != nil {
				return err
			}
			cmd.Printf("✓ Tests generated: %d\n", gen.Tests.Total)
			if skeletonDir != "" {
				paths, err := synth.WriteSkeletons(afero.NewOsFs(), skeletonDir, gen.Tests.All())
				if err != nil {
					return err
				}
				cmd.Printf("✓ Skeletons written: %d in %s\n", len(paths), skeletonDir)
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", pipeline.FileTestsGenerated, "output artifact path")
	cmd.Flags().StringVar(&skeletonDir, "skeleton-dir", "", "also write pytest stubs for each scenario to this directory")
	return cmd
}

func newExecuteTestsCmd() *cobra.Command {
	var repoPath, pattern, output string
	cmd := &cobra.Command{
		Use:   "execute-tests",
		Short: "Run the test suite of a checkout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()
			if pattern == "" {
				pattern = d.cfg.Executor.Pattern
			}
			o, err := d.orchestrator(pattern)
			if err != nil {
				return err
			}
			res, err := o.Execute(cmd.Context(), repoPath, output)
			if err != nil {
				return err
			}
			cmd.Print(report.ExecutionSummary(*res))
			return nil
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo-path", "", "path to the repository checkout (required)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "test path relative to the checkout (default "+executor.DefaultPattern+")")
	cmd.Flags().StringVarP(&output, "output", "o", pipeline.FileTestsExecuted, "output artifact path")
	_ = cmd.MarkFlagRequired("repo-path")
	return cmd
}

func newValidateTestsCmd() *cobra.Command {
	var (
		rf              refFlags
		results, output string
	)
	cmd := &cobra.Command{
		Use:   "validate-tests",
		Short: "Check executed tests against the change's acceptance criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := rf.ref()
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()
			o, err := d.orchestrator(d.cfg.Executor.Pattern)
			if err != nil {
				return err
			}
			rep, err := o.Validate(cmd.Context(), results, ref, output)
			if err != nil {
				return err
			}
			cmd.Printf("✓ Tests validated: %s AC coverage\n", format.Percent(rep.CoveragePercentage))
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&results, "test-results", pipeline.FileTestsExecuted, "executed tests artifact")
	cmd.Flags().StringVarP(&output, "output", "o", pipeline.FileTestsValidated, "output artifact path")
	return cmd
}

func newMakeDecisionCmd() *cobra.Command {
	var (
		defs, results, validation, output string
		verbose                           bool
	)
	cmd := &cobra.Command{
		Use:   "make-decision",
		Short: "Decide GO, GATE or NO-GO from the three prior artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps(withStore())
			if err != nil {
				return err
			}
			defer d.Close()
			o, err := d.orchestrator(d.cfg.Executor.Pattern)
			if err != nil {
				return err
			}
			dec, err := o.Decide(cmd.Context(), defs, results, validation, output)
			if err != nil {
				return err
			}
			cmd.Printf("✓ Decision made: %s\n", dec.Status)
			if verbose {
				cmd.Print("\n" + report.DecisionSummary(*dec))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&defs, "test-defs", pipeline.FileTestsGenerated, "generated tests artifact")
	cmd.Flags().StringVar(&results, "test-results", pipeline.FileTestsExecuted, "executed tests artifact")
	cmd.Flags().StringVar(&validation, "validation", pipeline.FileTestsValidated, "validation report artifact")
	cmd.Flags().StringVarP(&output, "output", "o", pipeline.FileDeploymentDecision, "output artifact path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print reasoning, gates and next steps")
	return cmd
}

func newEndToEndCmd() *cobra.Command {
	var (
		rf                  refFlags
		repoPath, outputDir string
		resume              bool
	)
	cmd := &cobra.Command{
		Use:   "end-to-end",
		Short: "Run generate, execute, validate and decide in one go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := rf.ref()
			if err != nil {
				return err
			}
			d, err := buildDeps(withStore())
			if err != nil {
				return err
			}
			defer d.Close()
			if !resume {
				if err := d.cfg.RequireGitHub(); err != nil {
					return err
				}
				if err := d.cfg.RequireLLM(); err != nil {
					return err
				}
			}
			o, err := d.orchestrator(d.cfg.Executor.Pattern)
			if err != nil {
				return err
			}
			run := o.Run
			if resume {
				run = o.Resume
			}
			sum, err := run(cmd.Context(), ref, repoPath, outputDir)
			if err != nil {
				return err
			}
			cmd.Printf("✓ Pipeline complete: %s\n", sum.Decision)
			cmd.Printf("  Tests: %d/%d passed\n", sum.TestsPassed, sum.TestsExecuted)
			cmd.Printf("  AC Coverage: %s\n", format.Percent(sum.ACCoverage))
			cmd.Printf("  Confidence: %d%%\n", sum.Confidence)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&repoPath, "repo-path", "", "path to the repository checkout (required)")
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "directory for stage artifacts")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip stages whose artifacts are already present")
	_ = cmd.MarkFlagRequired("repo-path")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run the decision for a finished run and compare with the recorded one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()
			o, err := d.orchestrator(d.cfg.Executor.Pattern)
			if err != nil {
				return err
			}
			res, err := o.Replay(cmd.Context(), outputDir)
			if err != nil {
				return err
			}
			if res.Changed {
				cmd.Printf("✗ Decision changed: %s (%d%%) -> %s (%d%%)\n",
					res.Recorded.Status, res.Recorded.Confidence, res.Replayed.Status, res.Replayed.Confidence)
				return nil
			}
			cmd.Printf("✓ Decision reproduced: %s (%d%%)\n", res.Replayed.Status, res.Replayed.Confidence)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "directory of a finished run")
	return cmd
}
