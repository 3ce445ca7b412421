package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// Run executes all four stages in order into outputDir. The first failing
// stage stops the run; no decision is written after a failure.
func (o *Orchestrator) Run(ctx context.Context, ref release.Ref, repoPath, outputDir string) (*RunSummary, error) {
	return o.run(ctx, ref, repoPath, outputDir, false)
}

// Resume continues a run in outputDir. Leading stages whose artifact is
// already valid are skipped; once a stage runs, every later stage runs too.
// Generated tests left by a different change are regenerated.
func (o *Orchestrator) Resume(ctx context.Context, ref release.Ref, repoPath, outputDir string) (*RunSummary, error) {
	return o.run(ctx, ref, repoPath, outputDir, true)
}

func (o *Orchestrator) run(ctx context.Context, ref release.Ref, repoPath, outputDir string, resume bool) (*RunSummary, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	files := Files(outputDir)
	statePath := filepath.Join(outputDir, FileRunState)

	st, err := o.startState(ref, repoPath, statePath, files, resume)
	if err != nil {
		return nil, err
	}
	log := o.logger.With("run_id", st.RunID, "pr_number", ref.Number)
	log.InfoContext(ctx, "pipeline started", "output_dir", outputDir, "resume", resume)

	r := &stageRunner{o: o, st: st, statePath: statePath, skipping: resume}

	var (
		gen  TestsGenerated
		exec release.TestExecutionResult
		val  release.ValidationReport
		dec  release.DeploymentDecision
	)
	sameChange := func() bool {
		if gen.Ref != (release.Ref{}) {
			return gen.Ref == ref
		}
		return gen.PRNumber == ref.Number
	}
	err = r.stage(ctx, StageSynthesize, files.TestsGenerated, KindTestsGenerated, &gen, sameChange, func() error {
		out, err := o.Synthesize(ctx, ref, files.TestsGenerated)
		if err == nil {
			gen = *out
		}
		return err
	})
	if err == nil {
		err = r.stage(ctx, StageExecute, files.TestsExecuted, KindTestsExecuted, &exec, nil, func() error {
			out, err := o.Execute(ctx, repoPath, files.TestsExecuted)
			if err == nil {
				exec = *out
			}
			return err
		})
	}
	if err == nil {
		err = r.stage(ctx, StageValidate, files.TestsValidated, KindTestsValidated, &val, nil, func() error {
			out, err := o.Validate(ctx, files.TestsExecuted, ref, files.TestsValidated)
			if err == nil {
				val = *out
			}
			return err
		})
	}
	if err == nil {
		err = r.stage(ctx, StageDecide, files.DeploymentDecision, KindDeploymentDecision, &dec, nil, func() error {
			out, err := o.decide(ctx, st.RunID, files.TestsGenerated, files.TestsExecuted, files.TestsValidated, files.DeploymentDecision)
			if err == nil {
				dec = *out
			}
			return err
		})
	}
	if err != nil {
		log.ErrorContext(ctx, "pipeline failed", "error", err)
		return nil, err
	}

	st.Status = RunDone
	if err := o.saveState(statePath, st); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "pipeline complete", "decision", dec.Status, "confidence", dec.Confidence)

	return &RunSummary{
		RunID:          st.RunID,
		PRNumber:       ref.Number,
		TestsGenerated: gen.Tests.Total,
		TestsExecuted:  exec.Summary.Total,
		TestsPassed:    exec.Summary.Passed,
		ACCoverage:     val.CoveragePercentage,
		Decision:       dec.Status,
		Confidence:     dec.Confidence,
		Files:          files,
	}, nil
}

func (o *Orchestrator) startState(ref release.Ref, repoPath, statePath string, files RunFiles, resume bool) (*RunState, error) {
	now := o.now()
	if resume {
		var prev RunState
		err := o.artifacts.Read(statePath, KindRunState, &prev)
		switch {
		case err == nil:
			if prev.Ref != ref {
				return nil, fmt.Errorf("run state in %s belongs to %s, not %s", statePath, prev.Ref, ref)
			}
			prev.Status = RunRunning
			prev.RepoPath = repoPath
			prev.UpdatedAt = now
			return &prev, nil
		case !errors.Is(err, ErrArtifactNotFound):
			return nil, err
		}
	}
	st := &RunState{
		RunID:     uuid.NewString(),
		Ref:       ref,
		RepoPath:  repoPath,
		Status:    RunRunning,
		StartedAt: now,
		UpdatedAt: now,
		Stages:    []StageRecord{},
		Files:     files,
	}
	return st, o.saveState(statePath, st)
}

func (o *Orchestrator) saveState(path string, st *RunState) error {
	st.UpdatedAt = o.now()
	if err := o.artifacts.Write(path, KindRunState, st); err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}

type stageRunner struct {
	o         *Orchestrator
	st        *RunState
	statePath string
	skipping  bool
}

// stage runs fn unless the runner is still skipping and artifact already
// holds a valid document, which is then loaded into dst. A non-nil reuse
// must also accept the loaded document for the stage to be skipped.
func (r *stageRunner) stage(ctx context.Context, name, artifact, kind string, dst any, reuse func() bool, fn func() error) error {
	rec := StageRecord{Stage: name, Artifact: artifact, StartedAt: r.o.now()}

	if r.skipping {
		if err := r.o.artifacts.Read(artifact, kind, dst); err == nil {
			if reuse == nil || reuse() {
				rec.Skipped = true
				rec.FinishedAt = rec.StartedAt
				r.st.Stages = append(r.st.Stages, rec)
				r.o.logger.InfoContext(ctx, "stage skipped", "run_id", r.st.RunID, "stage", name, "artifact", artifact)
				return r.o.saveState(r.statePath, r.st)
			}
			r.o.logger.WarnContext(ctx, "stage artifact belongs to another change, re-running",
				"run_id", r.st.RunID, "stage", name, "artifact", artifact)
		}
		r.skipping = false
	}

	start := time.Now()
	err := fn()
	r.o.observe(name, time.Since(start), err)

	rec.FinishedAt = r.o.now()
	if err != nil {
		err = fmt.Errorf("%s stage: %w", name, err)
		rec.Error = err.Error()
		r.st.Status = RunFailed
	}
	r.st.Stages = append(r.st.Stages, rec)
	if serr := r.o.saveState(r.statePath, r.st); serr != nil && err == nil {
		err = serr
	}
	return err
}

// ReplayResult compares a recorded decision with a fresh evaluation of the
// same persisted inputs.
type ReplayResult struct {
	RunID    string                     `json:"run_id"`
	Recorded release.DeploymentDecision `json:"recorded"`
	Replayed release.DeploymentDecision `json:"replayed"`
	Changed  bool                       `json:"changed"`
}

// Replay re-evaluates the decision of the completed run in outputDir with the
// current rule ladder. Nothing is written and the replayed decision is not
// reported to the decider's observer.
func (o *Orchestrator) Replay(ctx context.Context, outputDir string) (*ReplayResult, error) {
	var st RunState
	if err := o.artifacts.Read(filepath.Join(outputDir, FileRunState), KindRunState, &st); err != nil {
		return nil, err
	}
	var recorded release.DeploymentDecision
	if err := o.artifacts.Read(st.Files.DeploymentDecision, KindDeploymentDecision, &recorded); err != nil {
		return nil, err
	}
	in, err := o.loadInputs(st.Files.TestsGenerated, st.Files.TestsExecuted, st.Files.TestsValidated)
	if err != nil {
		return nil, err
	}
	var replayed release.DeploymentDecision
	if ev, ok := o.c.Decider.(Evaluator); ok {
		replayed = ev.Evaluate(in.Inputs)
	} else {
		replayed = o.c.Decider.Decide(in.Inputs)
	}
	res := &ReplayResult{
		RunID:    st.RunID,
		Recorded: recorded,
		Replayed: replayed,
		Changed: recorded.Status != replayed.Status ||
			recorded.Confidence != replayed.Confidence ||
			recorded.Rule != replayed.Rule,
	}
	o.logger.InfoContext(ctx, "decision replayed", "run_id", st.RunID,
		"recorded", recorded.Status, "replayed", replayed.Status, "changed", res.Changed)
	return res, nil
}
