// Package executor runs a test suite with an external runner and converts
// its report into a TestExecutionResult.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

const (
	// DefaultTimeout bounds a whole test run.
	DefaultTimeout = 300 * time.Second
	DefaultCommand = "pytest"
	DefaultPattern = "tests/"
)

// CommandRunner executes a command and returns its standard output. A
// non-zero exit is reported as *exec.ExitError along with the output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandRunnerFunc adapts a function to CommandRunner.
type CommandRunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f CommandRunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Executor runs tests.
type Executor struct {
	command string
	timeout time.Duration
	runner  CommandRunner
	fs      afero.Fs
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCommand sets the runner binary. It must accept pytest's flags.
func WithCommand(name string) Option { return func(e *Executor) { e.command = name } }

func WithTimeout(d time.Duration) Option { return func(e *Executor) { e.timeout = d } }

func WithRunner(r CommandRunner) Option { return func(e *Executor) { e.runner = r } }

// WithFs sets the filesystem the runner writes its report to.
func WithFs(fs afero.Fs) Option { return func(e *Executor) { e.fs = fs } }

func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.logger = l } }

// New returns an Executor invoking pytest on the host.
func New(opts ...Option) *Executor {
	e := &Executor{
		command: DefaultCommand,
		timeout: DefaultTimeout,
		runner:  execRunner{},
		fs:      afero.NewOsFs(),
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs the tests matching pattern under repoPath. Runner failures
// never surface as errors: they become a TIMEOUT or ERROR status with one
// error counted, so the pipeline can still decide.
func (e *Executor) Execute(ctx context.Context, repoPath, pattern string) *release.TestExecutionResult {
	if pattern == "" {
		pattern = DefaultPattern
	}
	res := &release.TestExecutionResult{
		Timestamp: e.now(),
		RepoPath:  repoPath,
		Tests:     []release.TestOutcome{},
		Status:    release.ExecutionSuccess,
	}
	e.logger.InfoContext(ctx, "executing tests", "repo_path", repoPath, "pattern", pattern)

	if err := e.run(ctx, res, filepath.Join(repoPath, pattern)); err != nil {
		res.Summary.Errors = 1
		if errors.Is(err, context.DeadlineExceeded) {
			res.Status = release.ExecutionTimeout
			e.logger.ErrorContext(ctx, "test execution timeout", "timeout", e.timeout)
		} else {
			res.Status = release.ExecutionError
			e.logger.ErrorContext(ctx, "error executing tests", "error", err)
		}
		return res
	}

	if res.Summary.Failed > 0 || res.Summary.Errors > 0 {
		res.Status = release.ExecutionFailed
	}
	e.logger.InfoContext(ctx, "tests executed",
		"total", res.Summary.Total,
		"passed", res.Summary.Passed,
		"failed", res.Summary.Failed,
		"status", res.Status)
	return res
}

func (e *Executor) run(ctx context.Context, res *release.TestExecutionResult, target string) error {
	dir, err := afero.TempDir(e.fs, "", "guardian-exec-")
	if err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	defer e.fs.RemoveAll(dir)
	reportPath := filepath.Join(dir, "report.json")

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	stdout, err := e.runner.Run(runCtx, e.command,
		target,
		"-v",
		"--tb=short",
		"--json-report",
		"--json-report-file="+reportPath,
		"--junit-xml="+filepath.Join(dir, "junit.xml"),
	)
	if runCtx.Err() != nil {
		return fmt.Errorf("run %s: %w", e.command, runCtx.Err())
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("run %s: %w", e.command, err)
	}

	data, readErr := afero.ReadFile(e.fs, reportPath)
	switch {
	case readErr == nil:
		if err := ParseReport(data, res); err != nil {
			return err
		}
	case errors.Is(readErr, fs.ErrNotExist):
		ParseOutput(string(stdout), res)
	default:
		return fmt.Errorf("read test report: %w", readErr)
	}
	if res.Summary.ExecutionTimeSeconds == 0 {
		res.Summary.ExecutionTimeSeconds = time.Since(start).Seconds()
	}
	return nil
}
