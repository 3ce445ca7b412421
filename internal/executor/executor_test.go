package executor

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

const sampleReport = `{
  "duration": 3.5,
  "summary": {"total": 3, "passed": 2, "failed": 1, "duration": 2.25},
  "tests": [
    {"nodeid": "tests/test_pay.py::test_card", "outcome": "passed", "duration": 0.5, "call": {"longrepr": ""}},
    {"nodeid": "tests/test_pay.py::test_refund", "outcome": "failed", "duration": 1.0, "call": {"longrepr": "AssertionError: 2 != 3"}},
    {"nodeid": "tests/test_pay.py::test_receipt", "outcome": "passed", "duration": 0.75}
  ]
}`

// reportWriter fakes pytest by writing body to the --json-report-file path.
func reportWriter(t *testing.T, fs afero.Fs, body string, gotArgs *[]string) CommandRunner {
	return CommandRunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		*gotArgs = append([]string{name}, args...)
		for _, a := range args {
			if p, ok := strings.CutPrefix(a, "--json-report-file="); ok && body != "" {
				if err := afero.WriteFile(fs, p, []byte(body), 0o644); err != nil {
					t.Fatal(err)
				}
			}
		}
		return []byte("1 failed, 2 passed in 2.25s"), &exec.ExitError{}
	})
}

func TestExecute_JSONReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	var args []string
	e := New(WithFs(fs), WithRunner(reportWriter(t, fs, sampleReport, &args)))

	res := e.Execute(context.Background(), "/repo", "")

	if args[0] != "pytest" || args[1] != "/repo/tests" || args[2] != "-v" || args[3] != "--tb=short" {
		t.Errorf("unexpected command line: %v", args)
	}
	wantSummary := release.ExecutionSummary{Total: 3, Passed: 2, Failed: 1, PassRate: 2.0 / 3.0, ExecutionTimeSeconds: 2.25}
	if diff := cmp.Diff(wantSummary, res.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	wantTests := []release.TestOutcome{
		{Name: "tests/test_pay.py::test_card", Status: release.TestPassed, Duration: 0.5},
		{Name: "tests/test_pay.py::test_refund", Status: release.TestFailed, Duration: 1.0, Error: "AssertionError: 2 != 3"},
		{Name: "tests/test_pay.py::test_receipt", Status: release.TestPassed, Duration: 0.75},
	}
	if diff := cmp.Diff(wantTests, res.Tests); diff != "" {
		t.Errorf("tests mismatch (-want +got):\n%s", diff)
	}
	if res.Status != release.ExecutionFailed || res.RepoPath != "/repo" {
		t.Errorf("status=%s repo=%s", res.Status, res.RepoPath)
	}
	if entries, _ := afero.ReadDir(fs, os.TempDir()); len(entries) != 0 {
		t.Errorf("report dir not cleaned up: %d entries", len(entries))
	}
}

func TestExecute_StdoutFallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	var args []string
	res := New(WithFs(fs), WithRunner(reportWriter(t, fs, "", &args))).Execute(context.Background(), "/repo", "tests/unit")
	if args[1] != "/repo/tests/unit" {
		t.Errorf("target = %s", args[1])
	}
	if res.Summary.Total != 3 || res.Summary.Passed != 2 || res.Summary.Failed != 1 || res.Status != release.ExecutionFailed {
		t.Errorf("fallback parse: %+v status=%s", res.Summary, res.Status)
	}
}

func TestExecute_AllPassing(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := CommandRunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("===== 4 passed in 0.10s ====="), nil
	})
	res := New(WithFs(fs), WithRunner(runner)).Execute(context.Background(), "/repo", "")
	if res.Status != release.ExecutionSuccess || res.Summary.PassRate != 1 {
		t.Errorf("status=%s pass_rate=%v", res.Status, res.Summary.PassRate)
	}
}

func TestExecute_Timeout(t *testing.T) {
	runner := CommandRunnerFunc(func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	res := New(WithFs(afero.NewMemMapFs()), WithRunner(runner), WithTimeout(10*time.Millisecond)).
		Execute(context.Background(), "/repo", "")
	if res.Status != release.ExecutionTimeout || res.Summary.Errors != 1 {
		t.Errorf("status=%s errors=%d, want TIMEOUT/1", res.Status, res.Summary.Errors)
	}
}

func TestExecute_RunnerError(t *testing.T) {
	runner := CommandRunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return nil, exec.ErrNotFound
	})
	res := New(WithFs(afero.NewMemMapFs()), WithRunner(runner)).Execute(context.Background(), "/repo", "")
	if res.Status != release.ExecutionError || res.Summary.Errors != 1 {
		t.Errorf("status=%s errors=%d, want ERROR/1", res.Status, res.Summary.Errors)
	}
}

func TestExecute_CorruptReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	var args []string
	res := New(WithFs(fs), WithRunner(reportWriter(t, fs, "{not json", &args))).Execute(context.Background(), "/repo", "")
	if res.Status != release.ExecutionError {
		t.Errorf("status=%s, want ERROR", res.Status)
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		out            string
		passed, failed int
	}{
		{"===== 5 passed in 1.2s =====", 5, 0},
		{"collected 3 items\n===== 1 failed, 2 passed, 1 skipped in 0.4s =====", 2, 1},
		{"no tests ran", 0, 0},
	}
	for _, tt := range tests {
		var res release.TestExecutionResult
		ParseOutput(tt.out, &res)
		if res.Summary.Passed != tt.passed || res.Summary.Failed != tt.failed || res.Summary.Total != tt.passed+tt.failed {
			t.Errorf("ParseOutput(%q) = %+v", tt.out, res.Summary)
		}
	}
}
