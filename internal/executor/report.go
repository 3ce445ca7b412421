package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// pytestReport is the subset of pytest-json-report output we read.
type pytestReport struct {
	Summary struct {
		Total    int     `json:"total"`
		Passed   int     `json:"passed"`
		Failed   int     `json:"failed"`
		Skipped  int     `json:"skipped"`
		Error    int     `json:"error"`
		Duration float64 `json:"duration"`
	} `json:"summary"`
	Duration float64 `json:"duration"`
	Tests    []struct {
		NodeID   string  `json:"nodeid"`
		Outcome  string  `json:"outcome"`
		Duration float64 `json:"duration"`
		Call     *struct {
			Longrepr string `json:"longrepr"`
		} `json:"call"`
	} `json:"tests"`
}

// ParseReport fills res from a pytest JSON report.
func ParseReport(data []byte, res *release.TestExecutionResult) error {
	var r pytestReport
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("parse test report: %w", err)
	}
	res.Summary.Total = r.Summary.Total
	res.Summary.Passed = r.Summary.Passed
	res.Summary.Failed = r.Summary.Failed
	res.Summary.Skipped = r.Summary.Skipped
	res.Summary.Errors = r.Summary.Error
	res.Summary.ExecutionTimeSeconds = r.Summary.Duration
	if res.Summary.ExecutionTimeSeconds == 0 {
		res.Summary.ExecutionTimeSeconds = r.Duration
	}
	res.Summary.Recompute()

	for _, t := range r.Tests {
		out := release.TestOutcome{
			Name:     t.NodeID,
			Status:   release.TestStatus(t.Outcome),
			Duration: t.Duration,
		}
		if out.Status == release.TestFailed && t.Call != nil {
			out.Error = t.Call.Longrepr
		}
		res.Tests = append(res.Tests, out)
	}
	return nil
}

var (
	passedCount = regexp.MustCompile(`(\d+) passed`)
	failedCount = regexp.MustCompile(`(\d+) failed`)
)

// ParseOutput reads counts from pytest's terminal summary when no JSON report
// was written. Only passed and failed are recognised; the last line that
// mentions a count wins.
func ParseOutput(stdout string, res *release.TestExecutionResult) {
	for _, line := range strings.Split(stdout, "\n") {
		if n, ok := lastCount(passedCount, line); ok {
			res.Summary.Passed = n
		}
		if n, ok := lastCount(failedCount, line); ok {
			res.Summary.Failed = n
		}
	}
	res.Summary.Total = res.Summary.Passed + res.Summary.Failed
	res.Summary.Recompute()
}

func lastCount(re *regexp.Regexp, line string) (int, bool) {
	m := re.FindAllStringSubmatch(line, -1)
	if len(m) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(m[len(m)-1][1])
	return n, err == nil
}
