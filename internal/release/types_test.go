package release

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassification_NamesAndFiles(t *testing.T) {
	c := Classification{
		CategoryTests:    {"tests/test_api.py"},
		CategoryBackend:  {"app/api.py", "app/auth.py"},
		CategoryDatabase: {"db/001.sql"},
	}
	if diff := cmp.Diff([]string{"backend", "database", "tests"}, c.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	want := []string{"app/api.py", "app/auth.py", "db/001.sql", "tests/test_api.py"}
	if diff := cmp.Diff(want, c.Files()); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
	if c.Has(CategoryFrontend) {
		t.Error("frontend should be absent")
	}
}

func TestRef_Validate(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"complete", Ref{Owner: "acme", Repo: "shop", Number: 7}, ""},
		{"no owner", Ref{Repo: "shop", Number: 7}, "missing repo_owner"},
		{"no repo", Ref{Owner: "acme", Number: 7}, "missing repo_name"},
		{"no number", Ref{Owner: "acme", Repo: "shop"}, "missing pr_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			got := ""
			if err != nil {
				got = err.Error()
			}
			if got != tt.want {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPullRequest_Totals(t *testing.T) {
	pr := PullRequest{Files: []FileChange{
		{Filename: "a.go", Additions: 10, Deletions: 2, Patch: "+a"},
		{Filename: "b.go", Additions: 3, Deletions: 5, Patch: "-b"},
	}}
	if pr.TotalAdditions() != 13 || pr.TotalDeletions() != 7 {
		t.Errorf("totals = %d/%d, want 13/7", pr.TotalAdditions(), pr.TotalDeletions())
	}
	if pr.Diff() != "+a\n-b" {
		t.Errorf("Diff() = %q", pr.Diff())
	}
}

func TestExecutionSummary_Recompute(t *testing.T) {
	s := ExecutionSummary{Total: 5, Passed: 3}
	s.Recompute()
	if s.PassRate != 0.6 {
		t.Errorf("PassRate = %v, want 0.6", s.PassRate)
	}
	empty := ExecutionSummary{PassRate: 1}
	empty.Recompute()
	if empty.PassRate != 0 {
		t.Errorf("PassRate with zero total = %v, want 0", empty.PassRate)
	}
}

func TestFormatNumber(t *testing.T) {
	for in, want := range map[float64]string{60: "60", 85.5: "85.5", 0: "0", 66.67: "66.67"} {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRiskAssessment_UnmarshalDefaultsScore(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`{}`, DefaultRiskScore},
		{`{"risk_score": null, "risk_flags": ["x"]}`, DefaultRiskScore},
		{`{"risk_score": 0}`, 0},
		{`{"risk_score": 82.5}`, 82.5},
	}
	for _, tt := range tests {
		var a RiskAssessment
		if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if a.RiskScore != tt.want {
			t.Errorf("Unmarshal(%s).RiskScore = %v, want %v", tt.in, a.RiskScore, tt.want)
		}
	}

	var a RiskAssessment
	if err := json.Unmarshal([]byte(`{"risk_flags":["Database changes detected"],"requires_manual_review":true}`), &a); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Database changes detected"}, a.RiskFlags); diff != "" || !a.RequiresManualReview {
		t.Errorf("other fields lost (-want +got):\n%s", diff)
	}
}
