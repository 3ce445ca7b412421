package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mobigaurav/ai-release-guardian/internal/decision"
	"github.com/mobigaurav/ai-release-guardian/internal/metrics"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
	"github.com/mobigaurav/ai-release-guardian/internal/risk"
	"github.com/mobigaurav/ai-release-guardian/internal/rollback"
	"github.com/mobigaurav/ai-release-guardian/internal/service"
	"github.com/mobigaurav/ai-release-guardian/internal/synth"
)

type fakeGuardian struct {
	err       error
	reviewed  []release.Ref
	riskInput risk.Input
}

func (f *fakeGuardian) analysis(ref release.Ref) *service.Analysis {
	return &service.Analysis{
		Context: &release.ChangeContext{
			Ref:         ref,
			PullRequest: release.PullRequest{Files: []release.FileChange{{Filename: "api/pay.py"}}},
			TicketIDs:   []string{"SHOP-1"},
		},
		Tests: &synth.Result{Total: 3},
		Risk:  release.RiskAssessment{RiskScore: 42, ConfidencePercentage: 80},
	}
}

func (f *fakeGuardian) AnalyzeRelease(_ context.Context, ref release.Ref) (*service.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis(ref), nil
}

func (f *fakeGuardian) GenerateTests(_ context.Context, in synth.Input) (*synth.Result, error) {
	return &synth.Result{
		Integration: []release.TestScenario{{ID: "integration_test_1", Name: in.Title}},
		Automation:  []release.TestScenario{},
		E2E:         []release.TestScenario{},
		Total:       1,
	}, nil
}

func (f *fakeGuardian) ScoreRisk(_ context.Context, in risk.Input) (release.RiskAssessment, error) {
	f.riskInput = in
	return release.RiskAssessment{RiskScore: 20, ConfidencePercentage: 90, RiskFlags: in.Patterns}, nil
}

func (f *fakeGuardian) RollbackPlan(in rollback.Input) release.RollbackPlan {
	return rollback.Plan(in)
}

func (f *fakeGuardian) MakeDecision(in decision.Inputs) release.DeploymentDecision {
	return decision.New().Decide(in)
}

func (f *fakeGuardian) Review(_ context.Context, ref release.Ref) (*service.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reviewed = append(f.reviewed, ref)
	return f.analysis(ref), nil
}

func newTestServer(t *testing.T, g Guardian, settings Settings, opts ...Option) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(g, settings, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string, header ...string) (int, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = map[string]any{"raw": string(raw)}
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeGuardian{}, DefaultSettings())
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if diff := cmp.Diff(map[string]string{"status": "ok", "service": "ai-release-guardian"}, got); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}

	resp, _ = http.Post(ts.URL+"/health", "application/json", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d", resp.StatusCode)
	}
}

func TestMissingFields(t *testing.T) {
	ts := newTestServer(t, &fakeGuardian{}, DefaultSettings())
	tests := []struct {
		path, body, want string
	}{
		{"/analyze-release", `{"repo_name":"shop","pr_number":7}`, "Missing repo_owner"},
		{"/analyze-release", `{"repo_owner":"acme","repo_name":"shop"}`, "Missing pr_number"},
		{"/generate-tests", `{}`, "Missing code_diff"},
		{"/release-risk-score", `{"file_types":{}}`, "Missing changes_summary"},
		{"/rollback-plan", `{"changed_files":["a.sql"]}`, "Missing release_id"},
		{"/make-decision", `{"test_results":{}}`, "Missing validation_report"},
		{"/generate-tests", `not json`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.want, func(t *testing.T) {
			code, body := post(t, ts.URL+tt.path, tt.body)
			if code != http.StatusBadRequest || body["error"] != tt.want {
				t.Errorf("got %d %v, want 400 %q", code, body, tt.want)
			}
		})
	}
}

func TestAnalyzeRelease(t *testing.T) {
	ts := newTestServer(t, &fakeGuardian{}, DefaultSettings())
	code, body := post(t, ts.URL+"/analyze-release", `{"repo_owner":"acme","repo_name":"shop","pr_number":7}`)
	if code != http.StatusOK || body["success"] != true || body["pr_number"] != float64(7) {
		t.Fatalf("got %d %v", code, body)
	}
	analysis := body["analysis"].(map[string]any)
	if analysis["tests_generated"] != float64(3) || analysis["risk_score"] != float64(42) || analysis["confidence"] != float64(80) {
		t.Errorf("unexpected analysis: %v", analysis)
	}

	failing := newTestServer(t, &fakeGuardian{err: errors.New("github: 404")}, DefaultSettings())
	code, body = post(t, failing.URL+"/analyze-release", `{"repo_owner":"acme","repo_name":"shop","pr_number":7}`)
	if code != http.StatusBadRequest || body["error"] != "github: 404" {
		t.Errorf("got %d %v", code, body)
	}
}

func TestGenerateTestsAndRisk(t *testing.T) {
	g := &fakeGuardian{}
	ts := newTestServer(t, g, DefaultSettings())

	code, body := post(t, ts.URL+"/generate-tests", `{"code_diff":"+x","pr_title":"checkout"}`)
	if code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("got %d %v", code, body)
	}
	if first := body["integration_tests"].([]any)[0].(map[string]any); first["name"] != "checkout" {
		t.Errorf("unexpected integration test: %v", first)
	}

	code, body = post(t, ts.URL+"/release-risk-score",
		`{"changes_summary":"schema","file_types":{"database":["a.sql"]},"total_changes":12,"risky_patterns":["p1"]}`)
	if code != http.StatusOK || body["risk_score"] != float64(20) {
		t.Fatalf("got %d %v", code, body)
	}
	if g.riskInput.TotalChanges != 12 || !g.riskInput.FileTypes.Has(release.CategoryDatabase) {
		t.Errorf("risk input not decoded: %+v", g.riskInput)
	}
	if diff := cmp.Diff([]any{"p1"}, body["risk_flags"]); diff != "" {
		t.Errorf("risk flags mismatch (-want +got):\n%s", diff)
	}
}

func TestRollbackPlanAndDecision(t *testing.T) {
	ts := newTestServer(t, &fakeGuardian{}, DefaultSettings())
	code, body := post(t, ts.URL+"/rollback-plan", `{"release_id":"v1.2","changed_files":["db/001.sql"]}`)
	if code != http.StatusOK || body["release_id"] != "v1.2" || body["data_backup_required"] != true {
		t.Fatalf("got %d %v", code, body)
	}

	code, body = post(t, ts.URL+"/make-decision", `{
		"test_results": {"status": "SUCCESS", "summary": {"total": 10, "passed": 10, "pass_rate": 1.0}},
		"validation_report": {"status": "PASS", "coverage_percentage": 100},
		"risk_assessment": {"risk_score": 10, "risk_flags": []}
	}`)
	if code != http.StatusOK || body["status"] != "GO" {
		t.Errorf("got %d %v", code, body)
	}
}

func TestMakeDecision_MissingRiskScoreNeverGo(t *testing.T) {
	ts := newTestServer(t, &fakeGuardian{}, DefaultSettings())
	code, body := post(t, ts.URL+"/make-decision", `{
		"test_results": {"status": "SUCCESS", "summary": {"total": 5, "passed": 5, "pass_rate": 1.0}},
		"validation_report": {"status": "PASS", "coverage_percentage": 90},
		"risk_assessment": {}
	}`)
	if code != http.StatusOK || body["status"] != "GATE" || body["rule"] != "R6" {
		t.Errorf("got %d %v, want GATE from R6", code, body)
	}
}

func TestBodyLimit(t *testing.T) {
	s := DefaultSettings()
	s.MaxBodyBytes = 16
	ts := newTestServer(t, &fakeGuardian{}, s)
	code, _ := post(t, ts.URL+"/generate-tests", `{"code_diff":"`+strings.Repeat("x", 64)+`"}`)
	if code != http.StatusRequestEntityTooLarge {
		t.Errorf("code = %d, want 413", code)
	}
}

const openedPayload = `{"action":"opened","pull_request":{"number":7},"repository":{"name":"shop","owner":{"login":"acme"}}}`

func TestWebhook(t *testing.T) {
	g := &fakeGuardian{}
	m := metrics.New()
	ts := newTestServer(t, g, DefaultSettings(), WithMetrics(m))

	code, body := post(t, ts.URL+"/webhook", `{"action":"closed"}`)
	if code != http.StatusOK || body["raw"] != "Webhook ignored" {
		t.Errorf("closed action: %d %v", code, body)
	}

	code, body = post(t, ts.URL+"/webhook", `{"action":"opened","pull_request":{},"repository":{"name":"shop"}}`)
	if code != http.StatusBadRequest || body["error"] != "Invalid webhook payload" {
		t.Errorf("missing fields: %d %v", code, body)
	}

	code, body = post(t, ts.URL+"/webhook", openedPayload)
	if code != http.StatusOK || body["tests_generated"] != float64(3) || body["risk_score"] != float64(42) {
		t.Fatalf("opened: %d %v", code, body)
	}
	if len(g.reviewed) != 1 || g.reviewed[0] != (release.Ref{Owner: "acme", Repo: "shop", Number: 7}) {
		t.Errorf("reviewed = %v", g.reviewed)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	for _, want := range []string{`guardian_webhooks_total{outcome="ignored"} 1`, `guardian_webhooks_total{outcome="processed"} 1`} {
		if !bytes.Contains(raw, []byte(want)) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestWebhook_Failure(t *testing.T) {
	ts := newTestServer(t, &fakeGuardian{err: errors.New("model unavailable")}, DefaultSettings())
	code, body := post(t, ts.URL+"/webhook", openedPayload)
	if code != http.StatusInternalServerError || body["error"] != "model unavailable" {
		t.Errorf("got %d %v", code, body)
	}
}

func TestUpstreamErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		route      string
		want       int
		retryAfter string
	}{
		{"missing pull request", &restclient.APIError{Op: "get pull request", Status: 404, Message: "Not Found"}, "/analyze-release", http.StatusNotFound, ""},
		{"bad token", fmt.Errorf("fetch pull request: %w", &restclient.APIError{Op: "get pull request", Status: 401, Message: "Bad credentials"}), "/analyze-release", http.StatusBadGateway, ""},
		{"rate limited", &restclient.APIError{Op: "get pull request", Status: 429, Message: "slow down", RetryAfter: 1500 * time.Millisecond}, "/analyze-release", http.StatusServiceUnavailable, "2"},
		{"other failure", errors.New("boom"), "/analyze-release", http.StatusBadRequest, ""},
		{"webhook missing pull request", &restclient.APIError{Op: "get pull request", Status: 404, Message: "Not Found"}, "/webhook", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeGuardian{err: tt.err}, DefaultSettings())
			body := `{"repo_owner":"acme","repo_name":"shop","pr_number":7}`
			if tt.route == "/webhook" {
				body = openedPayload
			}
			resp, err := http.Post(ts.URL+tt.route, "application/json", strings.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if got := resp.Header.Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
		})
	}
}

func TestWebhook_Signature(t *testing.T) {
	s := DefaultSettings()
	s.WebhookSecret = "s3cret"
	g := &fakeGuardian{}
	ts := newTestServer(t, g, s)

	code, _ := post(t, ts.URL+"/webhook", openedPayload, SignatureHeader, "sha256=deadbeef")
	if code != http.StatusUnauthorized {
		t.Errorf("bad signature code = %d", code)
	}
	code, _ = post(t, ts.URL+"/webhook", openedPayload)
	if code != http.StatusUnauthorized {
		t.Errorf("missing signature code = %d", code)
	}
	code, _ = post(t, ts.URL+"/webhook", openedPayload, SignatureHeader, Sign("s3cret", []byte(openedPayload)))
	if code != http.StatusOK || len(g.reviewed) != 1 {
		t.Errorf("signed delivery code = %d, reviewed = %v", code, g.reviewed)
	}
}

func TestStartShutdown(t *testing.T) {
	s := New(&fakeGuardian{}, Settings{Addr: "127.0.0.1:0"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Addr() != "" {
		t.Error("Addr should be empty after shutdown")
	}
}
