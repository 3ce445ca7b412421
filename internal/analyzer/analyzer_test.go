package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		name string
		want release.Category
	}{
		{"tests/test_migration.sql", release.CategoryTests},
		{"src/components/Button.spec.tsx", release.CategoryTests},
		{"db/migrations/0042_add_orders.sql", release.CategoryDatabase},
		{"schema/users.ddl", release.CategoryDatabase},
		{"deploy/main.tf", release.CategoryInfrastructure},
		{"k8s/deployment.yaml", release.CategoryInfrastructure},
		{"Dockerfile", release.CategoryInfrastructure},
		{"package.json", release.CategoryConfig},
		{"pyproject.toml", release.CategoryConfig},
		{"app/config.py", release.CategoryConfig},
		{"web/src/App.vue", release.CategoryFrontend},
		{"web/styles/main.css", release.CategoryFrontend},
		{"cmd/server/main.go", release.CategoryBackend},
		{"app/routes.py", release.CategoryBackend},
		{"README.md", release.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFile(tt.name); got != tt.want {
				t.Errorf("ClassifyFile(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestClassify_OnlyNonEmptyLowercased(t *testing.T) {
	files := []release.FileChange{
		{Filename: "App/Auth.py"},
		{Filename: "db/001.sql"},
		{Filename: "tests/test_migration.sql"},
	}
	want := release.Classification{
		release.CategoryBackend:  {"app/auth.py"},
		release.CategoryDatabase: {"db/001.sql"},
		release.CategoryTests:    {"tests/test_migration.sql"},
	}
	if diff := cmp.Diff(want, Classify(files)); diff != "" {
		t.Errorf("Classify mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectPatterns(t *testing.T) {
	files := release.Classification{
		release.CategoryDatabase:       {"db/001.sql"},
		release.CategoryBackend:        {"app/api/auth_handler.py"},
		release.CategoryInfrastructure: {"main.tf"},
	}
	got := DetectPatterns("- old()\n+ // Deprecated: use new()", files, nil)
	want := []string{FlagDatabase, FlagAuth, FlagAPI, FlagInfrastructure, FlagBreaking}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DetectPatterns mismatch (-want +got):\n%s", diff)
	}

	if got := DetectPatterns("fix typo", release.Classification{release.CategoryOther: {"readme.md"}}, nil); len(got) != 0 {
		t.Errorf("expected no flags, got %v", got)
	}
}

func TestDetectPatterns_FrontendAuthAndCustomDetector(t *testing.T) {
	files := release.Classification{release.CategoryFrontend: {"web/authform.tsx"}}
	custom := []PatternDetector{
		Pattern{Flag: "payments touched", Matches: func(diff string, _ release.Classification) bool { return diff == "pay" }},
	}
	if got := DetectPatterns("", files, nil); len(got) != 1 || got[0] != FlagAuth {
		t.Errorf("expected only auth flag, got %v", got)
	}
	if got := DetectPatterns("pay", files, custom); len(got) != 1 || got[0] != "payments touched" {
		t.Errorf("custom detector flags = %v", got)
	}
}

func TestExtractTicketIDs(t *testing.T) {
	got := ExtractTicketIDs("PROJ-12: fix login", "Relates to INFRA-7 and PROJ-12.\nlowercase-1 is not a key")
	if diff := cmp.Diff([]string{"PROJ-12", "INFRA-7"}, got); diff != "" {
		t.Errorf("ExtractTicketIDs mismatch (-want +got):\n%s", diff)
	}
	if got := ExtractTicketIDs("no tickets", ""); len(got) != 0 {
		t.Errorf("expected none, got %v", got)
	}
}

type fakeSCM struct {
	pr  *release.PullRequest
	err error
}

func (f *fakeSCM) FetchPullRequest(context.Context, release.Ref) (*release.PullRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.pr
	return &cp, nil
}

type fakeTracker struct {
	mu      sync.Mutex
	tickets map[string]release.Ticket
	errs    map[string]error
	calls   []string
}

func (f *fakeTracker) FetchTicket(_ context.Context, id string) (*release.Ticket, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &t, nil
}

func TestAnalyze_BuildsContext(t *testing.T) {
	scm := &fakeSCM{pr: &release.PullRequest{
		Number: 42,
		Title:  "SHOP-1 checkout",
		Body:   "Also SHOP-2 and GONE-9",
		Files: []release.FileChange{
			{Filename: "app/checkout.py", Additions: 10, Deletions: 2, Patch: "+pay"},
			{Filename: "db/002.sql", Additions: 5, Deletions: 0},
			{Filename: "vendor/lib/x.go", Additions: 100},
			{Filename: "yarn.lock", Additions: 300},
		},
	}}
	tracker := &fakeTracker{tickets: map[string]release.Ticket{
		"SHOP-1": {ID: "SHOP-1", AcceptanceCriteria: []string{"User can pay with card", "Order is persisted"}},
		"SHOP-2": {ID: "SHOP-2", AcceptanceCriteria: []string{"Order is persisted", "Receipt email is sent"}},
	}}

	a, err := New(scm, WithIssueTracker(tracker), WithIgnore("vendor/**", "**.lock"), WithTicketConcurrency(2))
	if err != nil {
		t.Fatal(err)
	}
	ref := release.Ref{Owner: "acme", Repo: "shop", Number: 42}
	cc, err := a.Analyze(context.Background(), ref)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if diff := cmp.Diff([]string{"SHOP-1", "SHOP-2", "GONE-9"}, cc.TicketIDs); diff != "" {
		t.Errorf("TicketIDs mismatch (-want +got):\n%s", diff)
	}
	if len(cc.Tickets) != 2 || cc.Tickets[0].ID != "SHOP-1" || cc.Tickets[1].ID != "SHOP-2" {
		t.Errorf("Tickets = %+v, want SHOP-1 then SHOP-2 (GONE-9 skipped)", cc.Tickets)
	}
	wantAC := []string{"User can pay with card", "Order is persisted", "Receipt email is sent"}
	if diff := cmp.Diff(wantAC, cc.AcceptanceCriteria); diff != "" {
		t.Errorf("AcceptanceCriteria mismatch (-want +got):\n%s", diff)
	}
	wantClass := release.Classification{
		release.CategoryBackend:  {"app/checkout.py"},
		release.CategoryDatabase: {"db/002.sql"},
	}
	if diff := cmp.Diff(wantClass, cc.Classification); diff != "" {
		t.Errorf("Classification mismatch (-want +got):\n%s", diff)
	}
	if cc.TotalChanges != 17 {
		t.Errorf("TotalChanges = %d, want 17", cc.TotalChanges)
	}
	if len(tracker.calls) != 3 {
		t.Errorf("tracker calls = %v, want 3", tracker.calls)
	}
}

func TestAnalyze_NoTracker(t *testing.T) {
	scm := &fakeSCM{pr: &release.PullRequest{Title: "OPS-3 bump", Files: []release.FileChange{{Filename: "main.tf"}}}}
	a, _ := New(scm)
	cc, err := a.Analyze(context.Background(), release.Ref{Owner: "o", Repo: "r", Number: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(cc.TicketIDs) != 1 || len(cc.AcceptanceCriteria) != 0 {
		t.Errorf("ids=%v ac=%v", cc.TicketIDs, cc.AcceptanceCriteria)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	a, _ := New(&fakeSCM{err: errors.New("boom")})
	if _, err := a.Analyze(context.Background(), release.Ref{Owner: "o", Repo: "r"}); err == nil || err.Error() != "missing pr_number" {
		t.Errorf("expected missing pr_number, got %v", err)
	}
	_, err := a.Analyze(context.Background(), release.Ref{Owner: "o", Repo: "r", Number: 3})
	if err == nil || err.Error() != "fetch pull request o/r#3: boom" {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := New(nil); err == nil {
		t.Error("expected error for nil source control")
	}
	if _, err := New(&fakeSCM{}, WithIgnore("[")); err == nil {
		t.Error("expected error for bad glob")
	}
}

func TestAnalyze_TicketErrors(t *testing.T) {
	scm := &fakeSCM{pr: &release.PullRequest{Number: 5, Title: "SHOP-1 SHOP-2", Files: []release.FileChange{{Filename: "app/x.py"}}}}
	ref := release.Ref{Owner: "acme", Repo: "shop", Number: 5}
	ticket := release.Ticket{ID: "SHOP-1", AcceptanceCriteria: []string{"User can pay"}}

	tests := []struct {
		name    string
		err     error
		wantErr func(error) bool
	}{
		{"not found is skipped", &restclient.APIError{Op: "get issue", Status: 404, Message: "Issue does not exist"}, nil},
		{"server error is skipped", &restclient.APIError{Op: "get issue", Status: 500, Message: "boom"}, nil},
		{"unauthorized fails", &restclient.APIError{Op: "get issue", Status: 401, Message: "bad token"}, restclient.IsAuthFailure},
		{"forbidden fails", &restclient.APIError{Op: "get issue", Status: 403, Message: "no access"}, restclient.IsAuthFailure},
		{"rate limited fails", &restclient.APIError{Op: "get issue", Status: 429, Message: "slow down"}, restclient.IsRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &fakeTracker{
				tickets: map[string]release.Ticket{"SHOP-1": ticket},
				errs:    map[string]error{"SHOP-2": tt.err},
			}
			a, err := New(scm, WithIssueTracker(tracker), WithTicketConcurrency(1))
			if err != nil {
				t.Fatal(err)
			}
			cc, err := a.Analyze(context.Background(), ref)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("expected classified error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if len(cc.Tickets) != 1 || cc.Tickets[0].ID != "SHOP-1" {
				t.Errorf("Tickets = %+v, want only SHOP-1", cc.Tickets)
			}
		})
	}
}
