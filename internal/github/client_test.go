package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := New(server.URL, "gh-token", restclient.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFetchPullRequest_Paginates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Accept") != "application/vnd.github+json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		switch r.URL.Path {
		case "/repos/acme/shop/pulls/7":
			fmt.Fprint(w, `{"number":7,"title":"SHOP-1 checkout","body":"desc","user":{"login":"dev"},"base":{"ref":"main"},"head":{"ref":"feature"}}`)
		case "/repos/acme/shop/pulls/7/files":
			var files []fileRS
			if r.URL.Query().Get("page") == "1" {
				for i := 0; i < filesPerPage; i++ {
					files = append(files, fileRS{Filename: fmt.Sprintf("f%d.go", i), Additions: 1})
				}
			} else {
				files = []fileRS{{Filename: "last.sql", Status: "added", Additions: 3, Deletions: 1, Changes: 4, Patch: "+x"}}
			}
			json.NewEncoder(w).Encode(files)
		default:
			http.NotFound(w, r)
		}
	})

	pr, err := c.FetchPullRequest(context.Background(), release.Ref{Owner: "acme", Repo: "shop", Number: 7})
	if err != nil {
		t.Fatalf("FetchPullRequest: %v", err)
	}
	if pr.Title != "SHOP-1 checkout" || pr.Author != "dev" || pr.BaseBranch != "main" || pr.HeadBranch != "feature" {
		t.Errorf("unexpected pr: %+v", pr)
	}
	if len(pr.Files) != filesPerPage+1 {
		t.Fatalf("files = %d, want %d", len(pr.Files), filesPerPage+1)
	}
	last := pr.Files[len(pr.Files)-1]
	if last.Filename != "last.sql" || last.Patch != "+x" || last.Changes != 4 {
		t.Errorf("last file = %+v", last)
	}
}

func TestFetchPullRequest_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	_, err := c.FetchPullRequest(context.Background(), release.Ref{Owner: "acme", Repo: "shop", Number: 9})
	if !restclient.IsNotFound(err) {
		t.Fatalf("expected IsNotFound, got %v", err)
	}
}

func TestPostComment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/shop/issues/7/comments" {
			http.NotFound(w, r)
			return
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		if in["body"] != "hello" {
			t.Errorf("body = %q", in["body"])
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":99,"html_url":"https://github.com/acme/shop/pull/7#issuecomment-99"}`)
	})
	got, err := c.PostComment(context.Background(), release.Ref{Owner: "acme", Repo: "shop", Number: 7}, "hello")
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if got.ID != 99 {
		t.Errorf("ID = %d", got.ID)
	}
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error without token")
	}
}
