// Package github is the source-control collaborator: it reads pull requests
// and posts comments through the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

// DefaultBaseURL is the public GitHub API root.
const DefaultBaseURL = "https://api.github.com"

const (
	filesPerPage = 100
	maxFilePages = 30
)

// Client talks to the GitHub REST API.
type Client struct {
	rc *restclient.Client
}

// New creates a Client. An empty baseURL uses DefaultBaseURL.
func New(baseURL, token string, opts ...restclient.Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]restclient.Option{
		restclient.WithBearerToken(token),
		restclient.WithHeader("Accept", "application/vnd.github+json"),
		restclient.WithHeader("X-GitHub-Api-Version", "2022-11-28"),
	}, opts...)
	rc, err := restclient.New(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}
	return &Client{rc: rc}, nil
}

type pullRS struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Head struct {
		Ref string `json:"ref"`
	} `json:"head"`
}

type fileRS struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// FetchPullRequest returns the pull request with all of its changed files.
func (c *Client) FetchPullRequest(ctx context.Context, ref release.Ref) (*release.PullRequest, error) {
	var pr pullRS
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", ref.Owner, ref.Repo, ref.Number)
	if err := c.rc.DoJSON(ctx, http.MethodGet, path, "get pull request", nil, &pr); err != nil {
		return nil, err
	}

	out := &release.PullRequest{
		Number:     pr.Number,
		Title:      pr.Title,
		Body:       pr.Body,
		Author:     pr.User.Login,
		BaseBranch: pr.Base.Ref,
		HeadBranch: pr.Head.Ref,
	}
	for page := 1; page <= maxFilePages; page++ {
		var files []fileRS
		p := fmt.Sprintf("%s/files?per_page=%d&page=%d", path, filesPerPage, page)
		if err := c.rc.DoJSON(ctx, http.MethodGet, p, "list pull request files", nil, &files); err != nil {
			return nil, err
		}
		for _, f := range files {
			out.Files = append(out.Files, release.FileChange(f))
		}
		if len(files) < filesPerPage {
			break
		}
	}
	return out, nil
}

// Comment identifies a posted comment.
type Comment struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// PostComment adds an issue comment to the pull request.
func (c *Client) PostComment(ctx context.Context, ref release.Ref, body string) (*Comment, error) {
	var out Comment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", ref.Owner, ref.Repo, ref.Number)
	if err := c.rc.DoJSON(ctx, http.MethodPost, path, "post pull request comment", map[string]string{"body": body}, &out); err != nil {
		return nil, err
	}
	c.rc.Logger().InfoContext(ctx, "posted pull request comment", "pr_number", ref.Number, "comment_id", out.ID)
	return &out, nil
}
