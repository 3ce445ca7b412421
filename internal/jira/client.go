package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mobigaurav/ai-release-guardian/internal/release"
	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

// Client reads issues from the Jira REST API v2.
type Client struct {
	rc *restclient.Client
}

// New creates a Client authenticated with basic auth (user + API token).
func New(baseURL, user, token string, opts ...restclient.Option) (*Client, error) {
	if baseURL == "" || user == "" || token == "" {
		return nil, fmt.Errorf("jira: url, user and api token are required")
	}
	opts = append([]restclient.Option{restclient.WithBasicAuth(user, token)}, opts...)
	rc, err := restclient.New(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("jira: %w", err)
	}
	return &Client{rc: rc}, nil
}

type named struct {
	Name string `json:"name"`
}

type issueRS struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      *named `json:"status"`
		IssueType   *named `json:"issuetype"`
		Priority    *named `json:"priority"`
		Assignee    *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Labels []string `json:"labels"`
	} `json:"fields"`
}

// FetchTicket returns the issue with acceptance criteria parsed from its description.
func (c *Client) FetchTicket(ctx context.Context, id string) (*release.Ticket, error) {
	var rs issueRS
	path := "/rest/api/2/issue/" + url.PathEscape(id)
	if err := c.rc.DoJSON(ctx, http.MethodGet, path, "get issue "+id, nil, &rs); err != nil {
		c.rc.Logger().ErrorContext(ctx, "fetch ticket failed", "ticket_id", id, "error", err)
		return nil, err
	}

	t := &release.Ticket{
		ID:                 id,
		Key:                rs.Key,
		Summary:            rs.Fields.Summary,
		Description:        rs.Fields.Description,
		Assignee:           "Unassigned",
		Priority:           "Medium",
		Labels:             rs.Fields.Labels,
		AcceptanceCriteria: ExtractAcceptanceCriteria(rs.Fields.Description),
	}
	if rs.Fields.Status != nil {
		t.Status = rs.Fields.Status.Name
	}
	if rs.Fields.IssueType != nil {
		t.Type = rs.Fields.IssueType.Name
	}
	if rs.Fields.Priority != nil {
		t.Priority = rs.Fields.Priority.Name
	}
	if rs.Fields.Assignee != nil {
		t.Assignee = rs.Fields.Assignee.DisplayName
	}
	return t, nil
}
