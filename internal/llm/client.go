// Package llm is the language-model collaborator. It sends a single user
// prompt to the Anthropic Messages API and returns the text reply.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 4000
	apiVersion       = "2023-06-01"
)

// Generator produces text for a prompt.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Client calls the Messages API.
type Client struct {
	rc        *restclient.Client
	model     string
	maxTokens int
}

// ClientOption tunes model selection.
type ClientOption func(*Client)

// WithModel overrides DefaultModel.
func WithModel(m string) ClientOption {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// New creates a Client. An empty baseURL uses DefaultBaseURL.
func New(baseURL, apiKey string, transport []restclient.Option, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport = append([]restclient.Option{
		restclient.WithHeader("x-api-key", apiKey),
		restclient.WithHeader("anthropic-version", apiVersion),
	}, transport...)
	rc, err := restclient.New(baseURL, transport...)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	c := &Client{rc: rc, model: DefaultModel, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRQ struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesRS struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// GenerateText sends prompt as a single user message and concatenates the
// text blocks of the reply.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	rq := messagesRQ{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}
	var rs messagesRS
	if err := c.rc.DoJSON(ctx, http.MethodPost, "/v1/messages", "create message", rq, &rs); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range rs.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("create message: empty reply (stop_reason=%s)", rs.StopReason)
	}
	return sb.String(), nil
}

// ExtractJSON returns the outermost JSON object in text, tolerating code
// fences and prose around it.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model reply")
	}
	return text[start : end+1], nil
}
