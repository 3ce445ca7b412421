package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client is a small JSON-over-HTTP client shared by the collaborator
// integrations (source control, issue tracker, language model).
type Client struct {
	baseURL    string
	header     http.Header
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	header     http.Header
	username   string
	password   string
}

// New creates a new Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("restclient: baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{header: http.Header{}}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		// Copy so a caller-supplied client keeps its own timeout.
		withTimeout := *httpClient
		withTimeout.Timeout = cfg.timeout
		httpClient = &withTimeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		header:     cfg.header,
		username:   cfg.username,
		password:   cfg.password,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// WithBearerToken sends token as an Authorization bearer header on every request.
func WithBearerToken(token string) Option {
	return func(cfg *clientConfig) error {
		if token != "" {
			cfg.header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}

// WithBasicAuth sends HTTP basic credentials on every request.
func WithBasicAuth(user, password string) Option {
	return func(cfg *clientConfig) error {
		if user == "" {
			return fmt.Errorf("restclient: basic auth user is required")
		}
		cfg.username, cfg.password = user, password
		return nil
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(cfg *clientConfig) error {
		cfg.header.Set(key, value)
		return nil
	}
}

// BaseURL returns the root URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// DoJSON sends body (JSON-encoded when non-nil) to path and decodes the JSON
// response into dst. Non-2xx responses are returned as *APIError.
func (c *Client) DoJSON(ctx context.Context, method, path, operation string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.InfoContext(ctx, "API request", "operation", operation, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		msg := errorMessage(respBody)
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{
			Op:         operation,
			Status:     resp.StatusCode,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header, time.Now()),
		}
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

// errorRS covers the error shapes of the APIs we talk to:
// {"message": ...}, {"errorMessages": [...]} and {"error": {"message": ...}}.
type errorRS struct {
	Message       string   `json:"message"`
	ErrorMessages []string `json:"errorMessages"`
	Error         *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorMessage(body []byte) string {
	var rs errorRS
	if json.Unmarshal(body, &rs) != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case rs.Message != "":
		return rs.Message
	case len(rs.ErrorMessages) > 0:
		return strings.Join(rs.ErrorMessages, "; ")
	case rs.Error != nil && rs.Error.Message != "":
		return rs.Error.Message
	}
	return strings.TrimSpace(string(body))
}
