// Package config loads guardian settings from defaults, an optional
// guardian.yaml, and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mobigaurav/ai-release-guardian/internal/analyzer"
	"github.com/mobigaurav/ai-release-guardian/internal/coverage"
	"github.com/mobigaurav/ai-release-guardian/internal/executor"
	"github.com/mobigaurav/ai-release-guardian/internal/github"
	"github.com/mobigaurav/ai-release-guardian/internal/llm"
	"github.com/mobigaurav/ai-release-guardian/internal/store"
)

// ErrMissingCredential is returned when a command needs a credential that
// is not configured.
var ErrMissingCredential = errors.New("missing credential")

// EnvPrefix namespaces environment overrides: GUARDIAN_LLM_MODEL sets llm.model.
const EnvPrefix = "GUARDIAN"

// Config is the full guardian configuration.
type Config struct {
	GitHub   GitHubConfig   `mapstructure:"github"`
	Jira     JiraConfig     `mapstructure:"jira"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Coverage CoverageConfig `mapstructure:"coverage"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
}

// GitHubConfig configures the pull request source.
type GitHubConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// JiraConfig configures the ticket source. Jira is optional: with no URL
// the analyzer runs without ticket context.
type JiraConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	APIToken string `mapstructure:"api_token"`
}

// Enabled reports whether enough is configured to query Jira.
func (j JiraConfig) Enabled() bool { return j.URL != "" && j.APIToken != "" }

// LLMConfig configures the language model used for tests and risk.
type LLMConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ExecutorConfig configures the external test runner.
type ExecutorConfig struct {
	Command string        `mapstructure:"command"`
	Pattern string        `mapstructure:"pattern"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CoverageConfig configures acceptance-criteria validation.
type CoverageConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	MaxBodyBytes  int64  `mapstructure:"max_body_bytes"`
}

// StoreConfig locates the decision audit database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AnalyzerConfig tunes change analysis.
type AnalyzerConfig struct {
	// Ignore lists glob patterns for files excluded from classification.
	Ignore            []string `mapstructure:"ignore"`
	// TicketConcurrency bounds parallel Jira lookups per analysis.
	TicketConcurrency int      `mapstructure:"ticket_concurrency"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{BaseURL: github.DefaultBaseURL},
		LLM: LLMConfig{
			BaseURL:   llm.DefaultBaseURL,
			Model:     llm.DefaultModel,
			MaxTokens: llm.DefaultMaxTokens,
		},
		Executor: ExecutorConfig{
			Command: executor.DefaultCommand,
			Pattern: executor.DefaultPattern,
			Timeout: executor.DefaultTimeout,
		},
		Coverage: CoverageConfig{Threshold: coverage.DefaultThreshold},
		Server: ServerConfig{
			Port:         8000,
			MaxBodyBytes: 5 << 20,
		},
		Store:    StoreConfig{Path: store.DefaultDBPath},
		Logging:  LoggingConfig{Level: "info", Format: "auto"},
		Analyzer: AnalyzerConfig{Ignore: []string{}, TicketConcurrency: analyzer.DefaultTicketConcurrency},
	}
}

// SetDefaults registers every default with viper so that environment
// variables and config files can override any key.
func SetDefaults() {
	d := Default()

	viper.SetDefault("github.token", d.GitHub.Token)
	viper.SetDefault("github.base_url", d.GitHub.BaseURL)

	viper.SetDefault("jira.url", d.Jira.URL)
	viper.SetDefault("jira.user", d.Jira.User)
	viper.SetDefault("jira.api_token", d.Jira.APIToken)

	viper.SetDefault("llm.api_key", d.LLM.APIKey)
	viper.SetDefault("llm.base_url", d.LLM.BaseURL)
	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	viper.SetDefault("executor.command", d.Executor.Command)
	viper.SetDefault("executor.pattern", d.Executor.Pattern)
	viper.SetDefault("executor.timeout", d.Executor.Timeout)

	viper.SetDefault("coverage.threshold", d.Coverage.Threshold)

	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.webhook_secret", d.Server.WebhookSecret)
	viper.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	viper.SetDefault("store.path", d.Store.Path)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)

	viper.SetDefault("analyzer.ignore", d.Analyzer.Ignore)
	viper.SetDefault("analyzer.ticket_concurrency", d.Analyzer.TicketConcurrency)
}

// legacyEnv maps keys to the unprefixed variable names deployments already use.
var legacyEnv = map[string]string{
	"github.token":          "GITHUB_TOKEN",
	"jira.url":              "JIRA_URL",
	"jira.user":             "JIRA_USER",
	"jira.api_token":        "JIRA_API_TOKEN",
	"llm.api_key":           "CLAUDE_API_KEY",
	"server.port":           "MCP_SERVER_PORT",
	"server.webhook_secret": "GITHUB_WEBHOOK_SECRET",
}

// BindEnv enables GUARDIAN_* overrides for every key and binds the legacy
// variable names. A prefixed variable wins over its legacy name.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = viper.BindEnv(key, prefixed, legacy)
	}
}

// Load reads the configuration from viper into a Config struct and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// RequireGitHub reports ErrMissingCredential when no GitHub token is set.
func (c *Config) RequireGitHub() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("%w: github.token (GITHUB_TOKEN)", ErrMissingCredential)
	}
	return nil
}

// RequireLLM reports ErrMissingCredential when no model API key is set.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm.api_key (CLAUDE_API_KEY)", ErrMissingCredential)
	}
	return nil
}
