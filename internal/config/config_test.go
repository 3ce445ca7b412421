package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/viper"
)

func setup(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	BindEnv()
}

func TestLoad_Defaults(t *testing.T) {
	setup(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Server.Port != 8000 || cfg.Executor.Timeout != 300*time.Second || cfg.Coverage.Threshold != 80 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "legacy-gh")
	t.Setenv("CLAUDE_API_KEY", "legacy-llm")
	t.Setenv("MCP_SERVER_PORT", "9100")
	t.Setenv("JIRA_URL", "https://acme.atlassian.net")
	t.Setenv("JIRA_API_TOKEN", "jt")
	t.Setenv("GUARDIAN_LLM_MODEL", "test-model")
	t.Setenv("GUARDIAN_EXECUTOR_TIMEOUT", "45s")
	setup(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.Token != "legacy-gh" || cfg.LLM.APIKey != "legacy-llm" || cfg.Server.Port != 9100 {
		t.Errorf("legacy env not applied: %+v", cfg)
	}
	if cfg.LLM.Model != "test-model" || cfg.Executor.Timeout != 45*time.Second {
		t.Errorf("prefixed env not applied: %+v", cfg)
	}
	if !cfg.Jira.Enabled() {
		t.Error("jira should be enabled")
	}
}

func TestLoad_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "legacy")
	t.Setenv("GUARDIAN_GITHUB_TOKEN", "prefixed")
	setup(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GitHub.Token != "prefixed" {
		t.Errorf("token = %q, want prefixed", cfg.GitHub.Token)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "guardian.yaml")
	body := "coverage:\n  threshold: 90\nanalyzer:\n  ticket_concurrency: 8\n  ignore:\n    - \"docs/**\"\nlogging:\n  format: json\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Coverage.Threshold != 90 || cfg.Logging.Format != "json" || cfg.Analyzer.TicketConcurrency != 8 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"docs/**"}, cfg.Analyzer.Ignore); diff != "" {
		t.Errorf("ignore mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"valid", func(*Config) {}, nil},
		{"threshold", func(c *Config) { c.Coverage.Threshold = 120 }, []string{"coverage.threshold"}},
		{"port and level", func(c *Config) { c.Server.Port = 0; c.Logging.Level = "loud" }, []string{"server.port", "logging.level"}},
		{"timeout", func(c *Config) { c.Executor.Timeout = 0 }, []string{"executor.timeout"}},
		{"bad glob", func(c *Config) { c.Analyzer.Ignore = []string{"[unclosed"} }, []string{"analyzer.ignore"}},
		{"ticket concurrency", func(c *Config) { c.Analyzer.TicketConcurrency = 0 }, []string{"analyzer.ticket_concurrency"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			var got []string
			for _, e := range c.Validate() {
				got = append(got, e.Field)
			}
			if diff := cmp.Diff(tt.fields, got); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_InvalidReturnsValidationErrors(t *testing.T) {
	t.Setenv("GUARDIAN_COVERAGE_THRESHOLD", "-1")
	setup(t)
	_, err := Load()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 || verrs[0].Field != "coverage.threshold" {
		t.Fatalf("expected one validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "between 0 and 100") {
		t.Errorf("error = %q", err)
	}
}

func TestRequireCredentials(t *testing.T) {
	c := Default()
	if err := c.RequireGitHub(); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("RequireGitHub = %v", err)
	}
	if err := c.RequireLLM(); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("RequireLLM = %v", err)
	}
	c.GitHub.Token, c.LLM.APIKey = "t", "k"
	if c.RequireGitHub() != nil || c.RequireLLM() != nil {
		t.Error("credentials set but still reported missing")
	}
}
