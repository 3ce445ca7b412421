package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the accepted logging.format values.
func ValidLogFormats() []string {
	return []string{"text", "json", "auto"}
}

// Validate checks the Config for invalid values and returns every failure.
// Credentials are not checked here; commands that need them call the
// Require* methods.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.LLM.MaxTokens <= 0 {
		add("llm.max_tokens", c.LLM.MaxTokens, "must be positive")
	}
	if c.LLM.Model == "" {
		add("llm.model", c.LLM.Model, "must not be empty")
	}
	if c.Executor.Command == "" {
		add("executor.command", c.Executor.Command, "must not be empty")
	}
	if c.Executor.Timeout <= 0 {
		add("executor.timeout", c.Executor.Timeout, "must be positive")
	}
	if c.Coverage.Threshold < 0 || c.Coverage.Threshold > 100 {
		add("coverage.threshold", c.Coverage.Threshold, "must be between 0 and 100")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", c.Server.Port, "must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes", c.Server.MaxBodyBytes, "must be positive")
	}
	if c.Store.Path == "" {
		add("store.path", c.Store.Path, "must not be empty")
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		add("logging.level", c.Logging.Level, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}
	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		add("logging.format", c.Logging.Format, "must be one of "+strings.Join(ValidLogFormats(), ", "))
	}
	if c.Analyzer.TicketConcurrency < 1 {
		add("analyzer.ticket_concurrency", c.Analyzer.TicketConcurrency, "must be at least 1")
	}
	for _, p := range c.Analyzer.Ignore {
		if _, err := glob.Compile(p, '/'); err != nil {
			add("analyzer.ignore", p, "invalid glob: "+err.Error())
		}
	}
	return errs
}
