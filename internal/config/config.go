// Package config loads and validates the turn orchestrator's configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the turn orchestrator.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	Tracing       TracingConfig      `yaml:"tracing"`
	LLM           LLMConfig          `yaml:"llm"`
	Policy        PolicyConfig       `yaml:"policy"`
	Loop          LoopConfig         `yaml:"loop"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Verification  VerificationConfig `yaml:"verification"`
	PromptBudget  PromptBudgetConfig `yaml:"prompt_budget"`
	Session       SessionConfig      `yaml:"session"`
	Features      FeatureFlags       `yaml:"features"`

	// Businesses layers per-businessID overrides on top of the defaults
	// above, keyed by businessID.
	Businesses map[string]BusinessOverride `yaml:"businesses"`
}

// BusinessOverride holds the subset of Config a single tenant may override.
type BusinessOverride struct {
	LLM          *LLMConfig          `yaml:"llm,omitempty"`
	Policy       *PolicyConfig       `yaml:"policy,omitempty"`
	Loop         *LoopConfig         `yaml:"loop,omitempty"`
	Verification *VerificationConfig `yaml:"verification,omitempty"`
	Features     *FeatureFlags       `yaml:"features,omitempty"`
}

// ForBusiness resolves the effective configuration for a businessID,
// applying any matching override on top of the base config. The base
// Config is never mutated.
func (c *Config) ForBusiness(businessID string) *Config {
	if c == nil {
		return nil
	}
	resolved := *c
	override, ok := c.Businesses[businessID]
	if !ok {
		return &resolved
	}
	if override.LLM != nil {
		resolved.LLM = *override.LLM
	}
	if override.Policy != nil {
		resolved.Policy = *override.Policy
	}
	if override.Loop != nil {
		resolved.Loop = *override.Loop
	}
	if override.Verification != nil {
		resolved.Verification = *override.Verification
	}
	if override.Features != nil {
		resolved.Features = *override.Features
	}
	return &resolved
}

// Load reads, parses, applies defaults/env-overrides to, and validates the
// configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyLoggingDefaults(&cfg.Logging)
	applyTracingDefaults(&cfg.Tracing)
	applyLLMDefaults(&cfg.LLM)
	applyPolicyDefaults(&cfg.Policy)
	applyLoopDefaults(&cfg.Loop)
	applyClassifierDefaults(&cfg.Classifier)
	applyVerificationDefaults(&cfg.Verification)
	applyPromptBudgetDefaults(&cfg.PromptBudget)
	applySessionDefaults(&cfg.Session)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyTracingDefaults(cfg *TracingConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "turn-orchestrator"
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = 1.0
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg.EnumerationThreshold == 0 {
		cfg.EnumerationThreshold = 5
	}
	if cfg.EnumerationWindow == 0 {
		cfg.EnumerationWindow = 15 * time.Minute
	}
	if cfg.RepeatWindow == 0 {
		cfg.RepeatWindow = 10 * time.Minute
	}
}

func applyLoopDefaults(cfg *LoopConfig) {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 3
	}
	if cfg.MaxToolCalls == 0 {
		cfg.MaxToolCalls = 6
	}
	if cfg.MaxWallTime == 0 {
		cfg.MaxWallTime = 20 * time.Second
	}
	if cfg.DefaultToolTimeout == 0 {
		cfg.DefaultToolTimeout = 8 * time.Second
	}
	if cfg.DefaultToolMaxAttempts == 0 {
		cfg.DefaultToolMaxAttempts = 2
	}
	if cfg.DefaultToolRetryBackoff == 0 {
		cfg.DefaultToolRetryBackoff = 200 * time.Millisecond
	}
}

func applyClassifierDefaults(cfg *ClassifierConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.FallbackIntent == "" {
		cfg.FallbackIntent = "chatter"
	}
}

func applyVerificationDefaults(cfg *VerificationConfig) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PostResultResetTurns == 0 {
		cfg.PostResultResetTurns = 1
	}
}

func applyPromptBudgetDefaults(cfg *PromptBudgetConfig) {
	if cfg.CharsPerToken == 0 {
		cfg.CharsPerToken = 4
	}
	if cfg.DefaultBudget == 0 {
		cfg.DefaultBudget = 8000
	}
	if cfg.ModelBudgets == nil {
		cfg.ModelBudgets = map[string]int{
			"claude-3-5-sonnet-latest": 16000,
			"gpt-4o":                  16000,
		}
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Locker == "" {
		cfg.Locker = "local"
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.LockAcquireTimeout == 0 {
		cfg.LockAcquireTimeout = 5 * time.Second
	}
	if cfg.LockPollInterval == 0 {
		cfg.LockPollInterval = 50 * time.Millisecond
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("TURNCTL_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("TURNCTL_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("TURNCTL_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Database.URL = value
	}
}

// ConfigValidationError wraps one or more configuration problems found
// while validating a loaded Config.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if !validBackend(cfg.Database.Backend) {
		issues = append(issues, "database.backend must be \"memory\" or \"postgres\"")
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if cfg.Policy.EnumerationThreshold < 0 {
		issues = append(issues, "policy.enumeration_threshold must be >= 0")
	}
	if cfg.Policy.EnumerationWindow < 0 {
		issues = append(issues, "policy.enumeration_window must be >= 0")
	}
	if cfg.Policy.RepeatWindow < 0 {
		issues = append(issues, "policy.repeat_window must be >= 0")
	}

	if cfg.Loop.MaxIterations <= 0 {
		issues = append(issues, "loop.max_iterations must be > 0")
	}
	if cfg.Loop.MaxToolCalls <= 0 {
		issues = append(issues, "loop.max_tool_calls must be > 0")
	}
	if cfg.Loop.MaxWallTime < 0 {
		issues = append(issues, "loop.max_wall_time must be >= 0")
	}
	for name, override := range cfg.Loop.ToolOverrides {
		if override.MaxAttempts < 0 {
			issues = append(issues, fmt.Sprintf("loop.tool_overrides[%s].max_attempts must be >= 0", name))
		}
	}

	if cfg.Verification.MaxAttempts <= 0 {
		issues = append(issues, "verification.max_attempts must be > 0")
	}

	if cfg.PromptBudget.CharsPerToken <= 0 {
		issues = append(issues, "prompt_budget.chars_per_token must be > 0")
	}
	if cfg.PromptBudget.DefaultBudget <= 0 {
		issues = append(issues, "prompt_budget.default_budget must be > 0")
	}

	if !validLocker(cfg.Session.Locker) {
		issues = append(issues, "session.locker must be \"local\" or \"db\"")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}

func validBackend(backend string) bool {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "memory", "postgres":
		return true
	default:
		return false
	}
}

func validLocker(locker string) bool {
	switch strings.ToLower(strings.TrimSpace(locker)) {
	case "local", "db":
		return true
	default:
		return false
	}
}
