package config

import "time"

// PolicyConfig configures the policy kernel: enumeration locking, the
// repeat-attempt breaker, and PII redaction.
type PolicyConfig struct {
	// EnumerationThreshold is the number of suspicious NOT_FOUND outcomes
	// within EnumerationWindow that locks the session. Default: 5.
	EnumerationThreshold int `yaml:"enumeration_threshold"`

	// EnumerationWindow is the sliding window the threshold is counted over.
	// Default: 15m.
	EnumerationWindow time.Duration `yaml:"enumeration_window"`

	// RepeatWindow is how long a (toolName, argsHash) attempt is remembered
	// by the repeat-attempt breaker. Default: matches REPEAT_WINDOW_MS.
	RepeatWindow time.Duration `yaml:"repeat_window"`

	// ExtraRedactionPatterns are additional regexes applied on top of the
	// built-in secret/PII patterns.
	ExtraRedactionPatterns []string `yaml:"extra_redaction_patterns"`

	// ToolCatalog maps a flow name to the tool names gated into it, e.g.
	// "order_status" -> ["order_status_lookup", "create_callback"].
	ToolCatalog map[string][]string `yaml:"tool_catalog"`

	// HighRiskTools lists tool names that require the approval workflow
	// before execution, independent of identity verification.
	HighRiskTools []string `yaml:"high_risk_tools"`
}
