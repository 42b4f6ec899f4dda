package config

import "time"

// ClassifierConfig configures the intent classifier.
type ClassifierConfig struct {
	// Timeout bounds the classifier call (rule-based fallback fires on
	// timeout or error).
	Timeout time.Duration `yaml:"timeout"`

	// UseLLM enables the LLM-backed classifier path; when false, only the
	// rule-based classifier runs.
	UseLLM bool `yaml:"use_llm"`

	// FallbackIntent is used when classification fails closed.
	FallbackIntent string `yaml:"fallback_intent"`
}

// VerificationConfig configures the identity-verification sub-state.
type VerificationConfig struct {
	// MaxAttempts caps verification attempts before the session is locked.
	MaxAttempts int `yaml:"max_attempts"`

	// PostResultResetTurns is how many post_result turns are tolerated
	// before the conversation state resets to idle.
	PostResultResetTurns int `yaml:"post_result_reset_turns"`
}
