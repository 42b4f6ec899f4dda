package config

import "time"

// SessionConfig configures per-session serialization (the locker) for the
// reference session store.
type SessionConfig struct {
	// Locker selects the locking strategy: "local" (in-process mutex) or
	// "db" (lease-based, for multi-instance deployments).
	Locker string `yaml:"locker"`

	LockTTL            time.Duration `yaml:"lock_ttl"`
	LockAcquireTimeout time.Duration `yaml:"lock_acquire_timeout"`
	LockPollInterval   time.Duration `yaml:"lock_poll_interval"`

	// IdleResetMinutes resets a session's conversation state to fresh/idle
	// once it has gone untouched for this many minutes. Zero disables
	// idle-based resets (the post-result turn counter still resets on its
	// own schedule regardless).
	IdleResetMinutes int `yaml:"idle_reset_minutes"`
}

// FeatureFlags toggles optional behavior without a config schema migration.
type FeatureFlags struct {
	// TextStrictGrounding requires every factual claim in a drafted reply
	// to be traceable to a tool result or knowledge item before guardrails
	// will let it through.
	TextStrictGrounding bool `yaml:"text_strict_grounding"`

	// UseStateEvents applies tool-result state events (anchor updates,
	// slot extraction) to the conversation state; when false, state
	// events are computed but not applied (dry-run/observe mode).
	UseStateEvents bool `yaml:"use_state_events"`

	// UseMessageTypeRouting lets the router use channel-reported message
	// type hints (e.g. a button click vs. free text) in its decision.
	UseMessageTypeRouting bool `yaml:"use_message_type_routing"`

	// TestMockTools swaps in the in-memory mock tool catalog instead of
	// a caller-supplied one; used by the CLI demo and tests.
	TestMockTools bool `yaml:"test_mock_tools"`
}
