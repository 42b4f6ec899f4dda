package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TurnMetrics tracks the turn-orchestration pipeline: classification,
// routing, tool-loop outcomes, and the policy kernel's loop breakers. It is
// registered independently of Metrics so the orchestrator can be wired in
// without touching the broader channel/LLM/HTTP metrics surface.
type TurnMetrics struct {
	// ClassificationCounter counts classifications by intent type and
	// whether the classifier failed closed.
	// Labels: intent_type, failed_closed (true|false)
	ClassificationCounter *prometheus.CounterVec

	// ClassificationConfidence observes the confidence score of each
	// classification.
	ClassificationConfidence *prometheus.HistogramVec

	// RoutingCounter counts routing decisions by action.
	// Labels: action (direct_response|clarification|chatter|llm_with_tools)
	RoutingCounter *prometheus.CounterVec

	// ToolCallCounter counts tool invocations by tool name and outcome.
	// Labels: tool_name, outcome
	ToolCallCounter *prometheus.CounterVec

	// TurnDuration measures end-to-end turn handling latency in seconds.
	TurnDuration *prometheus.HistogramVec

	// TurnTokensUsed tracks prompt/completion tokens consumed per turn.
	// Labels: type (prompt|completion)
	TurnTokensUsed *prometheus.CounterVec

	// TurnOutcomeCounter counts turns by terminal outcome.
	// Labels: outcome (success|guardrail_blocked|infra_error|locked)
	TurnOutcomeCounter *prometheus.CounterVec

	// EnumerationLockCounter counts sessions locked by the enumeration
	// guard.
	EnumerationLockCounter prometheus.Counter

	// RepeatAttemptCounter counts tool calls short-circuited by the
	// repeat-attempt breaker.
	RepeatAttemptCounter prometheus.Counter

	// RateLimitCounter counts provider 429 responses observed by the turn
	// loop.
	// Labels: provider
	RateLimitCounter *prometheus.CounterVec
}

// NewTurnMetrics registers and returns the turn-orchestration metric set.
func NewTurnMetrics() *TurnMetrics {
	return &TurnMetrics{
		ClassificationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnctl_classifications_total",
				Help: "Total classifications by intent type and fail-closed status",
			},
			[]string{"intent_type", "failed_closed"},
		),

		ClassificationConfidence: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnctl_classification_confidence",
				Help:    "Classifier confidence score distribution",
				Buckets: []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 1.0},
			},
			[]string{"intent_type"},
		),

		RoutingCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnctl_routing_decisions_total",
				Help: "Total routing decisions by action",
			},
			[]string{"action"},
		),

		ToolCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnctl_tool_calls_total",
				Help: "Total tool calls by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		TurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnctl_turn_duration_seconds",
				Help:    "End-to-end turn handling duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"channel"},
		),

		TurnTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnctl_turn_tokens_total",
				Help: "Total tokens consumed per turn by type",
			},
			[]string{"type"},
		),

		TurnOutcomeCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnctl_turn_outcomes_total",
				Help: "Total turns by terminal outcome",
			},
			[]string{"outcome"},
		),

		EnumerationLockCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnctl_enumeration_locks_total",
				Help: "Total sessions locked by the enumeration guard",
			},
		),

		RepeatAttemptCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnctl_repeat_attempts_short_circuited_total",
				Help: "Total tool calls short-circuited by the repeat-attempt breaker",
			},
		),

		RateLimitCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnctl_provider_rate_limits_total",
				Help: "Total 429 responses observed from LLM providers",
			},
			[]string{"provider"},
		),
	}
}
