// Package observability provides the logging, metrics, and tracing the turn
// orchestrator uses to run in production: structured logs with sensitive
// data redaction, Prometheus counters/histograms over the classify → route →
// tool-loop pipeline, and OpenTelemetry spans covering a turn end to end.
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request/session ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx = observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, session.ID)
//
//	logger.Info(ctx, "handling turn",
//	    "channel", string(in.Channel),
//	    "business_id", in.BusinessID,
//	)
//
//	logger.Error(ctx, "llm request failed",
//	    "error", err,
//	    "api_key", apiKey, // automatically redacted
//	)
//
// # Metrics
//
// TurnMetrics registers the turn-orchestration counters and histograms
// described by its own doc comments: classification outcomes, routing
// decisions, tool-call outcomes, turn duration, token usage, and the policy
// kernel's loop breakers (enumeration lock, repeat-attempt short-circuit,
// provider rate limiting). It is constructed once at startup and passed
// into orchestrator.Config.Metrics:
//
//	metrics := observability.NewTurnMetrics()
//
// # Tracing
//
// Tracer wraps OpenTelemetry's SDK to produce a per-turn span running from
// session load through persist, with the LLM/tool-loop call nested
// underneath it:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: cfg.Tracing.ServiceName,
//	    Endpoint:    cfg.Tracing.Endpoint, // empty endpoint = no-op tracer
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceMessageProcessing(ctx, string(in.Channel), "inbound", in.SessionID)
//	defer span.End()
//
//	ctx, toolSpan := tracer.TraceLLMRequest(ctx, "tools", model)
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context propagation
//
//	ctx = observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//	logger.Info(ctx, "processing") // includes request_id, session_id
//
// # Security considerations
//
// The logging component automatically redacts values for keys matching
// password, passwd, pwd, secret, api_key, apikey, token, auth,
// authorization, private_key, privatekey, plus string values that look like
// an Anthropic/OpenAI key, a JWT, or a bearer token.
package observability
