package turnloop

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/policy"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

// maxIterations caps how many classify/tool-call rounds a single turn may
// take.
const maxIterations = 3

// Config configures a Loop.
type Config struct {
	Provider         llm.Provider
	Tools            map[string]*Tool
	Idempotency      *IdempotencyCache
	ToolTimeout      time.Duration
	ToolRetryBackoff time.Duration
	// ToolEvents, when set, records every tool call and its result for
	// audit/debugging independent of the sanitized data returned to the
	// model.
	ToolEvents sessions.ToolEventStore
}

// Loop drives the bounded tool-calling conversation with an LLM.
type Loop struct {
	provider         llm.Provider
	tools            map[string]*Tool
	idempotency      *IdempotencyCache
	toolTimeout      time.Duration
	toolRetryBackoff time.Duration
	toolEvents       sessions.ToolEventStore
}

// New constructs a Loop.
func New(cfg Config) *Loop {
	backoff := cfg.ToolRetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	idem := cfg.Idempotency
	if idem == nil {
		idem = NewIdempotencyCache(0)
	}
	return &Loop{
		provider:         cfg.Provider,
		tools:            cfg.Tools,
		idempotency:      idem,
		toolTimeout:      cfg.ToolTimeout,
		toolRetryBackoff: backoff,
		toolEvents:       cfg.ToolEvents,
	}
}

// Request bundles the inputs to one Run call.
type Request struct {
	Business    string
	Channel     string
	SessionID   string
	MessageID   string
	Model       string
	SystemPrompt string
	History     []llm.Message
	UserMessage string
	GatedTools  []string
	State       *sessions.ConversationState
	Language    string
}

// Result is the outcome of a turn's tool loop.
type Result struct {
	Text              string
	Usage             llm.Usage
	Iterations        int
	ShortCircuited    bool
	ShortCircuitReason string
}

// Run drives up to maxIterations rounds of LLM completion and tool
// execution, returning the final reply text.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	messages := append(append([]llm.Message{}, req.History...), llm.Message{
		Role:    models.RoleUser,
		Content: req.UserMessage,
	})

	toolSpecs := l.specsFor(req.GatedTools)
	result := &Result{}

	for iteration := 0; iteration < maxIterations; iteration++ {
		result.Iterations = iteration + 1

		completion, err := l.provider.Complete(ctx, &llm.CompletionRequest{
			Model:    req.Model,
			System:   req.SystemPrompt,
			Messages: messages,
			Tools:    toolSpecs,
		})
		if err != nil {
			return nil, err
		}

		text, toolCalls, usage, err := collect(completion)
		if err != nil {
			return nil, err
		}
		result.Usage.InputTokens += usage.InputTokens
		result.Usage.OutputTokens += usage.OutputTokens

		if len(toolCalls) == 0 {
			result.Text = finalizeText(text, req.Language)
			return result, nil
		}

		assistantMsg := llm.Message{Role: models.RoleAssistant, Content: text, FunctionCalls: toolCalls}
		messages = append(messages, assistantMsg)

		functionResults := make([]models.ToolResult, 0, len(toolCalls))
		for _, call := range toolCalls {
			outcome, shortCircuit, reason := l.handleCall(ctx, req, call)
			functionResults = append(functionResults, *outcome)
			if shortCircuit {
				result.ShortCircuited = true
				result.ShortCircuitReason = reason
				result.Text = outcome.Content
				return result, nil
			}
		}

		messages = append(messages, llm.Message{Role: models.RoleTool, FunctionResults: functionResults})
	}

	result.Text = finalizeText("", req.Language)
	return result, nil
}

func (l *Loop) specsFor(names []string) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		tool, ok := l.tools[name]
		if !ok {
			continue
		}
		specs = append(specs, llm.ToolSpec{Name: tool.Name, Description: tool.Description, Schema: tool.Schema})
	}
	return specs
}

// handleCall runs one function call through precondition, repeat-guard,
// idempotency, execution, sanitization, and outcome-policy stages. It
// returns the models.ToolResult to send back to the model, whether the
// turn should short-circuit, and why.
func (l *Loop) handleCall(ctx context.Context, req Request, call models.ToolCall) (*models.ToolResult, bool, string) {
	now := time.Now()
	state := req.State

	var args map[string]any
	_ = json.Unmarshal(call.Input, &args)
	if args == nil {
		args = map[string]any{}
	}

	tool, ok := l.tools[call.Name]
	if !ok {
		return toolResult(call.ID, "that action isn't available right now", false), false, ""
	}

	// a. Precondition check.
	if missing := missingSlots(tool.RequiredSlots, args); len(missing) > 0 {
		msg := policy.ToolRequiredReplyFor(models.OutcomeNeedMoreInfo, missing[0], req.Language)
		return toolResult(call.ID, msg, false), false, ""
	}

	if l.toolEvents != nil {
		_ = l.toolEvents.AddToolCall(ctx, req.SessionID, req.MessageID, &sessions.ToolCall{
			ID: call.ID, SessionID: req.SessionID, MessageID: req.MessageID,
			ToolName: call.Name, InputJSON: call.Input, CreatedAt: now,
		})
	}

	argsHash := sessions.HashToolArgs(args)

	// b. Repeat-guard.
	newSlot := hasNewIdentifierSlot(state, args)
	if state.ShouldShortCircuit(tool.Name, argsHash, now) {
		prior := state.LastToolAttempt
		decision := policy.ApplyRepeatAttemptBreaker(true, models.ToolOutcome(prior.Outcome), prior.AskFor, newSlot)
		if decision.ShortCircuit {
			msg := policy.RepeatBreakerMessage(decision.AskFor, req.Language)
			return toolResult(call.ID, msg, false), true, "repeat_attempt_breaker"
		}
	}

	// c. Idempotency.
	idemKey := IdempotencyKey{BusinessID: req.Business, Channel: req.Channel, MessageID: req.MessageID, ToolName: tool.Name}
	outcome, cached := l.idempotency.Get(idemKey)
	if !cached {
		// d. Execute with retry.
		result, err := executeWithRetry(ctx, tool, req.Business, args, l.toolTimeout, l.toolRetryBackoff)
		if err != nil || result == nil {
			outcome = &models.ToolOutcomeResult{ToolName: tool.Name, Outcome: models.OutcomeInfraError, Message: "temporarily unavailable"}
		} else {
			outcome = result
			if outcome.Outcome == models.OutcomeOK {
				l.idempotency.Set(idemKey, outcome)
			}
		}
	}

	// e. Sanitize result.
	sanitized, _ := SanitizeResult(outcome.Data, tool.Whitelist)

	// f. Apply outcome policy.
	applyOutcomePolicy(state, tool.Name, outcome)
	state.RecordToolAttempt(tool.Name, argsHash, string(outcome.Outcome), outcome.AskFor, now)

	if l.toolEvents != nil {
		_ = l.toolEvents.AddToolResult(ctx, req.SessionID, req.MessageID, call.ID, &sessions.ToolResult{
			SessionID: req.SessionID, MessageID: req.MessageID, ToolCallID: call.ID,
			IsError: outcome.Outcome != models.OutcomeOK, Content: outcome.Message, CreatedAt: now,
		})
	}

	// h. Short-circuit on terminal outcomes.
	if outcome.Outcome.IsTerminal() {
		return toolResult(call.ID, outcome.Message, outcome.Outcome != models.OutcomeOK), true, string(outcome.Outcome)
	}

	content := outcome.Message
	if outcome.Outcome == models.OutcomeOK {
		payload := map[string]any{"message": outcome.Message, "data": sanitized}
		if encoded, err := json.Marshal(payload); err == nil {
			content = string(encoded)
		}
	}
	return toolResult(call.ID, content, false), false, ""
}

func toolResult(callID, content string, isError bool) *models.ToolResult {
	return &models.ToolResult{ToolCallID: callID, Content: content, IsError: isError}
}

func missingSlots(required []string, args map[string]any) []string {
	var missing []string
	for _, slot := range required {
		if _, ok := args[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	return missing
}

func hasNewIdentifierSlot(state *sessions.ConversationState, args map[string]any) bool {
	for k, v := range args {
		existing, ok := state.ExtractedSlots[k]
		if !ok || existing != v {
			return true
		}
	}
	return false
}

// applyOutcomePolicy updates the conversation anchor and records the
// enumeration-lock signal for NOT_FOUND outcomes.
func applyOutcomePolicy(state *sessions.ConversationState, toolName string, outcome *models.ToolOutcomeResult) {
	if outcome.Outcome == models.OutcomeOK {
		encoded, _ := json.Marshal(outcome.Data)
		state.Anchor = &sessions.Anchor{Tag: toolName, Data: encoded, UpdatedAt: time.Now()}
		if state.Verification.Status == sessions.VerificationPending {
			state.Verification.Status = sessions.VerificationPassed
		}
	}
	if outcome.Outcome == models.OutcomeVerificationRequired {
		state.Verification.Status = sessions.VerificationPending
		state.Verification.PendingField = outcome.AskFor
	}
	for _, event := range outcome.StateEvents {
		applyStateEvent(state, event)
	}
}

func applyStateEvent(state *sessions.ConversationState, event models.StateEvent) {
	switch event.Type {
	case "flow_completed":
		state.FlowStatus = sessions.FlowPostResult
		state.PostResultTurns = 0
	case "verification_cleared":
		state.Verification = sessions.Verification{Status: sessions.VerificationNone}
	}
}

// collect drains a completion channel into its text, any tool calls, and
// usage, or the first error encountered.
func collect(ch <-chan *llm.CompletionChunk) (string, []models.ToolCall, llm.Usage, error) {
	var text string
	var calls []models.ToolCall
	var usage llm.Usage

	for chunk := range ch {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			return "", nil, usage, chunk.Error
		}
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
		if chunk.Text != "" {
			text += chunk.Text
		}
		if chunk.Done {
			usage = chunk.Usage
			break
		}
	}
	return text, calls, usage, nil
}

// finalizeText guarantees the turn never ends with an empty reply: if the
// model produced no text (e.g. the iteration cap was hit mid tool-call),
// a language-appropriate fallback is synthesized.
func finalizeText(text, language string) string {
	if text != "" {
		return text
	}
	if len(language) >= 2 && (language[:2] == "tr" || language[:2] == "TR") {
		return "Bu konuda şu anda size net bir yanıt veremiyorum, lütfen talebinizi biraz daha açar mısınız?"
	}
	return "I wasn't able to fully resolve that — could you share a bit more detail?"
}
