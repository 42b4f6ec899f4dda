// Package orchestrator wires the turn-orchestration pipeline together:
// load conversation state, classify, route, build the prompt, run the
// bounded tool loop, apply guardrails, and persist the turn.
package orchestrator

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus/internal/classifier"
	"github.com/haasonsaas/nexus/internal/guardrails"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/policy"
	"github.com/haasonsaas/nexus/internal/promptbuilder"
	"github.com/haasonsaas/nexus/internal/router"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/turnloop"
	"github.com/haasonsaas/nexus/pkg/models"
	"go.opentelemetry.io/otel/trace"
)

// TurnInput is one inbound turn to handle.
type TurnInput struct {
	Channel       models.ChannelType
	BusinessID    string
	ChannelUserID string
	SessionID     string
	MessageID     string
	Text          string
	Language      string
}

// TurnResult is the outcome of handling one turn.
type TurnResult struct {
	ReplyText        string
	ShouldEndSession bool
	ForceEnd         bool
	DryRun           bool
}

// Persona supplies the static prompt material that doesn't change turn to
// turn: persona text, writing style, and the tool catalog available to
// this business.
type Persona struct {
	SystemPersona string
	WritingStyle  string
	ToolCatalog   []string
	KBHelpLink    string
	ChannelMode   policy.ChannelMode
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Store          sessions.Store
	// Locker, when set, is acquired for the duration of a session's turn so
	// a second inbound message for the same session (a resend, or a
	// concurrent delivery from another channel adapter instance) can't race
	// the first one's read-modify-write of conversation state. Use
	// sessions.NewLocalLocker for a single-instance deployment and
	// sessions.NewDBLocker for the multi-instance case described in
	// DatabaseConfig.
	Locker         sessions.Locker
	Classifier     *classifier.Classifier
	Loop           *turnloop.Loop
	Model          string
	ModelContext   int
	ModelBudgets   map[string]int
	DryRun         bool
	Metrics        *observability.TurnMetrics
	// Tracer, when set, wraps each turn in a span running from session
	// load through persist, with the tool loop nested underneath it.
	Tracer *observability.Tracer
	StrictGrounding bool
	EnumerationThreshold int
	EnumerationWindow    time.Duration
	HistoryLimit   int
	// IdleResetMinutes, when positive, resets a session's conversation
	// state to fresh/idle once it has gone untouched for that long —
	// independent of the post-result turn counter, which only resets
	// after a completed flow.
	IdleResetMinutes int
	// Compactor, when set, compacts a session's transcript once it grows
	// past the configured threshold, keeping long-running conversations'
	// stored history bounded independent of the per-request prompt budget.
	Compactor *sessions.Compactor
}

// Orchestrator handles turns end to end.
type Orchestrator struct {
	cfg    Config
	expiry *sessions.SessionExpiry
}

// SessionStore exposes the store backing this orchestrator, for callers
// that need to reload a session's conversation state after HandleTurn
// returns — the email draft pipeline is one, since it drafts a reply from
// the same state the turn just persisted rather than keeping its own.
func (o *Orchestrator) SessionStore() sessions.Store {
	return o.cfg.Store
}

// New constructs an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.EnumerationThreshold <= 0 {
		cfg.EnumerationThreshold = 5
	}
	if cfg.EnumerationWindow <= 0 {
		cfg.EnumerationWindow = 15 * time.Minute
	}
	orch := &Orchestrator{cfg: cfg}
	if cfg.IdleResetMinutes > 0 {
		orch.expiry = sessions.NewSessionExpiry(sessions.ScopeConfig{
			Reset: sessions.ResetConfig{Mode: sessions.ResetModeIdle, IdleMinutes: cfg.IdleResetMinutes},
		})
	}
	return orch
}

// HandleTurn runs the full pipeline for one inbound message and returns the
// reply to send, along with session-lifecycle signals.
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput, persona Persona) (result *TurnResult, err error) {
	start := time.Now()

	if o.cfg.Tracer != nil {
		var span trace.Span
		ctx, span = o.cfg.Tracer.TraceMessageProcessing(ctx, string(in.Channel), "inbound", in.SessionID)
		defer func() {
			if err != nil {
				o.cfg.Tracer.RecordError(span, err)
			}
			span.End()
		}()
	}

	key := sessions.SessionKey(in.BusinessID, in.Channel, in.ChannelUserID)
	if o.cfg.Locker != nil {
		if err := o.cfg.Locker.Lock(ctx, key); err != nil {
			return nil, err
		}
		defer o.cfg.Locker.Unlock(key)
	}

	session, err := o.cfg.Store.GetOrCreate(ctx, key, in.BusinessID, in.Channel, in.ChannelUserID)
	if err != nil {
		return nil, err
	}
	state := sessions.GetConversationState(session)
	if o.expiry != nil && o.expiry.CheckExpiry(session, in.Channel, sessions.ConvTypeDM) {
		state = sessions.NewConversationState()
		sessions.SetConversationState(session, state)
	}

	now := time.Now()
	if policy.IsLocked(state, now) {
		o.recordOutcome("locked")
		return &TurnResult{ReplyText: lockedMessage(in.Language)}, nil
	}

	history, err := o.cfg.Store.GetHistory(ctx, session.ID, o.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}

	classification := o.cfg.Classifier.Classify(ctx, classifier.Input{
		LastAssistantContent: lastAssistantContent(history),
		UserText:              in.Text,
		Language:              in.Language,
		Channel:               in.Channel,
		ActiveFlow:            string(state.ActiveFlow),
	})
	o.recordClassification(classification)
	mergeSlots(state, classification.ExtractedSlots)
	if classification.SuggestedFlow != "" && state.ActiveFlow == "" {
		state.ActiveFlow = sessions.FlowType(classification.SuggestedFlow)
		state.FlowStatus = sessions.FlowInProgress
	}

	decision := router.Route(router.Input{
		Classification:  classification,
		State:           state,
		ChannelMode:     persona.ChannelMode,
		StrictGrounding: o.cfg.StrictGrounding,
		KBHelpLink:      persona.KBHelpLink,
		Language:        in.Language,
	})
	o.recordRouting(decision.Action)

	result = &TurnResult{}
	switch decision.Action {
	case router.ActionDirectResponse, router.ActionClarification:
		result.ReplyText = decision.DirectMessage
	case router.ActionChatter:
		result.ReplyText, err = o.runChatter(ctx, in, persona, history)
	default:
		result.ReplyText, err = o.runWithTools(ctx, in, persona, state, history, classification, session.ID)
	}
	if err != nil {
		o.recordOutcome("infra_error")
		return nil, err
	}

	toolSucceeded := state.Anchor != nil
	gr := guardrails.Apply(guardrails.Input{
		Draft:                result.ReplyText,
		ToolSucceeded:        toolSucceeded,
		VerificationRequired: state.Verification.Status == sessions.VerificationPending,
		AskFor:               state.Verification.PendingField,
		Language:             in.Language,
		SuppliedSlots:        state.ExtractedSlots,
	})
	result.ReplyText = gr.Draft

	if err := o.persist(ctx, session, state, in, result.ReplyText); err != nil {
		return nil, err
	}

	result.ShouldEndSession = state.FlowStatus == sessions.FlowTerminated
	result.ForceEnd = in.Channel == models.ChannelPhone && toolFailedThisTurn(state)
	result.DryRun = o.cfg.DryRun

	if o.cfg.Metrics != nil {
		o.cfg.Metrics.TurnDuration.WithLabelValues(string(in.Channel)).Observe(time.Since(start).Seconds())
	}
	o.recordOutcome("success")
	return result, nil
}

func (o *Orchestrator) runChatter(ctx context.Context, in TurnInput, persona Persona, history []*models.Message) (string, error) {
	if o.cfg.Tracer != nil {
		var span trace.Span
		ctx, span = o.cfg.Tracer.TraceLLMRequest(ctx, "chatter", o.cfg.Model)
		defer span.End()
	}
	loopResult, err := o.cfg.Loop.Run(ctx, turnloop.Request{
		Business:     in.BusinessID,
		Channel:      string(in.Channel),
		MessageID:    in.MessageID,
		Model:        o.cfg.Model,
		SystemPrompt: persona.SystemPersona,
		History:      toLLMHistory(history),
		UserMessage:  in.Text,
		GatedTools:   nil,
		State:        sessions.NewConversationState(),
		Language:     in.Language,
	})
	if err != nil {
		return "", err
	}
	return loopResult.Text, nil
}

func (o *Orchestrator) runWithTools(ctx context.Context, in TurnInput, persona Persona, state *sessions.ConversationState, history []*models.Message, classification classifier.Result, sessionID string) (string, error) {
	gated := policy.GateTools(persona.ToolCatalog, persona.ChannelMode, state.ActiveFlow, state.Verification.Status == sessions.VerificationPending)

	toolRequired := policy.ToolRequired(classification.Type)
	factGrounding := policy.FactGroundingDirective(toolRequired, state.Anchor != nil)

	budget := promptbuilder.SelectBudget(o.cfg.ModelBudgets, o.cfg.Model, o.cfg.ModelContext)
	sections, _ := promptbuilder.Trim(promptbuilder.Sections{
		Persona:       persona.SystemPersona,
		WritingStyle:  persona.WritingStyle,
		FactGrounding: factGrounding,
	}, budget)
	systemPrompt := promptbuilder.Build(sections)

	if o.cfg.Tracer != nil {
		var span trace.Span
		ctx, span = o.cfg.Tracer.TraceLLMRequest(ctx, "tools", o.cfg.Model)
		defer span.End()
	}
	loopResult, err := o.cfg.Loop.Run(ctx, turnloop.Request{
		Business:     in.BusinessID,
		Channel:      string(in.Channel),
		SessionID:    sessionID,
		MessageID:    in.MessageID,
		Model:        o.cfg.Model,
		SystemPrompt: systemPrompt,
		History:      toLLMHistory(history),
		UserMessage:  in.Text,
		GatedTools:   gated,
		State:        state,
		Language:     in.Language,
	})
	if err != nil {
		return "", err
	}

	if toolRequired && state.Anchor == nil && !loopResult.ShortCircuited {
		return policy.ToolRequiredReplyFor(models.OutcomeNeedMoreInfo, "", in.Language), nil
	}

	return loopResult.Text, nil
}

func (o *Orchestrator) persist(ctx context.Context, session *models.Session, state *sessions.ConversationState, in TurnInput, reply string) error {
	if o.cfg.DryRun {
		return nil
	}
	sessions.SetConversationState(session, state)
	if err := o.cfg.Store.Update(ctx, session); err != nil {
		return err
	}
	inbound := &models.Message{
		SessionID: session.ID,
		Channel:   in.Channel,
		Direction: models.DirectionInbound,
		Role:      models.RoleUser,
		Content:   in.Text,
		CreatedAt: time.Now(),
	}
	if err := o.cfg.Store.AppendMessage(ctx, session.ID, inbound); err != nil {
		return err
	}
	outbound := &models.Message{
		SessionID: session.ID,
		Channel:   in.Channel,
		Direction: models.DirectionOutbound,
		Role:      models.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now(),
	}
	if err := o.cfg.Store.AppendMessage(ctx, session.ID, outbound); err != nil {
		return err
	}

	if o.cfg.Compactor != nil {
		if should, _ := o.cfg.Compactor.ShouldCompact(ctx, session.ID); should {
			if _, err := o.cfg.Compactor.Compact(ctx, session.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func toolFailedThisTurn(state *sessions.ConversationState) bool {
	return state.LastToolAttempt != nil && state.LastToolAttempt.Outcome == string(models.OutcomeInfraError)
}

func mergeSlots(state *sessions.ConversationState, slots map[string]any) {
	if state.ExtractedSlots == nil {
		state.ExtractedSlots = map[string]any{}
	}
	for k, v := range slots {
		state.ExtractedSlots[k] = v
	}
}

func lastAssistantContent(history []*models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

// toLLMHistory converts persisted history into provider messages. It
// repairs tool_use/tool_result pairing first — a provider call rejects a
// transcript with an orphaned tool call, and history spanning a crashed or
// truncated prior turn can carry one.
func toLLMHistory(history []*models.Message) []llm.Message {
	repaired := sessions.SanitizeTranscript(history)
	out := make([]llm.Message, 0, len(repaired))
	for _, m := range repaired {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content, FunctionCalls: m.ToolCalls, FunctionResults: m.ToolResults})
	}
	return out
}

func lockedMessage(language string) string {
	if len(language) >= 2 && (language[:2] == "tr" || language[:2] == "TR") {
		return "Bu görüşme şu anda kısıtlı. Lütfen daha sonra tekrar deneyin."
	}
	return "This conversation is temporarily restricted. Please try again later."
}

func (o *Orchestrator) recordClassification(result classifier.Result) {
	if o.cfg.Metrics == nil {
		return
	}
	failed := "false"
	if result.HadClassifierFailure {
		failed = "true"
	}
	o.cfg.Metrics.ClassificationCounter.WithLabelValues(result.Type, failed).Inc()
	o.cfg.Metrics.ClassificationConfidence.WithLabelValues(result.Type).Observe(result.Confidence)
}

func (o *Orchestrator) recordRouting(action router.Action) {
	if o.cfg.Metrics == nil {
		return
	}
	o.cfg.Metrics.RoutingCounter.WithLabelValues(string(action)).Inc()
}

func (o *Orchestrator) recordOutcome(outcome string) {
	if o.cfg.Metrics == nil {
		return
	}
	o.cfg.Metrics.TurnOutcomeCounter.WithLabelValues(outcome).Inc()
}
