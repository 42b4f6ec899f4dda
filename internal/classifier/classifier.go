// Package classifier decides what a user turn is about: a handled intent
// (ORDER, BILLING, TRACKING, ...), chatter, or something that needs
// clarification. It fails closed — a timeout or an upstream error yields a
// safe, low-confidence result rather than letting downstream stages assume
// a confident classification that never actually happened.
package classifier

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Input is everything the classifier needs to decide intent for one turn.
type Input struct {
	LastAssistantContent string
	UserText             string
	Language             string
	Channel              models.ChannelType
	ActiveFlow           string
}

// Result is the classifier's output for one turn.
type Result struct {
	Type                string
	Confidence           float64
	ExtractedSlots       map[string]any
	SuggestedFlow        string
	HadClassifierFailure bool
}

// FallbackIntent is the intent name used when classification fails closed.
const FallbackIntent = "chatter"

// fallbackConfidence is the confidence assigned to a fail-closed result;
// low enough that downstream stages treat it as "don't trust this".
const fallbackConfidence = 0.2

// Classifier resolves intent for a turn, optionally delegating to an LLM
// when the rule-based pass is inconclusive.
type Classifier struct {
	provider llm.Provider
	model    string
	useLLM   bool
	timeout  time.Duration
}

// Config configures a Classifier.
type Config struct {
	Provider llm.Provider
	Model    string
	UseLLM   bool
	Timeout  time.Duration
}

// New constructs a Classifier. Timeout defaults to 3s if unset, matching
// the fail-closed contract.
func New(cfg Config) *Classifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Classifier{provider: cfg.Provider, model: cfg.Model, useLLM: cfg.UseLLM, timeout: timeout}
}

// Classify produces a Result for the given input, bounded by the
// classifier's timeout. Extracted slots returned here are merged into the
// session's extractedSlots by the caller, additively.
func (c *Classifier) Classify(ctx context.Context, in Input) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if ruleResult, ok := classifyByRule(in); ok {
		return ruleResult
	}

	if !c.useLLM || c.provider == nil {
		return failClosed()
	}

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- c.classifyWithLLM(ctx, in)
	}()

	select {
	case <-ctx.Done():
		return failClosed()
	case result := <-resultCh:
		return result
	}
}

func failClosed() Result {
	return Result{
		Type:                 FallbackIntent,
		Confidence:           fallbackConfidence,
		ExtractedSlots:       map[string]any{},
		HadClassifierFailure: true,
	}
}

// ruleIntents maps keyword/regex signals onto intents. This deterministic
// pass runs before any LLM call and handles the bulk of real traffic
// cheaply (order numbers, stock follow-ups, tracking references).
var ruleIntents = []struct {
	intent  string
	pattern *regexp.Regexp
}{
	{"ORDER", regexp.MustCompile(`(?i)\border[\s-]?(?:id|no|number)?\s*[:#]?\s*([A-Z]{2,5}-?\d{4,})`)},
	{"TRACKING", regexp.MustCompile(`(?i)\b(tracking|kargo takip|nerede|kargom)\b`)},
	{"STOCK", regexp.MustCompile(`(?i)\b(in stock|stokta|kaç tane|ne kadar var|availability)\b`)},
	{"BILLING", regexp.MustCompile(`(?i)\b(invoice|fatura|billing|ödeme)\b`)},
	{"ACCOUNT", regexp.MustCompile(`(?i)\b(my account|hesabım|profile)\b`)},
	{"REFUND", regexp.MustCompile(`(?i)\b(refund|iade|para iadesi)\b`)},
	{"RETURN", regexp.MustCompile(`(?i)\b(return (?:it|this)|iade etmek)\b`)},
	{"APPOINTMENT", regexp.MustCompile(`(?i)\b(appointment|randevu)\b`)},
	{"COMPLAINT", regexp.MustCompile(`(?i)\b(complaint|şikayet)\b`)},
	{"PRICING", regexp.MustCompile(`(?i)\b(price|fiyat|ne kadar|how much)\b`)},
}

var orderIDPattern = regexp.MustCompile(`[A-Z]{2,5}-?\d{4,}`)

// chatterPatterns catch generic small talk that should route straight to
// an austere, tool-free chatter prompt.
var chatterPatterns = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|merhaba|selam|thanks|thank you|teşekkür|good (morning|afternoon|evening))\W*$`)

// stockFollowupPatterns catch a bare quantity follow-up ("how many are
// there?") after a stock flow has expired from post_result back to idle —
// the last stock context (retained across the reset) lets this still
// resolve to STOCK rather than falling through to chatter.
var stockFollowupPattern = regexp.MustCompile(`(?i)\b(kaç tane|how many|are there any)\b`)

func classifyByRule(in Input) (Result, bool) {
	text := in.UserText

	if chatterPatterns.MatchString(text) {
		return Result{Type: "chatter", Confidence: 0.95, ExtractedSlots: map[string]any{}}, true
	}

	if in.ActiveFlow == "STOCK_CHECK" && stockFollowupPattern.MatchString(text) {
		return Result{Type: "STOCK", Confidence: 0.8, ExtractedSlots: map[string]any{}, SuggestedFlow: "STOCK_CHECK"}, true
	}

	for _, ri := range ruleIntents {
		match := ri.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		slots := map[string]any{}
		if ri.intent == "ORDER" {
			if id := orderIDPattern.FindString(text); id != "" {
				slots["order_id"] = strings.ToUpper(id)
			}
		}
		return Result{Type: ri.intent, Confidence: 0.85, ExtractedSlots: slots, SuggestedFlow: suggestedFlowFor(ri.intent)}, true
	}

	return Result{}, false
}

func suggestedFlowFor(intent string) string {
	switch intent {
	case "ORDER":
		return "ORDER_STATUS"
	case "TRACKING":
		return "TRACKING_INFO"
	case "STOCK":
		return "STOCK_CHECK"
	case "ACCOUNT":
		return "ACCOUNT_LOOKUP"
	case "BILLING":
		return "DEBT_INQUIRY"
	default:
		return ""
	}
}

func (c *Classifier) classifyWithLLM(ctx context.Context, in Input) Result {
	req := &llm.CompletionRequest{
		Model: c.model,
		System: "Classify the user's message into one intent: ORDER, BILLING, APPOINTMENT, COMPLAINT, TRACKING, " +
			"PRICING, STOCK, RETURN, REFUND, ACCOUNT, or chatter. Respond with only the intent name.",
		Messages: []llm.Message{{Role: models.RoleUser, Content: in.UserText}},
		MaxTokens: 16,
	}
	ch, err := c.provider.Complete(ctx, req)
	if err != nil {
		return failClosed()
	}
	text, _, err := llm.CollectText(ch)
	if err != nil {
		return failClosed()
	}
	intent := strings.ToUpper(strings.TrimSpace(text))
	if intent == "" || intent == "CHATTER" {
		return Result{Type: "chatter", Confidence: 0.6, ExtractedSlots: map[string]any{}}
	}
	return Result{Type: intent, Confidence: 0.65, ExtractedSlots: map[string]any{}, SuggestedFlow: suggestedFlowFor(intent)}
}
