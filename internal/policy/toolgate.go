// Package policy implements the pure decision functions that gate tool
// access, enforce fact-grounding, rewrite unsupported claims, redact PII,
// and trip the enumeration lock and repeat-attempt breaker. Every function
// here is side-effect free: callers pass in state and get back a decision,
// never a mutation.
package policy

import "github.com/haasonsaas/nexus/internal/sessions"

// ChannelMode narrows what a channel is allowed to do regardless of flow.
type ChannelMode string

const (
	// ChannelModeFull allows the full tool catalog, subject to flow gating.
	ChannelModeFull ChannelMode = "full"
	// ChannelModeKBOnly restricts the channel to knowledge-base answers
	// with no tool access at all.
	ChannelModeKBOnly ChannelMode = "kb_only"
)

// stockAndProductTools are excluded whenever customer_data_lookup would be
// exposed, and vice versa, per the STOCK_CHECK/PRODUCT_INFO gating rule.
var stockAndProductFlows = map[sessions.FlowType]bool{
	sessions.FlowStockCheck:  true,
	sessions.FlowProductInfo: true,
}

const customerDataLookupTool = "customer_data_lookup"
const createCallbackTool = "create_callback"

// verificationExcludedTools are never exposed while an identity
// verification challenge is pending or in progress.
var verificationExcludedTools = map[string]bool{
	"stock_check_tool":  true,
	"product_info_tool": true,
}

// GateTools selects the allowlist of tools exposed to the LLM for this turn
// from the full catalog, given the channel mode, the resolved flow, and
// whether identity verification is currently active.
func GateTools(catalog []string, mode ChannelMode, flow sessions.FlowType, verificationActive bool) []string {
	if mode == ChannelModeKBOnly {
		return nil
	}

	if flow == sessions.FlowCallbackRequest {
		for _, tool := range catalog {
			if tool == createCallbackTool {
				return []string{createCallbackTool}
			}
		}
		return nil
	}

	allowed := make([]string, 0, len(catalog))
	for _, tool := range catalog {
		if verificationActive && verificationExcludedTools[tool] {
			continue
		}
		if stockAndProductFlows[flow] && tool == customerDataLookupTool {
			continue
		}
		allowed = append(allowed, tool)
	}
	return allowed
}

// requiredToolIntents is the set of intents that must produce a successful
// tool result before the reply may assert facts.
var requiredToolIntents = map[string]bool{
	"ORDER":       true,
	"BILLING":     true,
	"APPOINTMENT": true,
	"COMPLAINT":   true,
	"TRACKING":    true,
	"PRICING":     true,
	"STOCK":       true,
	"RETURN":      true,
	"REFUND":      true,
	"ACCOUNT":     true,
}

// ToolRequired reports whether intent requires a grounding tool call before
// the reply may assert facts.
func ToolRequired(intent string) bool {
	return requiredToolIntents[intent]
}
