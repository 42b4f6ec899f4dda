// Package guardrails applies the ordered set of post-draft passes to an
// LLM's final reply: recipient guard, action-claim rewrite, verification
// false-promise handling, PII scrub, and the empty-draft block.
package guardrails

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/policy"
)

// Action records what a guardrail pass did to the draft.
type Action string

const (
	ActionPass              Action = "PASS"
	ActionSanitize          Action = "SANITIZE"
	ActionBlock             Action = "BLOCK"
	ActionNeedMinInfoForTool Action = "NEED_MIN_INFO_FOR_TOOL"
)

// Input bundles what guardrails needs to evaluate a draft.
type Input struct {
	Draft          string
	IsEmailDraft   bool
	ToolSucceeded  bool
	VerificationRequired bool
	AskFor         string
	Language       string
	SuppliedSlots  map[string]any
}

// Result is the outcome of running every guardrail pass.
type Result struct {
	Draft  string
	Action Action
}

// recipientGuardPattern matches attempts to add CC/BCC or forward an email
// draft to an address not already established in the thread.
var recipientGuardPattern = regexp.MustCompile(`(?i)\b(cc:|bcc:|forward(?:ed|ing)? to|fwd:)\s*\S+@\S+`)

// recipientGuard reports whether the draft attempts to CC/BCC or forward
// to an address, which email drafts must never do unsupervised.
func recipientGuard(draft string) (bool, string) {
	if recipientGuardPattern.MatchString(draft) {
		return true, "This draft attempted to add or forward to a recipient and was blocked for review."
	}
	return false, ""
}

// Apply runs every guardrail pass in order and returns the final draft and
// the action taken.
func Apply(in Input) Result {
	draft := in.Draft
	action := ActionPass

	if in.IsEmailDraft {
		if blocked, reason := recipientGuard(draft); blocked {
			return Result{Draft: reason, Action: ActionBlock}
		}
	}

	rewritten := policy.RewriteActionClaims(draft, in.ToolSucceeded)
	if rewritten != draft {
		action = ActionSanitize
		draft = rewritten
	}

	if in.VerificationRequired {
		guarded := policy.ApplyVerificationGuard(draft, in.AskFor, in.Language, in.SuppliedSlots)
		if guarded != draft {
			action = ActionSanitize
			draft = guarded
		}
	}

	scrubbed := policy.RedactPII(draft)
	if scrubbed != draft {
		action = ActionSanitize
		draft = scrubbed
	}

	if strings.TrimSpace(draft) == "" {
		return Result{Draft: emptyDraftFallback(in.Language), Action: ActionBlock}
	}

	return Result{Draft: draft, Action: action}
}

func emptyDraftFallback(language string) string {
	if len(language) >= 2 && (language[:2] == "tr" || language[:2] == "TR") {
		return "Bu konuda şu anda yardımcı olamıyorum, lütfen tekrar deneyin."
	}
	return "I'm unable to help with that right now — please try again."
}
