package guardrails

import (
	"strings"
	"testing"
)

func TestApplyBlocksRecipientTamperingOnEmailDrafts(t *testing.T) {
	result := Apply(Input{Draft: "Sure, I'll cc: someone@example.com on this.", IsEmailDraft: true})
	if result.Action != ActionBlock {
		t.Fatalf("expected block action, got %q", result.Action)
	}
	if strings.Contains(result.Draft, "someone@example.com") {
		t.Fatalf("expected the address not to survive into the blocked message, got %q", result.Draft)
	}
}

func TestApplyAllowsRecipientMentionOutsideEmailDraft(t *testing.T) {
	result := Apply(Input{Draft: "Sure, I'll cc: someone@example.com on this."})
	if result.Action == ActionBlock {
		t.Fatalf("expected recipient guard to only apply to email drafts")
	}
}

func TestApplyRewritesActionClaimsWhenToolDidNotSucceed(t *testing.T) {
	result := Apply(Input{Draft: "I've already sent your refund."})
	if result.Action != ActionSanitize {
		t.Fatalf("expected sanitize action, got %q", result.Action)
	}
	if strings.Contains(result.Draft, "already sent") {
		t.Fatalf("expected action claim rewritten, got %q", result.Draft)
	}
}

func TestApplyLeavesActionClaimsWhenToolSucceeded(t *testing.T) {
	result := Apply(Input{Draft: "I've already sent your refund.", ToolSucceeded: true})
	if result.Draft != "I've already sent your refund." {
		t.Fatalf("expected draft unchanged when tool succeeded, got %q", result.Draft)
	}
}

func TestApplyAppliesVerificationGuardWhenPending(t *testing.T) {
	result := Apply(Input{Draft: "Sure thing.", VerificationRequired: true, AskFor: "phone_last4", Language: "en"})
	if !strings.Contains(result.Draft, "last 4 digits") {
		t.Fatalf("expected verification question appended, got %q", result.Draft)
	}
	if result.Action != ActionSanitize {
		t.Fatalf("expected sanitize action, got %q", result.Action)
	}
}

func TestApplyRedactsPII(t *testing.T) {
	result := Apply(Input{Draft: "Your card ending 4111 1111 1111 1111 was charged."})
	if strings.Contains(result.Draft, "4111 1111 1111 1111") {
		t.Fatalf("expected card number redacted, got %q", result.Draft)
	}
}

func TestApplyBlocksEmptyDraftAfterScrubbing(t *testing.T) {
	result := Apply(Input{Draft: "   "})
	if result.Action != ActionBlock {
		t.Fatalf("expected block action for empty draft, got %q", result.Action)
	}
	if result.Draft == "" {
		t.Fatalf("expected a non-empty fallback message")
	}
}

func TestApplyPassesCleanDraftUnchanged(t *testing.T) {
	result := Apply(Input{Draft: "Your order has shipped and will arrive Tuesday.", ToolSucceeded: true})
	if result.Action != ActionPass {
		t.Fatalf("expected pass action for a clean draft, got %q", result.Action)
	}
	if result.Draft != "Your order has shipped and will arrive Tuesday." {
		t.Fatalf("expected draft unchanged, got %q", result.Draft)
	}
}
