package policy

import (
	"strings"
	"testing"
)

func TestRewriteActionClaimsRewritesWhenToolFailed(t *testing.T) {
	cases := map[string]string{
		"I've already sent the confirmation email.": "I will send",
		"I have saved your new address.":            "I will save",
		"I processed your refund.":                  "I will process",
		"gönderdim":                                  "göndereceğim",
		"kaydettim":                                  "kaydedeceğim",
	}
	for draft, want := range cases {
		got := RewriteActionClaims(draft, false)
		if !strings.Contains(got, want) {
			t.Errorf("RewriteActionClaims(%q) = %q, want containing %q", draft, got, want)
		}
	}
}

func TestRewriteActionClaimsLeavesSuccessfulToolCallsAlone(t *testing.T) {
	draft := "I've already sent the confirmation email."
	got := RewriteActionClaims(draft, true)
	if got != draft {
		t.Fatalf("expected draft unchanged when tool succeeded, got %q", got)
	}
}

func TestRewriteActionClaimsEmptyDraft(t *testing.T) {
	if got := RewriteActionClaims("", false); got != "" {
		t.Fatalf("expected empty draft to remain empty, got %q", got)
	}
}
