package emaildraft

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/guardrails"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

func newTestPipeline(results []*models.DocumentSearchResult) *Pipeline {
	retriever := NewRetriever(&fakeStore{results: results}, fakeEmbedder{})
	return New(Config{
		Retriever: retriever,
		Persona:   orchestrator.Persona{SystemPersona: "You are a support assistant.", WritingStyle: "Warm and concise."},
	})
}

func TestPipelineDraftAppendsSignature(t *testing.T) {
	p := newTestPipeline(nil)
	state := sessions.NewConversationState()

	draft, err := p.Draft(context.Background(), ThreadInput{
		ThreadID:   "t1",
		BusinessID: "acme",
		Language:   "en",
		Subject:    "Return question",
		Body:       "Can I return this item?",
		Signature:  "Best, Acme Support",
	}, state, "Sure, you can return it within 30 days.", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(draft.Body, "Best, Acme Support") {
		t.Fatalf("expected signature appended, got %q", draft.Body)
	}
	if draft.Action != guardrails.ActionPass {
		t.Fatalf("expected pass action for a clean grounded draft, got %q", draft.Action)
	}
}

func TestPipelineDraftDoesNotDuplicateExistingSignature(t *testing.T) {
	p := newTestPipeline(nil)
	state := sessions.NewConversationState()

	draftText := "Sure, you can return it within 30 days.\n\nBest, Acme Support"
	draft, err := p.Draft(context.Background(), ThreadInput{
		BusinessID: "acme",
		Language:   "en",
		Signature:  "Best, Acme Support",
	}, state, draftText, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(draft.Body, "Best, Acme Support") != 1 {
		t.Fatalf("expected signature not duplicated, got %q", draft.Body)
	}
}

func TestPipelineDraftAppliesVerificationGuard(t *testing.T) {
	p := newTestPipeline(nil)
	state := sessions.NewConversationState()
	state.Verification.Status = sessions.VerificationPending
	state.Verification.PendingField = "order_id"

	draft, err := p.Draft(context.Background(), ThreadInput{
		BusinessID: "acme",
		Language:   "en",
	}, state, "Thanks for reaching out.", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(draft.Body, "order number") {
		t.Fatalf("expected verification question appended, got %q", draft.Body)
	}
}

func TestPipelineDraftUsesSimilarPairsForToneMatching(t *testing.T) {
	results := []*models.DocumentSearchResult{
		{Chunk: &models.DocumentChunk{
			Content:  "Can I get a refund?",
			Metadata: models.ChunkMetadata{Extra: map[string]any{"reply": "Absolutely, here's how."}},
		}},
	}
	p := newTestPipeline(results)
	state := sessions.NewConversationState()

	draft, err := p.Draft(context.Background(), ThreadInput{
		BusinessID: "acme",
		Language:   "en",
		Subject:    "Refund request",
		Body:       "I'd like a refund",
	}, state, "We can process that refund for you.", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Body == "" {
		t.Fatalf("expected a non-empty draft")
	}
}
