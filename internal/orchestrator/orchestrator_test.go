package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/classifier"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/policy"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/turnloop"
	"github.com/haasonsaas/nexus/pkg/models"
)

// textProvider always returns a fixed text reply with no tool calls.
type textProvider struct{ text string }

func (p *textProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (<-chan *llm.CompletionChunk, error) {
	ch := make(chan *llm.CompletionChunk, 1)
	ch <- &llm.CompletionChunk{Text: p.text, Done: true}
	close(ch)
	return ch, nil
}
func (p *textProvider) Name() string           { return "text" }
func (p *textProvider) Models() []llm.ModelInfo { return nil }
func (p *textProvider) SupportsTools() bool     { return false }

func newTestOrchestrator(provider llm.Provider) *Orchestrator {
	clsf := classifier.New(classifier.Config{UseLLM: false})
	loop := turnloop.New(turnloop.Config{Provider: provider, Tools: map[string]*turnloop.Tool{}, Idempotency: turnloop.NewIdempotencyCache(0)})
	return New(Config{
		Store:      sessions.NewMemoryStore(),
		Classifier: clsf,
		Loop:       loop,
	})
}

func TestHandleTurnChatterReply(t *testing.T) {
	orch := newTestOrchestrator(&textProvider{text: "Hi! How can I help?"})
	result, err := orch.HandleTurn(context.Background(), TurnInput{
		Channel:       models.ChannelWebChat,
		BusinessID:    "acme",
		ChannelUserID: "user-1",
		SessionID:     "s1",
		MessageID:     "m1",
		Text:          "hello",
		Language:      "en",
	}, Persona{SystemPersona: "You are helpful."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReplyText != "Hi! How can I help?" {
		t.Fatalf("expected chatter reply passthrough, got %q", result.ReplyText)
	}
	if result.ShouldEndSession {
		t.Fatalf("expected session to remain open after chatter turn")
	}
}

func TestHandleTurnPersistsHistory(t *testing.T) {
	store := sessions.NewMemoryStore()
	clsf := classifier.New(classifier.Config{UseLLM: false})
	loop := turnloop.New(turnloop.Config{Provider: &textProvider{text: "Sure."}, Tools: map[string]*turnloop.Tool{}})
	orch := New(Config{Store: store, Classifier: clsf, Loop: loop})

	in := TurnInput{Channel: models.ChannelWebChat, BusinessID: "acme", ChannelUserID: "user-2", SessionID: "s2", MessageID: "m1", Text: "hey", Language: "en"}
	if _, err := orch.HandleTurn(context.Background(), in, Persona{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := sessions.SessionKey("acme", models.ChannelWebChat, "user-2")
	session, err := store.GetByKey(context.Background(), key)
	if err != nil {
		t.Fatalf("expected session to be persisted: %v", err)
	}
	history, err := store.GetHistory(context.Background(), session.ID, 10)
	if err != nil {
		t.Fatalf("unexpected error fetching history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected inbound+outbound messages persisted, got %d", len(history))
	}
}

func TestHandleTurnReturnsLockedMessageWhenTerminated(t *testing.T) {
	store := sessions.NewMemoryStore()
	clsf := classifier.New(classifier.Config{UseLLM: false})
	loop := turnloop.New(turnloop.Config{Provider: &textProvider{text: "should not be used"}, Tools: map[string]*turnloop.Tool{}})
	orch := New(Config{Store: store, Classifier: clsf, Loop: loop})

	key := sessions.SessionKey("acme", models.ChannelWebChat, "user-3")
	session, err := store.GetOrCreate(context.Background(), key, "acme", models.ChannelWebChat, "user-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := sessions.NewConversationState()
	state.FlowStatus = sessions.FlowTerminated
	sessions.SetConversationState(session, state)
	if err := store.Update(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := orch.HandleTurn(context.Background(), TurnInput{
		Channel: models.ChannelWebChat, BusinessID: "acme", ChannelUserID: "user-3",
		SessionID: "s3", MessageID: "m1", Text: "hi again", Language: "en",
	}, Persona{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReplyText == "" {
		t.Fatalf("expected a locked-session message")
	}
}

func TestHandleTurnResetsStateAfterIdleExpiry(t *testing.T) {
	store := sessions.NewMemoryStore()
	clsf := classifier.New(classifier.Config{UseLLM: false})
	loop := turnloop.New(turnloop.Config{Provider: &textProvider{text: "Hi again."}, Tools: map[string]*turnloop.Tool{}})
	orch := New(Config{Store: store, Classifier: clsf, Loop: loop, IdleResetMinutes: 30})

	key := sessions.SessionKey("acme", models.ChannelWebChat, "user-5")
	session, err := store.GetOrCreate(context.Background(), key, "acme", models.ChannelWebChat, "user-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := sessions.NewConversationState()
	state.ActiveFlow = sessions.FlowOrderStatus
	sessions.SetConversationState(session, state)
	if err := store.Update(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Fast-forward the expiry checker's clock well past the idle window
	// instead of backdating the session (the in-memory store always
	// stamps UpdatedAt with the real wall clock on Update).
	orch.expiry.SetNowFunc(func() time.Time { return time.Now().Add(40 * time.Minute) })

	if _, err := orch.HandleTurn(context.Background(), TurnInput{
		Channel: models.ChannelWebChat, BusinessID: "acme", ChannelUserID: "user-5",
		SessionID: "s5", MessageID: "m1", Text: "hello again", Language: "en",
	}, Persona{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshed, err := store.GetByKey(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	newState := sessions.GetConversationState(refreshed)
	if newState.ActiveFlow != "" {
		t.Fatalf("expected active flow cleared after idle reset, got %q", newState.ActiveFlow)
	}
}

func TestHandleTurnCompactsLongRunningTranscript(t *testing.T) {
	store := sessions.NewMemoryStore()
	clsf := classifier.New(classifier.Config{UseLLM: false})
	loop := turnloop.New(turnloop.Config{Provider: &textProvider{text: "ok"}, Tools: map[string]*turnloop.Tool{}})
	compactor := sessions.NewCompactor(sessions.CompactionConfig{
		Enabled:     true,
		Strategy:    sessions.StrategyLastN,
		MaxMessages: 2,
		KeepLastN:   1,
	}, store, nil)
	orch := New(Config{Store: store, Classifier: clsf, Loop: loop, Compactor: compactor})

	in := TurnInput{Channel: models.ChannelWebChat, BusinessID: "acme", ChannelUserID: "user-6", SessionID: "s6", Language: "en"}
	for i := 0; i < 3; i++ {
		in.MessageID = fmt.Sprintf("m%d", i)
		in.Text = fmt.Sprintf("message %d", i)
		if _, err := orch.HandleTurn(context.Background(), in, Persona{}); err != nil {
			t.Fatalf("unexpected error on turn %d: %v", i, err)
		}
	}

	key := sessions.SessionKey("acme", models.ChannelWebChat, "user-6")
	session, err := store.GetByKey(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history, err := store.GetHistory(context.Background(), session.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("expected 3 inbound+outbound pairs persisted regardless of compaction being triggered, got %d", len(history))
	}
}

func TestHandleTurnKBOnlyRedirectsWithoutTools(t *testing.T) {
	orch := newTestOrchestrator(&textProvider{text: "irrelevant"})
	result, err := orch.HandleTurn(context.Background(), TurnInput{
		Channel: models.ChannelWebChat, BusinessID: "acme", ChannelUserID: "user-4",
		SessionID: "s4", MessageID: "m1", Text: "where is order ORD-1234", Language: "en",
	}, Persona{ChannelMode: policy.ChannelModeKBOnly, KBHelpLink: "https://help.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReplyText == "" {
		t.Fatalf("expected a kb redirect message")
	}
}
