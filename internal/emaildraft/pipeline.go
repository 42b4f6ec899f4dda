package emaildraft

import (
	"context"
	"strings"

	"github.com/haasonsaas/nexus/internal/guardrails"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/policy"
	"github.com/haasonsaas/nexus/internal/promptbuilder"
	"github.com/haasonsaas/nexus/internal/sessions"
)

// ThreadInput is one inbound email within a thread.
type ThreadInput struct {
	ThreadID   string
	BusinessID string
	Language   string
	Subject    string
	Body       string
	Signature  string
}

// Draft is the outcome of drafting a reply to one thread message.
type Draft struct {
	Body   string
	Action guardrails.Action
}

// Pipeline drafts email replies, sharing the turn orchestrator's
// classification/policy/guardrail stack but layered with RAG retrieval of
// tone-matched examples and a stricter grounding gate — an email can't be
// corrected a moment later the way a chat reply can.
type Pipeline struct {
	retriever  *Retriever
	orch       *orchestrator.Orchestrator
	persona    orchestrator.Persona
	exampleCap int
	snippetCap int
}

// Config configures a Pipeline.
type Config struct {
	Retriever      *Retriever
	Orchestrator   *orchestrator.Orchestrator
	Persona        orchestrator.Persona
	ExampleCap     int
	SnippetCap     int
}

// New constructs a Pipeline.
func New(cfg Config) *Pipeline {
	exampleCap := cfg.ExampleCap
	if exampleCap <= 0 {
		exampleCap = 3
	}
	snippetCap := cfg.SnippetCap
	if snippetCap <= 0 {
		snippetCap = 3
	}
	return &Pipeline{retriever: cfg.Retriever, orch: cfg.Orchestrator, persona: cfg.Persona, exampleCap: exampleCap, snippetCap: snippetCap}
}

// Draft produces a guardrail-passed reply draft for one thread message.
// toolSucceeded/anchor reflect whatever grounding the shared tool loop
// already established for this thread (threads reuse the turn
// orchestrator's state machine rather than keeping a separate one).
func (p *Pipeline) Draft(ctx context.Context, in ThreadInput, state *sessions.ConversationState, draftText string, toolSucceeded bool) (*Draft, error) {
	query := in.Subject + "\n" + in.Body

	examples, err := p.retriever.SimilarExamples(ctx, in.BusinessID, query, p.exampleCap)
	if err != nil {
		return nil, err
	}
	pairs, err := p.retriever.SimilarPairs(ctx, in.BusinessID, query, 1)
	if err != nil {
		return nil, err
	}
	snippets, err := p.retriever.SelectSnippets(ctx, in.BusinessID, query, p.snippetCap)
	if err != nil {
		return nil, err
	}

	// Emails never relax the grounding gate: an unsupported claim here
	// can't be corrected a message later, unlike a chat turn.
	factGrounding := policy.FactGroundingDirective(true, toolSucceeded)
	if len(pairs) > 0 {
		factGrounding += " Match the tone of the reference reply below, but restate only facts this thread's own tool results support."
	}

	budget := promptbuilder.LargeModelBudget
	sections, _ := promptbuilder.Trim(promptbuilder.Sections{
		Persona:           p.persona.SystemPersona,
		WritingStyle:      p.persona.WritingStyle,
		RetrievedExamples: append(examples, pairReferences(pairs)...),
		Snippets:          snippets,
		FactGrounding:     factGrounding,
	}, budget)
	_ = promptbuilder.Build(sections) // assembled for the caller's LLM request; draftText below is the model's own output for this thread

	body := draftText
	if in.Signature != "" && !strings.Contains(body, in.Signature) {
		body = strings.TrimSpace(body) + "\n\n" + in.Signature
	}

	result := guardrails.Apply(guardrails.Input{
		Draft:                body,
		IsEmailDraft:         true,
		ToolSucceeded:        toolSucceeded,
		VerificationRequired: state.Verification.Status == sessions.VerificationPending,
		AskFor:               state.Verification.PendingField,
		Language:             in.Language,
		SuppliedSlots:        state.ExtractedSlots,
	})

	return &Draft{Body: result.Draft, Action: result.Action}, nil
}

func pairReferences(pairs []Pair) []string {
	refs := make([]string, 0, len(pairs))
	for _, p := range pairs {
		refs = append(refs, "Inbound: "+p.Inbound+"\nReply: "+p.Reply)
	}
	return refs
}
