package promptbuilder

import (
	"strings"
	"testing"
)

func TestBuildOrdersSectionsAndTrimsWhitespace(t *testing.T) {
	sections := Sections{
		Persona:       "You are a support assistant.",
		DateTime:      "Current time: 2026-07-29T10:00:00Z",
		WritingStyle:  "Be concise.",
		ToolContext:   "Order ORD-1 is out for delivery.",
		FactGrounding: "Only state facts from tool results.",
	}
	prompt := Build(sections)

	personaIdx := strings.Index(prompt, sections.Persona)
	dateIdx := strings.Index(prompt, sections.DateTime)
	styleIdx := strings.Index(prompt, sections.WritingStyle)
	toolIdx := strings.Index(prompt, sections.ToolContext)
	factIdx := strings.Index(prompt, sections.FactGrounding)

	if !(personaIdx < dateIdx && dateIdx < styleIdx && styleIdx < toolIdx && toolIdx < factIdx) {
		t.Fatalf("expected sections in persona/datetime/style/tool/fact order, got %q", prompt)
	}
	if strings.HasPrefix(prompt, "\n") || strings.HasSuffix(prompt, "\n") {
		t.Fatalf("expected surrounding whitespace trimmed, got %q", prompt)
	}
}

func TestBuildOmitsEmptySections(t *testing.T) {
	prompt := Build(Sections{Persona: "Hi."})
	if prompt != "Hi." {
		t.Fatalf("expected only persona text, got %q", prompt)
	}
}

func TestBuildJoinsKnowledgeAndSnippets(t *testing.T) {
	prompt := Build(Sections{Knowledge: []string{"k1", "k2"}, Snippets: []string{"s1"}})
	if !strings.Contains(prompt, "k1") || !strings.Contains(prompt, "k2") {
		t.Fatalf("expected both knowledge entries present, got %q", prompt)
	}
	if !strings.Contains(prompt, "s1") {
		t.Fatalf("expected snippet present, got %q", prompt)
	}
}

func TestSelectBudgetUsesPerModelOverride(t *testing.T) {
	budgets := map[string]int{"tiny-model": 500}
	b := SelectBudget(budgets, "tiny-model", 4_000)
	if b.InputTokens != 500 {
		t.Fatalf("expected per-model override, got %d", b.InputTokens)
	}
}

func TestSelectBudgetFallsBackByContextSize(t *testing.T) {
	large := SelectBudget(nil, "unknown-model", 100_000)
	if large.InputTokens != LargeModelBudget.InputTokens {
		t.Fatalf("expected large budget for big context window, got %+v", large)
	}
	small := SelectBudget(nil, "unknown-model", 8_000)
	if small.InputTokens != SmallModelBudget.InputTokens {
		t.Fatalf("expected small budget for small context window, got %+v", small)
	}
}
