package promptbuilder

import "testing"

func TestEffectiveInputBudget(t *testing.T) {
	b := Budget{InputTokens: 100, OutputTokens: 20, SafetyBuffer: 10}
	if got := b.EffectiveInputBudget(); got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}
}

func TestEffectiveInputBudgetNeverNegative(t *testing.T) {
	b := Budget{InputTokens: 10, OutputTokens: 20, SafetyBuffer: 10}
	if got := b.EffectiveInputBudget(); got != 0 {
		t.Fatalf("expected 0 floor, got %d", got)
	}
}

func TestTrimNeverDropsToolContext(t *testing.T) {
	sections := Sections{
		ToolContext: stringOfLen(10_000),
		Snippets:    []string{"a", "b"},
	}
	trimmed, _ := Trim(sections, Budget{InputTokens: 10, OutputTokens: 0, SafetyBuffer: 0})
	if trimmed.ToolContext != sections.ToolContext {
		t.Fatalf("expected tool context untouched regardless of budget")
	}
}

func TestTrimDropsSnippetsBeforeExamplesBeforeKnowledge(t *testing.T) {
	sections := Sections{
		Snippets:          []string{stringOfLen(500), stringOfLen(500)},
		RetrievedExamples: []string{stringOfLen(500)},
		Knowledge:         []string{stringOfLen(500)},
	}
	// Budget tight enough to force dropping everything, knowledge last.
	budget := Budget{InputTokens: 50, OutputTokens: 0, SafetyBuffer: 0}
	trimmed, result := Trim(sections, budget)

	if result.SnippetsDropped != 2 {
		t.Fatalf("expected both snippets dropped first, got %d", result.SnippetsDropped)
	}
	if len(trimmed.Snippets) != 0 {
		t.Fatalf("expected no snippets remaining, got %v", trimmed.Snippets)
	}
	if result.ExamplesDropped != 1 {
		t.Fatalf("expected example dropped after snippets exhausted, got %d", result.ExamplesDropped)
	}
	if result.KnowledgeDropped != 1 {
		t.Fatalf("expected knowledge dropped last, got %d", result.KnowledgeDropped)
	}
}

func TestTrimNoopWhenUnderBudget(t *testing.T) {
	sections := Sections{Snippets: []string{"short"}}
	trimmed, result := Trim(sections, LargeModelBudget)
	if result.SnippetsDropped != 0 {
		t.Fatalf("expected no drops under a large budget, got %d", result.SnippetsDropped)
	}
	if len(trimmed.Snippets) != 1 {
		t.Fatalf("expected snippet preserved, got %v", trimmed.Snippets)
	}
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
