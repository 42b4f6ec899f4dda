// Package promptbuilder assembles the system and user prompt sent to the
// LLM from persona, datetime, knowledge, style, tool-result context,
// retrieved examples, and snippets — trimming the lower-priority sections
// to fit a token budget that is never allowed to touch tool results.
package promptbuilder

import (
	nexuscontext "github.com/haasonsaas/nexus/internal/context"
)

// CharsPerToken is the character-per-token estimator ratio used across the
// turn pipeline.
const CharsPerToken = 4

// Budget bounds prompt assembly for one model tier.
type Budget struct {
	InputTokens  int
	OutputTokens int
	SafetyBuffer int
}

// LargeModelBudget is the default budget for large-context models (~100k
// input, ~4k output headroom, ~8k safety buffer).
var LargeModelBudget = Budget{InputTokens: 100_000, OutputTokens: 4_000, SafetyBuffer: 8_000}

// SmallModelBudget is the default budget for small-context models.
var SmallModelBudget = Budget{InputTokens: 6_000, OutputTokens: 2_000, SafetyBuffer: 0}

// EffectiveInputBudget is the actual character allowance for prompt
// sections after reserving output tokens and the safety buffer.
func (b Budget) EffectiveInputBudget() int {
	tokens := b.InputTokens - b.OutputTokens - b.SafetyBuffer
	if tokens < 0 {
		tokens = 0
	}
	return tokens
}

// EstimateTokens estimates the token count of text using the shared
// 4-chars-per-token heuristic.
func EstimateTokens(text string) int {
	return nexuscontext.EstimateTokens(text)
}

// Sections holds the assembled prompt pieces before trimming. ToolContext
// is never trimmed; the rest is trimmed in the stated priority order.
type Sections struct {
	Persona            string
	DateTime           string
	Knowledge          []string
	WritingStyle       string
	ToolContext        string
	RetrievedExamples  []string
	Snippets           []string
	FactGrounding      string
	EntityHints        string
}

// TrimResult records what trimming did, for estimation-accuracy tracking.
type TrimResult struct {
	SnippetsDropped  int
	ExamplesDropped  int
	KnowledgeDropped int
	EstimatedTokens  int
}

// Trim reduces Sections to fit budget, dropping snippets first, then
// retrieved examples, then knowledge base entries — never tool context.
func Trim(sections Sections, budget Budget) (Sections, TrimResult) {
	limit := budget.EffectiveInputBudget() * CharsPerToken
	result := TrimResult{}

	fixedLen := len(sections.Persona) + len(sections.DateTime) + len(sections.WritingStyle) +
		len(sections.ToolContext) + len(sections.FactGrounding) + len(sections.EntityHints)

	for fixedLen+sectionsLen(sections) > limit {
		if len(sections.Snippets) > 0 {
			sections.Snippets = sections.Snippets[:len(sections.Snippets)-1]
			result.SnippetsDropped++
			continue
		}
		if len(sections.RetrievedExamples) > 0 {
			sections.RetrievedExamples = sections.RetrievedExamples[:len(sections.RetrievedExamples)-1]
			result.ExamplesDropped++
			continue
		}
		if len(sections.Knowledge) > 0 {
			sections.Knowledge = sections.Knowledge[:len(sections.Knowledge)-1]
			result.KnowledgeDropped++
			continue
		}
		break
	}

	result.EstimatedTokens = (fixedLen + sectionsLen(sections)) / CharsPerToken
	return sections, result
}

func sectionsLen(s Sections) int {
	total := 0
	for _, k := range s.Knowledge {
		total += len(k)
	}
	for _, e := range s.RetrievedExamples {
		total += len(e)
	}
	for _, sn := range s.Snippets {
		total += len(sn)
	}
	return total
}
