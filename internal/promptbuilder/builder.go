package promptbuilder

import "strings"

// Build renders trimmed Sections into the final system prompt text, in a
// fixed section order so the model sees persona and grounding rules before
// anything retrieved.
func Build(sections Sections) string {
	var b strings.Builder

	writeSection(&b, sections.Persona)
	writeSection(&b, sections.DateTime)

	if len(sections.Knowledge) > 0 {
		writeSection(&b, "Knowledge base:\n"+strings.Join(sections.Knowledge, "\n---\n"))
	}

	writeSection(&b, sections.WritingStyle)
	writeSection(&b, sections.ToolContext)

	if len(sections.RetrievedExamples) > 0 {
		writeSection(&b, "Similar past examples (style reference only):\n"+strings.Join(sections.RetrievedExamples, "\n---\n"))
	}

	if len(sections.Snippets) > 0 {
		writeSection(&b, "Suggested snippets:\n"+strings.Join(sections.Snippets, "\n---\n"))
	}

	writeSection(&b, sections.FactGrounding)
	writeSection(&b, sections.EntityHints)

	return strings.TrimSpace(b.String())
}

func writeSection(b *strings.Builder, section string) {
	if strings.TrimSpace(section) == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(section)
}

// SelectBudget picks a Budget for a model by context size: models with at
// least 32k context get LargeModelBudget, everything else gets
// SmallModelBudget, unless a per-model override is configured.
func SelectBudget(modelBudgets map[string]int, model string, contextSize int) Budget {
	if tokens, ok := modelBudgets[model]; ok && tokens > 0 {
		budget := LargeModelBudget
		budget.InputTokens = tokens
		return budget
	}
	if contextSize >= 32_000 {
		return LargeModelBudget
	}
	return SmallModelBudget
}
