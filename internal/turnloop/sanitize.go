package turnloop

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/policy"
	"github.com/haasonsaas/nexus/internal/promptbuilder"
)

// toolResultTokenCap bounds a single sanitized tool result (~3k tokens).
const toolResultTokenCap = 3000

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes tags from description-like free text fields.
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}

// SanitizeResult applies the exclusion list, HTML-stripping, PII redaction,
// and the field whitelist (required -> priority -> optional) to a raw tool
// result, then enforces the per-tool token cap. It returns the sanitized
// fields along with the names of any required fields that were missing
// after whitelisting.
func SanitizeResult(data map[string]any, whitelist FieldWhitelist) (map[string]any, []string) {
	cleaned := map[string]any{}
	for k, v := range data {
		if excludedFields[k] {
			continue
		}
		cleaned[k] = sanitizeValue(v)
	}

	ordered := append(append(append([]string{}, whitelist.Required...), whitelist.Priority...), whitelist.Optional...)
	if len(ordered) == 0 {
		return capByTokens(cleaned, nil)
	}

	selected := map[string]any{}
	var missingRequired []string
	for _, field := range whitelist.Required {
		if v, ok := cleaned[field]; ok {
			selected[field] = v
		} else {
			missingRequired = append(missingRequired, field)
		}
	}

	budget := toolResultTokenCap
	for _, field := range append(append([]string{}, whitelist.Priority...), whitelist.Optional...) {
		v, ok := cleaned[field]
		if !ok {
			continue
		}
		cost := promptbuilder.EstimateTokens(renderValue(v))
		if budget-cost < 0 {
			continue
		}
		selected[field] = v
		budget -= cost
	}

	return selected, missingRequired
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return policy.RedactPII(stripHTML(val))
	case map[string]any:
		nested := map[string]any{}
		for k, nv := range val {
			if excludedFields[k] {
				continue
			}
			nested[k] = sanitizeValue(nv)
		}
		return nested
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func renderValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// capByTokens trims a field-less (no whitelist configured) result down to
// the token cap by dropping the largest string-valued fields first.
func capByTokens(data map[string]any, _ []string) (map[string]any, []string) {
	total := 0
	for _, v := range data {
		total += promptbuilder.EstimateTokens(renderValue(v))
	}
	if total <= toolResultTokenCap {
		return data, nil
	}
	trimmed := map[string]any{}
	budget := toolResultTokenCap
	for k, v := range data {
		cost := promptbuilder.EstimateTokens(renderValue(v))
		if budget-cost < 0 {
			continue
		}
		trimmed[k] = v
		budget -= cost
	}
	return trimmed, nil
}
