package policy

import "regexp"

// actionClaimPatterns match assertions of a completed action in English and
// Turkish. Each pattern's rewrite target restates the claim as tentative
// rather than accomplished.
var actionClaimPatterns = []struct {
	pattern *regexp.Regexp
	rewrite string
}{
	{regexp.MustCompile(`(?i)\bI(?:'ve| have)? (?:already )?sent\b`), "I will send"},
	{regexp.MustCompile(`(?i)\bI(?:'ve| have)? (?:already )?saved\b`), "I will save"},
	{regexp.MustCompile(`(?i)\bI(?:'ve| have)? (?:already )?processed\b`), "I will process"},
	{regexp.MustCompile(`(?i)\bI(?:'ve| have)? (?:already )?submitted\b`), "I will submit"},
	{regexp.MustCompile(`(?i)\bI(?:'ve| have)? (?:already )?updated\b`), "I will update"},
	{regexp.MustCompile(`(?i)\bI(?:'ve| have)? (?:already )?created\b`), "I will create"},
	{regexp.MustCompile(`gönderdim\b`), "göndereceğim"},
	{regexp.MustCompile(`kaydettim\b`), "kaydedeceğim"},
	{regexp.MustCompile(`işledim\b`), "işleyeceğim"},
	{regexp.MustCompile(`oluşturdum\b`), "oluşturacağım"},
}

// RewriteActionClaims rewrites assertions of completed actions to tentative
// form when no grounding tool call actually succeeded. When toolSucceeded is
// true, the draft is returned unchanged — it's allowed to describe what the
// successful tool call did.
func RewriteActionClaims(draft string, toolSucceeded bool) string {
	if toolSucceeded || draft == "" {
		return draft
	}
	for _, p := range actionClaimPatterns {
		draft = p.pattern.ReplaceAllString(draft, p.rewrite)
	}
	return draft
}
