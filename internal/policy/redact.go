package policy

import "regexp"

// redaction patterns cover outbound-reply PII (national IDs, card numbers,
// phone numbers) and side-channel log secrets (API keys, bearer tokens,
// authorization headers). Both sets run through the same Redact* helpers so
// the turn loop and the logging middleware apply identical rules.
var (
	nationalIDPattern  = regexp.MustCompile(`\b\d{11}\b`)
	cardNumberPattern  = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
	phoneNumberPattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[ -]?)?(?:\(?\d{3}\)?[ -]?){2}\d{2,4}\b`)

	apiSecretPattern  = regexp.MustCompile(`(?i)(api[_-]?key|secret|token)\s*[:=]\s*\S+`)
	bearerTokenPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]+`)
	authHeaderPattern  = regexp.MustCompile(`(?i)authorization:\s*\S+`)
)

const redactedPlaceholder = "[REDACTED]"

// RedactPII masks national IDs, card numbers, and phone numbers in text
// destined for an outbound reply.
func RedactPII(text string) string {
	text = nationalIDPattern.ReplaceAllString(text, redactedPlaceholder)
	text = cardNumberPattern.ReplaceAllString(text, redactedPlaceholder)
	text = phoneNumberPattern.ReplaceAllString(text, redactedPlaceholder)
	return text
}

// RedactSecrets masks API keys, bearer tokens, and authorization headers in
// text bound for logs rather than the user.
func RedactSecrets(text string) string {
	text = apiSecretPattern.ReplaceAllString(text, "$1="+redactedPlaceholder)
	text = bearerTokenPattern.ReplaceAllString(text, "Bearer "+redactedPlaceholder)
	text = authHeaderPattern.ReplaceAllString(text, "Authorization: "+redactedPlaceholder)
	return text
}
