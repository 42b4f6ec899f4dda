package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// falsePromisePatterns match assurances that a human will follow up, which
// must never ship alongside a pending verification challenge — the bot
// cannot promise a callback it has no tool to guarantee.
var falsePromisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I'll get back to you shortly`),
	regexp.MustCompile(`(?i)(?:someone|a representative|our team) will (?:reach out|contact you|follow up)`),
	regexp.MustCompile(`(?i)en kısa sürede (?:size )?geri dön(?:eceğiz|eceğim)`),
	regexp.MustCompile(`(?i)ekibimiz sizinle iletişime geçecek`),
}

// askForPrompts gives a localized clarification question per askFor key.
// "language" is expected to be a BCP-47-ish prefix ("en", "tr", ...).
var askForPrompts = map[string]map[string]string{
	"phone_last4": {
		"en": "Could you confirm the last 4 digits of the phone number on the account?",
		"tr": "Hesaptaki telefon numarasının son 4 hanesini onaylar mısınız?",
	},
	"order_id": {
		"en": "Could you share your order number?",
		"tr": "Sipariş numaranızı paylaşabilir misiniz?",
	},
	"email": {
		"en": "Could you confirm the email address on the account?",
		"tr": "Hesaptaki e-posta adresini onaylar mısınız?",
	},
}

// ApplyVerificationGuard strips false-promise language from a draft that
// followed a VERIFICATION_REQUIRED tool outcome, then appends a targeted
// clarification question for askFor — unless the caller already supplied
// that slot, in which case no question is asked.
func ApplyVerificationGuard(draft, askFor, language string, suppliedSlots map[string]any) string {
	for _, p := range falsePromisePatterns {
		draft = strings.TrimSpace(p.ReplaceAllString(draft, ""))
	}
	if askFor == "" {
		return draft
	}
	if _, already := suppliedSlots[askFor]; already {
		return draft
	}
	question := askForQuestion(askFor, language)
	if question == "" {
		return draft
	}
	if draft == "" {
		return question
	}
	return fmt.Sprintf("%s %s", draft, question)
}

func askForQuestion(askFor, language string) string {
	prompts, ok := askForPrompts[askFor]
	if !ok {
		return ""
	}
	lang := strings.ToLower(strings.TrimSpace(language))
	if idx := strings.Index(lang, "-"); idx > 0 {
		lang = lang[:idx]
	}
	if q, ok := prompts[lang]; ok {
		return q
	}
	return prompts["en"]
}
