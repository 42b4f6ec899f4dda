package policy

import (
	"github.com/haasonsaas/nexus/pkg/models"
)

// ToolRequiredReplyFor returns the reply that must replace the model's
// draft when an intent requires a grounding tool call but no OK result was
// produced. It distinguishes infra failures and pending verification from
// an ordinary missing-data case.
func ToolRequiredReplyFor(outcome models.ToolOutcome, askFor, language string) string {
	switch outcome {
	case models.OutcomeInfraError:
		return systemErrorMessage(language)
	case models.OutcomeVerificationRequired:
		return ApplyVerificationGuard("", askFor, language, nil)
	default:
		if askFor != "" {
			if q := askForQuestion(askFor, language); q != "" {
				return q
			}
		}
		return missingDataMessage(language)
	}
}

func systemErrorMessage(language string) string {
	if isTurkish(language) {
		return "Şu anda bu bilgiye ulaşamıyorum, lütfen birazdan tekrar deneyin."
	}
	return "I'm unable to retrieve that information right now — please try again shortly."
}

func missingDataMessage(language string) string {
	if isTurkish(language) {
		return "Bu konuda size yardımcı olabilmem için biraz daha bilgiye ihtiyacım var."
	}
	return "I need a bit more information to help with that."
}

func isTurkish(language string) bool {
	return len(language) >= 2 && (language[:2] == "tr" || language[:2] == "TR")
}

// FactGroundingDirective returns the instruction appended to the prompt
// when a reply must stay grounded: retrieved examples inform style only,
// never facts, whenever the intent requires a tool and no OK result exists.
func FactGroundingDirective(toolRequired, hasOKResult bool) string {
	if !toolRequired || hasOKResult {
		return ""
	}
	return "Do not state any specific facts, numbers, or statuses unless they come from a successful tool result. " +
		"Retrieved examples may shape tone and structure only."
}

// RepeatBreakerDecision is the result of checking a tool call against the
// repeat-attempt breaker.
type RepeatBreakerDecision struct {
	ShortCircuit bool
	AskFor       string
}

// repeatableOutcomes are the outcomes the repeat-attempt breaker acts on —
// a repeated OK or DENIED isn't a loop, it's a legitimate re-ask.
var repeatableOutcomes = map[models.ToolOutcome]bool{
	models.OutcomeNotFound:      true,
	models.OutcomeNeedMoreInfo:  true,
}

// ApplyRepeatAttemptBreaker reports whether a tool call repeats the prior
// attempt (same tool, same argsHash, within the repeat window, no new
// identifier slot) with an outcome the breaker should stop on.
func ApplyRepeatAttemptBreaker(hadSameArgs bool, priorOutcome models.ToolOutcome, askFor string, newSlotProvided bool) RepeatBreakerDecision {
	if !hadSameArgs || newSlotProvided {
		return RepeatBreakerDecision{}
	}
	if !repeatableOutcomes[priorOutcome] {
		return RepeatBreakerDecision{}
	}
	return RepeatBreakerDecision{ShortCircuit: true, AskFor: askFor}
}

// RepeatBreakerMessage renders the short-circuit clarification for a
// repeat-attempt breaker decision.
func RepeatBreakerMessage(askFor, language string) string {
	if askFor == "" {
		return missingDataMessage(language)
	}
	if q := askForQuestion(askFor, language); q != "" {
		return q
	}
	return missingDataMessage(language)
}
