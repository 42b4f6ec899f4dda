// Package router decides, from a classification result and conversation
// state, which of four paths a turn takes: a direct response with no LLM
// call, a clarification short-circuit, an austere chatter completion, or
// the default LLM-with-tools path.
package router

import (
	"github.com/haasonsaas/nexus/internal/classifier"
	"github.com/haasonsaas/nexus/internal/policy"
	"github.com/haasonsaas/nexus/internal/sessions"
)

// Action names the routing decision.
type Action string

const (
	ActionDirectResponse Action = "direct_response"
	ActionClarification  Action = "clarification"
	ActionChatter        Action = "chatter"
	ActionLLMWithTools   Action = "llm_with_tools"
)

// Decision is the router's output for one turn.
type Decision struct {
	Action        Action
	DirectMessage string // set when Action == ActionDirectResponse or ActionClarification
}

// Input bundles what the router needs to decide.
type Input struct {
	Classification   classifier.Result
	State            *sessions.ConversationState
	ChannelMode      policy.ChannelMode
	EntityOutOfScope bool
	EntityFuzzyMatch bool
	StrictGrounding  bool
	KBHelpLink       string
	Language         string
}

// Route decides the routing action for this turn.
func Route(in Input) Decision {
	if in.State.FlowStatus == sessions.FlowTerminated {
		return Decision{Action: ActionDirectResponse, DirectMessage: lockedMessage(in.Language)}
	}

	if in.ChannelMode == policy.ChannelModeKBOnly {
		if in.KBHelpLink != "" {
			return Decision{Action: ActionDirectResponse, DirectMessage: kbRedirectMessage(in.Language, in.KBHelpLink)}
		}
	}

	if slotCollectionComplete(in.State) {
		return Decision{Action: ActionDirectResponse, DirectMessage: ""}
	}

	if in.StrictGrounding && (in.EntityOutOfScope || in.EntityFuzzyMatch) {
		return Decision{Action: ActionClarification, DirectMessage: clarificationMessage(in.Language)}
	}

	if in.Classification.Type == "chatter" {
		return Decision{Action: ActionChatter}
	}

	return Decision{Action: ActionLLMWithTools}
}

// slotCollectionComplete reports whether every slot a resolved flow needs
// has already been extracted, meaning the turn can be answered without
// another LLM round.
func slotCollectionComplete(state *sessions.ConversationState) bool {
	return state.FlowStatus == sessions.FlowPostResult
}

func lockedMessage(language string) string {
	if isTurkish(language) {
		return "Bu görüşme şu anda kısıtlı. Lütfen daha sonra tekrar deneyin."
	}
	return "This conversation is temporarily restricted. Please try again later."
}

func kbRedirectMessage(language, link string) string {
	if isTurkish(language) {
		return "Bu konudaki yardım makalemize buradan ulaşabilirsiniz: " + link
	}
	return "Here's our help article on that: " + link
}

func clarificationMessage(language string) string {
	if isTurkish(language) {
		return "Tam olarak neyle ilgili yardım istediğinizi biraz daha açabilir misiniz?"
	}
	return "Could you clarify exactly what you'd like help with?"
}

func isTurkish(language string) bool {
	return len(language) >= 2 && (language[:2] == "tr" || language[:2] == "TR")
}
