package sessions

import (
	"encoding/json"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// FlowStatus tracks where a session sits in a guided conversation flow.
type FlowStatus string

const (
	FlowIdle       FlowStatus = "idle"
	FlowInProgress FlowStatus = "in_progress"
	FlowPostResult FlowStatus = "post_result"
	FlowTerminated FlowStatus = "terminated"
)

// FlowType names a recognized guided flow. The empty string means no flow
// is active.
type FlowType string

const (
	FlowOrderStatus     FlowType = "ORDER_STATUS"
	FlowDebtInquiry     FlowType = "DEBT_INQUIRY"
	FlowTrackingInfo    FlowType = "TRACKING_INFO"
	FlowAccountLookup   FlowType = "ACCOUNT_LOOKUP"
	FlowStockCheck      FlowType = "STOCK_CHECK"
	FlowProductInfo     FlowType = "PRODUCT_INFO"
	FlowCallbackRequest FlowType = "CALLBACK_REQUEST"
)

// VerificationStatus tracks identity verification progress within a flow.
type VerificationStatus string

const (
	VerificationNone    VerificationStatus = "none"
	VerificationPending VerificationStatus = "pending"
	VerificationPassed  VerificationStatus = "passed"
	VerificationFailed  VerificationStatus = "failed"
)

// maxVerificationAttempts caps how many times a caller may fail
// verification before the conversation locks (spec: verification cap 3).
const maxVerificationAttempts = 3

// Anchor is the last tool-confirmed fact the conversation is grounded on
// (e.g. an order lookup result), kept so later turns can't contradict it
// without a fresh tool call.
type Anchor struct {
	Tag       string          `json:"tag"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Verification tracks progress through an identity-verification challenge.
type Verification struct {
	Status       VerificationStatus `json:"status"`
	PendingField string             `json:"pending_field,omitempty"`
	Attempts     int                `json:"attempts"`
}

// ToolAttempt records the last attempted call to a tool, keyed by its
// argument hash, so the repeat-attempt breaker can recognize when the
// caller is asking the same question again without new information.
type ToolAttempt struct {
	Tool     string    `json:"tool"`
	ArgsHash string    `json:"args_hash"`
	Outcome  string    `json:"outcome"`
	Count    int       `json:"count"`
	AskFor   string    `json:"ask_for,omitempty"`
	At       time.Time `json:"at"`
}

// ConversationState is the turn-orchestration state layered on top of a
// session: which guided flow (if any) is active, what's been verified, what
// fact the conversation is anchored to, and bookkeeping the policy kernel
// needs to avoid loops. It is persisted inside Session.Metadata under
// conversationStateMetadataKey rather than as its own table, so it rides
// along with whatever store backs the session.
type ConversationState struct {
	FlowStatus       FlowStatus    `json:"flow_status"`
	ActiveFlow       FlowType      `json:"active_flow,omitempty"`
	PostResultTurns  int           `json:"post_result_turns"`
	ExtractedSlots   map[string]any `json:"extracted_slots,omitempty"`
	Anchor           *Anchor       `json:"anchor,omitempty"`
	Verification     Verification  `json:"verification"`
	LastToolAttempt  *ToolAttempt  `json:"last_tool_attempt,omitempty"`
	TerminationReason string       `json:"termination_reason,omitempty"`
	LockUntil        *time.Time   `json:"lock_until,omitempty"`

	// NotFoundEvents is the sliding window of recent NOT_FOUND tool
	// outcomes the enumeration lock counts against its threshold.
	NotFoundEvents []time.Time `json:"not_found_events,omitempty"`
}

// conversationStateMetadataKey is the Session.Metadata key ConversationState
// is marshaled under.
const conversationStateMetadataKey = "conversation_state"

// NewConversationState returns a fresh idle state with no active flow.
func NewConversationState() *ConversationState {
	return &ConversationState{
		FlowStatus:     FlowIdle,
		ExtractedSlots: map[string]any{},
		Verification:   Verification{Status: VerificationNone},
	}
}

// GetConversationState reads the ConversationState out of a session's
// metadata, returning a fresh idle state if none has been stored yet.
func GetConversationState(session *models.Session) *ConversationState {
	if session == nil || session.Metadata == nil {
		return NewConversationState()
	}
	raw, ok := session.Metadata[conversationStateMetadataKey]
	if !ok {
		return NewConversationState()
	}
	// Metadata round-trips through JSON in most stores, so raw may already
	// be a map[string]any rather than a *ConversationState.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return NewConversationState()
	}
	var state ConversationState
	if err := json.Unmarshal(encoded, &state); err != nil {
		return NewConversationState()
	}
	if state.ExtractedSlots == nil {
		state.ExtractedSlots = map[string]any{}
	}
	return &state
}

// SetConversationState writes state back into the session's metadata.
func SetConversationState(session *models.Session, state *ConversationState) {
	if session == nil || state == nil {
		return
	}
	if session.Metadata == nil {
		session.Metadata = map[string]any{}
	}
	session.Metadata[conversationStateMetadataKey] = state
}

// ResetIfExpiredPostResult auto-resets a post_result conversation back to
// idle once it has accumulated more than the configured number of
// post-result turns, clearing the active flow and extracted slots.
func (s *ConversationState) ResetIfExpiredPostResult(maxPostResultTurns int) bool {
	if s.FlowStatus != FlowPostResult {
		return false
	}
	if s.PostResultTurns < maxPostResultTurns {
		return false
	}
	s.FlowStatus = FlowIdle
	s.ActiveFlow = ""
	s.PostResultTurns = 0
	s.ExtractedSlots = map[string]any{}
	s.Anchor = nil
	return true
}

// RecordVerificationFailure increments the verification attempt counter and
// reports whether the cap has now been exceeded.
func (s *ConversationState) RecordVerificationFailure() bool {
	s.Verification.Status = VerificationFailed
	s.Verification.Attempts++
	return s.Verification.Attempts >= maxVerificationAttempts
}

// MaxVerificationAttempts exposes the verification cap for callers that
// need to compare against it directly (e.g. metrics, tests).
func MaxVerificationAttempts() int { return maxVerificationAttempts }
