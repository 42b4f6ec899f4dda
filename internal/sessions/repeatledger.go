package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// repeatWindow is how long a (toolName, argsHash) pair is remembered before
// the repeat-attempt breaker stops treating a new call as a repeat.
const repeatWindow = 10 * time.Minute

// HashToolArgs produces a stable hash for a tool call's arguments so two
// calls with the same effective intent (regardless of key order or
// whitespace/case differences) compare equal. Keys are sorted, string
// values are trimmed and lowercased, before hashing.
func HashToolArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string]any, len(args))
	for _, k := range keys {
		normalized[k] = normalizeArgValue(args[k])
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func normalizeArgValue(v any) any {
	switch val := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(val))
	default:
		return val
	}
}

// ShouldShortCircuit reports whether a tool call matching (toolName,
// argsHash) was already attempted within the repeat window and the caller
// has not provided any new information (askFor is unchanged or empty). When
// true, the tool loop should skip execution and reuse the prior outcome
// instead of calling the tool again.
func (s *ConversationState) ShouldShortCircuit(toolName, argsHash string, now time.Time) bool {
	attempt := s.LastToolAttempt
	if attempt == nil {
		return false
	}
	if attempt.Tool != toolName || attempt.ArgsHash != argsHash {
		return false
	}
	if now.Sub(attempt.At) > repeatWindow {
		return false
	}
	return true
}

// RecordToolAttempt updates the repeat-attempt ledger with the outcome of a
// tool call, bumping the repeat count when it matches the prior attempt.
func (s *ConversationState) RecordToolAttempt(toolName, argsHash, outcome, askFor string, now time.Time) {
	count := 1
	if prev := s.LastToolAttempt; prev != nil && prev.Tool == toolName && prev.ArgsHash == argsHash &&
		now.Sub(prev.At) <= repeatWindow {
		count = prev.Count + 1
	}
	s.LastToolAttempt = &ToolAttempt{
		Tool:     toolName,
		ArgsHash: argsHash,
		Outcome:  outcome,
		Count:    count,
		AskFor:   askFor,
		At:       now,
	}
}
