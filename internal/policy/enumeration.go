package policy

import (
	"time"

	"github.com/haasonsaas/nexus/internal/sessions"
)

// EnumerationLockResult reports whether a NOT_FOUND event tripped the
// enumeration lock.
type EnumerationLockResult struct {
	Locked    bool
	LockUntil time.Time
}

// enumerationLockDuration is how long a session stays terminated once the
// enumeration lock trips, independent of the counting window.
const enumerationLockDuration = 30 * time.Minute

// CheckEnumerationLock records a NOT_FOUND outcome against the sliding
// window and reports whether the session should now be locked. When the
// number of NOT_FOUND events within window exceeds threshold, the state is
// terminated with lockUntil set and the caller should return the generic
// lock message for every turn until lockUntil passes.
func CheckEnumerationLock(state *sessions.ConversationState, now time.Time, window time.Duration, threshold int) EnumerationLockResult {
	cutoff := now.Add(-window)
	kept := state.NotFoundEvents[:0]
	for _, t := range state.NotFoundEvents {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	state.NotFoundEvents = kept

	if len(state.NotFoundEvents) < threshold {
		return EnumerationLockResult{Locked: false}
	}

	lockUntil := now.Add(enumerationLockDuration)
	state.FlowStatus = sessions.FlowTerminated
	state.TerminationReason = "enumeration_lock"
	state.LockUntil = &lockUntil
	state.NotFoundEvents = nil
	return EnumerationLockResult{Locked: true, LockUntil: lockUntil}
}

// IsLocked reports whether state is currently under an active lock,
// distinguishing an expired lock (which should be cleared) from a live one.
func IsLocked(state *sessions.ConversationState, now time.Time) bool {
	if state.FlowStatus != sessions.FlowTerminated {
		return false
	}
	if state.LockUntil == nil {
		return true
	}
	return now.Before(*state.LockUntil)
}
