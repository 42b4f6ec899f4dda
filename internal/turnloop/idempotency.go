package turnloop

import (
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// IdempotencyKey identifies one tool invocation uniquely within a turn so a
// retried message never re-executes a tool that already succeeded.
type IdempotencyKey struct {
	BusinessID string
	Channel    string
	MessageID  string
	ToolName   string
}

// IdempotencyCache caches successful tool results keyed by IdempotencyKey
// for a bounded TTL.
type IdempotencyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[IdempotencyKey]idempotencyEntry
}

type idempotencyEntry struct {
	result *models.ToolOutcomeResult
	at     time.Time
}

// NewIdempotencyCache creates a cache with the given TTL. A non-positive
// TTL disables caching (Get always misses).
func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{ttl: ttl, entries: map[IdempotencyKey]idempotencyEntry{}}
}

// Get returns the cached result for key, if still within TTL.
func (c *IdempotencyCache) Get(key IdempotencyKey) (*models.ToolOutcomeResult, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.at) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

// Set stores result under key with the current time.
func (c *IdempotencyCache) Set(key IdempotencyKey, result *models.ToolOutcomeResult) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = idempotencyEntry{result: result, at: time.Now()}
}
