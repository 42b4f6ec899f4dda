package turnloop

import (
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestIdempotencyCacheHitWithinTTL(t *testing.T) {
	c := NewIdempotencyCache(time.Minute)
	key := IdempotencyKey{BusinessID: "acme", Channel: "telegram", MessageID: "m1", ToolName: "order_lookup"}
	result := &models.ToolOutcomeResult{ToolName: "order_lookup", Outcome: models.OutcomeOK}

	if _, ok := c.Get(key); ok {
		t.Fatalf("expected miss before Set")
	}
	c.Set(key, result)
	got, ok := c.Get(key)
	if !ok {
		t.Fatalf("expected hit after Set")
	}
	if got != result {
		t.Fatalf("expected cached result returned unchanged")
	}
}

func TestIdempotencyCacheDisabledWithNonPositiveTTL(t *testing.T) {
	c := NewIdempotencyCache(0)
	key := IdempotencyKey{MessageID: "m1", ToolName: "order_lookup"}
	c.Set(key, &models.ToolOutcomeResult{})
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected caching disabled with zero TTL")
	}
}

func TestIdempotencyCacheExpiresAfterTTL(t *testing.T) {
	c := NewIdempotencyCache(10 * time.Millisecond)
	key := IdempotencyKey{MessageID: "m1", ToolName: "order_lookup"}
	c.Set(key, &models.ToolOutcomeResult{})
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected cache entry to expire after TTL")
	}
}

func TestIdempotencyCacheDistinctKeys(t *testing.T) {
	c := NewIdempotencyCache(time.Minute)
	keyA := IdempotencyKey{MessageID: "m1", ToolName: "order_lookup"}
	keyB := IdempotencyKey{MessageID: "m2", ToolName: "order_lookup"}
	c.Set(keyA, &models.ToolOutcomeResult{ToolName: "a"})
	if _, ok := c.Get(keyB); ok {
		t.Fatalf("expected distinct message IDs to not collide")
	}
}
