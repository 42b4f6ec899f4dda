// Package turnloop drives the bounded LLM/tool-calling loop: up to three
// rounds of sending the conversation to the model, executing any requested
// tools under precondition, repeat-guard, idempotency, retry, and
// sanitization checks, and feeding the results back until the model
// produces a final answer or a terminal outcome short-circuits the loop.
package turnloop

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Tool is something the turn loop can invoke on the model's behalf.
type Tool struct {
	Name          string
	Description   string
	Schema        json.RawMessage
	RequiredSlots []string
	Whitelist     FieldWhitelist
	Execute       func(ctx context.Context, business string, args map[string]any) (*models.ToolOutcomeResult, error)
}

// FieldWhitelist names which result fields survive sanitization, in
// priority order when the per-tool token cap forces a cut.
type FieldWhitelist struct {
	Required []string
	Priority []string
	Optional []string
}

// excludedFields are stripped from every tool result regardless of
// whitelist, before the whitelist is even applied.
var excludedFields = map[string]bool{
	"createdAt": true, "created_at": true,
	"password": true, "token": true, "tokens": true,
	"secret": true, "secrets": true, "apiKey": true, "api_key": true,
	"metadata": true,
}
