// Package llm defines the collaborator interface for Large Language Model
// backends used by the turn orchestrator, along with reference
// implementations for Anthropic and OpenAI.
//
// Implementations handle the specifics of a given vendor API while
// presenting a unified streaming interface to the classifier, turn loop,
// and email-draft pipeline. Every call in a turn — the initial prompt and
// every subsequent "continue with these tool results" round — goes through
// the same Complete method; callers build the message history themselves
// rather than the provider exposing separate send/reply methods.
package llm

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Provider is the interface a vendor-specific LLM backend must satisfy.
//
// Implementations must be safe for concurrent use: the turn loop and the
// email-draft pipeline may call Complete simultaneously for different
// requests.
type Provider interface {
	// Complete sends a prompt and returns a channel of streaming chunks.
	// The channel is closed after a chunk with Done set to true or a
	// chunk carrying a non-nil Error.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string

	// Models returns the models this provider exposes.
	Models() []ModelInfo

	// SupportsTools reports whether the provider can accept tool
	// definitions and return tool-call requests.
	SupportsTools() bool
}

// CompletionRequest contains everything needed for one LLM turn: the
// system prompt, the conversation so far (including any prior tool calls
// and results), the tool catalog currently available, and generation
// limits.
type CompletionRequest struct {
	// Model selects the vendor model. If empty, the provider's default
	// is used.
	Model string

	// System is the system prompt built by the prompt builder.
	System string

	// Messages is the conversation history in chronological order. To
	// "reply" with tool results, the caller appends a tool message
	// carrying FunctionResults and calls Complete again — there is no
	// separate reply method.
	Messages []Message

	// Tools lists the tool specs the model may call this turn. Empty
	// means no tool calling is available.
	Tools []ToolSpec

	// MaxTokens limits the length of the generated response. 0 uses the
	// provider's default.
	MaxTokens int
}

// Message is a single turn in the conversation sent to the provider.
// Role is one of "user", "assistant", "tool" (mirrors models.Role).
type Message struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content,omitempty"`

	// FunctionCalls carries the assistant's tool-call requests, when
	// Role is "assistant" and the model asked to call tools.
	FunctionCalls []models.ToolCall `json:"tool_calls,omitempty"`

	// FunctionResults carries the outcomes of those tool calls, when
	// Role is "tool".
	FunctionResults []models.ToolResult `json:"tool_results,omitempty"`
}

// ToolSpec describes one callable tool in the format providers expect:
// a name, natural-language description, and a JSON Schema for arguments.
type ToolSpec struct {
	Name        string
	Description string
	Schema      []byte
}

// Usage reports token accounting for a completed request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompletionChunk is one item of a streaming response. A chunk carries
// exactly one of: partial text, a completed tool call, a terminal error,
// or (on the final chunk) Done plus Usage.
type CompletionChunk struct {
	// Text is incremental response text.
	Text string

	// ToolCall is populated when the model has finished requesting a
	// tool execution.
	ToolCall *models.ToolCall

	// Done is true on the final chunk of a successful stream.
	Done bool

	// Usage is populated alongside Done.
	Usage Usage

	// Error terminates the stream; no further chunks follow.
	Error error
}

// ModelInfo describes one model a provider exposes.
type ModelInfo struct {
	ID          string
	Name        string
	ContextSize int
}

// CollectText drains a completion channel and concatenates the Text of
// every chunk, returning an error if any chunk carries one or if the
// model requested a tool call where none was expected.
func CollectText(ch <-chan *CompletionChunk) (string, Usage, error) {
	var text, usage = "", Usage{}
	for chunk := range ch {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			return "", usage, chunk.Error
		}
		if chunk.ToolCall != nil {
			return "", usage, &UnexpectedToolCallError{ToolName: chunk.ToolCall.Name}
		}
		text += chunk.Text
		if chunk.Done {
			usage = chunk.Usage
			break
		}
	}
	return text, usage, nil
}

// UnexpectedToolCallError is returned by CollectText when a provider
// requests a tool call in a context that only expects text.
type UnexpectedToolCallError struct {
	ToolName string
}

func (e *UnexpectedToolCallError) Error() string {
	return "llm: unexpected tool call requested: " + e.ToolName
}
