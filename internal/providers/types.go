package providers

import "context"

// Provider is the interface every LLM backend implements.
type Provider interface {
	// Chat sends a request and waits for the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends a request and invokes onChunk for every incremental
	// text fragment as it arrives. The returned response carries the
	// aggregated content and any tool calls of the turn.
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)

	DefaultModel() string
	Name() string
}

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"` // tool messages only
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	// RawArguments is the JSON the model produced. Arguments is nil when
	// it could not be decoded.
	RawArguments string `json:"raw_arguments,omitempty"`
}

// ToolDefinition describes a callable tool in the OpenAI function format.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the function part of a ToolDefinition.
type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ChatRequest is the provider-neutral request of a single model turn.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	Temperature float64 // 0 = provider default
	MaxTokens   int     // 0 = provider default
}

// ChatResponse is the aggregated result of one model turn.
type ChatResponse struct {
	Content      string     `json:"content"`
	Thinking     string     `json:"thinking,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Usage        *Usage     `json:"usage,omitempty"`
}

// Usage reports token accounting for one turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is an incremental piece of a streamed turn.
type StreamChunk struct {
	Content  string
	Thinking string
	Done     bool
}
