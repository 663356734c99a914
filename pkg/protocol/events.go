// Package protocol holds the event names shared between the agent runner
// and its consumers.
package protocol

// Stream event types (StreamEvent.Type).
const (
	EventRawTextDelta  = "raw_response.text_delta"
	EventThinkingDelta = "raw_response.thinking_delta"
	EventAgentUpdated  = "agent.updated"
	EventToolsListed   = "tools.listed"
	EventToolCall      = "tool.call"
	EventToolResult    = "tool.result"
	EventRunCompleted  = "run.completed"
	EventRunFailed     = "run.failed"
)

// Message roles used in provider-neutral conversations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)
