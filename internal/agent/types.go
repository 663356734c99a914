package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/providers"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tools"
)

// ToolSource supplies tools for a run. *mcp.Server implements it.
type ToolSource interface {
	Name() string
	Tools(ctx context.Context) ([]tools.Tool, error)
}

// StreamEvent is one item of a streamed run. Type is one of the
// protocol.Event* constants; only the fields for that type are set.
type StreamEvent struct {
	Type       string
	Delta      string // raw_response.text_delta, raw_response.thinking_delta
	Agent      string // agent.updated
	Server     string // tools.listed
	Tools      []string
	ToolName   string // tool.call, tool.result
	ToolCallID string
	Arguments  string
	Output     string
	IsError    bool
	Final      string // run.completed
	Err        error  // run.failed
}

// ToolCallRecord summarizes one executed tool call.
type ToolCallRecord struct {
	Name      string
	Server    string
	Arguments string
	Output    string
	IsError   bool
}

// RunResult is the outcome of one agent run.
type RunResult struct {
	FinalOutput string
	Turns       int
	ToolCalls   []ToolCallRecord
	Usage       providers.Usage
}

// ErrMaxTurnsExceeded is returned when the model keeps requesting tools
// past the configured turn limit.
var ErrMaxTurnsExceeded = errors.New("max turns exceeded")

// DuplicateToolError reports a tool name advertised by two sources.
type DuplicateToolError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("duplicate tool name %q from %q and %q", e.Name, e.First, e.Second)
}
