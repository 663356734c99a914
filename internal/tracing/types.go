package tracing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Span types, named after the OpenAI traces dashboard categories.
const (
	SpanTypeAgent      = "agent"
	SpanTypeGeneration = "generation"
	SpanTypeFunction   = "function"
	SpanTypeMCPTools   = "mcp_tools"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// TraceData is one workflow-level trace.
type TraceData struct {
	ID            string
	WorkflowName  string
	GroupID       string
	Metadata      map[string]string
	StartTime     time.Time
	EndTime       *time.Time
	Status        string
	Error         string
	OutputPreview string
}

// SpanData is a single finished unit of work inside a trace. Only the fields
// relevant to the span Type are set.
type SpanData struct {
	ID        string
	TraceID   string
	ParentID  string
	Type      string
	Name      string
	StartTime time.Time
	EndTime   *time.Time
	Status    string
	Error     string

	// agent
	AgentName string
	Tools     []string // agent tool names, or mcp_tools listing result

	// generation
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
	FinishReason string

	// function
	ToolName   string
	ToolCallID string
	ServerName string // also set on mcp_tools spans

	InputPreview  string
	OutputPreview string
}

// Duration returns the span duration, zero while unfinished.
func (s SpanData) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// GenTraceID returns a new trace id in the "trace_<32 hex>" form.
func GenTraceID() string {
	return "trace_" + hexID()
}

// GenSpanID returns a new span id in the "span_<24 hex>" form.
func GenSpanID() string {
	return "span_" + hexID()[:24]
}

func hexID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// TraceURL is the dashboard link for a trace id.
func TraceURL(traceID string) string {
	return "https://platform.openai.com/traces/trace?trace_id=" + traceID
}
