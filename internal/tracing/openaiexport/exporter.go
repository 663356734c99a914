// Package openaiexport ships traces to the OpenAI traces dashboard so the
// printed "View trace" link resolves.
package openaiexport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing"
)

const (
	ingestPath     = "traces/ingest"
	maxBatchItems  = 100
	requestTimeout = 30 * time.Second
	timeLayout     = "2006-01-02T15:04:05.000000-07:00"
)

type Config struct {
	APIKey       string
	BaseURL      string // API base, e.g. "https://api.openai.com/v1"; empty keeps the SDK default
	Organization string
	Project      string
	MaxRetries   int // 0 keeps the SDK default (2)

	// Options are appended after the ones derived from the fields above.
	Options []option.RequestOption
}

// Exporter implements tracing.SpanExporter against the traces ingest API.
// Requests go through the openai-go client so auth, base URL, org/project
// headers and retries on 429/5xx follow the SDK.
type Exporter struct {
	client openai.Client

	mu   sync.Mutex
	sent map[string]struct{} // trace ids already ingested
}

func New(cfg Config) (*Exporter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai traces: API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHeader("OpenAI-Beta", "traces=v1"),
		option.WithRequestTimeout(requestTimeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.Project != "" {
		opts = append(opts, option.WithProject(cfg.Project))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	opts = append(opts, cfg.Options...)
	return &Exporter{client: openai.NewClient(opts...), sent: make(map[string]struct{})}, nil
}

type ingestRequest struct {
	Data []any `json:"data"`
}

type traceItem struct {
	Object       string            `json:"object"`
	ID           string            `json:"id"`
	WorkflowName string            `json:"workflow_name"`
	GroupID      *string           `json:"group_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type spanItem struct {
	Object    string         `json:"object"`
	ID        string         `json:"id"`
	TraceID   string         `json:"trace_id"`
	ParentID  *string        `json:"parent_id"`
	StartedAt *string        `json:"started_at"`
	EndedAt   *string        `json:"ended_at"`
	SpanData  map[string]any `json:"span_data"`
	Error     *spanError     `json:"error"`
}

type spanError struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ExportBatch posts new traces and all spans. The trace object is sent once
// per trace id; later state changes are carried by its spans.
func (e *Exporter) ExportBatch(ctx context.Context, b tracing.Batch) {
	if e == nil {
		return
	}
	items := e.items(b)
	for start := 0; start < len(items); start += maxBatchItems {
		end := min(start+maxBatchItems, len(items))
		if err := e.post(ctx, items[start:end]); err != nil {
			slog.Warn("openai traces: export failed", "items", end-start, "error", err)
		}
	}
}

func (e *Exporter) items(b tracing.Batch) []any {
	e.mu.Lock()
	defer e.mu.Unlock()

	var items []any
	for _, td := range b.Traces {
		if _, ok := e.sent[td.ID]; ok {
			continue
		}
		e.sent[td.ID] = struct{}{}
		items = append(items, toTraceItem(td))
	}
	for _, s := range b.Spans {
		items = append(items, toSpanItem(s))
	}
	return items
}

func (e *Exporter) post(ctx context.Context, items []any) error {
	if err := e.client.Post(ctx, ingestPath, ingestRequest{Data: items}, nil); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	slog.Debug("openai traces: exported", "items", len(items))
	return nil
}

// Shutdown is a no-op; every batch is sent synchronously.
func (e *Exporter) Shutdown(context.Context) error { return nil }

func toTraceItem(td tracing.TraceData) traceItem {
	item := traceItem{
		Object:       "trace",
		ID:           td.ID,
		WorkflowName: td.WorkflowName,
		Metadata:     td.Metadata,
	}
	if td.GroupID != "" {
		item.GroupID = &td.GroupID
	}
	return item
}

func toSpanItem(s tracing.SpanData) spanItem {
	item := spanItem{
		Object:    "trace.span",
		ID:        s.ID,
		TraceID:   s.TraceID,
		StartedAt: formatTime(&s.StartTime),
		EndedAt:   formatTime(s.EndTime),
		SpanData:  spanData(s),
	}
	if s.ParentID != "" {
		item.ParentID = &s.ParentID
	}
	if s.Status == tracing.StatusError {
		item.Error = &spanError{Message: s.Error}
	}
	return item
}

func spanData(s tracing.SpanData) map[string]any {
	switch s.Type {
	case tracing.SpanTypeAgent:
		tools := s.Tools
		if tools == nil {
			tools = []string{}
		}
		return map[string]any{
			"type":        "agent",
			"name":        s.AgentName,
			"handoffs":    []string{},
			"tools":       tools,
			"output_type": "str",
		}
	case tracing.SpanTypeGeneration:
		data := map[string]any{
			"type":         "generation",
			"model":        s.Model,
			"model_config": map[string]any{"provider": s.Provider},
			"usage": map[string]int{
				"input_tokens":  s.InputTokens,
				"output_tokens": s.OutputTokens,
			},
		}
		if s.InputPreview != "" {
			data["input"] = []map[string]string{{"role": "user", "content": s.InputPreview}}
		}
		if s.OutputPreview != "" {
			data["output"] = []map[string]string{{"role": "assistant", "content": s.OutputPreview}}
		}
		return data
	case tracing.SpanTypeFunction:
		data := map[string]any{
			"type":   "function",
			"name":   s.ToolName,
			"input":  s.InputPreview,
			"output": s.OutputPreview,
		}
		if s.ServerName != "" {
			data["mcp_data"] = map[string]string{"server": s.ServerName}
		}
		return data
	case tracing.SpanTypeMCPTools:
		result := s.Tools
		if result == nil {
			result = []string{}
		}
		return map[string]any{
			"type":   "mcp_tools",
			"server": s.ServerName,
			"result": result,
		}
	}
	return map[string]any{"type": "custom", "name": s.Name, "data": map[string]any{}}
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}
