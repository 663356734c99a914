package otelexport

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing"
)

func TestToTraceID(t *testing.T) {
	tid := toTraceID("trace_0123456789abcdef0123456789abcdef")
	if tid.String() != "0123456789abcdef0123456789abcdef" {
		t.Errorf("expected hex preserved, got %s", tid.String())
	}

	bad := toTraceID("trace_not-hex")
	if bad == (trace.TraceID{}) {
		t.Error("expected random non-zero fallback for malformed id")
	}
}

func TestToSpanID(t *testing.T) {
	sid := toSpanID("span_00000000fedcba9876543210")
	if sid.String() != "fedcba9876543210" {
		t.Errorf("expected last 16 hex digits, got %s", sid.String())
	}
}

func TestRootSpanID(t *testing.T) {
	tid := toTraceID("trace_0123456789abcdef0123456789abcdef")
	sid := rootSpanID(tid)
	for i := 0; i < 8; i++ {
		if sid[i] != tid[8+i] {
			t.Errorf("byte %d: expected %02x, got %02x", i, tid[8+i], sid[i])
		}
	}
}

func TestNew_EmptyEndpoint(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestNew_UnknownProtocol(t *testing.T) {
	if _, err := New(context.Background(), Config{Endpoint: "localhost:4317", Protocol: "kafka"}); err == nil {
		t.Error("expected error for unknown protocol")
	}
}

func TestExporter_NilSafe(t *testing.T) {
	var exp *Exporter
	exp.ExportBatch(context.Background(), tracing.Batch{Spans: []tracing.SpanData{{Type: "function"}}})
	if err := exp.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExporter_PreservesHierarchy(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()
	exp, err := newExporter(context.Background(), "", sdktrace.WithSyncer(mem))
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	start := time.Now().UTC()
	end := start.Add(time.Second)
	traceID := "trace_0123456789abcdef0123456789abcdef"
	agentID := "span_000000000000000000000001"

	exp.ExportBatch(context.Background(), tracing.Batch{
		Traces: []tracing.TraceData{{
			ID: traceID, WorkflowName: "MCP Filesystem and Time Example",
			StartTime: start, EndTime: &end, Status: tracing.StatusCompleted,
		}},
		Spans: []tracing.SpanData{
			{ID: agentID, TraceID: traceID, Type: tracing.SpanTypeAgent, Name: "Assistant",
				StartTime: start, EndTime: &end, Status: tracing.StatusCompleted},
			{ID: "span_000000000000000000000002", TraceID: traceID, ParentID: agentID,
				Type: tracing.SpanTypeFunction, Name: "read_file", ToolName: "read_file",
				StartTime: start, EndTime: &end, Status: tracing.StatusError, Error: "Access denied"},
		},
	})

	spans := mem.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	root, agent, fn := spans[0], spans[1], spans[2]
	if root.Name != "MCP Filesystem and Time Example" {
		t.Errorf("expected workflow root span, got %s", root.Name)
	}
	if root.SpanContext.TraceID().String() != "0123456789abcdef0123456789abcdef" {
		t.Errorf("unexpected trace id %s", root.SpanContext.TraceID())
	}
	if agent.Parent.SpanID() != root.SpanContext.SpanID() {
		t.Error("expected agent span parented to workflow root")
	}
	if fn.Parent.SpanID() != agent.SpanContext.SpanID() {
		t.Error("expected function span parented to agent span")
	}
	if fn.SpanContext.SpanID().String() != "0000000000000002" {
		t.Errorf("expected preserved span id, got %s", fn.SpanContext.SpanID())
	}
	if fn.Status.Description != "Access denied" {
		t.Errorf("expected error status, got %+v", fn.Status)
	}
}
