package otelexport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing"
)

const defaultServiceName = "mcpdemo"

// Config configures the OpenTelemetry OTLP exporter.
type Config struct {
	Endpoint    string            // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            // "grpc" (default) or "http"
	Insecure    bool              // skip TLS for local dev
	ServiceName string            // OTEL service name (default "mcpdemo")
	Headers     map[string]string // extra headers (auth tokens, etc.)
}

// Exporter converts tracing batches to OTel spans and exports via OTLP.
// It implements tracing.SpanExporter. Span and trace ids are preserved so
// the hierarchy matches the one shown on the OpenAI dashboard.
type Exporter struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// New creates an OTLP exporter with the given config.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	case "", "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	return newExporter(ctx, cfg.ServiceName, sdktrace.WithBatcher(exporter,
		sdktrace.WithMaxExportBatchSize(100),
		sdktrace.WithBatchTimeout(5*time.Second),
	))
}

func newExporter(ctx context.Context, serviceName string, processor sdktrace.TracerProviderOption) (*Exporter, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("0.1.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(presetIDs{}),
	)
	return &Exporter{
		provider: tp,
		tracer:   tp.Tracer("mcpdemo"),
	}, nil
}

// ExportBatch converts spans and finished traces to OTel spans. Each
// finished trace becomes a root span that parentless spans hang off.
func (e *Exporter) ExportBatch(ctx context.Context, b tracing.Batch) {
	if e == nil {
		return
	}
	for _, td := range b.Traces {
		if td.EndTime != nil {
			e.exportTrace(ctx, td)
		}
	}
	for _, s := range b.Spans {
		e.exportSpan(ctx, s)
	}
}

func (e *Exporter) exportTrace(ctx context.Context, td tracing.TraceData) {
	traceID := toTraceID(td.ID)
	ctx = withIDs(ctx, traceID, rootSpanID(traceID))

	attrs := []attribute.KeyValue{
		attribute.String("mcpdemo.workflow", td.WorkflowName),
		attribute.String("mcpdemo.trace_id", td.ID),
	}
	if td.GroupID != "" {
		attrs = append(attrs, attribute.String("mcpdemo.group_id", td.GroupID))
	}
	for k, v := range td.Metadata {
		attrs = append(attrs, attribute.String("mcpdemo.metadata."+k, v))
	}

	_, span := e.tracer.Start(ctx, td.WorkflowName,
		trace.WithNewRoot(),
		trace.WithTimestamp(td.StartTime),
		trace.WithAttributes(attrs...),
	)
	setStatus(span, td.Status, td.Error)
	span.End(trace.WithTimestamp(*td.EndTime))
}

func (e *Exporter) exportSpan(ctx context.Context, s tracing.SpanData) {
	traceID := toTraceID(s.TraceID)
	parentID := rootSpanID(traceID)
	if s.ParentID != "" {
		parentID = toSpanID(s.ParentID)
	}

	parentCtx := trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     parentID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	parentCtx = withIDs(parentCtx, traceID, toSpanID(s.ID))

	attrs := []attribute.KeyValue{
		attribute.String("mcpdemo.span_type", s.Type),
		attribute.String("mcpdemo.span_id", s.ID),
	}
	if s.AgentName != "" {
		attrs = append(attrs, attribute.String("gen_ai.agent.name", s.AgentName))
	}
	if len(s.Tools) > 0 {
		attrs = append(attrs, attribute.StringSlice("mcpdemo.tools", s.Tools))
	}
	if s.Model != "" {
		attrs = append(attrs, attribute.String("gen_ai.request.model", s.Model))
	}
	if s.Provider != "" {
		attrs = append(attrs, attribute.String("gen_ai.system", s.Provider))
	}
	if s.InputTokens > 0 {
		attrs = append(attrs, attribute.Int("gen_ai.usage.input_tokens", s.InputTokens))
	}
	if s.OutputTokens > 0 {
		attrs = append(attrs, attribute.Int("gen_ai.usage.output_tokens", s.OutputTokens))
	}
	if s.FinishReason != "" {
		attrs = append(attrs, attribute.String("gen_ai.response.finish_reason", s.FinishReason))
	}
	if s.ToolName != "" {
		attrs = append(attrs, attribute.String("mcpdemo.tool.name", s.ToolName))
	}
	if s.ToolCallID != "" {
		attrs = append(attrs, attribute.String("mcpdemo.tool.call_id", s.ToolCallID))
	}
	if s.ServerName != "" {
		attrs = append(attrs, attribute.String("mcpdemo.mcp.server", s.ServerName))
	}
	if s.InputPreview != "" {
		attrs = append(attrs, attribute.String("mcpdemo.input_preview", s.InputPreview))
	}
	if s.OutputPreview != "" {
		attrs = append(attrs, attribute.String("mcpdemo.output_preview", s.OutputPreview))
	}

	kind := trace.SpanKindInternal
	switch s.Type {
	case tracing.SpanTypeGeneration, tracing.SpanTypeMCPTools:
		kind = trace.SpanKindClient
	}

	_, span := e.tracer.Start(parentCtx, s.Name,
		trace.WithTimestamp(s.StartTime),
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	setStatus(span, s.Status, s.Error)

	endTime := s.StartTime
	if s.EndTime != nil {
		endTime = *s.EndTime
	}
	span.End(trace.WithTimestamp(endTime))
}

func setStatus(span trace.Span, status, errMsg string) {
	if status == tracing.StatusError {
		span.SetStatus(codes.Error, errMsg)
		if errMsg != "" {
			span.RecordError(fmt.Errorf("%s", errMsg))
		}
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Shutdown flushes remaining spans and stops the provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	slog.Debug("otel exporter shutting down")
	return e.provider.Shutdown(ctx)
}

// toTraceID decodes "trace_<32 hex>" into an OTel TraceID. Ids that do
// not decode fall back to random bytes.
func toTraceID(id string) trace.TraceID {
	var tid trace.TraceID
	decodeHexID(strings.TrimPrefix(id, "trace_"), tid[:])
	return tid
}

// toSpanID decodes the last 16 hex digits of "span_<24 hex>".
func toSpanID(id string) trace.SpanID {
	var sid trace.SpanID
	h := strings.TrimPrefix(id, "span_")
	if len(h) > 16 {
		h = h[len(h)-16:]
	}
	decodeHexID(h, sid[:])
	return sid
}

// rootSpanID derives the workflow span id from the last 8 bytes of the trace id.
func rootSpanID(tid trace.TraceID) trace.SpanID {
	var sid trace.SpanID
	copy(sid[:], tid[8:16])
	return sid
}

func decodeHexID(h string, dst []byte) {
	b, err := hex.DecodeString(h)
	if err != nil || len(b) != len(dst) {
		_, _ = rand.Read(dst)
		return
	}
	copy(dst, b)
}

type idsKey struct{}

type presetIDPair struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

func withIDs(ctx context.Context, traceID trace.TraceID, spanID trace.SpanID) context.Context {
	return context.WithValue(ctx, idsKey{}, presetIDPair{traceID: traceID, spanID: spanID})
}

// presetIDs is an sdktrace.IDGenerator that hands out the ids placed in
// ctx by withIDs, so exported spans keep their original identity.
type presetIDs struct{}

func (presetIDs) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if p, ok := ctx.Value(idsKey{}).(presetIDPair); ok {
		return p.traceID, p.spanID
	}
	var tid trace.TraceID
	var sid trace.SpanID
	_, _ = rand.Read(tid[:])
	_, _ = rand.Read(sid[:])
	return tid, sid
}

func (presetIDs) NewSpanID(ctx context.Context, _ trace.TraceID) trace.SpanID {
	if p, ok := ctx.Value(idsKey{}).(presetIDPair); ok {
		return p.spanID
	}
	var sid trace.SpanID
	_, _ = rand.Read(sid[:])
	return sid
}
