package tracing

import "context"

type ctxKey int

const (
	collectorKey ctxKey = iota
	traceIDKey
	parentSpanIDKey
)

// WithCollector attaches a collector to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey, c)
}

// CollectorFromContext returns the collector in ctx, or nil when tracing is off.
func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey).(*Collector)
	return c
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// WithParentSpanID makes spanID the parent of spans emitted under ctx.
func WithParentSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, parentSpanIDKey, spanID)
}

func ParentSpanIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(parentSpanIDKey).(string)
	return id
}
