package tracing

import (
	"context"
	"time"
)

// Trace is an open workflow scope. A nil collector yields a Trace that
// still carries its id but records nothing.
type Trace struct {
	ID       string
	Workflow string

	collector *Collector
	finished  bool
}

// TraceOption sets optional trace fields.
type TraceOption func(*TraceData)

// WithGroupID links traces of the same conversation or session.
func WithGroupID(id string) TraceOption {
	return func(td *TraceData) { td.GroupID = id }
}

func WithMetadata(md map[string]string) TraceOption {
	return func(td *TraceData) { td.Metadata = md }
}

// Start opens a trace scope and returns a ctx carrying the collector and
// trace id. An empty traceID generates one.
func Start(ctx context.Context, c *Collector, workflow, traceID string, opts ...TraceOption) (context.Context, *Trace) {
	if traceID == "" {
		traceID = GenTraceID()
	}
	t := &Trace{ID: traceID, Workflow: workflow, collector: c}
	if c != nil {
		td := TraceData{ID: traceID, WorkflowName: workflow}
		for _, opt := range opts {
			opt(&td)
		}
		c.StartTrace(td)
		ctx = WithCollector(ctx, c)
	}
	return WithTraceID(ctx, traceID), t
}

// Finish closes the scope. Only the first call has an effect.
func (t *Trace) Finish(err error) {
	if t == nil || t.finished {
		return
	}
	t.finished = true
	if t.collector == nil {
		return
	}
	if err != nil {
		t.collector.FinishTrace(t.ID, StatusError, err.Error(), "")
		return
	}
	t.collector.FinishTrace(t.ID, StatusCompleted, "", "")
}

// Span is an in-flight span. Fill Data before calling End.
type Span struct {
	Data      SpanData
	collector *Collector
}

// StartSpan opens a child span of the span in ctx (if any). The returned
// ctx makes the new span the parent of spans started from it.
func StartSpan(ctx context.Context, spanType, name string) (context.Context, *Span) {
	c := CollectorFromContext(ctx)
	s := &Span{
		collector: c,
		Data: SpanData{
			ID:        GenSpanID(),
			TraceID:   TraceIDFromContext(ctx),
			ParentID:  ParentSpanIDFromContext(ctx),
			Type:      spanType,
			Name:      name,
			StartTime: time.Now().UTC(),
		},
	}
	if c == nil {
		return ctx, s
	}
	return WithParentSpanID(ctx, s.Data.ID), s
}

// Verbose reports whether the span's collector records full inputs.
func (s *Span) Verbose() bool { return s.collector.Verbose() }

// End finishes the span and hands it to the collector.
func (s *Span) End(err error) {
	if s.collector == nil {
		return
	}
	now := time.Now().UTC()
	s.Data.EndTime = &now
	s.Data.Status = StatusCompleted
	if err != nil {
		s.Data.Status = StatusError
		s.Data.Error = err.Error()
	}
	s.collector.EmitSpan(s.Data)
}
