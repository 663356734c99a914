package tracing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultBufferSize    = 1000
	previewMaxLen        = 500
)

// Batch is one flush worth of trace data. Traces holds every trace whose
// state changed since the previous flush.
type Batch struct {
	Traces []TraceData
	Spans  []SpanData
}

// SpanExporter is implemented by backends that receive flushed batches
// (OpenAI traces ingest, OpenTelemetry OTLP). Export errors are logged by
// the exporter and never propagated.
type SpanExporter interface {
	ExportBatch(ctx context.Context, b Batch)
	Shutdown(ctx context.Context) error
}

// Collector buffers spans in memory and periodically pushes them to the
// attached exporters. Traces are registered synchronously (one per
// workflow), spans are buffered.
type Collector struct {
	spanCh chan SpanData
	stopCh chan struct{}
	wg     sync.WaitGroup

	tracesMu sync.Mutex
	traces   map[string]*TraceData
	dirty    map[string]struct{}

	flushMu       sync.Mutex
	flushInterval time.Duration
	startOnce     sync.Once
	stopOnce      sync.Once
	started       bool

	verbose   bool // when true, generation spans carry full input
	exporters []SpanExporter
}

// NewCollector creates a collector with no exporters attached.
func NewCollector(verbose bool) *Collector {
	if verbose {
		slog.Info("tracing: verbose mode enabled")
	}
	return &Collector{
		spanCh:        make(chan SpanData, defaultBufferSize),
		stopCh:        make(chan struct{}),
		traces:        make(map[string]*TraceData),
		dirty:         make(map[string]struct{}),
		flushInterval: defaultFlushInterval,
		verbose:       verbose,
	}
}

// Verbose returns true if generation spans include the full model input.
func (c *Collector) Verbose() bool { return c != nil && c.verbose }

// AddExporter attaches an exporter. Call before Start.
func (c *Collector) AddExporter(exp SpanExporter) {
	if exp != nil {
		c.exporters = append(c.exporters, exp)
	}
}

// Start begins the background flush loop.
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		c.started = true
		c.wg.Add(1)
		go c.flushLoop()
		slog.Debug("tracing collector started", "exporters", len(c.exporters))
	})
}

// Stop flushes remaining data and shuts the exporters down.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.wg.Wait()
		if !c.started {
			c.Flush()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, exp := range c.exporters {
			if err := exp.Shutdown(ctx); err != nil {
				slog.Warn("tracing: span exporter shutdown failed", "error", err)
			}
		}
		slog.Debug("tracing collector stopped")
	})
}

// StartTrace registers a new trace.
func (c *Collector) StartTrace(td TraceData) {
	if td.StartTime.IsZero() {
		td.StartTime = time.Now().UTC()
	}
	if td.Status == "" {
		td.Status = StatusRunning
	}
	c.tracesMu.Lock()
	c.traces[td.ID] = &td
	c.dirty[td.ID] = struct{}{}
	c.tracesMu.Unlock()
}

// FinishTrace marks a trace as completed or failed.
func (c *Collector) FinishTrace(traceID, status, errMsg, outputPreview string) {
	c.tracesMu.Lock()
	defer c.tracesMu.Unlock()

	td, ok := c.traces[traceID]
	if !ok {
		slog.Warn("tracing: finish for unknown trace", "trace_id", traceID)
		return
	}
	now := time.Now().UTC()
	td.EndTime = &now
	td.Status = status
	td.Error = errMsg
	if outputPreview != "" {
		td.OutputPreview = truncatePreview(outputPreview)
	}
	c.dirty[traceID] = struct{}{}
}

// Trace returns a snapshot of a registered trace.
func (c *Collector) Trace(traceID string) (TraceData, bool) {
	c.tracesMu.Lock()
	defer c.tracesMu.Unlock()
	td, ok := c.traces[traceID]
	if !ok {
		return TraceData{}, false
	}
	return *td, true
}

// EmitSpan enqueues a finished span.
// Non-blocking: drops the span if the buffer is full.
func (c *Collector) EmitSpan(span SpanData) {
	if span.ID == "" {
		span.ID = GenSpanID()
	}
	if span.StartTime.IsZero() {
		span.StartTime = time.Now().UTC()
	}
	span.InputPreview = truncatePreview(span.InputPreview)
	span.OutputPreview = truncatePreview(span.OutputPreview)

	select {
	case c.spanCh <- span:
	default:
		slog.Warn("tracing: span buffer full, dropping span",
			"span_type", span.Type, "name", span.Name)
	}
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-c.stopCh:
			c.Flush()
			return
		}
	}
}

// Flush pushes buffered spans and changed traces to every exporter.
func (c *Collector) Flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	var b Batch
drain:
	for {
		select {
		case span := <-c.spanCh:
			b.Spans = append(b.Spans, span)
		default:
			break drain
		}
	}

	c.tracesMu.Lock()
	for id := range c.dirty {
		if td, ok := c.traces[id]; ok {
			b.Traces = append(b.Traces, *td)
		}
	}
	c.dirty = make(map[string]struct{})
	c.tracesMu.Unlock()

	if len(b.Spans) == 0 && len(b.Traces) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, exp := range c.exporters {
		exp.ExportBatch(ctx, b)
	}
	slog.Debug("tracing: flushed", "traces", len(b.Traces), "spans", len(b.Spans))
}

// truncatePreview sanitizes and truncates a string to previewMaxLen bytes.
func truncatePreview(s string) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= previewMaxLen {
		return s
	}
	maxLen := previewMaxLen
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
