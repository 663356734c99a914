package agent

import (
	"context"
	"sync"
)

// StreamedRun is a lazily started, single-pass stream of run events.
// Work begins on the first call to Events. Err, FinalOutput and Result are
// valid once the events channel has been closed.
type StreamedRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	produce func(ctx context.Context, emit func(StreamEvent)) (*RunResult, error)

	once   sync.Once
	events chan StreamEvent
	result *RunResult
	err    error
}

// NewStreamedRun wraps produce. produce must call emit from its own
// goroutine only.
func NewStreamedRun(ctx context.Context, produce func(ctx context.Context, emit func(StreamEvent)) (*RunResult, error)) *StreamedRun {
	ctx, cancel := context.WithCancel(ctx)
	return &StreamedRun{
		ctx:     ctx,
		cancel:  cancel,
		produce: produce,
		events:  make(chan StreamEvent),
	}
}

// Events starts the run (once) and returns the event channel. The channel
// is closed when the run ends.
func (r *StreamedRun) Events() <-chan StreamEvent {
	r.once.Do(func() {
		go func() {
			defer r.cancel()
			defer close(r.events)
			r.result, r.err = r.produce(r.ctx, r.emit)
		}()
	})
	return r.events
}

func (r *StreamedRun) emit(ev StreamEvent) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// Cancel stops a run whose events are no longer consumed.
func (r *StreamedRun) Cancel() { r.cancel() }

// Err returns the error that ended the run, if any.
func (r *StreamedRun) Err() error { return r.err }

// FinalOutput returns the final text of the run.
func (r *StreamedRun) FinalOutput() string {
	if r.result == nil {
		return ""
	}
	return r.result.FinalOutput
}

func (r *StreamedRun) Result() *RunResult { return r.result }
