// Package runloop drives an agent through a fixed list of queries and
// writes the streamed answers to a console.
package runloop

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/agent"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/pkg/protocol"
)

// Streamer starts a streamed agent run. *agent.Agent implements it.
type Streamer interface {
	RunStreamed(ctx context.Context, input string) *agent.StreamedRun
}

type flusher interface {
	Flush() error
}

// Run processes queries in order, one stream fully drained before the next.
// Only text deltas are written. The first failure stops the loop.
func Run(ctx context.Context, s Streamer, queries []string, out io.Writer) error {
	if err := write(out, "*** Hello!\n"); err != nil {
		return err
	}

	for i, q := range queries {
		if err := write(out, "Running: "+q+"\n"); err != nil {
			return err
		}

		run := s.RunStreamed(ctx, q)
		for ev := range run.Events() {
			if ev.Type != protocol.EventRawTextDelta {
				continue
			}
			if err := write(out, ev.Delta); err != nil {
				run.Cancel()
				for range run.Events() {
				}
				return err
			}
		}
		if err := run.Err(); err != nil {
			return fmt.Errorf("query %d %q: %w", i+1, q, err)
		}
		slog.Debug("query done", "index", i+1, "output_len", len(run.FinalOutput()))

		if err := write(out, "\n\n"); err != nil {
			return err
		}
	}

	return write(out, "*** Bye!\n")
}

// write emits s and flushes so each fragment is visible immediately.
func write(out io.Writer, s string) error {
	if _, err := io.WriteString(out, s); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if f, ok := out.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
	}
	return nil
}
