package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/providers"
)

// Registry holds the tools visible to one agent run. Registration order is
// preserved so the tool list sent to the model is stable across turns.
type Registry struct {
	tools     map[string]Tool
	order     []string
	mu        sync.RWMutex
	scrubbing bool // scrub credentials from output (default true)
}

func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		scrubbing: true,
	}
}

// SetScrubbing enables or disables credential scrubbing on tool output.
func (r *Registry) SetScrubbing(enabled bool) {
	r.scrubbing = enabled
}

// Register adds a tool. A tool with the same name replaces the previous one
// in place.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute runs a tool by name. Unknown tools yield an error result, never a
// Go error, so the model can recover from a hallucinated name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return ErrorResult("unknown tool: " + name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	start := time.Now()
	result := tool.Execute(ctx, args)
	if result == nil {
		result = NewResult("")
	}
	duration := time.Since(start)

	if r.scrubbing && result.ForLLM != "" {
		result.ForLLM = ScrubCredentials(result.ForLLM)
	}

	slog.Debug("tool executed",
		"tool", name,
		"duration_ms", duration.Milliseconds(),
		"is_error", result.IsError,
	)

	return result
}

// ProviderDefs returns tool definitions for LLM provider APIs.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, ToProviderDef(r.tools[name]))
	}
	return defs
}

// List returns all registered tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
