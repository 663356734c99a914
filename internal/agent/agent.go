package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/providers"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tools"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/pkg/protocol"
)

const defaultMaxTurns = 10

// Config describes an agent. Sources must be connected before the first run.
type Config struct {
	Name         string
	Instructions string
	Provider     providers.Provider
	Model        string // empty = provider default
	Temperature  float64
	MaxTokens    int
	MaxTurns     int // default 10
	Sources      []ToolSource
	Guard        *ContentGuard // nil disables scanning of tool output

	// ScrubToolOutput redacts credentials from tool output. Nil means true.
	ScrubToolOutput *bool
}

// Agent runs a tool-calling loop against one provider. It is immutable
// after New and safe to reuse across sequential runs.
type Agent struct {
	cfg     Config
	running atomic.Int32
}

func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agent %q: provider is required", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = "Assistant"
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	cfg.Sources = append([]ToolSource(nil), cfg.Sources...)
	return &Agent{cfg: cfg}, nil
}

func (a *Agent) Name() string { return a.cfg.Name }

func (a *Agent) Model() string {
	if a.cfg.Model != "" {
		return a.cfg.Model
	}
	return a.cfg.Provider.DefaultModel()
}

func (a *Agent) IsRunning() bool { return a.running.Load() > 0 }

// Run executes the agent to completion without streaming. Model turns go
// through Provider.Chat.
func (a *Agent) Run(ctx context.Context, input string) (*RunResult, error) {
	return a.execute(ctx, input, nil)
}

// RunStreamed returns a lazy stream of the run's events. Model turns go
// through Provider.ChatStream.
func (a *Agent) RunStreamed(ctx context.Context, input string) *StreamedRun {
	return NewStreamedRun(ctx, func(ctx context.Context, emit func(StreamEvent)) (*RunResult, error) {
		return a.execute(ctx, input, emit)
	})
}

// execute runs the tool loop. A nil sink means a non-streaming run.
func (a *Agent) execute(ctx context.Context, input string, sink func(StreamEvent)) (result *RunResult, err error) {
	a.running.Add(1)
	defer a.running.Add(-1)

	streaming := sink != nil
	emit := func(ev StreamEvent) {
		if sink != nil {
			sink(ev)
		}
	}

	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracing.SpanTypeAgent, a.cfg.Name)
	span.Data.AgentName = a.cfg.Name
	defer func() {
		span.End(err)
		if err != nil {
			emit(StreamEvent{Type: protocol.EventRunFailed, Err: err})
		}
	}()

	reg, err := a.collectTools(ctx, emit)
	if err != nil {
		return nil, err
	}
	span.Data.Tools = reg.List()
	emit(StreamEvent{Type: protocol.EventAgentUpdated, Agent: a.cfg.Name, Tools: reg.List()})

	defs := providers.CleanToolSchemas(a.cfg.Provider.Name(), reg.ProviderDefs())
	messages := a.initialMessages(input)
	result = &RunResult{}

	for turn := 1; turn <= a.cfg.MaxTurns; turn++ {
		result.Turns = turn
		resp, err := a.generate(ctx, messages, defs, streaming, emit)
		if err != nil {
			return nil, err
		}
		addUsage(&result.Usage, resp.Usage)

		if len(resp.ToolCalls) == 0 {
			result.FinalOutput = resp.Content
			slog.Debug("agent run completed",
				"agent", a.cfg.Name,
				"turns", turn,
				"tool_calls", len(result.ToolCalls),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			emit(StreamEvent{Type: protocol.EventRunCompleted, Final: resp.Content})
			return result, nil
		}

		messages = append(messages, providers.Message{
			Role:      protocol.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			emit(StreamEvent{
				Type:       protocol.EventToolCall,
				ToolName:   tc.Name,
				ToolCallID: tc.ID,
				Arguments:  tc.RawArguments,
			})
			rec, res := a.callTool(ctx, reg, tc)
			result.ToolCalls = append(result.ToolCalls, rec)
			emit(StreamEvent{
				Type:       protocol.EventToolResult,
				ToolName:   tc.Name,
				ToolCallID: tc.ID,
				Output:     res.ForLLM,
				IsError:    res.IsError,
			})
			messages = append(messages, providers.Message{
				Role:       protocol.RoleTool,
				Content:    res.ForLLM,
				ToolCallID: tc.ID,
				IsError:    res.IsError,
			})
		}
	}
	return nil, fmt.Errorf("agent %q: %w (%d)", a.cfg.Name, ErrMaxTurnsExceeded, a.cfg.MaxTurns)
}

func (a *Agent) initialMessages(input string) []providers.Message {
	var msgs []providers.Message
	if a.cfg.Instructions != "" {
		msgs = append(msgs, providers.Message{Role: protocol.RoleSystem, Content: a.cfg.Instructions})
	}
	return append(msgs, providers.Message{Role: protocol.RoleUser, Content: input})
}

// collectTools lists every source's tools into a fresh registry and emits
// one tools.listed event per source. A name offered by two sources is an
// error.
func (a *Agent) collectTools(ctx context.Context, emit func(StreamEvent)) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	if a.cfg.ScrubToolOutput != nil {
		reg.SetScrubbing(*a.cfg.ScrubToolOutput)
	}
	owners := make(map[string]string)

	for _, src := range a.cfg.Sources {
		_, span := tracing.StartSpan(ctx, tracing.SpanTypeMCPTools, "mcp_tools: "+src.Name())
		span.Data.ServerName = src.Name()

		listed, err := src.Tools(ctx)
		if err != nil {
			span.End(err)
			return nil, fmt.Errorf("list tools from %q: %w", src.Name(), err)
		}
		names := make([]string, 0, len(listed))
		for _, t := range listed {
			if owner, dup := owners[t.Name()]; dup {
				derr := &DuplicateToolError{Name: t.Name(), First: owner, Second: src.Name()}
				span.End(derr)
				return nil, derr
			}
			owners[t.Name()] = src.Name()
			reg.Register(t)
			names = append(names, t.Name())
		}
		span.Data.Tools = names
		span.End(nil)
		emit(StreamEvent{Type: protocol.EventToolsListed, Server: src.Name(), Tools: names})
	}
	return reg, nil
}

// generate runs one model turn. When streaming, text deltas are forwarded
// as events.
func (a *Agent) generate(ctx context.Context, messages []providers.Message, defs []providers.ToolDefinition, streaming bool, emit func(StreamEvent)) (*providers.ChatResponse, error) {
	model := a.Model()
	_, span := tracing.StartSpan(ctx, tracing.SpanTypeGeneration, model)
	span.Data.Model = model
	span.Data.Provider = a.cfg.Provider.Name()
	span.Data.InputPreview = generationInput(messages, span.Verbose())

	req := providers.ChatRequest{
		Messages:    messages,
		Tools:       defs,
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	var resp *providers.ChatResponse
	var err error
	if streaming {
		resp, err = a.cfg.Provider.ChatStream(ctx, req, func(chunk providers.StreamChunk) {
			if chunk.Content != "" {
				emit(StreamEvent{Type: protocol.EventRawTextDelta, Delta: chunk.Content})
			}
			if chunk.Thinking != "" {
				emit(StreamEvent{Type: protocol.EventThinkingDelta, Delta: chunk.Thinking})
			}
		})
	} else {
		resp, err = a.cfg.Provider.Chat(ctx, req)
	}
	if err != nil {
		span.End(err)
		return nil, fmt.Errorf("agent %q: model turn: %w", a.cfg.Name, err)
	}

	if resp.Usage != nil {
		span.Data.InputTokens = resp.Usage.PromptTokens
		span.Data.OutputTokens = resp.Usage.CompletionTokens
	}
	span.Data.FinishReason = resp.FinishReason
	span.Data.OutputPreview = resp.Content
	span.End(nil)
	return resp, nil
}

// callTool executes one tool call. Failures become error results for the
// model; they never abort the run.
func (a *Agent) callTool(ctx context.Context, reg *tools.Registry, tc providers.ToolCall) (ToolCallRecord, *tools.Result) {
	_, span := tracing.StartSpan(ctx, tracing.SpanTypeFunction, tc.Name)
	span.Data.ToolName = tc.Name
	span.Data.ToolCallID = tc.ID
	span.Data.InputPreview = tc.RawArguments

	rec := ToolCallRecord{Name: tc.Name, Arguments: tc.RawArguments}
	if t, ok := reg.Get(tc.Name); ok {
		if st, ok := t.(tools.SourcedTool); ok {
			rec.Server = st.ServerName()
			span.Data.ServerName = rec.Server
		}
	}

	var res *tools.Result
	if tc.Arguments == nil {
		res = tools.ErrorResult(fmt.Sprintf("invalid JSON arguments for tool %q", tc.Name))
	} else {
		res = reg.Execute(ctx, tc.Name, tc.Arguments)
	}
	if res.Err != nil {
		slog.Warn("agent: tool call failed", "tool", tc.Name, "server", rec.Server, "error", res.Err)
	}
	a.cfg.Guard.Inspect(tc.Name, res.ForLLM)

	rec.Output = res.ForLLM
	rec.IsError = res.IsError
	span.Data.OutputPreview = res.ForLLM
	if res.IsError {
		span.End(errors.New(res.ForLLM))
	} else {
		span.End(nil)
	}
	return rec, res
}

// generationInput renders the span input: the whole conversation when
// verbose, otherwise the latest message.
func generationInput(messages []providers.Message, verbose bool) string {
	if len(messages) == 0 {
		return ""
	}
	if !verbose {
		return messages[len(messages)-1].Content
	}
	b, err := json.Marshal(messages)
	if err != nil {
		return messages[len(messages)-1].Content
	}
	return string(b)
}

func addUsage(total *providers.Usage, u *providers.Usage) {
	if u == nil {
		return
	}
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
