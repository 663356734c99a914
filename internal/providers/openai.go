package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openAIDefaultModel = "gpt-4o"
)

// OpenAIProvider talks to the OpenAI Chat Completions API (or any
// compatible endpoint when apiBase is set).
type OpenAIProvider struct {
	name         string
	client       openai.Client
	defaultModel string
}

// NewOpenAIProvider creates a provider. An empty apiBase keeps the SDK default.
func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	if name == "" {
		name = "openai"
	}
	if defaultModel == "" {
		defaultModel = openAIDefaultModel
	}
	return &OpenAIProvider{
		name:         name,
		client:       openai.NewClient(opts...),
		defaultModel: defaultModel,
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Chat performs a non-streaming completion.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	params := p.buildParams(req)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices returned", p.name)
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, newToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	return out, nil
}

// toolCallAcc aggregates partial tool call deltas of a streamed turn.
type toolCallAcc struct{ id, name, args string }

// ChatStream performs a streaming completion. Text deltas are forwarded to
// onChunk in arrival order; tool call fragments are aggregated by index.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	params := p.buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var content strings.Builder
	calls := map[int64]*toolCallAcc{}
	out := &ChatResponse{}

	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			out.Usage = &Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content != "" {
				content.WriteString(ch.Delta.Content)
				if onChunk != nil {
					onChunk(StreamChunk{Content: ch.Delta.Content})
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				acc, ok := calls[tc.Index]
				if !ok {
					acc = &toolCallAcc{}
					calls[tc.Index] = acc
				}
				if tc.ID != "" {
					acc.id = tc.ID
				}
				if tc.Function.Name != "" {
					acc.name = tc.Function.Name
				}
				acc.args += tc.Function.Arguments
			}
			if ch.FinishReason != "" {
				out.FinishReason = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%s: stream: %w", p.name, err)
	}

	out.Content = content.String()
	out.ToolCalls = orderedToolCalls(calls)
	if onChunk != nil {
		onChunk(StreamChunk{Done: true})
	}
	return out, nil
}

func orderedToolCalls(calls map[int64]*toolCallAcc) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	idx := make([]int64, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })

	out := make([]ToolCall, 0, len(idx))
	for _, i := range idx {
		acc := calls[i]
		out = append(out, newToolCall(acc.id, acc.name, acc.args))
	}
	return out
}

func (p *OpenAIProvider) buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: buildOpenAIMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Function.Name,
					Description: openai.String(t.Function.Description),
					Parameters:  openai.FunctionParameters(t.Function.Parameters),
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// buildOpenAIMessages converts provider-neutral messages into SDK params.
// Assistant messages that requested tools carry their tool calls so the
// following tool messages can be matched by id.
func buildOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "user":
			out = append(out, openai.UserMessage(m.Content))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: toolCallArguments(tc),
					},
				}
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: calls,
			}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case "tool":
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			slog.Debug("openai: skipping message with unknown role", "role", m.Role)
		}
	}
	return out
}

// toolCallArguments returns the JSON arguments to echo back to the model.
func toolCallArguments(tc ToolCall) string {
	if tc.RawArguments != "" {
		return tc.RawArguments
	}
	if tc.Arguments == nil {
		return "{}"
	}
	b, err := json.Marshal(tc.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// newToolCall decodes the raw JSON arguments. Empty arguments decode to an
// empty map; malformed arguments leave Arguments nil.
func newToolCall(id, name, raw string) ToolCall {
	tc := ToolCall{ID: id, Name: name, RawArguments: raw}
	if strings.TrimSpace(raw) == "" {
		tc.Arguments = map[string]interface{}{}
		return tc
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Warn("provider: malformed tool arguments", "tool", name, "error", err)
		return tc
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	tc.Arguments = args
	return tc
}
