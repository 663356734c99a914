package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sseServer replays events as a text/event-stream response.
func sseServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprint(w, ev)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAIEvent(data string) string { return "data: " + data + "\n\n" }

func anthropicEvent(typ, data string) string {
	return "event: " + typ + "\ndata: " + data + "\n\n"
}

func collectChunks(chunks *[]StreamChunk) func(StreamChunk) {
	return func(c StreamChunk) { *chunks = append(*chunks, c) }
}

func checkTextChunks(t *testing.T, chunks []StreamChunk) {
	t.Helper()
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content != "Hel" || chunks[1].Content != "lo" {
		t.Errorf("expected deltas Hel, lo in order, got %q, %q", chunks[0].Content, chunks[1].Content)
	}
	if !chunks[2].Done || chunks[2].Content != "" {
		t.Errorf("expected final empty Done chunk, got %+v", chunks[2])
	}
}

func checkReadFileCall(t *testing.T, resp *ChatResponse) {
	t.Helper()
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "c1" || tc.Name != "read_file" {
		t.Errorf("expected c1/read_file, got %s/%s", tc.ID, tc.Name)
	}
	if tc.Arguments["path"] != "a" {
		t.Errorf("expected path=a, got %v (raw %q)", tc.Arguments, tc.RawArguments)
	}
}

func checkUsage(t *testing.T, u *Usage) {
	t.Helper()
	if u == nil {
		t.Fatal("expected usage")
	}
	if u.PromptTokens != 3 || u.CompletionTokens != 4 || u.TotalTokens != 7 {
		t.Errorf("expected usage 3/4/7, got %d/%d/%d", u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}
}

func TestOpenAIChatStream_TextDeltas(t *testing.T) {
	srv := sseServer(t,
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`),
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"lo"}}]}`),
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`),
		openAIEvent(`[DONE]`),
	)
	p := NewOpenAIProvider("", "sk-test", srv.URL, "")

	var chunks []StreamChunk
	resp, err := p.ChatStream(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	checkTextChunks(t, chunks)
	if resp.Content != "Hello" {
		t.Errorf("expected content Hello, got %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("expected finish stop, got %q", resp.FinishReason)
	}
}

func TestOpenAIChatStream_ToolCallAcrossChunks(t *testing.T) {
	srv := sseServer(t,
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"c1","type":"function","function":{"name":"read_file","arguments":"{\"pa"}}]}}]}`),
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"th\":\"a\"}"}}]}}]}`),
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`),
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`),
		openAIEvent(`[DONE]`),
	)
	p := NewOpenAIProvider("", "sk-test", srv.URL, "")

	var chunks []StreamChunk
	resp, err := p.ChatStream(context.Background(), ChatRequest{}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	checkReadFileCall(t, resp)
	if resp.FinishReason != "tool_calls" {
		t.Errorf("expected finish tool_calls, got %q", resp.FinishReason)
	}
	checkUsage(t, resp.Usage)
	if len(chunks) != 1 || !chunks[0].Done {
		t.Errorf("expected only the Done chunk, got %+v", chunks)
	}
}

func TestOpenAIChatStream_ErrorEvent(t *testing.T) {
	srv := sseServer(t,
		openAIEvent(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hel"}}]}`),
		openAIEvent(`{"error":{"message":"server overloaded","type":"server_error"}}`),
	)
	p := NewOpenAIProvider("", "sk-test", srv.URL, "")

	var chunks []StreamChunk
	resp, err := p.ChatStream(context.Background(), ChatRequest{}, collectChunks(&chunks))
	if err == nil {
		t.Fatalf("expected stream error, got response %+v", resp)
	}
	if !strings.Contains(err.Error(), "server overloaded") {
		t.Errorf("expected error message surfaced, got %v", err)
	}
	for _, c := range chunks {
		if c.Done {
			t.Error("expected no Done chunk after a stream error")
		}
	}
}

func TestOpenAIChatStream_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()
	p := NewOpenAIProvider("", "sk-test", srv.URL, "")

	if _, err := p.ChatStream(context.Background(), ChatRequest{}, nil); err == nil {
		t.Error("expected error for HTTP 400")
	}
}

const anthropicMessageStart = `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-20250514","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":0}}}`

func TestAnthropicChatStream_TextDeltas(t *testing.T) {
	srv := sseServer(t,
		anthropicEvent("message_start", anthropicMessageStart),
		anthropicEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		anthropicEvent("ping", `{"type":"ping"}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`),
		anthropicEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		anthropicEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}`),
		anthropicEvent("message_stop", `{"type":"message_stop"}`),
	)
	p := NewAnthropicProvider("sk-ant-test", srv.URL, "")

	var chunks []StreamChunk
	resp, err := p.ChatStream(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	checkTextChunks(t, chunks)
	if resp.Content != "Hello" {
		t.Errorf("expected content Hello, got %q", resp.Content)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("expected finish end_turn, got %q", resp.FinishReason)
	}
	checkUsage(t, resp.Usage)
}

func TestAnthropicChatStream_ToolUseAcrossDeltas(t *testing.T) {
	srv := sseServer(t,
		anthropicEvent("message_start", anthropicMessageStart),
		anthropicEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"c1","name":"read_file","input":{}}}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"pa"}}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"th\":\"a\"}"}}`),
		anthropicEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		anthropicEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":4}}`),
		anthropicEvent("message_stop", `{"type":"message_stop"}`),
	)
	p := NewAnthropicProvider("sk-ant-test", srv.URL, "")

	var chunks []StreamChunk
	resp, err := p.ChatStream(context.Background(), ChatRequest{}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	checkReadFileCall(t, resp)
	if resp.FinishReason != "tool_use" {
		t.Errorf("expected finish tool_use, got %q", resp.FinishReason)
	}
	checkUsage(t, resp.Usage)
	if len(chunks) != 1 || !chunks[0].Done {
		t.Errorf("expected only the Done chunk, got %+v", chunks)
	}
}

func TestAnthropicChatStream_ErrorEvent(t *testing.T) {
	srv := sseServer(t,
		anthropicEvent("message_start", anthropicMessageStart),
		anthropicEvent("error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`),
	)
	p := NewAnthropicProvider("sk-ant-test", srv.URL, "")

	resp, err := p.ChatStream(context.Background(), ChatRequest{}, nil)
	if err == nil {
		t.Fatalf("expected stream error, got response %+v", resp)
	}
	if !strings.Contains(err.Error(), "Overloaded") {
		t.Errorf("expected error message surfaced, got %v", err)
	}
}
