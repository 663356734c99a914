package tools

import (
	"context"
	"testing"
)

// mockTool is a minimal tool for testing the registry.
type mockTool struct {
	name   string
	execFn func(ctx context.Context, args map[string]interface{}) *Result
}

func (m *mockTool) Name() string        { return m.name }
func (m *mockTool) Description() string { return "mock tool" }
func (m *mockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (m *mockTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if m.execFn != nil {
		return m.execFn(ctx, args)
	}
	return NewResult("ok")
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	tool := &mockTool{name: "test_tool"}
	reg.Register(tool)

	got, ok := reg.Get("test_tool")
	if !ok {
		t.Fatal("tool not found")
	}
	if got.Name() != "test_tool" {
		t.Errorf("expected test_tool, got %s", got.Name())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("nonexistent")
	if ok {
		t.Error("expected tool not found")
	}
}

func TestRegistry_GetAfterRegister(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockTool{name: "t1"})
	reg.Register(&mockTool{name: "t2"})
	if _, ok := reg.Get("t1"); !ok {
		t.Error("expected t1 to be registered")
	}
	if names := reg.List(); len(names) != 2 {
		t.Errorf("expected 2, got %d", len(names))
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()
	result := reg.Execute(context.Background(), "missing", nil)
	if !result.IsError {
		t.Error("expected error result for unknown tool")
	}
	if result.ForLLM != "unknown tool: missing" {
		t.Errorf("unexpected message: %s", result.ForLLM)
	}
}

func TestRegistry_ExecuteNilArgsBecomeEmpty(t *testing.T) {
	reg := NewRegistry()
	var got map[string]interface{}
	reg.Register(&mockTool{
		name: "list_allowed_directories",
		execFn: func(ctx context.Context, args map[string]interface{}) *Result {
			got = args
			return nil
		},
	})

	result := reg.Execute(context.Background(), "list_allowed_directories", nil)
	if got == nil {
		t.Error("expected non-nil args map")
	}
	if result == nil || result.IsError {
		t.Errorf("expected empty success result for nil return, got %+v", result)
	}
}

func TestRegistry_ExecuteScrubsCredentials(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockTool{
		name: "read_file",
		execFn: func(ctx context.Context, args map[string]interface{}) *Result {
			return NewResult("OPENAI_API_KEY: sk-abcdefghijklmnopqrstuvwxyz1234567890")
		},
	})

	result := reg.Execute(context.Background(), "read_file", nil)
	if result.ForLLM == "OPENAI_API_KEY: sk-abcdefghijklmnopqrstuvwxyz1234567890" {
		t.Error("ForLLM should have credentials scrubbed")
	}

	reg.SetScrubbing(false)
	result = reg.Execute(context.Background(), "read_file", nil)
	if result.ForLLM != "OPENAI_API_KEY: sk-abcdefghijklmnopqrstuvwxyz1234567890" {
		t.Errorf("expected raw output with scrubbing disabled, got %s", result.ForLLM)
	}
}

func TestRegistry_RegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"read_file", "list_directory", "get_current_time"} {
		reg.Register(&mockTool{name: name})
	}
	// Re-registering keeps the original slot.
	reg.Register(&mockTool{name: "read_file"})

	defs := reg.ProviderDefs()
	if len(defs) != 3 {
		t.Fatalf("expected 3 defs, got %d", len(defs))
	}
	want := []string{"read_file", "list_directory", "get_current_time"}
	for i, d := range defs {
		if d.Function.Name != want[i] {
			t.Errorf("def %d: expected %s, got %s", i, want[i], d.Function.Name)
		}
		if d.Type != "function" {
			t.Errorf("def %d: expected type function, got %s", i, d.Type)
		}
	}

	names := reg.List()
	if len(names) != 3 || names[0] != "read_file" || names[2] != "get_current_time" {
		t.Errorf("expected registration order kept, got %v", names)
	}
}
