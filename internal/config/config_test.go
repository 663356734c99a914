package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks every variable Load reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL",
		"MCPDEMO_PROVIDER", "MCPDEMO_MODEL", "MCPDEMO_SAMPLES_DIR", "MCPDEMO_TRACE_VERBOSE",
		"OPENAI_AGENTS_DISABLE_TRACING", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_SERVICE_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Agent.Name != "Assistant" {
		t.Errorf("expected agent Assistant, got %s", cfg.Agent.Name)
	}
	if cfg.Tracing.WorkflowName != "MCP Filesystem and Time Example" {
		t.Errorf("unexpected workflow %s", cfg.Tracing.WorkflowName)
	}
	if len(cfg.Queries) != 5 || cfg.Queries[4] != "いま何時? 使ったツール名も教えて。" {
		t.Errorf("unexpected queries %v", cfg.Queries)
	}
	if !filepath.IsAbs(cfg.SamplesDir) || filepath.Base(cfg.SamplesDir) != "sample_files" {
		t.Errorf("expected absolute samples dir, got %s", cfg.SamplesDir)
	}

	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfg.Servers))
	}
	fs := cfg.Servers[0]
	if fs.Command != "npx" || len(fs.Args) != 3 || fs.Args[2] != cfg.SamplesDir {
		t.Errorf("unexpected filesystem server %+v", fs)
	}
	tm := cfg.Servers[1]
	if tm.Command != "uvx" || tm.Args[1] != "--local-timezone=Asia/Tokyo" {
		t.Errorf("unexpected time server %+v", tm)
	}
	if !fs.CacheTools() || !tm.CacheTools() {
		t.Error("expected tool-list caching on by default")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Errorf("expected default servers, got %d", len(cfg.Servers))
	}
}

func TestLoad_JSON5File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mcpdemo.json5")
	content := `{
		// comments and trailing commas are fine
		samples_dir: "` + filepath.ToSlash(dir) + `",
		agent: { model: "gpt-4o-mini", max_turns: 4, },
		mcp_servers: [
			{ name: "fs", command_line: "npx -y '@modelcontextprotocol/server-filesystem' $SAMPLES_DIR", tool_prefix: "FS Tools!" },
		],
		queries: ["Read the files and list them."],
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Model != "gpt-4o-mini" || cfg.Agent.MaxTurns != 4 {
		t.Errorf("unexpected agent config %+v", cfg.Agent)
	}
	if cfg.Agent.Name != "Assistant" {
		t.Error("expected default name kept when file omits it")
	}
	if len(cfg.Servers) != 1 {
		t.Fatalf("expected servers replaced, got %d", len(cfg.Servers))
	}
	s := cfg.Servers[0]
	if s.Command != "npx" || len(s.Args) != 3 || s.Args[1] != "@modelcontextprotocol/server-filesystem" {
		t.Errorf("unexpected split command line %q %q", s.Command, s.Args)
	}
	if s.Args[2] != cfg.SamplesDir {
		t.Errorf("expected $SAMPLES_DIR expanded, got %s", s.Args[2])
	}
	if s.ToolPrefix != "fs_tools" {
		t.Errorf("expected normalized prefix, got %q", s.ToolPrefix)
	}
	if len(cfg.Queries) != 1 {
		t.Errorf("expected queries replaced, got %v", cfg.Queries)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "mcpdemo.yaml")
	content := `
agent:
  provider: Anthropic
tracing:
  disabled: true
mcp_servers:
  - name: time
    command: uvx
    args: ["mcp-server-time", "--local-timezone=Europe/Paris"]
    cache_tools_list: false
    env:
      TZ_HOME: $SAMPLES_DIR
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Provider != "anthropic" {
		t.Errorf("expected lowercased provider, got %s", cfg.Agent.Provider)
	}
	if !cfg.Tracing.Disabled {
		t.Error("expected tracing disabled")
	}
	s := cfg.Servers[0]
	if s.CacheTools() {
		t.Error("expected caching off")
	}
	if env := s.EnvList(); len(env) != 1 || env[0] != "TZ_HOME="+cfg.SamplesDir {
		t.Errorf("unexpected env %v", env)
	}
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.json")
	os.WriteFile(path, []byte("{agent: "), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_ServerWithoutCommand(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	os.WriteFile(path, []byte("mcp_servers:\n  - name: nothing\n"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for server without command")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("MCPDEMO_MODEL", "gpt-4.1")
	t.Setenv("MCPDEMO_TRACE_VERBOSE", "1")
	t.Setenv("OPENAI_AGENTS_DISABLE_TRACING", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey() != "sk-env" || cfg.APIBase() != "http://localhost:8080/v1" {
		t.Errorf("unexpected provider settings %q %q", cfg.APIKey(), cfg.APIBase())
	}
	if cfg.Agent.Model != "gpt-4.1" {
		t.Errorf("expected model override, got %s", cfg.Agent.Model)
	}
	if !cfg.Tracing.Verbose || !cfg.Tracing.Disabled {
		t.Error("expected tracing flags from env")
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("expected telemetry enabled, got %+v", cfg.Telemetry)
	}
}

func TestCredentialEnv(t *testing.T) {
	cfg := Default()
	if cfg.CredentialEnv() != "OPENAI_API_KEY" {
		t.Errorf("expected OPENAI_API_KEY, got %s", cfg.CredentialEnv())
	}
	cfg.Agent.Provider = "anthropic"
	if cfg.CredentialEnv() != "ANTHROPIC_API_KEY" {
		t.Errorf("expected ANTHROPIC_API_KEY, got %s", cfg.CredentialEnv())
	}
}

func TestLoadDotEnv(t *testing.T) {
	// Setenv registers the restore; Unsetenv makes the key absent so the
	// .env value is allowed to apply.
	t.Setenv("MCPDEMO_DOTENV_PROBE", "")
	os.Unsetenv("MCPDEMO_DOTENV_PROBE")
	t.Setenv("MCPDEMO_DOTENV_KEEP", "from-shell")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("MCPDEMO_DOTENV_PROBE=gpt-from-dotenv\nMCPDEMO_DOTENV_KEEP=from-file\n"), 0o644)

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("MCPDEMO_DOTENV_PROBE"); got != "gpt-from-dotenv" {
		t.Errorf("expected value from .env, got %q", got)
	}
	if got := os.Getenv("MCPDEMO_DOTENV_KEEP"); got != "from-shell" {
		t.Errorf("expected shell value to win, got %q", got)
	}
}

func TestLoad_OptionsWinOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCPDEMO_MODEL", "gpt-4.1")
	dir := t.TempDir()

	cfg, err := Load("", WithModel("gpt-4o-mini"), WithSamplesDir(dir), WithProvider(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Model != "gpt-4o-mini" {
		t.Errorf("expected option model, got %s", cfg.Agent.Model)
	}
	if cfg.SamplesDir != dir || cfg.Servers[0].Args[2] != dir {
		t.Errorf("expected samples dir %s, got %s / %s", dir, cfg.SamplesDir, cfg.Servers[0].Args[2])
	}
	if cfg.Agent.Provider != "openai" {
		t.Errorf("expected empty provider option ignored, got %s", cfg.Agent.Provider)
	}
}

func TestTracesBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://proxy.example/v1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.TracesBaseURL(); got != "https://proxy.example/v1" {
		t.Errorf("expected provider base for traces, got %q", got)
	}
	cfg.Tracing.Endpoint = "https://traces.example/v1"
	if got := cfg.TracesBaseURL(); got != "https://traces.example/v1" {
		t.Errorf("expected tracing endpoint override, got %q", got)
	}
}
