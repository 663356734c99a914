package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-shellwords"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAgentName    = "Assistant"
	DefaultInstructions = "Use the tools to read the filesystem and answer questions based on those files."
	DefaultWorkflowName = "MCP Filesystem and Time Example"
	DefaultSamplesDir   = "sample_files"
	DefaultProvider     = "openai"

	// SamplesDirVar is expanded in server args to the absolute samples dir.
	SamplesDirVar = "SAMPLES_DIR"
)

// DefaultQueries are asked in order, each as an independent run.
var DefaultQueries = []string{
	"Read the files and list them.",
	"What is my #1 favorite book?",
	"Look at my favorite songs. Suggest one new song that I might like.",
	"What time is it now?",
	"いま何時? 使ったツール名も教えて。",
}

// Config is the root configuration.
type Config struct {
	SamplesDir string            `json:"samples_dir" yaml:"samples_dir"`
	Agent      AgentConfig       `json:"agent" yaml:"agent"`
	Providers  ProvidersConfig   `json:"providers" yaml:"providers"`
	Servers    []MCPServerConfig `json:"mcp_servers" yaml:"mcp_servers"`
	Queries    []string          `json:"queries" yaml:"queries"`
	Tracing    TracingConfig     `json:"tracing" yaml:"tracing"`
	Telemetry  TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
}

type AgentConfig struct {
	Name         string  `json:"name" yaml:"name"`
	Instructions string  `json:"instructions" yaml:"instructions"`
	Provider     string  `json:"provider" yaml:"provider"` // "openai" (default) or "anthropic"
	Model        string  `json:"model" yaml:"model"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens"`
	MaxTurns     int     `json:"max_turns" yaml:"max_turns"`

	// InjectionAction is "warn" (default), "log" or "off".
	InjectionAction string `json:"injection_action" yaml:"injection_action"`
	ScrubToolOutput *bool  `json:"scrub_tool_output" yaml:"scrub_tool_output"`
}

// ProvidersConfig holds per-provider endpoints. API keys come from the
// environment only.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai" yaml:"openai"`
	Anthropic ProviderConfig `json:"anthropic" yaml:"anthropic"`
}

type ProviderConfig struct {
	APIKey  string `json:"-" yaml:"-"`
	APIBase string `json:"api_base" yaml:"api_base"`
}

// MCPServerConfig describes one stdio tool server. Either Command (+Args)
// or CommandLine may be given; CommandLine is split shell-style.
type MCPServerConfig struct {
	Name           string            `json:"name" yaml:"name"`
	Command        string            `json:"command" yaml:"command"`
	Args           []string          `json:"args" yaml:"args"`
	CommandLine    string            `json:"command_line" yaml:"command_line"`
	Env            map[string]string `json:"env" yaml:"env"`
	CacheToolsList *bool             `json:"cache_tools_list" yaml:"cache_tools_list"` // default true
	TimeoutSec     int               `json:"timeout_sec" yaml:"timeout_sec"`
	ToolPrefix     string            `json:"tool_prefix" yaml:"tool_prefix"`
}

// CacheTools reports whether the tool list should be cached.
func (s MCPServerConfig) CacheTools() bool {
	return s.CacheToolsList == nil || *s.CacheToolsList
}

// EnvList renders Env as sorted KEY=VALUE pairs.
func (s MCPServerConfig) EnvList() []string {
	if len(s.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

type TracingConfig struct {
	Disabled     bool              `json:"disabled" yaml:"disabled"`
	Verbose      bool              `json:"verbose" yaml:"verbose"`
	WorkflowName string            `json:"workflow_name" yaml:"workflow_name"`
	GroupID      string            `json:"group_id" yaml:"group_id"`
	Metadata     map[string]string `json:"metadata" yaml:"metadata"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"` // traces API base URL, default the OpenAI api_base
}

// TelemetryConfig enables OTLP export alongside the OpenAI dashboard.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Protocol    string            `json:"protocol" yaml:"protocol"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure" yaml:"insecure"`
	ServiceName string            `json:"service_name" yaml:"service_name"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
}

// Default returns the built-in configuration: the filesystem server on the
// samples dir and the time server pinned to Asia/Tokyo.
func Default() *Config {
	return &Config{
		SamplesDir: DefaultSamplesDir,
		Agent: AgentConfig{
			Name:            DefaultAgentName,
			Instructions:    DefaultInstructions,
			Provider:        DefaultProvider,
			InjectionAction: "warn",
		},
		Servers: []MCPServerConfig{
			{
				Name:    "Filesystem Server, via npx",
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", "$" + SamplesDirVar},
			},
			{
				Name:    "Time Server, via uvx",
				Command: "uvx",
				Args:    []string{"mcp-server-time", "--local-timezone=Asia/Tokyo"},
			},
		},
		Queries: append([]string(nil), DefaultQueries...),
		Tracing: TracingConfig{WorkflowName: DefaultWorkflowName},
	}
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Option overrides a loaded value before paths are resolved. Options win
// over both the file and the environment.
type Option func(*Config)

// WithSamplesDir overrides the samples dir when dir is non-empty.
func WithSamplesDir(dir string) Option {
	return func(c *Config) { setStr(&c.SamplesDir, dir) }
}

// WithModel overrides the agent model when model is non-empty.
func WithModel(model string) Option {
	return func(c *Config) { setStr(&c.Agent.Model, model) }
}

// WithProvider overrides the agent provider when name is non-empty.
func WithProvider(name string) Option {
	return func(c *Config) { setStr(&c.Agent.Provider, name) }
}

// Load builds the effective config: defaults, then the file at path (if it
// exists), then environment overrides, then opts. Paths are resolved
// against the working directory.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			file, err := parse(path, data)
			if err != nil {
				return nil, err
			}
			cfg.merge(file)
		}
	}

	cfg.applyEnv()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(path string, data []byte) (*Config, error) {
	file := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := json5.Unmarshal(data, file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return file, nil
}

// merge overlays the non-zero values of o.
func (c *Config) merge(o *Config) {
	setStr(&c.SamplesDir, o.SamplesDir)

	setStr(&c.Agent.Name, o.Agent.Name)
	setStr(&c.Agent.Instructions, o.Agent.Instructions)
	setStr(&c.Agent.Provider, o.Agent.Provider)
	setStr(&c.Agent.Model, o.Agent.Model)
	setStr(&c.Agent.InjectionAction, o.Agent.InjectionAction)
	if o.Agent.Temperature != 0 {
		c.Agent.Temperature = o.Agent.Temperature
	}
	if o.Agent.MaxTokens != 0 {
		c.Agent.MaxTokens = o.Agent.MaxTokens
	}
	if o.Agent.MaxTurns != 0 {
		c.Agent.MaxTurns = o.Agent.MaxTurns
	}
	if o.Agent.ScrubToolOutput != nil {
		c.Agent.ScrubToolOutput = o.Agent.ScrubToolOutput
	}

	setStr(&c.Providers.OpenAI.APIBase, o.Providers.OpenAI.APIBase)
	setStr(&c.Providers.Anthropic.APIBase, o.Providers.Anthropic.APIBase)

	if len(o.Servers) > 0 {
		c.Servers = o.Servers
	}
	if len(o.Queries) > 0 {
		c.Queries = o.Queries
	}

	c.Tracing.Disabled = c.Tracing.Disabled || o.Tracing.Disabled
	c.Tracing.Verbose = c.Tracing.Verbose || o.Tracing.Verbose
	setStr(&c.Tracing.WorkflowName, o.Tracing.WorkflowName)
	setStr(&c.Tracing.GroupID, o.Tracing.GroupID)
	setStr(&c.Tracing.Endpoint, o.Tracing.Endpoint)
	if len(o.Tracing.Metadata) > 0 {
		c.Tracing.Metadata = o.Tracing.Metadata
	}

	if o.Telemetry.Enabled || o.Telemetry.Endpoint != "" {
		c.Telemetry = o.Telemetry
	}
}

func (c *Config) applyEnv() {
	envStr("OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("OPENAI_BASE_URL", &c.Providers.OpenAI.APIBase)
	envStr("ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("ANTHROPIC_BASE_URL", &c.Providers.Anthropic.APIBase)
	envStr("MCPDEMO_PROVIDER", &c.Agent.Provider)
	envStr("MCPDEMO_MODEL", &c.Agent.Model)
	envStr("MCPDEMO_SAMPLES_DIR", &c.SamplesDir)
	envBool("MCPDEMO_TRACE_VERBOSE", &c.Tracing.Verbose)
	envBool("OPENAI_AGENTS_DISABLE_TRACING", &c.Tracing.Disabled)

	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = v
	}
	envStr("OTEL_EXPORTER_OTLP_PROTOCOL", &c.Telemetry.Protocol)
	envStr("OTEL_SERVICE_NAME", &c.Telemetry.ServiceName)
}

// resolve makes the samples dir absolute, splits command lines, expands
// $SAMPLES_DIR in server args and normalizes tool prefixes.
func (c *Config) resolve() error {
	c.Agent.Provider = strings.ToLower(strings.TrimSpace(c.Agent.Provider))
	if c.Agent.Provider == "" {
		c.Agent.Provider = DefaultProvider
	}

	abs, err := filepath.Abs(c.SamplesDir)
	if err != nil {
		return fmt.Errorf("resolve samples dir: %w", err)
	}
	c.SamplesDir = abs

	expand := func(s string) string {
		return os.Expand(s, func(key string) string {
			if key == SamplesDirVar {
				return abs
			}
			return os.Getenv(key)
		})
	}

	for i := range c.Servers {
		s := &c.Servers[i]
		if s.CommandLine != "" {
			words, err := shellwords.Parse(s.CommandLine)
			if err != nil {
				return fmt.Errorf("mcp server %q: parse command_line: %w", s.Name, err)
			}
			if len(words) == 0 {
				return fmt.Errorf("mcp server %q: empty command_line", s.Name)
			}
			s.Command = words[0]
			s.Args = append(words[1:], s.Args...)
			s.CommandLine = ""
		}
		if s.Command == "" {
			return fmt.Errorf("mcp server %d (%q): command is required", i, s.Name)
		}
		for j, a := range s.Args {
			s.Args[j] = expand(a)
		}
		for k, v := range s.Env {
			s.Env[k] = expand(v)
		}
		if s.Name == "" {
			s.Name = s.Command
		}
		s.ToolPrefix = NormalizeToolPrefix(s.ToolPrefix)
	}
	return nil
}

// APIKey returns the key of the selected provider.
func (c *Config) APIKey() string {
	if c.Agent.Provider == "anthropic" {
		return c.Providers.Anthropic.APIKey
	}
	return c.Providers.OpenAI.APIKey
}

// APIBase returns the endpoint override of the selected provider.
func (c *Config) APIBase() string {
	if c.Agent.Provider == "anthropic" {
		return c.Providers.Anthropic.APIBase
	}
	return c.Providers.OpenAI.APIBase
}

// TracesBaseURL is the API base the trace exporter posts to: the tracing
// endpoint override, else the OpenAI provider base. Empty means the SDK
// default.
func (c *Config) TracesBaseURL() string {
	if c.Tracing.Endpoint != "" {
		return c.Tracing.Endpoint
	}
	return c.Providers.OpenAI.APIBase
}

// CredentialEnv names the environment variable holding the selected
// provider's key.
func (c *Config) CredentialEnv() string {
	if c.Agent.Provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
		return
	}
	*dst = true
}
