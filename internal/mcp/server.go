package mcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tools"
)

// ErrNotConnected is returned by operations on a server that has not been
// connected yet or was already closed.
var ErrNotConnected = errors.New("mcp server not connected")

// ClientInfo identifies this program in the initialize handshake.
var ClientInfo = mcpgo.Implementation{
	Name:    "mcpdemo",
	Version: "0.1.0",
}

// Client is the subset of the mcp-go client used by Server.
type Client interface {
	Initialize(ctx context.Context, req mcpgo.InitializeRequest) (*mcpgo.InitializeResult, error)
	ListTools(ctx context.Context, req mcpgo.ListToolsRequest) (*mcpgo.ListToolsResult, error)
	CallTool(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)
	Close() error
}

// Dialer starts the transport for a server config.
type Dialer func(ctx context.Context, cfg ServerConfig) (Client, error)

// ServerConfig describes one out-of-process tool server.
type ServerConfig struct {
	Name           string
	Command        string
	Args           []string
	Env            []string // extra KEY=VALUE pairs appended to the parent environment
	CacheToolsList bool
	TimeoutSec     int       // per tool call, default 60
	ToolPrefix     string    // registered tool names become "{prefix}__{tool}"
	Stderr         io.Writer // receives subprocess stderr lines; nil sends them to the debug log
}

// StdioDialer spawns the server as a subprocess speaking MCP over stdio.
// The subprocess stderr is copied to cfg.Stderr, or the debug log.
func StdioDialer(_ context.Context, cfg ServerConfig) (Client, error) {
	c, err := mcpclient.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}
	if stderr, ok := mcpclient.GetStderr(c); ok {
		go drainStderr(cfg.Name, stderr, cfg.Stderr)
	}
	return c, nil
}

func drainStderr(server string, r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w != nil {
			fmt.Fprintln(w, scanner.Text())
			continue
		}
		slog.Debug("mcp server stderr", "server", server, "line", scanner.Text())
	}
}

// Server is a handle to one MCP tool server. It must be connected before use
// and is torn down exactly once by Close.
type Server struct {
	cfg  ServerConfig
	dial Dialer

	mu         sync.Mutex
	client     Client
	closed     bool
	connected  atomic.Bool
	serverInfo mcpgo.Implementation

	cacheMu    sync.Mutex
	toolsCache []mcpgo.Tool
	cacheValid bool
}

// Option customizes a Server.
type Option func(*Server)

// WithDialer replaces the stdio transport, mainly for tests. Nil keeps
// the default.
func WithDialer(d Dialer) Option {
	return func(s *Server) {
		if d != nil {
			s.dial = d
		}
	}
}

func NewServer(cfg ServerConfig, opts ...Option) *Server {
	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	s := &Server{cfg: cfg, dial: StdioDialer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Name() string         { return s.cfg.Name }
func (s *Server) Config() ServerConfig { return s.cfg }
func (s *Server) Connected() bool      { return s.connected.Load() }

// ServerInfo returns the implementation info reported during initialize.
func (s *Server) ServerInfo() mcpgo.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// Connect launches the server and performs the initialize handshake.
// Connecting an already connected server is a no-op.
func (s *Server) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("mcp server %q: already closed", s.cfg.Name)
	}
	if s.client != nil {
		return nil
	}

	start := time.Now()
	client, err := s.dial(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("mcp server %q: %w", s.cfg.Name, err)
	}

	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = ClientInfo
	req.Params.Capabilities = mcpgo.ClientCapabilities{}

	res, err := client.Initialize(ctx, req)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			slog.Debug("mcp close after failed initialize", "server", s.cfg.Name, "error", cerr)
		}
		return fmt.Errorf("mcp server %q: initialize: %w", s.cfg.Name, err)
	}
	if res != nil {
		s.serverInfo = res.ServerInfo
	}

	s.client = client
	s.connected.Store(true)
	slog.Info("mcp server connected",
		"server", s.cfg.Name,
		"command", s.cfg.Command,
		"server_name", s.serverInfo.Name,
		"server_version", s.serverInfo.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Server) currentClient() (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, fmt.Errorf("mcp server %q: %w", s.cfg.Name, ErrNotConnected)
	}
	return s.client, nil
}

// ListTools returns the tools advertised by the server. With CacheToolsList
// set, the first successful listing is reused until InvalidateToolsCache.
func (s *Server) ListTools(ctx context.Context) ([]mcpgo.Tool, error) {
	client, err := s.currentClient()
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.cfg.CacheToolsList && s.cacheValid {
		out := make([]mcpgo.Tool, len(s.toolsCache))
		copy(out, s.toolsCache)
		return out, nil
	}

	var all []mcpgo.Tool
	var cursor mcpgo.Cursor
	for {
		req := mcpgo.ListToolsRequest{}
		req.Params.Cursor = cursor
		res, err := client.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("mcp server %q: list tools: %w", s.cfg.Name, err)
		}
		all = append(all, res.Tools...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}
	slog.Debug("mcp tools listed", "server", s.cfg.Name, "count", len(all))

	if s.cfg.CacheToolsList {
		s.toolsCache = all
		s.cacheValid = true
		out := make([]mcpgo.Tool, len(all))
		copy(out, all)
		return out, nil
	}
	return all, nil
}

// InvalidateToolsCache forces the next ListTools to hit the server.
func (s *Server) InvalidateToolsCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.toolsCache = nil
	s.cacheValid = false
}

// CallTool invokes a tool by its original (unprefixed) name.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpgo.CallToolResult, error) {
	client, err := s.currentClient()
	if err != nil {
		return nil, err
	}
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return client.CallTool(ctx, req)
}

// Tools lists the server's tools wrapped as tools.Tool.
func (s *Server) Tools(ctx context.Context) ([]tools.Tool, error) {
	listed, err := s.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tools.Tool, 0, len(listed))
	for _, t := range listed {
		out = append(out, NewBridgeTool(s, t))
	}
	return out, nil
}

// Close shuts the server down. Only the first call tears the subprocess
// down; later calls return nil.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.connected.Store(false)
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	if err != nil {
		return fmt.Errorf("mcp server %q: close: %w", s.cfg.Name, err)
	}
	slog.Debug("mcp server closed", "server", s.cfg.Name)
	return nil
}
