package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/agent"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/config"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/mcp"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/providers"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/runloop"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing"
)

// demoDeps are the process boundaries of a demo run.
type demoDeps struct {
	loadConfig  func() (*config.Config, error)
	lookPath    func(string) (string, error)
	dialer      mcp.Dialer
	newProvider func(cfg *config.Config) (providers.Provider, error)
	exporters   func(ctx context.Context, cfg *config.Config) []tracing.SpanExporter
	stdout      io.Writer
}

func defaultDeps() demoDeps {
	return demoDeps{
		loadConfig:  loadConfig,
		lookPath:    exec.LookPath,
		dialer:      mcp.StdioDialer,
		newProvider: newProvider,
		exporters:   traceExporters,
		stdout:      os.Stdout,
	}
}

func newProvider(cfg *config.Config) (providers.Provider, error) {
	return providers.New(cfg.Agent.Provider, cfg.APIKey(), cfg.APIBase(), cfg.Agent.Model)
}

// buildServers turns the configured servers into unconnected MCP servers.
func buildServers(cfg *config.Config, dialer mcp.Dialer) []*mcp.Server {
	servers := make([]*mcp.Server, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, mcp.NewServer(mcp.ServerConfig{
			Name:           s.Name,
			Command:        s.Command,
			Args:           s.Args,
			Env:            s.EnvList(),
			CacheToolsList: s.CacheTools(),
			TimeoutSec:     s.TimeoutSec,
			ToolPrefix:     s.ToolPrefix,
			Stderr:         serverStderr(),
		}, mcp.WithDialer(dialer)))
	}
	return servers
}

// serverStderr passes tool server stderr through to the terminal. Verbose
// runs route it into the debug log instead, tagged with the server name.
func serverStderr() io.Writer {
	if verbose {
		return nil
	}
	return os.Stderr
}

// runDemo checks preconditions, starts the servers, then streams the agent's
// answer to every query inside one trace. Servers are shut down on every
// exit path once started.
func runDemo(ctx context.Context, d demoDeps) error {
	cfg, err := d.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.CheckCredential(cfg); err != nil {
		return err
	}
	if err := config.CheckBinaries(cfg, d.lookPath); err != nil {
		return err
	}

	provider, err := d.newProvider(cfg)
	if err != nil {
		return err
	}

	mgr := mcp.NewManager(buildServers(cfg, d.dialer)...)
	if err := mgr.Connect(ctx); err != nil {
		return fmt.Errorf("start tool servers: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			slog.Warn("tool server shutdown failed", "error", err)
		}
	}()

	sources := make([]agent.ToolSource, 0, len(mgr.Servers()))
	for _, s := range mgr.Servers() {
		sources = append(sources, s)
	}
	assistant, err := agent.New(agent.Config{
		Name:            cfg.Agent.Name,
		Instructions:    cfg.Agent.Instructions,
		Provider:        provider,
		Model:           cfg.Agent.Model,
		Temperature:     cfg.Agent.Temperature,
		MaxTokens:       cfg.Agent.MaxTokens,
		MaxTurns:        cfg.Agent.MaxTurns,
		Sources:         sources,
		Guard:           agent.NewContentGuard(cfg.Agent.InjectionAction),
		ScrubToolOutput: cfg.Agent.ScrubToolOutput,
	})
	if err != nil {
		return err
	}

	// Deferred after mgr.Close so the trace is flushed before servers stop.
	var collector *tracing.Collector
	if !cfg.Tracing.Disabled {
		collector = tracing.NewCollector(cfg.Tracing.Verbose)
		for _, exp := range d.exporters(ctx, cfg) {
			collector.AddExporter(exp)
		}
		collector.Start()
		defer collector.Stop()
	}

	out := bufio.NewWriter(d.stdout)
	defer out.Flush()

	traceID := tracing.GenTraceID()
	fmt.Fprintf(out, "View trace: %s\n\n", tracing.TraceURL(traceID))
	if err := out.Flush(); err != nil {
		return err
	}

	tctx, trace := tracing.Start(ctx, collector, cfg.Tracing.WorkflowName, traceID,
		tracing.WithGroupID(cfg.Tracing.GroupID),
		tracing.WithMetadata(cfg.Tracing.Metadata),
	)
	runErr := runloop.Run(tctx, assistant, cfg.Queries, out)
	trace.Finish(runErr)
	return runErr
}
