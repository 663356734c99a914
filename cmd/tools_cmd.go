package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/config"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/mcp"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage MCP tool servers",
	}
	cmd.AddCommand(toolsListCmd())
	return cmd
}

func toolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Start every configured server and list the tools it exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.CheckBinaries(cfg, exec.LookPath); err != nil {
				return err
			}
			return listTools(cmd.Context(), os.Stdout, buildServers(cfg, mcp.StdioDialer))
		},
	}
}

// listTools connects the servers, prints one row per tool, then shuts them
// down.
func listTools(ctx context.Context, w io.Writer, servers []*mcp.Server) error {
	mgr := mcp.NewManager(servers...)
	if err := mgr.Connect(ctx); err != nil {
		return fmt.Errorf("start tool servers: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			slog.Warn("tool server shutdown failed", "error", err)
		}
	}()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SERVER\tTOOL\tDESCRIPTION\n")
	total := 0
	for _, s := range mgr.Servers() {
		list, err := s.Tools(ctx)
		if err != nil {
			return fmt.Errorf("list tools of %q: %w", s.Name(), err)
		}
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name(), t.Name(), truncate(t.Description(), 60))
			total++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d tool(s) from %d server(s)\n", total, len(mgr.Servers()))
	return nil
}

// truncate collapses whitespace and cuts s to n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
