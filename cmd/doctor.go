package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/config"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/providers"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, credentials and tool server executables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if problems := runDoctor(os.Stdout, exec.LookPath); problems > 0 {
				return fmt.Errorf("doctor found %d problem(s)", problems)
			}
			return nil
		},
	}
}

// runDoctor prints the health report and returns the number of problems
// that would stop a demo run.
func runDoctor(w io.Writer, lookPath func(string) (string, error)) int {
	problems := 0

	fmt.Fprintln(w, headerStyle.Render("mcpdemo doctor"))
	fmt.Fprintf(w, "  Version:  %s (MCP %s)\n", version, mcpgo.LATEST_PROTOCOL_VERSION)
	fmt.Fprintf(w, "  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Go:       %s\n", runtime.Version())
	fmt.Fprintln(w)

	cfgPath := resolveConfigPath()
	fmt.Fprintf(w, "  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Fprintln(w, mutedStyle.Render(" (not found, using defaults)"))
	} else {
		fmt.Fprintln(w, okStyle.Render(" (OK)"))
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n", failStyle.Render("Config load error:"), err)
		return problems + 1
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("  Providers:"))
	if !checkSelectedProvider(w, cfg.Agent.Provider) {
		problems++
	}
	for _, p := range []struct {
		name, env, key string
	}{
		{"OpenAI", "OPENAI_API_KEY", cfg.Providers.OpenAI.APIKey},
		{"Anthropic", "ANTHROPIC_API_KEY", cfg.Providers.Anthropic.APIKey},
	} {
		selected := strings.EqualFold(p.name, cfg.Agent.Provider)
		if !checkProvider(w, p.name, p.key, selected) {
			problems++
		}
	}
	fmt.Fprintf(w, "    %-12s %s\n", "Model:", modelOrDefault(cfg.Agent.Model))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("  Tool servers:"))
	seen := make(map[string]bool)
	for _, s := range cfg.Servers {
		if seen[s.Command] {
			continue
		}
		seen[s.Command] = true
		if !checkBinary(w, s.Command, lookPath) {
			problems++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Samples:  %s", cfg.SamplesDir)
	if info, err := os.Stat(cfg.SamplesDir); err != nil || !info.IsDir() {
		fmt.Fprintln(w, failStyle.Render(" (NOT FOUND)"))
		problems++
	} else {
		fmt.Fprintln(w, okStyle.Render(" (OK)"))
	}

	fmt.Fprintf(w, "  Tracing:  %s\n", tracingStatus(cfg))

	fmt.Fprintln(w)
	if problems == 0 {
		fmt.Fprintln(w, okStyle.Render("Doctor check complete."))
	} else {
		fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("Doctor found %d problem(s).", problems)))
	}
	return problems
}

// checkProvider prints the masked key. Only the selected provider's key
// counts as a problem when missing.
func checkProvider(w io.Writer, name, apiKey string, selected bool) bool {
	label := name + ":"
	if apiKey != "" {
		fmt.Fprintf(w, "    %-12s %s\n", label, okStyle.Render(maskKey(apiKey)))
		return true
	}
	if selected {
		fmt.Fprintf(w, "    %-12s %s\n", label, failStyle.Render("(not configured)"))
		return false
	}
	fmt.Fprintf(w, "    %-12s %s\n", label, mutedStyle.Render("(not configured)"))
	return true
}

// checkSelectedProvider fails for names the provider factory rejects.
func checkSelectedProvider(w io.Writer, name string) bool {
	if !providers.Known(name) {
		fmt.Fprintf(w, "    %-12s %s\n", "Selected:", failStyle.Render(fmt.Sprintf("%s (unknown, expected %s)", name, strings.Join(providers.Names, " or "))))
		return false
	}
	fmt.Fprintf(w, "    %-12s %s\n", "Selected:", name)
	return true
}

func checkBinary(w io.Writer, name string, lookPath func(string) (string, error)) bool {
	path, err := lookPath(name)
	if err != nil {
		fmt.Fprintf(w, "    %-12s %s\n", name+":", failStyle.Render("NOT FOUND"))
		return false
	}
	fmt.Fprintf(w, "    %-12s %s\n", name+":", path)
	return true
}

// maskKey keeps the first and last four characters of long keys.
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func modelOrDefault(model string) string {
	if model == "" {
		return "(provider default)"
	}
	return model
}

func tracingStatus(cfg *config.Config) string {
	if cfg.Tracing.Disabled {
		return "disabled"
	}
	sinks := []string{}
	if cfg.Providers.OpenAI.APIKey != "" {
		sinks = append(sinks, "openai")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint != "" {
		sinks = append(sinks, "otlp "+cfg.Telemetry.Endpoint)
	}
	if len(sinks) == 0 {
		return "enabled (no exporters)"
	}
	return "enabled (" + strings.Join(sinks, ", ") + ")"
}
