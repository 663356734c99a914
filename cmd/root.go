package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/config"
)

const (
	defaultConfigFile = "mcpdemo.json5"
	version           = "0.1.0"
)

var (
	cfgFile      string
	verbose      bool
	samplesDir   string
	modelName    string
	providerName string
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpdemo",
		Short: "Ask an agent about local files through MCP filesystem and time servers",
		Long: "mcpdemo starts the filesystem and time MCP servers, builds an agent over their tools " +
			"and streams its answers to a fixed list of questions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDemo(ctx, defaultDeps())
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $MCPDEMO_CONFIG or "+defaultConfigFile+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&samplesDir, "samples-dir", "", "directory served by the filesystem server")
	root.PersistentFlags().StringVar(&modelName, "model", "", "model override")
	root.PersistentFlags().StringVar(&providerName, "provider", "", "provider override (openai, anthropic)")

	root.AddCommand(doctorCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcpdemo %s\n", version)
		},
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err for the user and returns the exit code. A missing
// credential prints the bare message.
func reportError(w io.Writer, err error) int {
	var missing *config.MissingCredentialError
	if errors.As(err, &missing) {
		fmt.Fprintln(w, missing.Error())
		return 1
	}
	fmt.Fprintf(w, "Error: %s\n", err)
	if hint := formatRunError(err); hint != "" {
		fmt.Fprintln(w, hint)
	}
	return 1
}

func setupLogging() {
	level := slog.LevelWarn
	if v, err := strconv.ParseBool(os.Getenv("MCPDEMO_VERBOSE")); err == nil && v {
		verbose = true
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// resolveConfigPath returns --config, then $MCPDEMO_CONFIG, then the
// default file name. A missing file means built-in defaults.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("MCPDEMO_CONFIG"); v != "" {
		return v
	}
	return defaultConfigFile
}

// loadConfig loads .env, then the config file with flag overrides applied.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}
	return config.Load(resolveConfigPath(),
		config.WithSamplesDir(samplesDir),
		config.WithModel(modelName),
		config.WithProvider(providerName),
	)
}
