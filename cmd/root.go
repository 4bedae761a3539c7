// Package cmd defines and implements the CLI commands for the shotprogress executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/shotprogress/internal/app"
	"github.com/JakeFAU/shotprogress/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type configKeyType struct{}

// runApp is the application entry point. It's a variable so tests can replace
// it without starting real services.
var runApp = func(ctx context.Context, cfg config.Config) error {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a.Run(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "shotprogress",
		Short: "Tracks multi-run work items and presents their progress.",
		Long: `shotprogress follows work items that execute as a sequence of runs.
Host lifecycle callbacks feed a background worker that reads run counters
from the configured metadata backend and renders a progress bar to the
terminal, logs, metrics and optional Pub/Sub notifications.`,
		SilenceUsage: true,

		// Load configuration once for every subcommand that needs it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKeyType{}, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.AddCommand(newServeCmd(), newVersionCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		tuiEnabled bool
		port       int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the progress worker and host HTTP surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tui") {
				cfg.TUI.Enabled = tuiEnabled
				if tuiEnabled {
					cfg.Console.Enabled = false
				}
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runApp(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&tuiEnabled, "tui", false, "render the progress bar in a terminal UI")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "shotprogress %s\n", Version)
}

func configFrom(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKeyType{}).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
